package handlers

import (
	"net/http"
	"time"

	"plforum/internal/middleware"
	"plforum/internal/services"
	"plforum/internal/utils"

	"github.com/gin-gonic/gin"
)

type PostHandler struct {
	svc *services.Services
}

func NewPostHandler(svc *services.Services) *PostHandler {
	return &PostHandler{svc: svc}
}

func (h *PostHandler) ListBoards(c *gin.Context) {
	boards, err := h.svc.Forum.ListBoards(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"boards": boards})
}

func (h *PostHandler) ToggleBoardFollow(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	res, err := h.svc.Forum.ToggleBoardFollow(c.Request.Context(), currentUser(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// List ?board=&author=&q=&following=1&page=&page_size=
func (h *PostHandler) List(c *gin.Context) {
	f := services.PostFilter{
		BoardID:   utils.StringToUint(c.Query("board")),
		AuthorID:  utils.StringToUint(c.Query("author")),
		Query:     c.Query("q"),
		Following: c.Query("following") == "1",
		Page:      utils.StringToInt(c.Query("page")),
		PageSize:  utils.StringToInt(c.Query("page_size")),
	}
	posts, total, err := h.svc.Forum.ListPosts(c.Request.Context(), middleware.CurrentUser(c), f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts, "total": total})
}

// Hot ?days=&page=&page_size=
func (h *PostHandler) Hot(c *gin.Context) {
	posts, total, err := h.svc.Forum.HotPosts(c.Request.Context(), services.HotFilter{
		Days:     utils.StringToInt(c.Query("days")),
		Page:     utils.StringToInt(c.Query("page")),
		PageSize: utils.StringToInt(c.Query("page_size")),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts, "total": total})
}

// Rankings ?range=week|month&board_slug=&end=RFC3339&page=&page_size=
func (h *PostHandler) Rankings(c *gin.Context) {
	f := services.RankingFilter{
		Range:     c.Query("range"),
		BoardSlug: c.Query("board_slug"),
		Page:      utils.StringToInt(c.Query("page")),
		PageSize:  utils.StringToInt(c.Query("page_size")),
	}
	if raw := c.Query("end"); raw != "" {
		end, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			badRequest(c, "invalid end")
			return
		}
		f.End = end
	}
	posts, total, err := h.svc.Forum.Rankings(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts, "total": total, "range": f.Range})
}

func (h *PostHandler) Detail(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	viewer := middleware.CurrentUser(c)
	ctx := c.Request.Context()
	post, err := h.svc.Forum.GetPost(ctx, viewer, id)
	if err != nil {
		writeError(c, err)
		return
	}
	links, err := h.svc.Resources.Links(ctx, viewer, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": post, "resource_links": links})
}

func (h *PostHandler) Create(c *gin.Context) {
	var in services.PostInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid body")
		return
	}
	res, err := h.svc.Forum.CreatePost(c.Request.Context(), currentUser(c), in, requestMeta(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *PostHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var in services.PostInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid body")
		return
	}
	post, err := h.svc.Forum.UpdatePost(c.Request.Context(), currentUser(c), id, in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": post})
}

func (h *PostHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Forum.DeletePost(c.Request.Context(), currentUser(c), id, requestMeta(c)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type flagsRequest struct {
	IsPinned *bool `json:"is_pinned"`
	IsLocked *bool `json:"is_locked"`
}

func (h *PostHandler) SetFlags(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req flagsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	post, err := h.svc.Forum.SetPostFlags(c.Request.Context(), currentUser(c), id, req.IsPinned, req.IsLocked, requestMeta(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": post})
}

func (h *PostHandler) ToggleLike(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	res, err := h.svc.Forum.ToggleLike(c.Request.Context(), currentUser(c), id, requestMeta(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *PostHandler) ToggleFavorite(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	res, err := h.svc.Forum.ToggleFavorite(c.Request.Context(), currentUser(c), id, requestMeta(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ---------- 评论 ----------

func (h *PostHandler) ListComments(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	comments, err := h.svc.Forum.ListComments(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": comments})
}

type commentRequest struct {
	Content  string `json:"content"`
	ParentID *uint  `json:"parent_id"`
}

func (h *PostHandler) CreateComment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	res, err := h.svc.Forum.CreateComment(c.Request.Context(), currentUser(c), id, req.ParentID, req.Content, requestMeta(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *PostHandler) DeleteComment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Forum.DeleteComment(c.Request.Context(), currentUser(c), id, requestMeta(c)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ---------- 审核 ----------

func (h *PostHandler) PendingQueue(c *gin.Context) {
	posts, err := h.svc.Forum.PendingQueue(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

func (h *PostHandler) Approve(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	post, err := h.svc.Forum.Approve(c.Request.Context(), currentUser(c), id, requestMeta(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": post})
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *PostHandler) Reject(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req rejectRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid body")
			return
		}
	}
	post, err := h.svc.Forum.Reject(c.Request.Context(), currentUser(c), id, req.Reason, requestMeta(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": post})
}

func (h *PostHandler) Revisions(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	revs, err := h.svc.Forum.ListRevisions(c.Request.Context(), currentUser(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"revisions": revs})
}

func (h *PostHandler) RevisionDiff(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	revID, ok := paramID(c, "rev_id")
	if !ok {
		return
	}
	diff, err := h.svc.Forum.RevisionDiff(c.Request.Context(), currentUser(c), id, revID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, diff)
}
