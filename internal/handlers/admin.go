package handlers

import (
	"net/http"

	"plforum/internal/models"
	"plforum/internal/services"
	"plforum/internal/utils"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	svc *services.Services
}

func NewAdminHandler(svc *services.Services) *AdminHandler {
	return &AdminHandler{svc: svc}
}

func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.svc.Admin.ListUsers(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

type userAction func(c *gin.Context, actor *models.User, targetID uint) (*models.User, error)

// manage 对目标用户执行操作并返回更新后的用户
func (h *AdminHandler) manage(action userAction) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		user, err := action(c, currentUser(c), id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": user})
	}
}

// punish 封禁和禁言的请求体
func (h *AdminHandler) punish(apply func(c *gin.Context, actor *models.User, id uint, in services.PunishInput) (*models.User, error)) gin.HandlerFunc {
	return h.manage(func(c *gin.Context, actor *models.User, id uint) (*models.User, error) {
		var in services.PunishInput
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&in); err != nil {
				return nil, services.ErrInvalidInput
			}
		}
		return apply(c, actor, id, in)
	})
}

func (h *AdminHandler) Ban() gin.HandlerFunc {
	return h.punish(func(c *gin.Context, actor *models.User, id uint, in services.PunishInput) (*models.User, error) {
		return h.svc.Admin.Ban(c.Request.Context(), actor, id, in, requestMeta(c))
	})
}

func (h *AdminHandler) Mute() gin.HandlerFunc {
	return h.punish(func(c *gin.Context, actor *models.User, id uint, in services.PunishInput) (*models.User, error) {
		return h.svc.Admin.Mute(c.Request.Context(), actor, id, in, requestMeta(c))
	})
}

func (h *AdminHandler) Unban() gin.HandlerFunc {
	return h.manage(func(c *gin.Context, actor *models.User, id uint) (*models.User, error) {
		return h.svc.Admin.Unban(c.Request.Context(), actor, id, requestMeta(c))
	})
}

func (h *AdminHandler) Unmute() gin.HandlerFunc {
	return h.manage(func(c *gin.Context, actor *models.User, id uint) (*models.User, error) {
		return h.svc.Admin.Unmute(c.Request.Context(), actor, id, requestMeta(c))
	})
}

func (h *AdminHandler) GrantStaff() gin.HandlerFunc {
	return h.manage(func(c *gin.Context, actor *models.User, id uint) (*models.User, error) {
		return h.svc.Admin.GrantStaff(c.Request.Context(), actor, id, requestMeta(c))
	})
}

func (h *AdminHandler) RevokeStaff() gin.HandlerFunc {
	return h.manage(func(c *gin.Context, actor *models.User, id uint) (*models.User, error) {
		return h.svc.Admin.RevokeStaff(c.Request.Context(), actor, id, requestMeta(c))
	})
}

func (h *AdminHandler) GetBoardPerms(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	view, err := h.svc.Admin.GetBoardPerms(c.Request.Context(), currentUser(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type boardPermsRequest struct {
	StaffBoardScoped bool                  `json:"staff_board_scoped"`
	Permissions      []services.BoardGrant `json:"permissions"`
}

func (h *AdminHandler) PutBoardPerms(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req boardPermsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	view, err := h.svc.Admin.PutBoardPerms(c.Request.Context(), currentUser(c), id, req.StaffBoardScoped, req.Permissions, requestMeta(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// AuditLogs 审计列表：?archived=1&actor=&actor_id=&actor_username=&action=
func (h *AdminHandler) AuditLogs(c *gin.Context) {
	f := services.AuditFilter{
		IncludeArchived: c.Query("archived") == "1" || c.Query("archived") == "true",
		ActorID:         utils.StringToUint(c.Query("actor_id")),
		ActorUsername:   c.Query("actor_username"),
		Actor:           c.Query("actor"),
		Action:          c.Query("action"),
	}
	logs, err := h.svc.Audit.List(c.Request.Context(), currentUser(c), f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

// Sweep 手动触发过期封禁/禁言清理
func (h *AdminHandler) Sweep(c *gin.Context) {
	res, err := h.svc.Sweeper.Sweep(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
