package handlers

import (
	"errors"
	"net/http"

	"plforum/internal/middleware"
	"plforum/internal/models"
	"plforum/internal/services"
	"plforum/internal/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type UserHandler struct {
	svc *services.Services
	db  *gorm.DB
}

func NewUserHandler(svc *services.Services, db *gorm.DB) *UserHandler {
	return &UserHandler{svc: svc, db: db}
}

// Me 当前用户、等级、今日积分与下载状态
func (h *UserHandler) Me(c *gin.Context) {
	user := currentUser(c)
	ctx := c.Request.Context()

	today, err := h.svc.Ledger.Today(ctx, user.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	quota, err := h.svc.Resources.Quota(ctx, user)
	if err != nil {
		writeError(c, err)
		return
	}
	loginDays, err := h.svc.Profile.LoginDays(ctx, user.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	now := h.svc.Clock.Current()
	c.JSON(http.StatusOK, gin.H{
		"user":         user,
		"level":        utils.GetUserLevel(user.ActivityScore),
		"days_joined":  utils.GetDaysSinceJoined(user.CreatedAt, now),
		"login_days":   loginDays,
		"is_banned":    user.IsCurrentlyBanned(now),
		"is_muted":     user.IsCurrentlyMuted(now),
		"today":        today,
		"download":     quota,
		"avatar_cost":  services.AvatarCost(user),
		"unread_count": c.GetInt64(middleware.UnreadCountKey),
	})
}

// Profile 公开资料
func (h *UserHandler) Profile(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var user models.User
	if err := h.db.WithContext(c.Request.Context()).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(c, services.ErrNotFound)
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":          user.ID,
		"pid":         user.Pid,
		"username":    user.Username,
		"nickname":    user.Nickname,
		"avatar":      user.Avatar,
		"bio":         user.Bio,
		"level":       utils.GetUserLevel(user.ActivityScore),
		"is_staff":    user.IsStaff,
		"days_joined": utils.GetDaysSinceJoined(user.CreatedAt, h.svc.Clock.Current()),
	})
}

func (h *UserHandler) CheckIn(c *gin.Context) {
	res, err := h.svc.CheckIn(c.Request.Context(), currentUser(c), requestMeta(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *UserHandler) PointLogs(c *gin.Context) {
	limit := utils.ClampInt(utils.StringToInt(c.DefaultQuery("limit", "50")), 1, 200)
	logs, err := h.svc.Ledger.History(c.Request.Context(), currentUser(c).ID, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

func (h *UserHandler) DownloadQuota(c *gin.Context) {
	q, err := h.svc.Resources.Quota(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

type valueRequest struct {
	Value string `json:"value"`
}

func (h *UserHandler) UpdateBio(c *gin.Context) {
	var req valueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	bio, err := h.svc.Profile.UpdateBio(c.Request.Context(), currentUser(c), req.Value, requestMeta(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bio": bio})
}

// changeHandler 昵称、用户名、头像三种付费修改共用
func (h *UserHandler) changeHandler(change func(*gin.Context, *models.User, string) (*services.ChangeResult, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req valueRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid body")
			return
		}
		res, err := change(c, currentUser(c), req.Value)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func (h *UserHandler) ChangeNickname() gin.HandlerFunc {
	return h.changeHandler(func(c *gin.Context, u *models.User, v string) (*services.ChangeResult, error) {
		return h.svc.Profile.ChangeNickname(c.Request.Context(), u, v, requestMeta(c))
	})
}

func (h *UserHandler) ChangeUsername() gin.HandlerFunc {
	return h.changeHandler(func(c *gin.Context, u *models.User, v string) (*services.ChangeResult, error) {
		return h.svc.Profile.ChangeUsername(c.Request.Context(), u, v, requestMeta(c))
	})
}

func (h *UserHandler) ChangeAvatar() gin.HandlerFunc {
	return h.changeHandler(func(c *gin.Context, u *models.User, v string) (*services.ChangeResult, error) {
		return h.svc.Profile.ChangeAvatar(c.Request.Context(), u, v, requestMeta(c))
	})
}

type passwordRequest struct {
	Current string `json:"current_password" binding:"required"`
	New     string `json:"new_password" binding:"required"`
}

func (h *UserHandler) ChangePassword(c *gin.Context) {
	var req passwordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "请填写当前密码和新密码")
		return
	}
	if err := h.svc.Profile.ChangePassword(c.Request.Context(), currentUser(c), req.Current, req.New, requestMeta(c)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *UserHandler) ToggleFollow(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	res, err := h.svc.Forum.ToggleUserFollow(c.Request.Context(), currentUser(c), id, requestMeta(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *UserHandler) Favorites(c *gin.Context) {
	limit := utils.ClampInt(utils.StringToInt(c.DefaultQuery("limit", "50")), 1, 200)
	favs, err := h.svc.Forum.Favorites(c.Request.Context(), currentUser(c).ID, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"favorites": favs})
}
