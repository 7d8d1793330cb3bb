package handlers

import (
	"errors"
	"net/http"
	"time"

	"plforum/internal/middleware"
	"plforum/internal/services"
	"plforum/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthHandler struct {
	svc       *services.Services
	jwtSecret string
	jwtTTL    time.Duration
}

func NewAuthHandler(svc *services.Services, jwtSecret string, jwtTTL time.Duration) *AuthHandler {
	return &AuthHandler{svc: svc, jwtSecret: jwtSecret, jwtTTL: jwtTTL}
}

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Nickname string `json:"nickname"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "用户名和密码不能为空")
		return
	}
	user, err := h.svc.Profile.Register(c.Request.Context(), req.Username, req.Password, req.Nickname, requestMeta(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user})
}

type loginRequest struct {
	Identifier string `json:"identifier" binding:"required"` // 用户名或 8 位 pid
	Password   string `json:"password" binding:"required"`
}

// Login 成功后同时写入 session 并签发 JWT，记录当日登录
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "用户名和密码不能为空")
		return
	}
	ctx := c.Request.Context()
	user, err := h.svc.Profile.Authenticate(ctx, req.Identifier, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidInput) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "用户名或密码错误"})
			return
		}
		writeError(c, err)
		return
	}

	session := sessions.Default(c)
	session.Set(middleware.SessionUserKey, user.ID)
	if err := session.Save(); err != nil {
		writeError(c, err)
		return
	}

	token, err := utils.IssueToken(h.jwtSecret, user.ID, h.jwtTTL, h.svc.Clock.Current())
	if err != nil {
		writeError(c, err)
		return
	}
	if err := h.svc.Profile.RecordLogin(ctx, user.ID); err != nil {
		zap.L().Warn("record login failed", zap.Uint("user_id", user.ID), zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{"user": user, "token": token})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := session.Save(); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
