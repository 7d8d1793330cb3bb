package handlers

import (
	"errors"
	"net/http"

	"plforum/internal/middleware"
	"plforum/internal/models"
	"plforum/internal/services"
	"plforum/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// writeError maps service errors to HTTP status codes.
func writeError(c *gin.Context, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Message, "field": verr.Field})
	case errors.Is(err, services.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
	case errors.Is(err, services.ErrInsufficientBalance):
		c.JSON(http.StatusBadRequest, gin.H{"error": "余额不足"})
	case errors.Is(err, services.ErrBanned):
		c.JSON(http.StatusForbidden, gin.H{"error": "账号已被封禁"})
	case errors.Is(err, services.ErrMuted):
		c.JSON(http.StatusForbidden, gin.H{"error": "账号已被禁言"})
	case errors.Is(err, services.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": "permission denied"})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, services.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "已达到次数上限"})
	case errors.Is(err, services.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "conflict"})
	default:
		zap.L().Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString(middleware.RequestIDKey)),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message})
}

// currentUser is only called behind AuthRequired.
func currentUser(c *gin.Context) *models.User {
	return c.MustGet(middleware.CheckUserKey).(*models.User)
}

func requestMeta(c *gin.Context) services.RequestMeta {
	return services.RequestMeta{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}

// paramID parses a positive numeric path parameter, writing 404 when it is not one.
func paramID(c *gin.Context, name string) (uint, bool) {
	id := utils.StringToUint(c.Param(name))
	if id == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return 0, false
	}
	return id, true
}
