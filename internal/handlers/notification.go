package handlers

import (
	"net/http"

	"plforum/internal/services"
	"plforum/internal/utils"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	svc *services.NotificationService
}

func NewNotificationHandler(svc *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

func (h *NotificationHandler) List(c *gin.Context) {
	user := currentUser(c)
	limit := utils.ClampInt(utils.StringToInt(c.DefaultQuery("limit", "50")), 1, 200)
	notifications, err := h.svc.List(c.Request.Context(), user.ID, c.Query("unread") == "1", limit)
	if err != nil {
		writeError(c, err)
		return
	}
	unread, err := h.svc.UnreadCount(c.Request.Context(), user.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifications, "unread_count": unread})
}

func (h *NotificationHandler) Read(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.MarkRead(c.Request.Context(), currentUser(c).ID, id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *NotificationHandler) ReadAll(c *gin.Context) {
	n, err := h.svc.MarkAllRead(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}
