package handlers

import (
	"errors"
	"net/http"

	"plforum/internal/services"

	"github.com/gin-gonic/gin"
)

type ResourceHandler struct {
	svc *services.Services
}

func NewResourceHandler(svc *services.Services) *ResourceHandler {
	return &ResourceHandler{svc: svc}
}

// Download 配额用尽返回 429 并附带当日用量
func (h *ResourceHandler) Download(c *gin.Context) {
	postID, ok := paramID(c, "id")
	if !ok {
		return
	}
	linkID, ok := paramID(c, "link_id")
	if !ok {
		return
	}
	res, err := h.svc.Resources.Download(c.Request.Context(), currentUser(c), postID, linkID, requestMeta(c))
	if errors.Is(err, services.ErrRateLimited) && res != nil {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "今日下载次数已用完", "quota": res.Quota})
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
