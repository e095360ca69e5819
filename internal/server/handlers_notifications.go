package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *httpHandler) handleNotifications(c *gin.Context) {
	page, err := h.feed.List(c.Request.Context(), c.Query("username"))
	if err != nil {
		h.writeServiceError(c, "failed to list notifications", err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *httpHandler) handleMarkRead(c *gin.Context) {
	var request usernamePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		h.writeBindingError(c, err)
		return
	}
	marked, err := h.feed.MarkRead(c.Request.Context(), request.Username)
	if err != nil {
		h.writeServiceError(c, "failed to mark notifications read", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "markedCount": marked})
}
