package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/MarcoPoloResearchLab/albumday/internal/journey"
	"github.com/gin-gonic/gin"
)

type usernamePayload struct {
	Username string `json:"username" binding:"required"`
}

type ratePayload struct {
	Username      string `json:"username" binding:"required"`
	AlbumPosition *int   `json:"albumPosition" binding:"required"`
	Stars         int    `json:"stars" binding:"required,min=1,max=5"`
	Review        string `json:"review"`
}

type listeningNotePayload struct {
	Username      string `json:"username" binding:"required"`
	AlbumPosition *int   `json:"albumPosition" binding:"required"`
	Note          string `json:"note"`
}

func (h *httpHandler) handleGlobalState(c *gin.Context) {
	state, totalAlbums, err := h.clock.State(c.Request.Context())
	if err != nil {
		h.writeServiceError(c, "failed to load global state", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"globalState": state, "totalAlbums": totalAlbums})
}

func (h *httpHandler) handleUserCheck(c *gin.Context) {
	username := strings.TrimSpace(c.Query("username"))
	if username == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid_request", Details: []string{"username is required"}})
		return
	}
	exists, err := h.progression.UserExists(c.Request.Context(), username)
	if err != nil {
		h.writeServiceError(c, "failed to check user", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"exists": exists})
}

func (h *httpHandler) handleUserCreate(c *gin.Context) {
	var request usernamePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		h.writeBindingError(c, err)
		return
	}
	user, created, err := h.progression.EnsureUser(c.Request.Context(), request.Username)
	if err != nil {
		h.writeServiceError(c, "failed to create user", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "created": created, "user": user})
}

func (h *httpHandler) handleUserState(c *gin.Context) {
	state, err := h.progression.ResolveState(c.Request.Context(), c.Param("username"))
	if err != nil {
		h.writeServiceError(c, "failed to resolve user state", err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *httpHandler) handleHistory(c *gin.Context) {
	history, err := h.progression.History(c.Request.Context(), c.Param("username"))
	if err != nil {
		h.writeServiceError(c, "failed to load history", err)
		return
	}
	c.JSON(http.StatusOK, history)
}

func (h *httpHandler) handleAlbumDetail(c *gin.Context) {
	position, err := strconv.Atoi(c.Param("position"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid_request", Details: []string{"position must be an integer"}})
		return
	}
	detail, err := h.progression.AlbumDetail(c.Request.Context(), c.Param("username"), position)
	if err != nil {
		h.writeServiceError(c, "failed to load album detail", err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *httpHandler) handleStats(c *gin.Context) {
	stats, err := h.progression.Stats(c.Request.Context(), c.Param("username"))
	if err != nil {
		h.writeServiceError(c, "failed to compute stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *httpHandler) handleRate(c *gin.Context) {
	var request ratePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		h.writeBindingError(c, err)
		return
	}
	result, err := h.progression.SubmitRating(c.Request.Context(), journey.RatingSubmission{
		Username:      request.Username,
		AlbumPosition: *request.AlbumPosition,
		Stars:         request.Stars,
		Review:        request.Review,
	})
	if err != nil {
		h.writeServiceError(c, "failed to submit rating", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"rating":   result.Rating,
		"created":  result.Created,
		"notified": result.Notified,
		"advanced": result.Advanced,
	})
}

func (h *httpHandler) handleSkip(c *gin.Context) {
	var request usernamePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		h.writeBindingError(c, err)
		return
	}
	result, err := h.progression.Skip(c.Request.Context(), request.Username)
	if err != nil {
		h.writeServiceError(c, "failed to skip album", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": result.User, "advanced": result.Advanced})
}

func (h *httpHandler) handleListeningNote(c *gin.Context) {
	var request listeningNotePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		h.writeBindingError(c, err)
		return
	}
	note, err := h.progression.SaveListeningNote(c.Request.Context(), request.Username, *request.AlbumPosition, request.Note)
	if err != nil {
		h.writeServiceError(c, "failed to save listening note", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "listeningNote": note})
}
