package server

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/MarcoPoloResearchLab/albumday/internal/journey"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	adminSubject     = "admin"
	cronSecretHeader = "X-Cron-Secret"
)

type adminSessionPayload struct {
	Password string `json:"password" binding:"required"`
}

type adminSessionResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

type resetPayload struct {
	Confirm string `json:"confirm"`
}

func (h *httpHandler) handleAdminSession(c *gin.Context) {
	var request adminSessionPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		h.writeBindingError(c, err)
		return
	}
	if err := h.passwords.Verify(request.Password); err != nil {
		h.logger.Warn("admin login rejected", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	token, expiresIn, err := h.tokens.IssueAdminToken(adminSubject)
	if err != nil {
		h.logger.Error("failed to issue admin token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}
	c.JSON(http.StatusOK, adminSessionResponse{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
	})
}

func (h *httpHandler) authorizeAdmin(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	subject, err := h.tokens.ValidateToken(token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			h.logger.Info("admin token validation failed", zap.Error(err))
		} else {
			h.logger.Warn("admin token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(adminSubjectContextKey, subject)
	c.Next()
}

func (h *httpHandler) handleTogglePause(c *gin.Context) {
	state, err := h.clock.TogglePause(c.Request.Context())
	if err != nil {
		h.writeServiceError(c, "failed to toggle pause", err)
		return
	}
	h.logger.Info("admin toggled pause", zap.String("admin", c.GetString(adminSubjectContextKey)), zap.Bool("is_paused", state.IsPaused))
	c.JSON(http.StatusOK, gin.H{"success": true, "globalState": state})
}

func (h *httpHandler) handleAdvanceDay(c *gin.Context) {
	h.writeTick(c, "admin")
}

func (h *httpHandler) handleResetJourney(c *gin.Context) {
	var request resetPayload
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&request); err != nil {
			h.writeBindingError(c, err)
			return
		}
	}
	state, err := h.clock.Reset(c.Request.Context(), request.Confirm)
	if err != nil {
		h.writeServiceError(c, "failed to reset journey", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "globalState": state})
}

// handleCronTick is the scheduler entry point. An empty configured secret disables it.
func (h *httpHandler) handleCronTick(c *gin.Context) {
	if !h.cronAuthorized(c) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	h.writeTick(c, "cron")
}

func (h *httpHandler) cronAuthorized(c *gin.Context) bool {
	if h.cronSecret == "" {
		return false
	}
	presented := c.GetHeader(cronSecretHeader)
	if header := c.GetHeader("Authorization"); presented == "" && strings.HasPrefix(header, "Bearer ") {
		presented = strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(h.cronSecret)) == 1
}

func (h *httpHandler) writeTick(c *gin.Context, trigger string) {
	result, err := h.clock.Tick(c.Request.Context())
	if err != nil {
		if errors.Is(err, journey.ErrCatalogGap) {
			h.logger.Error("catalog gap blocks daily release", zap.String("trigger", trigger), zap.Bool("alert", true), zap.Error(err))
		}
		h.writeServiceError(c, "failed to advance day", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":       result.Outcome == journey.TickAdvanced,
		"outcome":       result.Outcome,
		"previousDay":   result.PreviousDay,
		"globalState":   result.State,
		"totalAlbums":   result.TotalAlbums,
		"albumReleased": result.Released,
	})
}
