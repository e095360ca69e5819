package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/albumday/internal/journey"
	"github.com/MarcoPoloResearchLab/albumday/internal/notifications"
	"github.com/MarcoPoloResearchLab/albumday/internal/users"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const adminSubjectContextKey = "albumday_admin_subject"

var (
	errMissingProgression   = errors.New("progression engine dependency required")
	errMissingClock         = errors.New("global clock dependency required")
	errMissingFeed          = errors.New("notification feed dependency required")
	errMissingTokenManager  = errors.New("admin token manager dependency required")
	errMissingPasswords     = errors.New("admin password verifier dependency required")
	errInvalidAuthorization = errors.New("authorization header missing or invalid")
)

// Progression is the per-user side of the journey.
type Progression interface {
	ResolveState(ctx context.Context, username string) (journey.UserState, error)
	SubmitRating(ctx context.Context, submission journey.RatingSubmission) (journey.RatingResult, error)
	Skip(ctx context.Context, username string) (journey.SkipResult, error)
	SaveListeningNote(ctx context.Context, username string, position int, text string) (journey.ListeningNote, error)
	UserExists(ctx context.Context, username string) (bool, error)
	EnsureUser(ctx context.Context, username string) (users.User, bool, error)
	History(ctx context.Context, username string) (journey.History, error)
	AlbumDetail(ctx context.Context, username string, position int) (journey.AlbumDetail, error)
	Stats(ctx context.Context, username string) (journey.Stats, error)
}

// Clock is the global release clock.
type Clock interface {
	State(ctx context.Context) (journey.GlobalState, int, error)
	Tick(ctx context.Context) (journey.TickResult, error)
	TogglePause(ctx context.Context) (journey.GlobalState, error)
	Reset(ctx context.Context, confirmation string) (journey.GlobalState, error)
}

// NotificationFeed serves rating notifications to listeners.
type NotificationFeed interface {
	List(ctx context.Context, username string) (notifications.Page, error)
	MarkRead(ctx context.Context, username string) (int, error)
}

// AdminTokenManager issues and validates admin bearer tokens.
type AdminTokenManager interface {
	IssueAdminToken(subject string) (string, int64, error)
	ValidateToken(token string) (string, error)
}

// PasswordVerifier checks the admin password.
type PasswordVerifier interface {
	Verify(password string) error
}

// Dependencies wires the HTTP handler.
type Dependencies struct {
	Progression    Progression
	Clock          Clock
	Feed           NotificationFeed
	AdminTokens    AdminTokenManager
	AdminPasswords PasswordVerifier
	CronSecret     string
	AllowedOrigins []string
	Logger         *zap.Logger
}

// NewHTTPHandler builds the gin router.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Progression == nil {
		return nil, errMissingProgression
	}
	if deps.Clock == nil {
		return nil, errMissingClock
	}
	if deps.Feed == nil {
		return nil, errMissingFeed
	}
	if deps.AdminTokens == nil {
		return nil, errMissingTokenManager
	}
	if deps.AdminPasswords == nil {
		return nil, errMissingPasswords
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))
	router.Use(corsMiddleware(deps.AllowedOrigins))

	handler := &httpHandler{
		progression: deps.Progression,
		clock:       deps.Clock,
		feed:        deps.Feed,
		tokens:      deps.AdminTokens,
		passwords:   deps.AdminPasswords,
		cronSecret:  deps.CronSecret,
		logger:      logger,
	}

	router.GET("/healthz", handler.handleHealth)
	router.GET("/state", handler.handleGlobalState)

	router.GET("/users/check", handler.handleUserCheck)
	router.POST("/users", handler.handleUserCreate)
	router.GET("/users/:username/state", handler.handleUserState)
	router.GET("/users/:username/history", handler.handleHistory)
	router.GET("/users/:username/history/:position", handler.handleAlbumDetail)
	router.GET("/users/:username/stats", handler.handleStats)

	router.POST("/rate", handler.handleRate)
	router.POST("/skip", handler.handleSkip)
	router.POST("/listening-note", handler.handleListeningNote)

	router.GET("/notifications", handler.handleNotifications)
	router.POST("/notifications/mark-read", handler.handleMarkRead)

	router.GET("/cron/daily-album", handler.handleCronTick)
	router.POST("/cron/daily-album", handler.handleCronTick)

	router.POST("/admin/session", handler.handleAdminSession)
	admin := router.Group("/admin")
	admin.Use(handler.authorizeAdmin)
	admin.POST("/toggle-pause", handler.handleTogglePause)
	admin.POST("/advance-day", handler.handleAdvanceDay)
	admin.POST("/reset-journey", handler.handleResetJourney)

	return router, nil
}

type httpHandler struct {
	progression Progression
	clock       Clock
	feed        NotificationFeed
	tokens      AdminTokenManager
	passwords   PasswordVerifier
	cronSecret  string
	logger      *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}
	if len(allowedOrigins) == 0 || (len(allowedOrigins) == 1 && allowedOrigins[0] == "*") {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = allowedOrigins
	}
	return cors.New(config)
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startedAt := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(startedAt)))
	}
}
