package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MarcoPoloResearchLab/albumday/internal/catalog"
	"github.com/MarcoPoloResearchLab/albumday/internal/journey"
	"github.com/MarcoPoloResearchLab/albumday/internal/users"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultPageSize = 50

	opFeedNew  = "notifications.feed.new"
	opRecord   = "notifications.record"
	opList     = "notifications.list"
	opMarkRead = "notifications.mark_read"
)

var errMissingDatabase = errors.New("database handle is required")

var _ journey.RatingEventSink = (*Feed)(nil)

// IDGenerator issues notification identifiers.
type IDGenerator func() (string, error)

// NewUUIDv7 issues time-ordered UUID identifiers.
func NewUUIDv7() (string, error) {
	value, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return value.String(), nil
}

// FeedConfig describes the dependencies of the notification feed.
type FeedConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	NewID    IDGenerator
	Logger   *zap.Logger
	PageSize int
}

// Feed stores rating events and serves them to other listeners.
type Feed struct {
	db       *gorm.DB
	now      func() time.Time
	newID    IDGenerator
	logger   *zap.Logger
	pageSize int
}

// NewFeed validates dependencies and constructs the feed.
func NewFeed(cfg FeedConfig) (*Feed, error) {
	if cfg.Database == nil {
		return nil, journey.NewServiceError(opFeedNew, "missing_database", journey.ErrInternal, errMissingDatabase)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := cfg.NewID
	if newID == nil {
		newID = NewUUIDv7
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Feed{db: cfg.Database, now: clock, newID: newID, logger: logger, pageSize: pageSize}, nil
}

// RecordRatingEvent stores event inside the caller's transaction. The actor is marked as
// having seen their own action.
func (f *Feed) RecordRatingEvent(tx *gorm.DB, event journey.RatingEvent) error {
	id, err := f.newID()
	if err != nil {
		return fmt.Errorf("%s: id generation: %w", opRecord, err)
	}
	createdAt := event.OccurredAt.UTC()
	if createdAt.IsZero() {
		createdAt = f.now().UTC()
	}
	notification := Notification{
		ID:        id,
		Type:      string(event.Type),
		ActorID:   event.ActorID,
		AlbumID:   event.AlbumID,
		Stars:     event.Stars,
		CreatedAt: createdAt,
	}
	if err := tx.Create(&notification).Error; err != nil {
		return fmt.Errorf("%s: insert notification: %w", opRecord, err)
	}
	view := View{NotificationID: id, ViewerID: event.ActorID, SeenAt: createdAt}
	if err := tx.Create(&view).Error; err != nil {
		return fmt.Errorf("%s: insert actor view: %w", opRecord, err)
	}
	f.logger.Debug("notification recorded",
		zap.String("notification_id", id),
		zap.String("type", notification.Type),
		zap.Uint("actor_id", event.ActorID),
		zap.Uint("album_id", event.AlbumID),
		zap.Bool("new_rating", event.NewRating))
	return nil
}

// List returns the most recent notifications by other listeners with read state for the viewer.
func (f *Feed) List(ctx context.Context, rawUsername string) (Page, error) {
	db := f.db.WithContext(ctx)
	viewer, err := f.lookupViewer(db, opList, rawUsername)
	if err != nil {
		return Page{}, err
	}

	var notifications []Notification
	err = db.Where("actor_id <> ?", viewer.ID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(f.pageSize).
		Find(&notifications).Error
	if err != nil {
		return Page{}, f.fail(opList, "query_failed", err)
	}

	page := Page{Notifications: make([]Item, 0, len(notifications))}
	if len(notifications) == 0 {
		return page, nil
	}

	notificationIDs := make([]string, 0, len(notifications))
	actorIDs := make([]uint, 0, len(notifications))
	albumIDs := make([]uint, 0, len(notifications))
	for _, notification := range notifications {
		notificationIDs = append(notificationIDs, notification.ID)
		actorIDs = append(actorIDs, notification.ActorID)
		albumIDs = append(albumIDs, notification.AlbumID)
	}

	var seenIDs []string
	err = db.Model(&View{}).
		Where("viewer_id = ? AND notification_id IN ?", viewer.ID, notificationIDs).
		Pluck("notification_id", &seenIDs).Error
	if err != nil {
		return Page{}, f.fail(opList, "view_query_failed", err)
	}
	seen := make(map[string]struct{}, len(seenIDs))
	for _, id := range seenIDs {
		seen[id] = struct{}{}
	}

	var actors []users.User
	if err := db.Where("id IN ?", actorIDs).Find(&actors).Error; err != nil {
		return Page{}, f.fail(opList, "actor_query_failed", err)
	}
	actorNames := make(map[uint]string, len(actors))
	for _, actor := range actors {
		actorNames[actor.ID] = actor.Username
	}
	albums, err := catalog.ByIDs(db, albumIDs)
	if err != nil {
		return Page{}, f.fail(opList, "album_query_failed", err)
	}

	for _, notification := range notifications {
		_, isRead := seen[notification.ID]
		if !isRead {
			page.UnreadCount++
		}
		page.Notifications = append(page.Notifications, Item{
			ID:        notification.ID,
			Type:      notification.Type,
			Stars:     notification.Stars,
			CreatedAt: notification.CreatedAt,
			IsRead:    isRead,
			Actor:     Actor{Username: actorNames[notification.ActorID]},
			Album:     albums[notification.AlbumID].Summary(),
		})
	}
	return page, nil
}

// MarkRead adds the viewer to every unread notification by other listeners and returns how many changed.
func (f *Feed) MarkRead(ctx context.Context, rawUsername string) (int, error) {
	var marked int
	err := f.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		viewer, err := f.lookupViewer(tx, opMarkRead, rawUsername)
		if err != nil {
			return err
		}
		var unreadIDs []string
		err = tx.Model(&Notification{}).
			Where("actor_id <> ?", viewer.ID).
			Where("NOT EXISTS (SELECT 1 FROM notification_views v WHERE v.notification_id = notifications.id AND v.viewer_id = ?)", viewer.ID).
			Pluck("id", &unreadIDs).Error
		if err != nil {
			return f.fail(opMarkRead, "query_failed", err)
		}
		if len(unreadIDs) == 0 {
			return nil
		}
		seenAt := f.now().UTC()
		views := make([]View, 0, len(unreadIDs))
		for _, id := range unreadIDs {
			views = append(views, View{NotificationID: id, ViewerID: viewer.ID, SeenAt: seenAt})
		}
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(views, 100)
		if result.Error != nil {
			return f.fail(opMarkRead, "view_insert_failed", result.Error)
		}
		marked = int(result.RowsAffected)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return marked, nil
}

func (f *Feed) lookupViewer(db *gorm.DB, operation, rawUsername string) (users.User, error) {
	username, err := users.NewUsername(rawUsername)
	if err != nil {
		return users.User{}, journey.NewServiceError(operation, "invalid_username", journey.ErrValidation, err)
	}
	viewer, err := users.Find(db, username)
	if errors.Is(err, users.ErrUserNotFound) {
		return users.User{}, journey.NewServiceError(operation, "user_not_found", journey.ErrNotFound, err)
	}
	if err != nil {
		return users.User{}, f.fail(operation, "user_query_failed", err)
	}
	return viewer, nil
}

func (f *Feed) fail(operation, reason string, err error) error {
	f.logger.Error("notifications feed error",
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.Error(err))
	return journey.NewServiceError(operation, reason, journey.ErrInternal, err)
}
