package journey

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MarcoPoloResearchLab/albumday/internal/catalog"
	"github.com/MarcoPoloResearchLab/albumday/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EngineConfig describes the dependencies of the progression engine.
type EngineConfig struct {
	Database           *gorm.DB
	Clock              func() time.Time
	Logger             *zap.Logger
	Events             RatingEventSink
	NotificationPolicy NotificationPolicy
}

// Engine decides what each user sees and applies their rating, skip, and note actions.
// It keeps no state between calls; every operation re-reads the store in one transaction.
type Engine struct {
	db     *gorm.DB
	now    func() time.Time
	logger *zap.Logger
	events RatingEventSink
	policy NotificationPolicy
}

// NewEngine validates dependencies and constructs the engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opEngineNew, reasonMissingDB, ErrInternal, errMissingDatabase)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	events := cfg.Events
	if events == nil {
		events = discardEventSink{}
	}
	return &Engine{
		db:     cfg.Database,
		now:    clock,
		logger: logger,
		events: events,
		policy: cfg.NotificationPolicy.withDefaults(),
	}, nil
}

// UserState is the single album and mode a user should see right now.
type UserState struct {
	Mode          Mode           `json:"mode"`
	User          users.User     `json:"user"`
	GlobalState   GlobalState    `json:"globalState"`
	Album         *catalog.Album `json:"album"`
	ListeningNote string         `json:"listeningNote"`
}

// RatingSubmission is the input of SubmitRating.
type RatingSubmission struct {
	Username      string
	AlbumPosition int
	Stars         int
	Review        string
}

// RatingResult reports the stored rating and its side effects.
type RatingResult struct {
	Rating   Rating     `json:"rating"`
	User     users.User `json:"user"`
	Created  bool       `json:"created"`
	Notified bool       `json:"notified"`
	Advanced bool       `json:"advanced"`
}

// SkipResult reports the user after a skip.
type SkipResult struct {
	User     users.User `json:"user"`
	Advanced bool       `json:"advanced"`
}

// ResolveState computes the mode for username, creating the user at today's position on first sight.
func (e *Engine) ResolveState(ctx context.Context, rawUsername string) (UserState, error) {
	username, err := parseUsername(opResolveState, rawUsername)
	if err != nil {
		logFailure(e.logger, opResolveState, err)
		return UserState{}, err
	}

	var resolved UserState
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		state, err := loadState(tx, opResolveState, false)
		if err != nil {
			return err
		}
		user, created, err := users.GetOrCreate(tx, username, state.CurrentDay, e.now())
		if err != nil {
			return newServiceError(opResolveState, "user_upsert_failed", ErrInternal, err)
		}
		if created {
			e.logger.Info("user created", zap.String("username", user.Username), zap.Int("current_position", user.CurrentPosition))
		}

		resolved = UserState{User: user, GlobalState: state}
		album, err := catalog.AtPosition(tx, effectivePosition(user.CurrentPosition, state))
		if errors.Is(err, catalog.ErrAlbumNotFound) {
			resolved.Mode = resolveMode(nil, state, false)
			return nil
		}
		if err != nil {
			return newServiceError(opResolveState, "album_query_failed", ErrInternal, err)
		}

		existing, err := findRating(tx, user.ID, album.ID)
		if err != nil {
			return newServiceError(opResolveState, "rating_query_failed", ErrInternal, err)
		}
		note, err := findNoteText(tx, user.ID, album.ID)
		if err != nil {
			return newServiceError(opResolveState, "note_query_failed", ErrInternal, err)
		}

		resolved.Mode = resolveMode(&album, state, existing != nil)
		resolved.Album = &album
		resolved.ListeningNote = note
		return nil
	})
	if err != nil {
		logFailure(e.logger, opResolveState, err, zap.String("username", username.String()))
		return UserState{}, asServiceError(opResolveState, err)
	}
	return resolved, nil
}

// SubmitRating upserts a rating for a rateable album, emits a rating event when the policy
// allows it, and advances the user to today. Rejections leave the store untouched.
func (e *Engine) SubmitRating(ctx context.Context, submission RatingSubmission) (RatingResult, error) {
	username, err := parseUsername(opSubmitRating, submission.Username)
	if err == nil && (submission.Stars < MinStars || submission.Stars > MaxStars) {
		err = newServiceError(opSubmitRating, "invalid_stars", ErrValidation, errStarsOutOfRange)
	}
	if err == nil && submission.AlbumPosition < 1 {
		err = newServiceError(opSubmitRating, "invalid_position", ErrValidation, fmt.Errorf("album position must be positive, got %d", submission.AlbumPosition))
	}
	if err != nil {
		logFailure(e.logger, opSubmitRating, err)
		return RatingResult{}, err
	}

	var result RatingResult
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		state, err := loadState(tx, opSubmitRating, true)
		if err != nil {
			return err
		}
		now := e.now().UTC()
		user, _, err := users.GetOrCreate(tx, username, state.CurrentDay, now)
		if err != nil {
			return newServiceError(opSubmitRating, "user_upsert_failed", ErrInternal, err)
		}
		album, err := lookupAlbum(tx, opSubmitRating, submission.AlbumPosition)
		if err != nil {
			return err
		}
		if !isRateable(album, state) {
			return newServiceError(opSubmitRating, "not_yet_rateable", ErrNotYetAllowed, errAlbumNotRateable)
		}

		existing, err := findRating(tx, user.ID, album.ID)
		if err != nil {
			return newServiceError(opSubmitRating, "rating_query_failed", ErrInternal, err)
		}
		stored, err := upsertRating(tx, Rating{
			UserID:    user.ID,
			AlbumID:   album.ID,
			Stars:     submission.Stars,
			Review:    submission.Review,
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			return newServiceError(opSubmitRating, "rating_upsert_failed", ErrInternal, err)
		}

		notify := e.policy.ShouldNotify(existing, now)
		if notify {
			event := RatingEvent{
				Type:       ratingEventType(submission.Review),
				ActorID:    user.ID,
				AlbumID:    album.ID,
				Stars:      stored.Stars,
				NewRating:  existing == nil,
				OccurredAt: now,
			}
			if err := e.events.RecordRatingEvent(tx, event); err != nil {
				return newServiceError(opSubmitRating, "event_record_failed", ErrInternal, err)
			}
		}

		advanced, err := users.AdvanceTo(tx, user.ID, state.CurrentDay)
		if err != nil {
			return newServiceError(opSubmitRating, "user_advance_failed", ErrInternal, err)
		}
		if advanced {
			user.CurrentPosition = state.CurrentDay
		}

		result = RatingResult{
			Rating:   stored,
			User:     user,
			Created:  existing == nil,
			Notified: notify,
			Advanced: advanced,
		}
		return nil
	})
	if err != nil {
		logFailure(e.logger, opSubmitRating, err,
			zap.String("username", username.String()),
			zap.Int("album_position", submission.AlbumPosition))
		return RatingResult{}, asServiceError(opSubmitRating, err)
	}
	return result, nil
}

// Skip moves the user to today without rating. The skipped album stays rateable.
func (e *Engine) Skip(ctx context.Context, rawUsername string) (SkipResult, error) {
	username, err := parseUsername(opSkip, rawUsername)
	if err != nil {
		logFailure(e.logger, opSkip, err)
		return SkipResult{}, err
	}

	var result SkipResult
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		state, err := loadState(tx, opSkip, true)
		if err != nil {
			return err
		}
		user, _, err := users.GetOrCreate(tx, username, state.CurrentDay, e.now())
		if err != nil {
			return newServiceError(opSkip, "user_upsert_failed", ErrInternal, err)
		}
		advanced, err := users.AdvanceTo(tx, user.ID, state.CurrentDay)
		if err != nil {
			return newServiceError(opSkip, "user_advance_failed", ErrInternal, err)
		}
		if advanced {
			user.CurrentPosition = state.CurrentDay
		}
		result = SkipResult{User: user, Advanced: advanced}
		return nil
	})
	if err != nil {
		logFailure(e.logger, opSkip, err, zap.String("username", username.String()))
		return SkipResult{}, asServiceError(opSkip, err)
	}
	return result, nil
}

// SaveListeningNote upserts the user's draft note for the album at position.
func (e *Engine) SaveListeningNote(ctx context.Context, rawUsername string, position int, text string) (ListeningNote, error) {
	username, err := parseUsername(opSaveNote, rawUsername)
	if err == nil && position < 1 {
		err = newServiceError(opSaveNote, "invalid_position", ErrValidation, fmt.Errorf("album position must be positive, got %d", position))
	}
	if err != nil {
		logFailure(e.logger, opSaveNote, err)
		return ListeningNote{}, err
	}

	var stored ListeningNote
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		state, err := loadState(tx, opSaveNote, false)
		if err != nil {
			return err
		}
		now := e.now().UTC()
		user, _, err := users.GetOrCreate(tx, username, state.CurrentDay, now)
		if err != nil {
			return newServiceError(opSaveNote, "user_upsert_failed", ErrInternal, err)
		}
		album, err := lookupAlbum(tx, opSaveNote, position)
		if err != nil {
			return err
		}
		stored, err = upsertNote(tx, ListeningNote{
			UserID:    user.ID,
			AlbumID:   album.ID,
			Note:      text,
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			return newServiceError(opSaveNote, "note_upsert_failed", ErrInternal, err)
		}
		return nil
	})
	if err != nil {
		logFailure(e.logger, opSaveNote, err, zap.String("username", username.String()), zap.Int("album_position", position))
		return ListeningNote{}, asServiceError(opSaveNote, err)
	}
	return stored, nil
}

// UserExists reports whether username has been seen, without creating it.
func (e *Engine) UserExists(ctx context.Context, rawUsername string) (bool, error) {
	username, err := parseUsername(opUserExists, rawUsername)
	if err != nil {
		return false, err
	}
	_, err = users.Find(e.db.WithContext(ctx), username)
	if errors.Is(err, users.ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		err = newServiceError(opUserExists, reasonQueryFailed, ErrInternal, err)
		logFailure(e.logger, opUserExists, err)
		return false, err
	}
	return true, nil
}

// EnsureUser returns the user, creating it at today's position when missing.
func (e *Engine) EnsureUser(ctx context.Context, rawUsername string) (users.User, bool, error) {
	username, err := parseUsername(opEnsureUser, rawUsername)
	if err != nil {
		return users.User{}, false, err
	}
	var (
		user    users.User
		created bool
	)
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		state, err := loadState(tx, opEnsureUser, false)
		if err != nil {
			return err
		}
		user, created, err = users.GetOrCreate(tx, username, state.CurrentDay, e.now())
		if err != nil {
			return newServiceError(opEnsureUser, "user_upsert_failed", ErrInternal, err)
		}
		return nil
	})
	if err != nil {
		logFailure(e.logger, opEnsureUser, err, zap.String("username", username.String()))
		return users.User{}, false, asServiceError(opEnsureUser, err)
	}
	return user, created, nil
}

func parseUsername(operation, raw string) (users.Username, error) {
	username, err := users.NewUsername(raw)
	if err != nil {
		return "", newServiceError(operation, "invalid_username", ErrValidation, err)
	}
	return username, nil
}

func lookupAlbum(tx *gorm.DB, operation string, position int) (catalog.Album, error) {
	album, err := catalog.AtPosition(tx, position)
	if errors.Is(err, catalog.ErrAlbumNotFound) {
		return catalog.Album{}, newServiceError(operation, "album_not_found", ErrNotFound, err)
	}
	if err != nil {
		return catalog.Album{}, newServiceError(operation, "album_query_failed", ErrInternal, err)
	}
	return album, nil
}

func findRating(tx *gorm.DB, userID, albumID uint) (*Rating, error) {
	var rating Rating
	err := tx.Where("user_id = ? AND album_id = ?", userID, albumID).Take(&rating).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rating, nil
}

func findNoteText(tx *gorm.DB, userID, albumID uint) (string, error) {
	var note ListeningNote
	err := tx.Where("user_id = ? AND album_id = ?", userID, albumID).Take(&note).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return note.Note, nil
}

// upsertRating relies on the (user_id, album_id) unique index; created_at survives re-rating.
func upsertRating(tx *gorm.DB, rating Rating) (Rating, error) {
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "album_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"stars", "review", "updated_at"}),
	}).Create(&rating).Error
	if err != nil {
		return Rating{}, err
	}
	var stored Rating
	if err := tx.Where("user_id = ? AND album_id = ?", rating.UserID, rating.AlbumID).Take(&stored).Error; err != nil {
		return Rating{}, err
	}
	return stored, nil
}

func upsertNote(tx *gorm.DB, note ListeningNote) (ListeningNote, error) {
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "album_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"note", "updated_at"}),
	}).Create(&note).Error
	if err != nil {
		return ListeningNote{}, err
	}
	var stored ListeningNote
	if err := tx.Where("user_id = ? AND album_id = ?", note.UserID, note.AlbumID).Take(&stored).Error; err != nil {
		return ListeningNote{}, err
	}
	return stored, nil
}
