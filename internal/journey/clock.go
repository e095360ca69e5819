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

// ResetConfirmation must accompany every journey reset.
const ResetConfirmation = "reset-journey"

// TickOutcome reports what a tick did.
type TickOutcome string

const (
	TickAdvanced TickOutcome = "advanced"
	TickPaused   TickOutcome = "paused"
	TickComplete TickOutcome = "complete"
)

// TickResult describes the clock after a tick.
type TickResult struct {
	Outcome     TickOutcome      `json:"outcome"`
	PreviousDay int              `json:"previousDay"`
	State       GlobalState      `json:"globalState"`
	TotalAlbums int              `json:"totalAlbums"`
	Released    *catalog.Summary `json:"albumReleased,omitempty"`
}

// ClockConfig describes the dependencies of the global clock.
type ClockConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// GlobalClock owns the release clock. Scheduled and manual advances share Tick.
type GlobalClock struct {
	db     *gorm.DB
	now    func() time.Time
	logger *zap.Logger
}

// NewGlobalClock validates dependencies and constructs the clock.
func NewGlobalClock(cfg ClockConfig) (*GlobalClock, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opClockNew, reasonMissingDB, ErrInternal, errMissingDatabase)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &GlobalClock{db: cfg.Database, now: clock, logger: logger}, nil
}

// Initialize creates the clock at day 1 and releases position 1. It is a no-op once state exists.
func (c *GlobalClock) Initialize(ctx context.Context) (GlobalState, bool, error) {
	var (
		state   GlobalState
		created bool
	)
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := loadState(tx, opInitialize, true)
		if err == nil {
			state = existing
			return nil
		}
		if !errors.Is(err, ErrNotInitialized) {
			return err
		}

		startedAt := c.now().UTC()
		state = GlobalState{ID: globalStateID, CurrentDay: 1, JourneyStartDate: startedAt}
		if err := tx.Create(&state).Error; err != nil {
			return newServiceError(opInitialize, "state_insert_failed", ErrInternal, err)
		}
		if _, err := releasePosition(tx, opInitialize, 1, startedAt); err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		logFailure(c.logger, opInitialize, err)
		return GlobalState{}, false, asServiceError(opInitialize, err)
	}
	if created {
		c.logger.Info("journey initialized", zap.Time("journey_start_date", state.JourneyStartDate))
	}
	return state, created, nil
}

// State returns the current clock.
func (c *GlobalClock) State(ctx context.Context) (GlobalState, int, error) {
	db := c.db.WithContext(ctx)
	state, err := loadState(db, opLoadState, false)
	if err != nil {
		logFailure(c.logger, opLoadState, err)
		return GlobalState{}, 0, err
	}
	total, err := catalog.Count(db)
	if err != nil {
		err = newServiceError(opLoadState, "album_count_failed", ErrInternal, err)
		logFailure(c.logger, opLoadState, err)
		return GlobalState{}, 0, err
	}
	return state, total, nil
}

// Tick advances the clock by exactly one day and releases that day's album in the same
// transaction. Paused or finished journeys are returned unchanged.
func (c *GlobalClock) Tick(ctx context.Context) (TickResult, error) {
	var result TickResult
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		state, err := loadState(tx, opTick, true)
		if err != nil {
			return err
		}
		result.PreviousDay = state.CurrentDay
		result.State = state

		total, err := catalog.Count(tx)
		if err != nil {
			return newServiceError(opTick, "album_count_failed", ErrInternal, err)
		}
		result.TotalAlbums = total

		if state.IsPaused {
			result.Outcome = TickPaused
			return nil
		}
		if state.CurrentDay >= total {
			result.Outcome = TickComplete
			return nil
		}

		nextDay := state.CurrentDay + 1
		album, err := releasePosition(tx, opTick, nextDay, c.now())
		if err != nil {
			return err
		}

		update := tx.Model(&GlobalState{}).
			Where("id = ? AND current_day = ?", globalStateID, state.CurrentDay).
			Update("current_day", nextDay)
		if update.Error != nil {
			return newServiceError(opTick, "state_update_failed", ErrInternal, update.Error)
		}
		if update.RowsAffected != 1 {
			return newServiceError(opTick, "state_conflict", ErrInternal, errStateAlreadyMoved)
		}

		state.CurrentDay = nextDay
		summary := album.Summary()
		result.Outcome = TickAdvanced
		result.State = state
		result.Released = &summary
		return nil
	})
	if err != nil {
		logFailure(c.logger, opTick, err, zap.Int("previous_day", result.PreviousDay))
		return TickResult{}, asServiceError(opTick, err)
	}

	c.logger.Info("journey tick",
		zap.String("outcome", string(result.Outcome)),
		zap.Int("previous_day", result.PreviousDay),
		zap.Int("current_day", result.State.CurrentDay),
		zap.Int("total_albums", result.TotalAlbums))
	return result, nil
}

// TogglePause flips the paused flag and nothing else.
func (c *GlobalClock) TogglePause(ctx context.Context) (GlobalState, error) {
	var state GlobalState
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := loadState(tx, opTogglePause, true)
		if err != nil {
			return err
		}
		current.IsPaused = !current.IsPaused
		if err := tx.Model(&GlobalState{}).Where("id = ?", globalStateID).Update("is_paused", current.IsPaused).Error; err != nil {
			return newServiceError(opTogglePause, "state_update_failed", ErrInternal, err)
		}
		state = current
		return nil
	})
	if err != nil {
		logFailure(c.logger, opTogglePause, err)
		return GlobalState{}, asServiceError(opTogglePause, err)
	}
	c.logger.Info("journey pause toggled", zap.Bool("is_paused", state.IsPaused))
	return state, nil
}

// Reset wipes all progress: day 1, every album hidden except position 1, every user back to 1,
// all ratings and listening notes deleted. It runs as one transaction and requires confirmation.
func (c *GlobalClock) Reset(ctx context.Context, confirmation string) (GlobalState, error) {
	if confirmation != ResetConfirmation {
		err := newServiceError(opReset, "confirmation_required", ErrValidation, errConfirmationRequired)
		logFailure(c.logger, opReset, err)
		return GlobalState{}, err
	}

	var state GlobalState
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := loadState(tx, opReset, true)
		if err != nil {
			return err
		}
		previousDay := current.CurrentDay
		resetAt := c.now().UTC()

		current.CurrentDay = 1
		current.JourneyStartDate = resetAt
		if err := tx.Model(&GlobalState{}).Where("id = ?", globalStateID).Updates(map[string]any{
			"current_day":        current.CurrentDay,
			"journey_start_date": current.JourneyStartDate,
		}).Error; err != nil {
			return newServiceError(opReset, "state_update_failed", ErrInternal, err)
		}
		if err := users.ResetAllPositions(tx, 1); err != nil {
			return newServiceError(opReset, "user_reset_failed", ErrInternal, err)
		}
		if err := catalog.UnreleaseAll(tx); err != nil {
			return newServiceError(opReset, "album_reset_failed", ErrInternal, err)
		}
		wipe := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		if err := wipe.Delete(&Rating{}).Error; err != nil {
			return newServiceError(opReset, "rating_delete_failed", ErrInternal, err)
		}
		if err := wipe.Delete(&ListeningNote{}).Error; err != nil {
			return newServiceError(opReset, "note_delete_failed", ErrInternal, err)
		}
		if _, err := releasePosition(tx, opReset, 1, resetAt); err != nil {
			return err
		}

		state = current
		c.logger.Warn("journey reset", zap.Int("previous_day", previousDay))
		return nil
	})
	if err != nil {
		logFailure(c.logger, opReset, err)
		return GlobalState{}, asServiceError(opReset, err)
	}
	return state, nil
}

func loadState(tx *gorm.DB, operation string, lock bool) (GlobalState, error) {
	query := tx
	if lock {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var state GlobalState
	err := query.Where("id = ?", globalStateID).Take(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return GlobalState{}, newServiceError(operation, "state_missing", ErrNotInitialized, err)
	}
	if err != nil {
		return GlobalState{}, newServiceError(operation, "state_query_failed", ErrInternal, err)
	}
	return state, nil
}

func releasePosition(tx *gorm.DB, operation string, position int, at time.Time) (catalog.Album, error) {
	album, err := catalog.Release(tx, position, at)
	if errors.Is(err, catalog.ErrAlbumNotFound) {
		return catalog.Album{}, newServiceError(operation, "catalog_gap", ErrCatalogGap, fmt.Errorf("no album at position %d", position))
	}
	if err != nil {
		return catalog.Album{}, newServiceError(operation, "album_release_failed", ErrInternal, err)
	}
	return album, nil
}
