package journey_test

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/albumday/internal/catalog"
	"github.com/MarcoPoloResearchLab/albumday/internal/database"
	"github.com/MarcoPoloResearchLab/albumday/internal/journey"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2026, time.October, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(step time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(step)
}

// recordingSink captures rating events without touching the store.
type recordingSink struct {
	events []journey.RatingEvent
}

func (s *recordingSink) RecordRatingEvent(_ *gorm.DB, event journey.RatingEvent) error {
	s.events = append(s.events, event)
	return nil
}

type journeyFixture struct {
	db     *gorm.DB
	clock  *journey.GlobalClock
	engine *journey.Engine
	time   *manualClock
	events *recordingSink
}

func openTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "journey.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func seedAlbums(t *testing.T, db *gorm.DB, positions ...int) {
	t.Helper()
	for _, position := range positions {
		album := catalog.Album{
			Position: position,
			Artist:   fmt.Sprintf("Artist %d", position),
			Title:    fmt.Sprintf("Album %d", position),
			Genre:    "Jazz",
		}
		require.NoError(t, db.Create(&album).Error)
	}
}

func albumRange(count int) []int {
	positions := make([]int, 0, count)
	for position := 1; position <= count; position++ {
		positions = append(positions, position)
	}
	return positions
}

// newJourneyFixture seeds albumCount albums and initializes the clock at day 1.
func newJourneyFixture(t *testing.T, albumCount int) *journeyFixture {
	t.Helper()
	db := openTestDatabase(t)
	seedAlbums(t, db, albumRange(albumCount)...)

	fixture := &journeyFixture{db: db, time: newManualClock(), events: &recordingSink{}}
	clock, err := journey.NewGlobalClock(journey.ClockConfig{Database: db, Clock: fixture.time.Now})
	require.NoError(t, err)
	engine, err := journey.NewEngine(journey.EngineConfig{
		Database:           db,
		Clock:              fixture.time.Now,
		Events:             fixture.events,
		NotificationPolicy: journey.DefaultNotificationPolicy(),
	})
	require.NoError(t, err)
	fixture.clock = clock
	fixture.engine = engine

	if albumCount > 0 {
		_, created, err := clock.Initialize(t.Context())
		require.NoError(t, err)
		require.True(t, created)
	}
	return fixture
}

func (f *journeyFixture) tick(t *testing.T, times int) journey.TickResult {
	t.Helper()
	var result journey.TickResult
	for i := 0; i < times; i++ {
		var err error
		result, err = f.clock.Tick(t.Context())
		require.NoError(t, err)
	}
	return result
}

func (f *journeyFixture) rate(t *testing.T, username string, position, stars int, review string) journey.RatingResult {
	t.Helper()
	result, err := f.engine.SubmitRating(t.Context(), journey.RatingSubmission{
		Username:      username,
		AlbumPosition: position,
		Stars:         stars,
		Review:        review,
	})
	require.NoError(t, err)
	return result
}
