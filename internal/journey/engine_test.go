package journey_test

import (
	"sync"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/albumday/internal/journey"
	"github.com/MarcoPoloResearchLab/albumday/internal/users"
	"github.com/stretchr/testify/require"
)

func TestAliceThreeAlbumJourney(t *testing.T) {
	fixture := newJourneyFixture(t, 3)

	state, err := fixture.engine.ResolveState(t.Context(), "Alice")
	require.NoError(t, err)
	require.Equal(t, journey.ModeListening, state.Mode)
	require.Equal(t, 1, state.Album.Position)
	require.Equal(t, "alice", state.User.Username)
	require.Equal(t, 1, state.User.CurrentPosition)

	fixture.time.Advance(24 * time.Hour)
	fixture.tick(t, 1)

	state, err = fixture.engine.ResolveState(t.Context(), "alice")
	require.NoError(t, err)
	require.Equal(t, journey.ModeRating, state.Mode)
	require.Equal(t, 1, state.Album.Position)

	result := fixture.rate(t, "alice", 1, 4, "")
	require.True(t, result.Created)
	require.True(t, result.Advanced)
	require.Equal(t, 2, result.User.CurrentPosition)

	state, err = fixture.engine.ResolveState(t.Context(), "alice")
	require.NoError(t, err)
	require.Equal(t, journey.ModeListening, state.Mode)
	require.Equal(t, 2, state.Album.Position)
}

func TestNewUsersJoinAtToday(t *testing.T) {
	fixture := newJourneyFixture(t, 5)
	fixture.tick(t, 3)

	state, err := fixture.engine.ResolveState(t.Context(), "carol")
	require.NoError(t, err)
	require.Equal(t, 4, state.User.CurrentPosition)
	require.Equal(t, journey.ModeListening, state.Mode)
	require.Equal(t, 4, state.Album.Position)
}

func TestResolveStateIsDeterministic(t *testing.T) {
	fixture := newJourneyFixture(t, 3)
	_, err := fixture.engine.ResolveState(t.Context(), "dave")
	require.NoError(t, err)
	fixture.tick(t, 1)

	first, err := fixture.engine.ResolveState(t.Context(), "dave")
	require.NoError(t, err)
	second, err := fixture.engine.ResolveState(t.Context(), "dave")
	require.NoError(t, err)

	require.Equal(t, first.Mode, second.Mode)
	require.Equal(t, first.Album.Position, second.Album.Position)
	require.Equal(t, first.User, second.User)
}

func TestResolveStateAttachesListeningNote(t *testing.T) {
	fixture := newJourneyFixture(t, 3)

	note, err := fixture.engine.SaveListeningNote(t.Context(), "erin", 1, "warm bass tone")
	require.NoError(t, err)
	require.Equal(t, "warm bass tone", note.Note)

	_, err = fixture.engine.SaveListeningNote(t.Context(), "erin", 1, "warm bass tone, odd mix")
	require.NoError(t, err)

	state, err := fixture.engine.ResolveState(t.Context(), "erin")
	require.NoError(t, err)
	require.Equal(t, "warm bass tone, odd mix", state.ListeningNote)

	var count int64
	require.NoError(t, fixture.db.Model(&journey.ListeningNote{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestSaveListeningNoteUnknownAlbum(t *testing.T) {
	fixture := newJourneyFixture(t, 3)

	_, err := fixture.engine.SaveListeningNote(t.Context(), "erin", 9, "hello")
	require.ErrorIs(t, err, journey.ErrNotFound)
}

func TestSubmitRatingRateabilityWindow(t *testing.T) {
	fixture := newJourneyFixture(t, 5)
	fixture.tick(t, 2)

	for _, position := range []int{3, 4, 5} {
		_, err := fixture.engine.SubmitRating(t.Context(), journey.RatingSubmission{
			Username:      "frank",
			AlbumPosition: position,
			Stars:         3,
		})
		require.ErrorIs(t, err, journey.ErrNotYetAllowed, "position %d", position)
	}

	var count int64
	require.NoError(t, fixture.db.Model(&journey.Rating{}).Count(&count).Error)
	require.Zero(t, count)
	require.Empty(t, fixture.events.events)
}

func TestSubmitRatingValidation(t *testing.T) {
	fixture := newJourneyFixture(t, 3)
	fixture.tick(t, 1)

	testCases := []struct {
		name       string
		submission journey.RatingSubmission
		wantKind   error
	}{
		{"stars too low", journey.RatingSubmission{Username: "gina", AlbumPosition: 1, Stars: 0}, journey.ErrValidation},
		{"stars too high", journey.RatingSubmission{Username: "gina", AlbumPosition: 1, Stars: 6}, journey.ErrValidation},
		{"bad username", journey.RatingSubmission{Username: "gina smith", AlbumPosition: 1, Stars: 3}, journey.ErrValidation},
		{"zero position", journey.RatingSubmission{Username: "gina", AlbumPosition: 0, Stars: 3}, journey.ErrValidation},
		{"unknown album", journey.RatingSubmission{Username: "gina", AlbumPosition: 42, Stars: 3}, journey.ErrNotFound},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			_, err := fixture.engine.SubmitRating(t.Context(), testCase.submission)
			require.ErrorIs(t, err, testCase.wantKind)
		})
	}
}

func TestSubmitRatingUpsertKeepsSingleRow(t *testing.T) {
	fixture := newJourneyFixture(t, 3)
	fixture.tick(t, 1)

	first := fixture.rate(t, "hank", 1, 2, "meh")
	fixture.time.Advance(time.Minute)
	second := fixture.rate(t, "hank", 1, 5, "grew on me")

	require.True(t, first.Created)
	require.False(t, second.Created)
	require.Equal(t, first.Rating.ID, second.Rating.ID)
	require.Equal(t, 5, second.Rating.Stars)
	require.Equal(t, "grew on me", second.Rating.Review)
	require.True(t, second.Rating.CreatedAt.Equal(first.Rating.CreatedAt))
	require.True(t, second.Rating.UpdatedAt.After(first.Rating.UpdatedAt))

	var count int64
	require.NoError(t, fixture.db.Model(&journey.Rating{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestSubmitRatingNotificationSuppression(t *testing.T) {
	fixture := newJourneyFixture(t, 3)
	fixture.tick(t, 1)

	require.True(t, fixture.rate(t, "ivy", 1, 3, "").Notified)

	fixture.time.Advance(90 * time.Minute)
	require.False(t, fixture.rate(t, "ivy", 1, 4, "").Notified)

	fixture.time.Advance(time.Hour)
	require.False(t, fixture.rate(t, "ivy", 1, 4, "second thoughts").Notified, "within 2h of last update and 24h of creation")

	fixture.time.Advance(2 * time.Hour)
	require.True(t, fixture.rate(t, "ivy", 1, 5, "definitive").Notified)

	require.Len(t, fixture.events.events, 2)
	require.Equal(t, journey.RatingEventRating, fixture.events.events[0].Type)
	require.True(t, fixture.events.events[0].NewRating)
	require.Equal(t, journey.RatingEventReview, fixture.events.events[1].Type)
	require.False(t, fixture.events.events[1].NewRating)
	require.Equal(t, 5, fixture.events.events[1].Stars)
}

func TestSkipThenRateLater(t *testing.T) {
	fixture := newJourneyFixture(t, 5)
	_, err := fixture.engine.ResolveState(t.Context(), "jack")
	require.NoError(t, err)
	fixture.tick(t, 1)

	skipped, err := fixture.engine.Skip(t.Context(), "jack")
	require.NoError(t, err)
	require.True(t, skipped.Advanced)
	require.Equal(t, 2, skipped.User.CurrentPosition)

	fixture.tick(t, 2)
	state, err := fixture.engine.ResolveState(t.Context(), "jack")
	require.NoError(t, err)
	require.Equal(t, journey.ModeRating, state.Mode)
	require.Equal(t, 2, state.Album.Position)

	history, err := fixture.engine.History(t.Context(), "jack")
	require.NoError(t, err)
	require.Len(t, history.Entries, 3)
	require.Equal(t, 3, history.Entries[0].Album.Position)
	skippedEntry := history.Entries[2]
	require.Equal(t, 1, skippedEntry.Album.Position)
	require.False(t, skippedEntry.IsRated)
	require.Nil(t, skippedEntry.Rating)

	fixture.time.Advance(30 * 24 * time.Hour)
	result := fixture.rate(t, "jack", 1, 3, "")
	require.True(t, result.Created)

	history, err = fixture.engine.History(t.Context(), "jack")
	require.NoError(t, err)
	require.True(t, history.Entries[2].IsRated)
}

func TestUserPositionIsMonotonic(t *testing.T) {
	fixture := newJourneyFixture(t, 6)
	fixture.tick(t, 4)

	result := fixture.rate(t, "kate", 2, 4, "")
	require.Equal(t, 5, result.User.CurrentPosition)

	again := fixture.rate(t, "kate", 1, 4, "")
	require.False(t, again.Advanced)
	require.Equal(t, 5, again.User.CurrentPosition)

	skipped, err := fixture.engine.Skip(t.Context(), "kate")
	require.NoError(t, err)
	require.False(t, skipped.Advanced)

	user, err := users.Find(fixture.db, "kate")
	require.NoError(t, err)
	require.Equal(t, 5, user.CurrentPosition)
}

func TestResolveStateClampsPositionAheadOfClock(t *testing.T) {
	fixture := newJourneyFixture(t, 4)
	fixture.tick(t, 1)
	_, err := fixture.engine.ResolveState(t.Context(), "liam")
	require.NoError(t, err)
	require.NoError(t, fixture.db.Model(&users.User{}).Where("username = ?", "liam").Update("current_position", 4).Error)

	state, err := fixture.engine.ResolveState(t.Context(), "liam")
	require.NoError(t, err)
	require.Equal(t, 2, state.Album.Position)
	require.Equal(t, journey.ModeListening, state.Mode)
}

func TestResolveStateCompletedPastCatalogEnd(t *testing.T) {
	fixture := newJourneyFixture(t, 2)
	fixture.tick(t, 1)
	_, err := fixture.engine.ResolveState(t.Context(), "mona")
	require.NoError(t, err)
	require.NoError(t, fixture.db.Exec("DELETE FROM albums WHERE position = 2").Error)

	state, err := fixture.engine.ResolveState(t.Context(), "mona")
	require.NoError(t, err)
	require.Equal(t, journey.ModeCompleted, state.Mode)
	require.Nil(t, state.Album)
}

func TestConcurrentRatingsConvergeOnOneRow(t *testing.T) {
	fixture := newJourneyFixture(t, 3)
	fixture.tick(t, 1)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for stars := 1; stars <= 5; stars++ {
		wg.Add(1)
		go func(stars int) {
			defer wg.Done()
			_, err := fixture.engine.SubmitRating(t.Context(), journey.RatingSubmission{
				Username:      "nate",
				AlbumPosition: 1,
				Stars:         stars,
			})
			errs <- err
		}(stars)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var count int64
	require.NoError(t, fixture.db.Model(&journey.Rating{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
	var userCount int64
	require.NoError(t, fixture.db.Model(&users.User{}).Where("username = ?", "nate").Count(&userCount).Error)
	require.EqualValues(t, 1, userCount)
}

func TestAlbumDetailHidesUnreleasedAlbums(t *testing.T) {
	fixture := newJourneyFixture(t, 4)
	fixture.tick(t, 1)

	detail, err := fixture.engine.AlbumDetail(t.Context(), "olga", 1)
	require.NoError(t, err)
	require.True(t, detail.Rateable)

	detail, err = fixture.engine.AlbumDetail(t.Context(), "olga", 2)
	require.NoError(t, err)
	require.False(t, detail.Rateable)

	_, err = fixture.engine.AlbumDetail(t.Context(), "olga", 3)
	require.ErrorIs(t, err, journey.ErrNotFound)
}

func TestHistoryEmptyOnFirstDay(t *testing.T) {
	fixture := newJourneyFixture(t, 3)

	history, err := fixture.engine.History(t.Context(), "pia")
	require.NoError(t, err)
	require.Empty(t, history.Entries)
	require.NotNil(t, history.Entries)
}

func TestStatsReflectRatings(t *testing.T) {
	fixture := newJourneyFixture(t, 4)
	fixture.tick(t, 2)
	fixture.rate(t, "quinn", 1, 5, "")
	fixture.rate(t, "quinn", 2, 3, "")

	summary, err := fixture.engine.Stats(t.Context(), "quinn")
	require.NoError(t, err)
	require.Equal(t, 2, summary.RatedCount)
	require.InDelta(t, 4.0, summary.AverageRating, 0.0001)
	require.Equal(t, 3, summary.CurrentDay)
	require.Equal(t, 1, summary.DaysRemaining)
	require.Equal(t, []journey.GenreCount{{Genre: "Jazz", Count: 2}}, summary.TopGenres)
}

func TestUserExistsDoesNotCreate(t *testing.T) {
	fixture := newJourneyFixture(t, 2)

	exists, err := fixture.engine.UserExists(t.Context(), "Rita")
	require.NoError(t, err)
	require.False(t, exists)

	user, created, err := fixture.engine.EnsureUser(t.Context(), "  RITA ")
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, "rita", user.Username)

	exists, err = fixture.engine.UserExists(t.Context(), "rita")
	require.NoError(t, err)
	require.True(t, exists)

	_, created, err = fixture.engine.EnsureUser(t.Context(), "rita")
	require.NoError(t, err)
	require.False(t, created)
}
