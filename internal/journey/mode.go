package journey

import "github.com/MarcoPoloResearchLab/albumday/internal/catalog"

// Mode is what the main screen shows a user.
type Mode string

const (
	// ModeRating means the user owes a rating for a past album before moving on.
	ModeRating Mode = "rating"
	// ModeListening shows today's album, or an already rated one, for note taking.
	ModeListening Mode = "listening"
	// ModeCompleted means the user is past the end of the catalog.
	ModeCompleted Mode = "completed"
)

// effectivePosition clamps a user position to the clock so a stale row never runs ahead of it.
func effectivePosition(currentPosition int, state GlobalState) int {
	if currentPosition > state.CurrentDay {
		return state.CurrentDay
	}
	return currentPosition
}

// resolveMode is the only place a mode is decided.
func resolveMode(album *catalog.Album, state GlobalState, rated bool) Mode {
	if album == nil {
		return ModeCompleted
	}
	fromPastDay := album.Position < state.CurrentDay
	if fromPastDay && !rated && album.IsReleased {
		return ModeRating
	}
	return ModeListening
}

// isRateable reports whether ratings for album are accepted under state.
func isRateable(album catalog.Album, state GlobalState) bool {
	return album.IsReleased && album.Position < state.CurrentDay
}
