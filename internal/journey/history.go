package journey

import (
	"context"
	"errors"

	"github.com/MarcoPoloResearchLab/albumday/internal/catalog"
	"github.com/MarcoPoloResearchLab/albumday/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// HistoryEntry is one past album with the user's rating, if any.
type HistoryEntry struct {
	Album   catalog.Album `json:"album"`
	Rating  *Rating       `json:"rating"`
	IsRated bool          `json:"isRated"`
}

// History lists the albums released before today, newest first.
type History struct {
	User        users.User     `json:"user"`
	GlobalState GlobalState    `json:"globalState"`
	Entries     []HistoryEntry `json:"entries"`
}

// AlbumDetail is a single released album as seen by one user.
type AlbumDetail struct {
	Album         catalog.Album `json:"album"`
	Rating        *Rating       `json:"rating"`
	ListeningNote string        `json:"listeningNote"`
	Rateable      bool          `json:"rateable"`
	GlobalState   GlobalState   `json:"globalState"`
}

// History returns every released album before today with the user's ratings attached.
// Skipped albums appear with IsRated false until they are rated.
func (e *Engine) History(ctx context.Context, rawUsername string) (History, error) {
	username, err := parseUsername(opHistory, rawUsername)
	if err != nil {
		return History{}, err
	}

	var history History
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		state, err := loadState(tx, opHistory, false)
		if err != nil {
			return err
		}
		user, _, err := users.GetOrCreate(tx, username, state.CurrentDay, e.now())
		if err != nil {
			return newServiceError(opHistory, "user_upsert_failed", ErrInternal, err)
		}
		history = History{User: user, GlobalState: state, Entries: make([]HistoryEntry, 0)}
		if state.CurrentDay <= 1 {
			return nil
		}

		albums, err := catalog.ListReleasedThrough(tx, state.CurrentDay-1)
		if err != nil {
			return newServiceError(opHistory, "album_query_failed", ErrInternal, err)
		}
		albumIDs := make([]uint, 0, len(albums))
		for _, album := range albums {
			albumIDs = append(albumIDs, album.ID)
		}
		ratings, err := ratingsByAlbum(tx, user.ID, albumIDs)
		if err != nil {
			return newServiceError(opHistory, "rating_query_failed", ErrInternal, err)
		}
		for _, album := range albums {
			entry := HistoryEntry{Album: album}
			if rating, ok := ratings[album.ID]; ok {
				entry.Rating = &rating
				entry.IsRated = true
			}
			history.Entries = append(history.Entries, entry)
		}
		return nil
	})
	if err != nil {
		logFailure(e.logger, opHistory, err, zap.String("username", username.String()))
		return History{}, asServiceError(opHistory, err)
	}
	return history, nil
}

// AlbumDetail returns one released album with the user's rating and note. Unreleased
// albums are reported as not found so future positions stay hidden.
func (e *Engine) AlbumDetail(ctx context.Context, rawUsername string, position int) (AlbumDetail, error) {
	username, err := parseUsername(opAlbumDetail, rawUsername)
	if err != nil {
		return AlbumDetail{}, err
	}

	var detail AlbumDetail
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		state, err := loadState(tx, opAlbumDetail, false)
		if err != nil {
			return err
		}
		user, _, err := users.GetOrCreate(tx, username, state.CurrentDay, e.now())
		if err != nil {
			return newServiceError(opAlbumDetail, "user_upsert_failed", ErrInternal, err)
		}
		album, err := lookupAlbum(tx, opAlbumDetail, position)
		if err != nil {
			return err
		}
		if !album.IsReleased {
			return newServiceError(opAlbumDetail, "album_not_found", ErrNotFound, errors.New("album not released"))
		}
		rating, err := findRating(tx, user.ID, album.ID)
		if err != nil {
			return newServiceError(opAlbumDetail, "rating_query_failed", ErrInternal, err)
		}
		note, err := findNoteText(tx, user.ID, album.ID)
		if err != nil {
			return newServiceError(opAlbumDetail, "note_query_failed", ErrInternal, err)
		}
		detail = AlbumDetail{
			Album:         album,
			Rating:        rating,
			ListeningNote: note,
			Rateable:      isRateable(album, state),
			GlobalState:   state,
		}
		return nil
	})
	if err != nil {
		logFailure(e.logger, opAlbumDetail, err, zap.String("username", username.String()), zap.Int("album_position", position))
		return AlbumDetail{}, asServiceError(opAlbumDetail, err)
	}
	return detail, nil
}

func ratingsByAlbum(tx *gorm.DB, userID uint, albumIDs []uint) (map[uint]Rating, error) {
	result := make(map[uint]Rating, len(albumIDs))
	if len(albumIDs) == 0 {
		return result, nil
	}
	var ratings []Rating
	if err := tx.Where("user_id = ? AND album_id IN ?", userID, albumIDs).Find(&ratings).Error; err != nil {
		return nil, err
	}
	for _, rating := range ratings {
		result[rating.AlbumID] = rating
	}
	return result, nil
}
