package catalog

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ErrAlbumNotFound is returned when no album occupies a requested position.
var ErrAlbumNotFound = errors.New("catalog: album not found")

// Album is one entry of the reveal sequence. Positions are unique and densely packed from 1.
type Album struct {
	ID          uint       `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Position    int        `gorm:"column:position;not null;uniqueIndex" json:"position"`
	Artist      string     `gorm:"column:artist;size:320;not null" json:"artist"`
	Title       string     `gorm:"column:title;size:320;not null" json:"title"`
	Year        int        `gorm:"column:year" json:"year,omitempty"`
	Genre       string     `gorm:"column:genre;size:128;not null;default:'Unknown'" json:"genre"`
	Description string     `gorm:"column:description;type:text" json:"description,omitempty"`
	ImageURL    string     `gorm:"column:image_url;size:512" json:"imageUrl,omitempty"`
	AlbumURL    string     `gorm:"column:album_url;size:512" json:"albumUrl,omitempty"`
	ArtistURL   string     `gorm:"column:artist_url;size:512" json:"artistUrl,omitempty"`
	SpotifyURL  string     `gorm:"column:spotify_url;size:512" json:"spotifyUrl,omitempty"`
	IsReleased  bool       `gorm:"column:is_released;not null;default:false;index" json:"isReleased"`
	ReleasedAt  *time.Time `gorm:"column:released_at" json:"releasedAt,omitempty"`
}

// TableName exposes the table backing the catalog.
func (Album) TableName() string {
	return "albums"
}

// Summary is the short form used in tick results and notification payloads.
type Summary struct {
	Position int    `json:"position"`
	Artist   string `json:"artist"`
	Title    string `json:"title"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// Summary returns the short form of the album.
func (a Album) Summary() Summary {
	return Summary{
		Position: a.Position,
		Artist:   a.Artist,
		Title:    a.Title,
		ImageURL: a.ImageURL,
	}
}

// AtPosition loads the album at position.
func AtPosition(tx *gorm.DB, position int) (Album, error) {
	var album Album
	err := tx.Where("position = ?", position).Take(&album).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Album{}, ErrAlbumNotFound
	}
	if err != nil {
		return Album{}, fmt.Errorf("catalog: lookup position %d: %w", position, err)
	}
	return album, nil
}

// Count returns the catalog length.
func Count(tx *gorm.DB) (int, error) {
	var total int64
	if err := tx.Model(&Album{}).Count(&total).Error; err != nil {
		return 0, fmt.Errorf("catalog: count albums: %w", err)
	}
	return int(total), nil
}

// Release flips the album at position to released. released_at is only written the first time.
func Release(tx *gorm.DB, position int, at time.Time) (Album, error) {
	result := tx.Model(&Album{}).
		Where("position = ?", position).
		Updates(map[string]any{
			"is_released": true,
			"released_at": gorm.Expr("COALESCE(released_at, ?)", at.UTC()),
		})
	if result.Error != nil {
		return Album{}, fmt.Errorf("catalog: release position %d: %w", position, result.Error)
	}
	if result.RowsAffected == 0 {
		return Album{}, ErrAlbumNotFound
	}
	return AtPosition(tx, position)
}

// UnreleaseAll hides every album and clears release timestamps.
func UnreleaseAll(tx *gorm.DB) error {
	err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).
		Model(&Album{}).
		Updates(map[string]any{"is_released": false, "released_at": nil}).Error
	if err != nil {
		return fmt.Errorf("catalog: unrelease albums: %w", err)
	}
	return nil
}

// ListReleasedThrough returns released albums with position <= maxPosition, newest first.
func ListReleasedThrough(tx *gorm.DB, maxPosition int) ([]Album, error) {
	albums := make([]Album, 0)
	err := tx.Where("is_released = ? AND position <= ?", true, maxPosition).
		Order("position DESC").
		Find(&albums).Error
	if err != nil {
		return nil, fmt.Errorf("catalog: list released through %d: %w", maxPosition, err)
	}
	return albums, nil
}

// ByIDs loads albums keyed by id.
func ByIDs(tx *gorm.DB, ids []uint) (map[uint]Album, error) {
	result := make(map[uint]Album, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var albums []Album
	if err := tx.Where("id IN ?", ids).Find(&albums).Error; err != nil {
		return nil, fmt.Errorf("catalog: load albums by id: %w", err)
	}
	for _, album := range albums {
		result[album.ID] = album
	}
	return result, nil
}
