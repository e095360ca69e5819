package journey

import (
	"time"

	"github.com/MarcoPoloResearchLab/albumday/internal/catalog"
)

const (
	globalStateID = 1

	// MinStars and MaxStars bound a rating.
	MinStars = 1
	MaxStars = 5
)

// GlobalState is the singleton release clock shared by every listener.
type GlobalState struct {
	ID               uint      `gorm:"column:id;primaryKey" json:"-"`
	CurrentDay       int       `gorm:"column:current_day;not null;default:1" json:"currentDay"`
	IsPaused         bool      `gorm:"column:is_paused;not null;default:false" json:"isPaused"`
	JourneyStartDate time.Time `gorm:"column:journey_start_date;not null" json:"journeyStartDate"`
}

// TableName exposes the table backing the release clock.
func (GlobalState) TableName() string {
	return "global_state"
}

// Rating is a user's verdict on an album. At most one exists per (user, album).
type Rating struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UserID    uint      `gorm:"column:user_id;not null;uniqueIndex:idx_ratings_user_album,priority:1" json:"userId"`
	AlbumID   uint      `gorm:"column:album_id;not null;uniqueIndex:idx_ratings_user_album,priority:2;index" json:"albumId"`
	Stars     int       `gorm:"column:stars;not null" json:"stars"`
	Review    string    `gorm:"column:review;type:text;not null;default:''" json:"review"`
	CreatedAt time.Time `gorm:"column:created_at;not null;autoCreateTime:false" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null;autoUpdateTime:false" json:"updatedAt"`
}

// TableName exposes the table backing ratings.
func (Rating) TableName() string {
	return "ratings"
}

// ListeningNote is draft text a user keeps while listening. It pre-fills the review field.
type ListeningNote struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UserID    uint      `gorm:"column:user_id;not null;uniqueIndex:idx_listening_notes_user_album,priority:1" json:"userId"`
	AlbumID   uint      `gorm:"column:album_id;not null;uniqueIndex:idx_listening_notes_user_album,priority:2" json:"albumId"`
	Note      string    `gorm:"column:note;type:text;not null;default:''" json:"note"`
	CreatedAt time.Time `gorm:"column:created_at;not null;autoCreateTime:false" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null;autoUpdateTime:false" json:"updatedAt"`
}

// TableName exposes the table backing listening notes.
func (ListeningNote) TableName() string {
	return "listening_notes"
}

// Models lists every table owned by the journey engine, in migration order.
func Models() []any {
	return []any{&GlobalState{}, &catalog.Album{}, &Rating{}, &ListeningNote{}}
}
