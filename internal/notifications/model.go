package notifications

import (
	"time"

	"github.com/MarcoPoloResearchLab/albumday/internal/catalog"
)

// Notification records that a listener rated or reviewed an album.
type Notification struct {
	ID        string    `gorm:"column:id;primaryKey;size:36;not null"`
	Type      string    `gorm:"column:type;size:16;not null"`
	ActorID   uint      `gorm:"column:actor_id;not null;index"`
	AlbumID   uint      `gorm:"column:album_id;not null;index"`
	Stars     int       `gorm:"column:stars;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null;index;autoCreateTime:false"`
}

// TableName exposes the table backing notifications.
func (Notification) TableName() string {
	return "notifications"
}

// View marks a notification as seen by one viewer. The composite key keeps each viewer once.
type View struct {
	NotificationID string    `gorm:"column:notification_id;primaryKey;size:36;not null"`
	ViewerID       uint      `gorm:"column:viewer_id;primaryKey;not null;index"`
	SeenAt         time.Time `gorm:"column:seen_at;not null"`
}

// TableName exposes the table backing notification viewers.
func (View) TableName() string {
	return "notification_views"
}

// Models lists the tables owned by the feed.
func Models() []any {
	return []any{&Notification{}, &View{}}
}

// Actor identifies who triggered a notification.
type Actor struct {
	Username string `json:"username"`
}

// Item is a notification as presented to one viewer.
type Item struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Stars     int             `json:"stars"`
	CreatedAt time.Time       `json:"createdAt"`
	IsRead    bool            `json:"isRead"`
	Actor     Actor           `json:"actor"`
	Album     catalog.Summary `json:"album"`
}

// Page is the recent feed for one viewer.
type Page struct {
	Notifications []Item `json:"notifications"`
	UnreadCount   int    `json:"unreadCount"`
}
