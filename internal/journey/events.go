package journey

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// RatingEventType distinguishes star-only ratings from ratings with review text.
type RatingEventType string

const (
	RatingEventRating RatingEventType = "rating"
	RatingEventReview RatingEventType = "review"
)

// RatingEvent is emitted when a rating is created or significantly edited.
type RatingEvent struct {
	Type       RatingEventType
	ActorID    uint
	AlbumID    uint
	Stars      int
	NewRating  bool
	OccurredAt time.Time
}

// RatingEventSink records rating events inside the rating transaction.
type RatingEventSink interface {
	RecordRatingEvent(tx *gorm.DB, event RatingEvent) error
}

func ratingEventType(review string) RatingEventType {
	if strings.TrimSpace(review) != "" {
		return RatingEventReview
	}
	return RatingEventRating
}

type discardEventSink struct{}

func (discardEventSink) RecordRatingEvent(*gorm.DB, RatingEvent) error {
	return nil
}
