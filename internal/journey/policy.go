package journey

import "time"

const (
	defaultEditAfterCreation = 24 * time.Hour
	defaultEditAfterUpdate   = 2 * time.Hour
)

// NotificationPolicy throttles notifications for edited ratings.
// A new rating always notifies. An edit notifies once either threshold has elapsed.
type NotificationPolicy struct {
	EditAfterCreation time.Duration
	EditAfterUpdate   time.Duration
}

// DefaultNotificationPolicy returns the 24h since creation / 2h since update policy.
func DefaultNotificationPolicy() NotificationPolicy {
	return NotificationPolicy{
		EditAfterCreation: defaultEditAfterCreation,
		EditAfterUpdate:   defaultEditAfterUpdate,
	}
}

func (p NotificationPolicy) withDefaults() NotificationPolicy {
	if p.EditAfterCreation <= 0 {
		p.EditAfterCreation = defaultEditAfterCreation
	}
	if p.EditAfterUpdate <= 0 {
		p.EditAfterUpdate = defaultEditAfterUpdate
	}
	return p
}

// ShouldNotify decides whether writing a rating at now emits an event. existing is nil for new ratings.
func (p NotificationPolicy) ShouldNotify(existing *Rating, now time.Time) bool {
	if existing == nil {
		return true
	}
	sinceCreation := now.Sub(existing.CreatedAt)
	sinceUpdate := now.Sub(existing.UpdatedAt)
	return sinceCreation >= p.EditAfterCreation || sinceUpdate >= p.EditAfterUpdate
}
