package users

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrUserNotFound is returned when no user row exists for a username.
var ErrUserNotFound = errors.New("users: user not found")

// Find loads the user with the given username.
func Find(tx *gorm.DB, username Username) (User, error) {
	var user User
	err := tx.Where("username = ?", username.String()).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("users: lookup %q: %w", username, err)
	}
	return user, nil
}

// GetOrCreate returns the existing user or inserts one starting at startPosition.
// Concurrent creators converge on the same row through the unique username index.
func GetOrCreate(tx *gorm.DB, username Username, startPosition int, now time.Time) (User, bool, error) {
	user, err := Find(tx, username)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return User{}, false, err
	}

	candidate := User{
		Username:        username.String(),
		CurrentPosition: startPosition,
		CreatedAt:       now.UTC(),
	}
	result := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "username"}},
		DoNothing: true,
	}).Create(&candidate)
	if result.Error != nil {
		return User{}, false, fmt.Errorf("users: create %q: %w", username, result.Error)
	}

	user, err = Find(tx, username)
	if err != nil {
		return User{}, false, err
	}
	return user, result.RowsAffected == 1, nil
}

// AdvanceTo moves the user forward to position. The update never lowers current_position.
func AdvanceTo(tx *gorm.DB, userID uint, position int) (bool, error) {
	result := tx.Model(&User{}).
		Where("id = ? AND current_position < ?", userID, position).
		Update("current_position", position)
	if result.Error != nil {
		return false, fmt.Errorf("users: advance %d to %d: %w", userID, position, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ResetAllPositions rewinds every user to position. Only the journey reset calls this.
func ResetAllPositions(tx *gorm.DB, position int) error {
	err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).
		Model(&User{}).
		Update("current_position", position).Error
	if err != nil {
		return fmt.Errorf("users: reset positions: %w", err)
	}
	return nil
}
