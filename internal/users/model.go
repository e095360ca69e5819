package users

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const maxUsernameLength = 64

var (
	// ErrInvalidUsername indicates the username is empty, too long, or uses unsupported characters.
	ErrInvalidUsername = errors.New("users: invalid username")

	usernamePattern = regexp.MustCompile(`^[a-z0-9_-]+$`)
)

// Username is a trimmed, lowercased account name. Usernames are unauthenticated identifiers.
type Username string

// NewUsername normalizes raw input and validates the result.
func NewUsername(rawInput string) (Username, error) {
	normalized := normalize(rawInput)
	if normalized == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidUsername)
	}
	if len(normalized) > maxUsernameLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidUsername, maxUsernameLength)
	}
	if !usernamePattern.MatchString(normalized) {
		return "", fmt.Errorf("%w: only letters, digits, '_' and '-' are allowed", ErrInvalidUsername)
	}
	return Username(normalized), nil
}

// String returns the normalized username.
func (u Username) String() string {
	return string(u)
}

// User is a listener progressing through the album sequence.
type User struct {
	ID              uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Username        string    `gorm:"column:username;size:64;not null;uniqueIndex" json:"username"`
	CurrentPosition int       `gorm:"column:current_position;not null;default:1" json:"currentPosition"`
	CreatedAt       time.Time `gorm:"column:created_at;not null;autoCreateTime:false" json:"createdAt"`
}

// TableName exposes the table backing users.
func (User) TableName() string {
	return "users"
}

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
