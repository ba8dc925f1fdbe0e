package entities

import (
	"errors"
	"strings"
	"time"
)

// DefaultHistoryLimit is the number of history entries returned when no limit is given
const DefaultHistoryLimit = 50

// MinPasswordLength is the shortest password accepted at registration
const MinPasswordLength = 6

// User represents a learner account
type User struct {
	ID           string    `json:"id" bson:"_id,omitempty" db:"id"`
	Username     string    `json:"username" bson:"username" db:"username"`
	PasswordHash string    `json:"-" bson:"password_hash" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at" db:"created_at"`
}

// HistoryEntry represents one question/answer exchange of a user
type HistoryEntry struct {
	ID        string    `json:"id" bson:"_id,omitempty" db:"id"`
	UserID    string    `json:"user_id" bson:"user_id" db:"user_id"`
	Query     string    `json:"query" bson:"user_query" db:"user_query"`
	Response  string    `json:"response" bson:"assistant_response" db:"assistant_response"`
	CreatedAt time.Time `json:"timestamp" bson:"created_at" db:"created_at"`
}

// Domain validation methods
func (u *User) Validate() error {
	if strings.TrimSpace(u.Username) == "" {
		return errors.New("username is required")
	}
	if u.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	return nil
}

func (h *HistoryEntry) Validate() error {
	if h.UserID == "" {
		return errors.New("user_id is required")
	}
	if strings.TrimSpace(h.Query) == "" {
		return errors.New("query is required")
	}
	if strings.TrimSpace(h.Response) == "" {
		return errors.New("response is required")
	}
	return nil
}

// Summary returns the query shortened to maxLen runes, suffixed with "..." when cut
func (h *HistoryEntry) Summary(maxLen int) string {
	runes := []rune(h.Query)
	if maxLen <= 0 || len(runes) <= maxLen {
		return h.Query
	}
	return string(runes[:maxLen]) + "..."
}

// ValidateRegistration checks the registration form fields
func ValidateRegistration(username, password, confirm string) error {
	if strings.TrimSpace(username) == "" || password == "" || confirm == "" {
		return errors.New("please fill in all fields")
	}
	if password != confirm {
		return errors.New("passwords do not match")
	}
	if len(password) < MinPasswordLength {
		return errors.New("password must be at least 6 characters")
	}
	return nil
}

// NormalizeHistoryLimit maps non-positive limits to DefaultHistoryLimit
func NormalizeHistoryLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	return limit
}
