package repositories

import (
	"context"
	"errors"

	"github.com/satriahrh/voicetutor/domain/entities"
)

var (
	// ErrUsernameTaken is returned by UserRepository.Create when the username already exists
	ErrUsernameTaken = errors.New("username already exists")
	// ErrInvalidCredentials is returned when the username is unknown or the password does not match
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrUserNotFound is returned when no user has the requested ID
	ErrUserNotFound = errors.New("user not found")
)

// UserRepository defines data access methods for users
type UserRepository interface {
	// Create stores a new user, hashing the plain text password
	Create(ctx context.Context, username, password string) (*entities.User, error)
	// Authenticate returns the user whose credentials match
	Authenticate(ctx context.Context, username, password string) (*entities.User, error)
	GetByID(ctx context.Context, id string) (*entities.User, error)
}

// HistoryRepository defines data access methods for the per-user conversation history
type HistoryRepository interface {
	Append(ctx context.Context, userID, query, response string) (*entities.HistoryEntry, error)
	// List returns at most limit entries, most recent first
	List(ctx context.Context, userID string, limit int) ([]*entities.HistoryEntry, error)
}
