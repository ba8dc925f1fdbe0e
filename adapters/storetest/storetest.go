// Package storetest holds the behavior every user and history store must share.
// Adapters run it from their own tests.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satriahrh/voicetutor/domain/repositories"
)

// Run exercises users and history against the shared contract. The stores
// must start empty.
func Run(t *testing.T, users repositories.UserRepository, history repositories.HistoryRepository) {
	ctx := context.Background()

	t.Run("CreateAndAuthenticate", func(t *testing.T) {
		user, err := users.Create(ctx, "ada", "secret1")
		require.NoError(t, err)
		require.NotEmpty(t, user.ID)
		assert.Equal(t, "ada", user.Username)
		assert.NotEqual(t, "secret1", user.PasswordHash)
		assert.False(t, user.CreatedAt.IsZero())

		authed, err := users.Authenticate(ctx, "ada", "secret1")
		require.NoError(t, err)
		assert.Equal(t, user.ID, authed.ID)

		byID, err := users.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "ada", byID.Username)
	})

	t.Run("DuplicateUsername", func(t *testing.T) {
		_, err := users.Create(ctx, "grace", "secret1")
		require.NoError(t, err)
		_, err = users.Create(ctx, "grace", "other-password")
		assert.True(t, errors.Is(err, repositories.ErrUsernameTaken), "got %v", err)
	})

	t.Run("InvalidCredentials", func(t *testing.T) {
		_, err := users.Create(ctx, "linus", "secret1")
		require.NoError(t, err)

		_, err = users.Authenticate(ctx, "linus", "wrong")
		assert.ErrorIs(t, err, repositories.ErrInvalidCredentials)

		_, err = users.Authenticate(ctx, "nobody", "secret1")
		assert.ErrorIs(t, err, repositories.ErrInvalidCredentials)
	})

	t.Run("UnknownUserID", func(t *testing.T) {
		_, err := users.GetByID(ctx, "does-not-exist")
		assert.ErrorIs(t, err, repositories.ErrUserNotFound)
	})

	t.Run("HistoryMostRecentFirst", func(t *testing.T) {
		user, err := users.Create(ctx, "margaret", "secret1")
		require.NoError(t, err)
		other, err := users.Create(ctx, "alan", "secret1")
		require.NoError(t, err)

		for i := 1; i <= 5; i++ {
			entry, err := history.Append(ctx, user.ID, fmt.Sprintf("question %d", i), fmt.Sprintf("answer %d", i))
			require.NoError(t, err)
			assert.NotEmpty(t, entry.ID)
			assert.Equal(t, user.ID, entry.UserID)
		}
		_, err = history.Append(ctx, other.ID, "someone else", "not yours")
		require.NoError(t, err)

		entries, err := history.List(ctx, user.ID, 3)
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, "question 5", entries[0].Query)
		assert.Equal(t, "answer 5", entries[0].Response)
		assert.Equal(t, "question 4", entries[1].Query)
		assert.Equal(t, "question 3", entries[2].Query)

		all, err := history.List(ctx, user.ID, 0)
		require.NoError(t, err)
		assert.Len(t, all, 5)

		last, err := history.List(ctx, user.ID, 1)
		require.NoError(t, err)
		require.Len(t, last, 1)
		assert.Equal(t, "question 5", last[0].Query)

		empty, err := history.List(ctx, "no-such-user", 10)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("HistoryValidation", func(t *testing.T) {
		_, err := history.Append(ctx, "", "q", "r")
		assert.Error(t, err)
		_, err = history.Append(ctx, "someone", "  ", "r")
		assert.Error(t, err)
	})
}
