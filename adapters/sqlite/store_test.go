package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/voicetutor/adapters/storetest"
	"github.com/satriahrh/voicetutor/domain/repositories"
)

func openTestStore(t *testing.T, path string) *Store {
	t.Helper()
	store, err := Open(path, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore(t *testing.T) {
	store := openTestStore(t, filepath.Join(t.TempDir(), "users.db"))
	storetest.Run(t, store, store)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "users.db")

	first, err := Open(path, zaptest.NewLogger(t))
	require.NoError(t, err)
	user, err := first.Create(ctx, "ada", "secret1")
	require.NoError(t, err)
	_, err = first.Append(ctx, user.ID, "What is a verb?", "A doing word.")
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second := openTestStore(t, path)
	authed, err := second.Authenticate(ctx, "ada", "secret1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, authed.ID)

	entries, err := second.List(ctx, user.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "What is a verb?", entries[0].Query)
	assert.Equal(t, "A doing word.", entries[0].Response)
}

func TestStore_AppendUnknownUser(t *testing.T) {
	store := openTestStore(t, filepath.Join(t.TempDir(), "users.db"))

	_, err := store.Append(context.Background(), "not-a-number", "q", "r")
	assert.ErrorIs(t, err, repositories.ErrUserNotFound)

	_, err = store.Append(context.Background(), "999", "q", "r")
	assert.Error(t, err)
}
