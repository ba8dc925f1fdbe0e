package mongo

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/voicetutor/adapters/storetest"
)

func TestRepositories(t *testing.T) {
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set, skipping MongoDB integration test")
	}

	ctx := context.Background()
	logger := zaptest.NewLogger(t)
	dbName := fmt.Sprintf("voicetutor_test_%d", time.Now().UnixNano())

	client, err := NewClient(ctx, Config{URI: uri, Database: dbName}, logger)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.Database.Drop(context.Background())
		_ = client.Close(context.Background())
	})

	users, err := NewUserRepository(ctx, client, logger)
	require.NoError(t, err)
	history, err := NewHistoryRepository(ctx, client, logger)
	require.NoError(t, err)

	storetest.Run(t, users, history)
}

func TestNewClient_RequiresURI(t *testing.T) {
	_, err := NewClient(context.Background(), Config{}, zaptest.NewLogger(t))
	require.Error(t, err)
}
