package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/voicetutor/domain/repositories"
)

func TestNewGeminiLLM_RequiresKey(t *testing.T) {
	_, err := NewGeminiLLM(context.Background(), GeminiConfig{}, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestGeminiLLM_CompleteRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "generateContent") {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if calls.Add(1) == 1 {
			http.Error(w, `{"error":{"code":503,"message":"overloaded","status":"UNAVAILABLE"}}`, http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Gravity pulls "},{"text":"things together."}]}}]}`))
	}))
	defer server.Close()

	g, err := NewGeminiLLM(context.Background(), GeminiConfig{
		APIKey:       "test-key",
		BaseURL:      server.URL,
		RetryBackoff: time.Millisecond,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, "gemini", g.Name())

	text, err := g.Complete(context.Background(), "What is gravity?", repositories.CompletionOptions{SystemPrompt: "Be brief."})
	require.NoError(t, err)
	assert.Equal(t, "Gravity pulls things together.", text)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGeminiLLM_CompleteEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer server.Close()

	g, err := NewGeminiLLM(context.Background(), GeminiConfig{APIKey: "k", BaseURL: server.URL}, zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = g.Complete(context.Background(), "hi", repositories.CompletionOptions{})
	assert.Error(t, err)
}

// Integration test - only runs if GEMINI_API_KEY is set
func TestGeminiLLM_Integration(t *testing.T) {
	if os.Getenv("GEMINI_API_KEY") == "" {
		t.Skip("Skipping integration test - set GEMINI_API_KEY environment variable")
	}

	g, err := NewGeminiLLM(context.Background(), NewGeminiConfigFromEnv(), zap.NewNop())
	require.NoError(t, err)

	text, err := g.Complete(context.Background(), "Say hello in one word.", repositories.CompletionOptions{MaxTokens: 16})
	require.NoError(t, err)
	assert.NotEmpty(t, text)
}
