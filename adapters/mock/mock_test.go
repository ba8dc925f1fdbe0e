package mock

import (
	"bytes"
	"context"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/voicetutor/domain/repositories"
)

func TestSpeechToText(t *testing.T) {
	stt := NewSpeechToText(zaptest.NewLogger(t))
	ctx := context.Background()

	if _, err := stt.TranscribeAudio(ctx, nil, repositories.AudioConfig{}); err == nil {
		t.Error("Expected error for empty audio")
	}

	text, err := stt.TranscribeAudio(ctx, make([]byte, 2000), repositories.AudioConfig{})
	if err != nil {
		t.Fatalf("TranscribeAudio() error = %v", err)
	}
	if text != "Why is the sky blue?" {
		t.Errorf("Unexpected transcript %q", text)
	}
}

func TestLargeLanguageModel(t *testing.T) {
	llm := NewLargeLanguageModel(zaptest.NewLogger(t))
	if _, err := llm.Complete(context.Background(), "  ", repositories.CompletionOptions{}); err == nil {
		t.Error("Expected error for empty prompt")
	}
	text, err := llm.Complete(context.Background(), "Why?", repositories.CompletionOptions{})
	if err != nil || text == "" {
		t.Errorf("Expected reply, got %q (%v)", text, err)
	}
}

func TestTextToSpeech_Deterministic(t *testing.T) {
	tts := NewTextToSpeech(zaptest.NewLogger(t))
	ctx := context.Background()

	a, err := tts.Synthesize(ctx, "Hello", "en", repositories.RateNormal)
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	b, _ := tts.Synthesize(ctx, "Hello", "en", repositories.RateNormal)
	if !bytes.Equal(a, b) {
		t.Error("Expected identical audio for identical requests")
	}
	if !bytes.HasPrefix(a, mp3FrameHeader) {
		t.Error("Expected mp3 frame header prefix")
	}

	slow, _ := tts.Synthesize(ctx, "Hello", "en", repositories.RateSlow)
	if len(slow) <= len(a) {
		t.Errorf("Expected slow audio to be longer, got %d <= %d", len(slow), len(a))
	}

	if _, err := tts.Synthesize(ctx, " ", "en", repositories.RateNormal); err == nil {
		t.Error("Expected error for empty text")
	}
}
