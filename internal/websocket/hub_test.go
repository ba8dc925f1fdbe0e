package websocket

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/voicetutor/domain/repositories"
	"github.com/satriahrh/voicetutor/internal/audiocache"
	"github.com/satriahrh/voicetutor/usecase"
)

const testAudioKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

type stubAnswerer struct {
	mu     sync.Mutex
	audio  [][]byte
	config repositories.AudioConfig
	texts  []string
	err    error
}

func (s *stubAnswerer) Ask(ctx context.Context, userID string, audio []byte, config repositories.AudioConfig) (*usecase.Answer, error) {
	s.mu.Lock()
	s.audio = append(s.audio, audio)
	s.config = config
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return &usecase.Answer{
		Transcript:     "Why is the sky blue?",
		Response:       "Rayleigh scattering.",
		AudioAvailable: true,
		AudioKey:       testAudioKey,
		AudioURL:       usecase.AudioURLPrefix + testAudioKey,
	}, nil
}

func (s *stubAnswerer) AskText(ctx context.Context, userID, question string) (*usecase.Answer, error) {
	s.mu.Lock()
	s.texts = append(s.texts, question)
	s.mu.Unlock()
	return &usecase.Answer{Transcript: question, Response: "Answer for " + userID, Notice: usecase.AudioUnavailableNotice}, nil
}

type stubArtifacts struct{}

func (stubArtifacts) Artifact(ctx context.Context, key audiocache.Key) ([]byte, error) {
	if string(key) != testAudioKey {
		return nil, audiocache.ErrNotFound
	}
	return []byte("mp3-bytes"), nil
}

func (stubArtifacts) Format() string { return "mp3" }

func setupTestServer(t *testing.T, answerer Answerer) (*Hub, string) {
	t.Helper()
	logger := zap.NewNop()
	hub := NewHub(answerer, stubArtifacts{}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	e := echo.New()
	e.GET("/ws", func(c echo.Context) error {
		return HandleWebSocketWithAuth(hub, c, c.QueryParam("user"), logger)
	})
	server := httptest.NewServer(e)

	t.Cleanup(func() {
		server.Close()
		cancel()
	})
	return hub, "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?user=user-1"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	messageType, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	if messageType != websocket.TextMessage {
		t.Fatalf("Expected text message, got type %d", messageType)
	}
	var msg map[string]interface{}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to parse message: %v", err)
	}
	return msg
}

func writeJSON(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("Failed to write message: %v", err)
	}
}

func TestHub_BinaryQuestionStreamsAnswerAndAudio(t *testing.T) {
	answerer := &stubAnswerer{}
	_, url := setupTestServer(t, answerer)
	conn := dial(t, url)

	if err := conn.WriteMessage(websocket.BinaryMessage, []byte("recorded question")); err != nil {
		t.Fatalf("Failed to send audio: %v", err)
	}

	answer := readJSON(t, conn)
	if answer["type"] != string(MessageTypeAnswer) {
		t.Fatalf("Expected answer message, got %v", answer)
	}
	if answer["response"] != "Rayleigh scattering." {
		t.Errorf("Unexpected response %v", answer["response"])
	}

	start := readJSON(t, conn)
	if start["type"] != string(MessageTypeSpeakingStart) || start["audio_key"] != testAudioKey {
		t.Errorf("Unexpected speaking_start %v", start)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	messageType, audio, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read audio: %v", err)
	}
	if messageType != websocket.BinaryMessage || string(audio) != "mp3-bytes" {
		t.Errorf("Unexpected audio frame type=%d payload=%q", messageType, audio)
	}

	end := readJSON(t, conn)
	if end["type"] != string(MessageTypeSpeakingEnd) {
		t.Errorf("Expected speaking_end, got %v", end)
	}
}

func TestHub_ListeningBuffersChunks(t *testing.T) {
	answerer := &stubAnswerer{}
	_, url := setupTestServer(t, answerer)
	conn := dial(t, url)

	writeJSON(t, conn, map[string]interface{}{"type": "listening_start", "sample_rate": 16000, "encoding": "LINEAR16"})
	for _, chunk := range []string{"chunk-1|", "chunk-2|", "chunk-3"} {
		if err := conn.WriteMessage(websocket.BinaryMessage, []byte(chunk)); err != nil {
			t.Fatalf("Failed to send chunk: %v", err)
		}
	}
	writeJSON(t, conn, map[string]interface{}{"type": "listening_end"})

	answer := readJSON(t, conn)
	if answer["type"] != string(MessageTypeAnswer) {
		t.Fatalf("Expected answer message, got %v", answer)
	}

	answerer.mu.Lock()
	defer answerer.mu.Unlock()
	if len(answerer.audio) != 1 {
		t.Fatalf("Expected one question, got %d", len(answerer.audio))
	}
	if !bytes.Equal(answerer.audio[0], []byte("chunk-1|chunk-2|chunk-3")) {
		t.Errorf("Unexpected recording %q", answerer.audio[0])
	}
	if answerer.config.SampleRate != 16000 || answerer.config.Encoding != "LINEAR16" {
		t.Errorf("Unexpected audio config %+v", answerer.config)
	}
}

func TestHub_AskTextWithoutAudio(t *testing.T) {
	answerer := &stubAnswerer{}
	_, url := setupTestServer(t, answerer)
	conn := dial(t, url)

	writeJSON(t, conn, map[string]interface{}{"type": "ask_text", "text": "What is a verb?"})

	answer := readJSON(t, conn)
	if answer["type"] != string(MessageTypeAnswer) {
		t.Fatalf("Expected answer message, got %v", answer)
	}
	if answer["response"] != "Answer for user-1" {
		t.Errorf("Question must run as the authenticated user, got %v", answer["response"])
	}
	if answer["audio_available"] != false || answer["notice"] != usecase.AudioUnavailableNotice {
		t.Errorf("Expected degraded answer, got %v", answer)
	}

	writeJSON(t, conn, map[string]interface{}{"type": "ping", "data": "after"})
	pong := readJSON(t, conn)
	if pong["type"] != string(MessageTypePong) || pong["data"] != "after" {
		t.Errorf("Expected pong after the answer, got %v", pong)
	}
}

// delayedAnswerer answers "slow" after a delay and everything else at once,
// always with audio.
type delayedAnswerer struct {
	stubAnswerer
	delay time.Duration
}

func (d *delayedAnswerer) AskText(ctx context.Context, userID, question string) (*usecase.Answer, error) {
	if question == "slow" {
		time.Sleep(d.delay)
	}
	return &usecase.Answer{
		Transcript:     question,
		Response:       "Answer to " + question,
		AudioAvailable: true,
		AudioKey:       testAudioKey,
		AudioURL:       usecase.AudioURLPrefix + testAudioKey,
	}, nil
}

func TestHub_ConsecutiveQuestionsDoNotInterleave(t *testing.T) {
	_, url := setupTestServer(t, &delayedAnswerer{delay: 200 * time.Millisecond})
	conn := dial(t, url)

	writeJSON(t, conn, map[string]interface{}{"type": "ask_text", "text": "slow"})
	writeJSON(t, conn, map[string]interface{}{"type": "ask_text", "text": "fast"})

	for _, want := range []string{"slow", "fast"} {
		answer := readJSON(t, conn)
		if answer["type"] != string(MessageTypeAnswer) || answer["transcript"] != want {
			t.Fatalf("Expected answer to %q, got %v", want, answer)
		}

		start := readJSON(t, conn)
		if start["type"] != string(MessageTypeSpeakingStart) {
			t.Fatalf("Expected speaking_start after answer to %q, got %v", want, start)
		}

		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		messageType, audio, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("Failed to read audio: %v", err)
		}
		if messageType != websocket.BinaryMessage || string(audio) != "mp3-bytes" {
			t.Fatalf("Expected audio frame for %q, got type=%d payload=%q", want, messageType, audio)
		}

		end := readJSON(t, conn)
		if end["type"] != string(MessageTypeSpeakingEnd) {
			t.Fatalf("Expected speaking_end for %q, got %v", want, end)
		}
	}
}

func TestHub_Errors(t *testing.T) {
	answerer := &stubAnswerer{err: usecase.ErrTranscriptionUnavailable}
	_, url := setupTestServer(t, answerer)
	conn := dial(t, url)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("Failed to send: %v", err)
	}
	msg := readJSON(t, conn)
	if msg["type"] != string(MessageTypeError) || msg["error_code"] != ErrorCodeInvalidMessage {
		t.Errorf("Expected invalid_message error, got %v", msg)
	}

	writeJSON(t, conn, map[string]interface{}{"type": "listening_end"})
	msg = readJSON(t, conn)
	if msg["error_code"] != ErrorCodeInvalidMessage {
		t.Errorf("Expected error for listening_end without start, got %v", msg)
	}

	if err := conn.WriteMessage(websocket.BinaryMessage, []byte("noise")); err != nil {
		t.Fatalf("Failed to send audio: %v", err)
	}
	msg = readJSON(t, conn)
	if msg["error_code"] != ErrorCodeTranscriptionUnavailable {
		t.Errorf("Expected transcription error, got %v", msg)
	}
}

func TestHub_ClientLifecycle(t *testing.T) {
	hub, url := setupTestServer(t, &stubAnswerer{})
	conn := dial(t, url)

	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	waitFor(t, func() bool { return hub.ClientCount() == 0 })
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
