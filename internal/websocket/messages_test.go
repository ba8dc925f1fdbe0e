package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/satriahrh/voicetutor/usecase"
)

func TestMessageValidator_ValidateListeningStart(t *testing.T) {
	validator := NewMessageValidator()

	tests := []struct {
		name    string
		message string
		wantErr bool
	}{
		{
			name:    "defaults",
			message: `{"type": "listening_start"}`,
			wantErr: false,
		},
		{
			name:    "valid audio settings",
			message: `{"type": "listening_start", "sample_rate": 16000, "encoding": "LINEAR16", "language": "en-US"}`,
			wantErr: false,
		},
		{
			name:    "invalid sample rate",
			message: `{"type": "listening_start", "sample_rate": 100000}`,
			wantErr: true,
		},
		{
			name:    "invalid encoding",
			message: `{"type": "listening_start", "encoding": "invalid"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := validator.ValidateMessage([]byte(tt.message))
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateMessage() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMessageValidator_ValidateAskText(t *testing.T) {
	validator := NewMessageValidator()

	msg, err := validator.ValidateMessage([]byte(`{"type": "ask_text", "text": "What is a noun?"}`))
	if err != nil {
		t.Fatalf("ValidateMessage() error = %v", err)
	}
	askText, ok := msg.(*AskTextMessage)
	if !ok {
		t.Fatalf("Expected *AskTextMessage, got %T", msg)
	}
	if askText.Text != "What is a noun?" {
		t.Errorf("Expected text to be preserved, got %q", askText.Text)
	}

	if _, err := validator.ValidateMessage([]byte(`{"type": "ask_text", "text": "  "}`)); err == nil {
		t.Error("Expected error for blank text")
	}
}

func TestMessageValidator_ValidatePing(t *testing.T) {
	validator := NewMessageValidator()

	msg, err := validator.ValidateMessage([]byte(`{"type": "ping", "data": "hello"}`))
	if err != nil {
		t.Fatalf("ValidateMessage() error = %v", err)
	}
	ping, ok := msg.(*PingMessage)
	if !ok {
		t.Fatalf("Expected *PingMessage, got %T", msg)
	}
	if ping.Data != "hello" {
		t.Errorf("Expected data 'hello', got %s", ping.Data)
	}
}

func TestMessageValidator_InvalidMessages(t *testing.T) {
	validator := NewMessageValidator()

	tests := []struct {
		name    string
		message string
	}{
		{"invalid JSON", `{"type": "ping"`},
		{"missing type", `{"data": "x"}`},
		{"unsupported type", `{"type": "audio_chunk"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := validator.ValidateMessage([]byte(tt.message)); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestCreateErrorMessage(t *testing.T) {
	msg := CreateErrorMessage(ErrorCodeTranscriptionUnavailable, "Failed to transcribe audio", "details")

	if msg.Type != MessageTypeError {
		t.Errorf("Expected type %s, got %s", MessageTypeError, msg.Type)
	}
	if msg.Code != ErrorCodeTranscriptionUnavailable {
		t.Errorf("Expected code %s, got %s", ErrorCodeTranscriptionUnavailable, msg.Code)
	}
	if _, err := time.Parse(time.RFC3339, msg.Timestamp); err != nil {
		t.Errorf("Timestamp is not RFC3339: %v", err)
	}
}

func TestCreateAnswerMessage_JSON(t *testing.T) {
	answer := &usecase.Answer{
		Transcript:     "Why is the sky blue?",
		Response:       "Rayleigh scattering.",
		AudioAvailable: true,
		AudioKey:       "abc",
		AudioURL:       "/api/v1/audio/abc",
		AudioLocator:   "/var/cache/abc.mp3",
	}

	data, err := json.Marshal(CreateAnswerMessage(answer, 1500*time.Millisecond))
	if err != nil {
		t.Fatalf("Marshal error = %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}

	if decoded["type"] != string(MessageTypeAnswer) {
		t.Errorf("Expected type answer, got %v", decoded["type"])
	}
	if decoded["transcript"] != "Why is the sky blue?" {
		t.Errorf("Unexpected transcript %v", decoded["transcript"])
	}
	if decoded["audio_url"] != "/api/v1/audio/abc" {
		t.Errorf("Unexpected audio_url %v", decoded["audio_url"])
	}
	if decoded["processing_time_ms"] != float64(1500) {
		t.Errorf("Unexpected processing time %v", decoded["processing_time_ms"])
	}
	if _, leaked := decoded["AudioLocator"]; leaked {
		t.Error("Locator must not be sent to clients")
	}
}
