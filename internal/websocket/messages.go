package websocket

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/satriahrh/voicetutor/usecase"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Supported message types
const (
	MessageTypeListeningStart MessageType = "listening_start"
	MessageTypeListeningEnd   MessageType = "listening_end"
	MessageTypeAskText        MessageType = "ask_text"
	MessageTypePing           MessageType = "ping"
	MessageTypePong           MessageType = "pong"
	MessageTypeAnswer         MessageType = "answer"
	MessageTypeSpeakingStart  MessageType = "speaking_start"
	MessageTypeSpeakingEnd    MessageType = "speaking_end"
	MessageTypeError          MessageType = "error"
)

// Error codes sent in ErrorMessage
const (
	ErrorCodeInvalidMessage           = "invalid_message"
	ErrorCodeTranscriptionUnavailable = "transcription_unavailable"
	ErrorCodeCompletionUnavailable    = "completion_unavailable"
	ErrorCodeAudioTooLarge            = "audio_too_large"
	ErrorCodeInternal                 = "internal_error"
	ErrorCodeBusy                     = "busy"
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp,omitempty"`
	MessageID string      `json:"message_id,omitempty"`
}

// ListeningStartMessage opens a recording; binary frames that follow are
// buffered until ListeningEndMessage.
type ListeningStartMessage struct {
	BaseMessage
	SampleRate int    `json:"sample_rate,omitempty"`
	Encoding   string `json:"encoding,omitempty"`
	Language   string `json:"language,omitempty"`
}

// ListeningEndMessage closes a recording and submits it as a question
type ListeningEndMessage struct {
	BaseMessage
}

// AskTextMessage submits a typed question
type AskTextMessage struct {
	BaseMessage
	Text string `json:"text"`
}

// PingMessage represents a ping message for connection health check
type PingMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// PongMessage represents a pong response
type PongMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// AnswerMessage carries the answer to a question
type AnswerMessage struct {
	BaseMessage
	usecase.Answer
	ProcessingTime int64 `json:"processing_time_ms"`
}

// SpeakingMessage brackets the binary audio frame of an answer
type SpeakingMessage struct {
	BaseMessage
	AudioKey string `json:"audio_key"`
	Format   string `json:"format,omitempty"`
	Size     int    `json:"size,omitempty"`
}

// ErrorMessage represents an error response
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

var validEncodings = map[string]bool{
	"linear16": true, "pcm": true, "wav": true, "mp3": true,
	"ogg_opus": true, "opus": true, "webm_opus": true, "flac": true,
}

// MessageValidator provides validation for WebSocket messages
type MessageValidator struct{}

// NewMessageValidator creates a new message validator
func NewMessageValidator() *MessageValidator {
	return &MessageValidator{}
}

// ValidateMessage parses an incoming text frame into its typed message
func (v *MessageValidator) ValidateMessage(messageBytes []byte) (interface{}, error) {
	var base BaseMessage
	if err := json.Unmarshal(messageBytes, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	switch base.Type {
	case MessageTypeListeningStart:
		var msg ListeningStartMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid listening start message: %w", err)
		}
		if err := v.validateListeningStart(&msg); err != nil {
			return nil, err
		}
		return &msg, nil

	case MessageTypeListeningEnd:
		return &ListeningEndMessage{BaseMessage: base}, nil

	case MessageTypeAskText:
		var msg AskTextMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid ask text message: %w", err)
		}
		if strings.TrimSpace(msg.Text) == "" {
			return nil, fmt.Errorf("text is required")
		}
		return &msg, nil

	case MessageTypePing:
		var msg PingMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid ping message: %w", err)
		}
		return &msg, nil

	case "":
		return nil, fmt.Errorf("message type is required")

	default:
		return nil, fmt.Errorf("unsupported message type: %s", base.Type)
	}
}

func (v *MessageValidator) validateListeningStart(msg *ListeningStartMessage) error {
	if msg.SampleRate != 0 && (msg.SampleRate < 8000 || msg.SampleRate > 48000) {
		return fmt.Errorf("sample_rate must be between 8000 and 48000")
	}
	if msg.Encoding != "" && !validEncodings[strings.ToLower(msg.Encoding)] {
		return fmt.Errorf("unsupported encoding: %s", msg.Encoding)
	}
	return nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// CreateErrorMessage creates a standardized error message
func CreateErrorMessage(code, message, details string) *ErrorMessage {
	return &ErrorMessage{
		BaseMessage: BaseMessage{Type: MessageTypeError, Timestamp: now()},
		Code:        code,
		Message:     message,
		Details:     details,
	}
}

// CreatePongMessage creates a pong response message
func CreatePongMessage(data string) *PongMessage {
	return &PongMessage{
		BaseMessage: BaseMessage{Type: MessageTypePong, Timestamp: now()},
		Data:        data,
	}
}

// CreateAnswerMessage wraps an answer for the wire
func CreateAnswerMessage(answer *usecase.Answer, elapsed time.Duration) *AnswerMessage {
	return &AnswerMessage{
		BaseMessage:    BaseMessage{Type: MessageTypeAnswer, Timestamp: now()},
		Answer:         *answer,
		ProcessingTime: elapsed.Milliseconds(),
	}
}

// CreateSpeakingMessage creates a speaking_start or speaking_end message
func CreateSpeakingMessage(t MessageType, key, format string, size int) *SpeakingMessage {
	return &SpeakingMessage{
		BaseMessage: BaseMessage{Type: t, Timestamp: now()},
		AudioKey:    key,
		Format:      format,
		Size:        size,
	}
}
