package websocket

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/voicetutor/domain/repositories"
	"github.com/satriahrh/voicetutor/internal/audiocache"
	"github.com/satriahrh/voicetutor/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum frame size allowed from peer.
	maxMessageSize = 512 * 1024

	// Maximum size of one buffered recording.
	maxRecordingSize = 10 * 1024 * 1024

	// Time allowed to answer one question.
	answerTimeout = 90 * time.Second

	// Questions a client may queue while an earlier one is being answered.
	maxPendingQuestions = 4
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Answerer answers recorded or typed questions for a user
type Answerer interface {
	Ask(ctx context.Context, userID string, audio []byte, config repositories.AudioConfig) (*usecase.Answer, error)
	AskText(ctx context.Context, userID, question string) (*usecase.Answer, error)
}

// ArtifactReader loads cached audio by key
type ArtifactReader interface {
	Artifact(ctx context.Context, key audiocache.Key) ([]byte, error)
	Format() string
}

// Hub maintains the set of active clients.
type Hub struct {
	// Registered clients by client ID.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// stopped is closed when Run returns.
	stopped chan struct{}

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	answerer  Answerer
	artifacts ArtifactReader
	validator *MessageValidator

	logger *zap.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(answerer Answerer, artifacts ArtifactReader, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stopped:    make(chan struct{}),
		answerer:   answerer,
		artifacts:  artifacts,
		validator:  NewMessageValidator(),
		logger:     logger,
	}
}

// Run starts the hub's main loop and returns when ctx is done
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()
			h.logger.Info("Client registered",
				zap.String("clientID", client.id),
				zap.String("userID", client.userID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				client.close()
			}
			h.mu.Unlock()
			h.logger.Info("Client unregistered",
				zap.String("clientID", client.id),
				zap.String("userID", client.userID))

		case <-ctx.Done():
			h.mu.Lock()
			for id, client := range h.clients {
				delete(h.clients, id)
				client.close()
			}
			h.mu.Unlock()
			return
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// WriteData is one outbound frame
type WriteData struct {
	// Type is websocket.TextMessage or websocket.BinaryMessage.
	Type    int
	Payload []byte
}

// question runs one queued question against the answerer
type question func(ctx context.Context) (*usecase.Answer, error)

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	// Questions are answered one at a time, in arrival order, so the frames
	// of one reply are never interleaved with another.
	questions chan question

	// done is closed once the client is unregistered.
	done      chan struct{}
	closeOnce sync.Once

	id     string
	userID string

	logger *zap.Logger

	mutex       sync.Mutex
	listening   bool
	recording   bytes.Buffer
	audioConfig repositories.AudioConfig
}

// HandleWebSocketWithAuth upgrades the request for an already authenticated user
func HandleWebSocketWithAuth(hub *Hub, c echo.Context, userID string, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	id := uuid.NewString()
	client := &Client{
		hub:    hub,
		conn:   conn,
		send:      make(chan WriteData, 256),
		questions: make(chan question, maxPendingQuestions),
		done:      make(chan struct{}),
		id:        id,
		userID:    userID,
		logger:    logger.With(zap.String("clientID", id), zap.String("userID", userID)),
	}

	select {
	case hub.register <- client:
	case <-hub.stopped:
		conn.Close()
		return nil
	}

	go client.writePump()
	go client.answerPump()
	go client.readPump()

	return nil
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// readPump pumps messages from the websocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.stopped:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		switch messageType {
		case websocket.TextMessage:
			c.processMessage(message)
		case websocket.BinaryMessage:
			c.processBinary(message)
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// answerPump answers queued questions until the client is gone
func (c *Client) answerPump() {
	for {
		select {
		case q := <-c.questions:
			c.answer(q)
		case <-c.done:
			return
		}
	}
}

// enqueueQuestion queues q for answerPump, rejecting it when the queue is full
func (c *Client) enqueueQuestion(q question) {
	select {
	case c.questions <- q:
	case <-c.done:
	default:
		c.logger.Warn("Question queue full")
		c.sendError(ErrorCodeBusy, "too many pending questions", "")
	}
}

// enqueue queues a frame unless the client is gone
func (c *Client) enqueue(data WriteData) bool {
	select {
	case c.send <- data:
		return true
	case <-c.done:
		return false
	}
}

func (c *Client) sendJSON(v interface{}) bool {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to encode message", zap.Error(err))
		return false
	}
	return c.enqueue(WriteData{Type: websocket.TextMessage, Payload: payload})
}

func (c *Client) sendError(code, message, details string) {
	c.sendJSON(CreateErrorMessage(code, message, details))
}

// processMessage handles a JSON control message
func (c *Client) processMessage(message []byte) {
	msg, err := c.hub.validator.ValidateMessage(message)
	if err != nil {
		c.logger.Warn("Rejected message", zap.Error(err))
		c.sendError(ErrorCodeInvalidMessage, "invalid message", err.Error())
		return
	}

	switch m := msg.(type) {
	case *ListeningStartMessage:
		c.handleListeningStart(m)
	case *ListeningEndMessage:
		c.handleListeningEnd()
	case *AskTextMessage:
		c.enqueueQuestion(func(ctx context.Context) (*usecase.Answer, error) {
			return c.hub.answerer.AskText(ctx, c.userID, m.Text)
		})
	case *PingMessage:
		c.sendJSON(CreatePongMessage(m.Data))
	}
}

// processBinary buffers audio while listening; otherwise a binary frame is a
// complete recorded question
func (c *Client) processBinary(data []byte) {
	c.mutex.Lock()
	if !c.listening {
		c.mutex.Unlock()
		c.logger.Debug("Received recorded question", zap.Int("size", len(data)))
		c.ask(data, repositories.AudioConfig{})
		return
	}
	defer c.mutex.Unlock()

	if c.recording.Len()+len(data) > maxRecordingSize {
		c.listening = false
		c.recording.Reset()
		c.sendError(ErrorCodeAudioTooLarge, "recording is too large", "")
		return
	}
	c.recording.Write(data)
}

func (c *Client) handleListeningStart(msg *ListeningStartMessage) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.listening = true
	c.recording.Reset()
	c.audioConfig = repositories.AudioConfig{
		SampleRate: msg.SampleRate,
		Encoding:   msg.Encoding,
		Language:   msg.Language,
	}
	c.logger.Info("Listening started",
		zap.Int("sampleRate", msg.SampleRate),
		zap.String("encoding", msg.Encoding))
}

func (c *Client) handleListeningEnd() {
	c.mutex.Lock()
	if !c.listening {
		c.mutex.Unlock()
		c.sendError(ErrorCodeInvalidMessage, "not listening", "")
		return
	}
	audio := bytes.Clone(c.recording.Bytes())
	config := c.audioConfig
	c.listening = false
	c.recording.Reset()
	c.mutex.Unlock()

	c.logger.Info("Listening ended", zap.Int("audioSize", len(audio)))
	c.ask(audio, config)
}

func (c *Client) ask(audio []byte, config repositories.AudioConfig) {
	c.enqueueQuestion(func(ctx context.Context) (*usecase.Answer, error) {
		return c.hub.answerer.Ask(ctx, c.userID, audio, config)
	})
}

// answer runs one question and streams the reply and its audio to the peer
func (c *Client) answer(run question) {
	ctx, cancel := context.WithTimeout(context.Background(), answerTimeout)
	defer cancel()

	start := time.Now()
	answer, err := run(ctx)
	if err != nil {
		c.logger.Warn("Question failed", zap.Error(err))
		switch {
		case errors.Is(err, usecase.ErrTranscriptionUnavailable):
			c.sendError(ErrorCodeTranscriptionUnavailable, "Failed to transcribe audio. Please try again.", "")
		case errors.Is(err, usecase.ErrCompletionUnavailable):
			c.sendError(ErrorCodeCompletionUnavailable, "Failed to get response from assistant.", "")
		case errors.Is(err, usecase.ErrInvalidInput):
			c.sendError(ErrorCodeInvalidMessage, "invalid question", err.Error())
		default:
			c.sendError(ErrorCodeInternal, "internal error", "")
		}
		return
	}

	if !c.sendJSON(CreateAnswerMessage(answer, time.Since(start))) || !answer.AudioAvailable {
		return
	}

	audio, err := c.hub.artifacts.Artifact(ctx, audiocache.Key(answer.AudioKey))
	if err != nil {
		c.logger.Warn("Could not play generated audio", zap.String("cacheKey", answer.AudioKey), zap.Error(err))
		return
	}

	format := c.hub.artifacts.Format()
	if !c.sendJSON(CreateSpeakingMessage(MessageTypeSpeakingStart, answer.AudioKey, format, len(audio))) {
		return
	}
	if !c.enqueue(WriteData{Type: websocket.BinaryMessage, Payload: audio}) {
		return
	}
	c.sendJSON(CreateSpeakingMessage(MessageTypeSpeakingEnd, answer.AudioKey, format, len(audio)))
}
