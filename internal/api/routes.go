package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/voicetutor/domain/repositories"
	"github.com/satriahrh/voicetutor/internal/audiocache"
	"github.com/satriahrh/voicetutor/internal/websocket"
	"github.com/satriahrh/voicetutor/usecase"
)

// maxAudioUpload bounds a recorded question sent over HTTP
const maxAudioUpload = 10 << 20

// Dependencies are the services the routes are served from
type Dependencies struct {
	Accounts      *usecase.AccountService
	Conversations *usecase.ConversationService
	Speech        *audiocache.Service
	Tokens        TokenValidator
	Hub           *websocket.Hub
	Logger        *zap.Logger
}

type handlers struct {
	Dependencies
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, deps Dependencies) {
	h := &handlers{Dependencies: deps}
	requireUser := RequireUser(deps.Tokens, deps.Logger)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "voicetutor",
		})
	})

	v1 := e.Group("/api/v1")

	// User Management APIs
	v1.POST("/users/register", h.userRegister)
	v1.POST("/users/login", h.userLogin)

	// Conversation APIs
	authed := v1.Group("", requireUser)
	authed.POST("/ask", h.ask)
	authed.POST("/ask/text", h.askText)
	authed.GET("/history", h.history)

	// Speech cache APIs
	authed.GET("/tts/cache", h.cacheStats)
	authed.DELETE("/tts/cache", h.cacheClear)
	authed.GET("/audio/:key", h.audio)

	e.GET("/ws", func(c echo.Context) error {
		return websocket.HandleWebSocketWithAuth(deps.Hub, c, userID(c), deps.Logger)
	}, requireUser)
}

func (h *handlers) userRegister(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	user, err := h.Accounts.Register(c.Request().Context(), req.Username, req.Password, req.ConfirmPassword)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, user)
}

func (h *handlers) userLogin(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	result, err := h.Accounts.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, LoginResponse{
		Token:            result.Token,
		User:             result.User,
		LastConversation: result.LastConversation,
	})
}

func (h *handlers) ask(c echo.Context) error {
	audio, err := readAudio(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_audio",
			Message: err.Error(),
		})
	}

	config := repositories.AudioConfig{
		Encoding: c.QueryParam("encoding"),
		Language: c.QueryParam("language"),
	}
	if v := c.QueryParam("sample_rate"); v != "" {
		rate, err := strconv.Atoi(v)
		if err != nil || rate <= 0 {
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_request",
				Message: "sample_rate must be a positive integer",
			})
		}
		config.SampleRate = rate
	}

	answer, err := h.Conversations.Ask(c.Request().Context(), userID(c), audio, config)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, answer)
}

// readAudio takes the recording from a multipart "audio" field or the raw body
func readAudio(c echo.Context) ([]byte, error) {
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		file, err := c.FormFile("audio")
		if err != nil {
			return nil, errors.New("multipart field \"audio\" is required")
		}
		src, err := file.Open()
		if err != nil {
			return nil, err
		}
		defer src.Close()
		return readLimited(src)
	}
	return readLimited(c.Request().Body)
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxAudioUpload+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxAudioUpload {
		return nil, errors.New("audio is too large")
	}
	if len(data) == 0 {
		return nil, errors.New("audio is required")
	}
	return data, nil
}

func (h *handlers) askText(c echo.Context) error {
	var req AskTextRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	answer, err := h.Conversations.AskText(c.Request().Context(), userID(c), req.Text)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, answer)
}

func (h *handlers) history(c echo.Context) error {
	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_request",
				Message: "limit must be a non-negative integer",
			})
		}
		limit = n
	}

	entries, err := h.Accounts.History(c.Request().Context(), userID(c), limit)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, HistoryResponse{Entries: entries})
}

func (h *handlers) cacheStats(c echo.Context) error {
	stats, err := h.Speech.Stats(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *handlers) cacheClear(c echo.Context) error {
	ctx := c.Request().Context()

	var (
		removed uint64
		err     error
	)
	if v := c.QueryParam("max_files"); v != "" {
		maxFiles, perr := strconv.ParseUint(v, 10, 64)
		if perr != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_request",
				Message: "max_files must be a non-negative integer",
			})
		}
		removed, err = h.Speech.ClearIfOver(ctx, maxFiles)
	} else {
		removed, err = h.Speech.Clear(ctx)
	}
	if err != nil {
		return h.fail(c, err)
	}

	h.Logger.Info("TTS cache cleared via API",
		zap.String("userID", userID(c)),
		zap.Uint64("removed", removed))
	return c.JSON(http.StatusOK, ClearCacheResponse{Removed: removed})
}

func (h *handlers) audio(c echo.Context) error {
	key := audiocache.Key(c.Param("key"))
	data, err := h.Speech.Artifact(c.Request().Context(), key)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Blob(http.StatusOK, contentType(h.Speech.Format()), data)
}

func contentType(format string) string {
	switch strings.ToLower(format) {
	case "mp3":
		return "audio/mpeg"
	case "wav":
		return "audio/wav"
	case "ogg", "opus":
		return "audio/ogg"
	default:
		return echo.MIMEOctetStream
	}
}

// fail maps domain errors to HTTP responses
func (h *handlers) fail(c echo.Context, err error) error {
	var (
		status = http.StatusInternalServerError
		resp   = ErrorResponse{Error: "internal_error", Message: "Internal server error"}
	)

	switch {
	case errors.Is(err, usecase.ErrInvalidInput):
		status, resp = http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: strings.TrimPrefix(err.Error(), usecase.ErrInvalidInput.Error()+": ")}
	case errors.Is(err, repositories.ErrUsernameTaken):
		status, resp = http.StatusConflict, ErrorResponse{Error: "username_taken", Message: "Username already exists"}
	case errors.Is(err, repositories.ErrInvalidCredentials):
		status, resp = http.StatusUnauthorized, ErrorResponse{Error: "invalid_credentials", Message: "Invalid username or password"}
	case errors.Is(err, usecase.ErrTranscriptionUnavailable):
		status, resp = http.StatusUnprocessableEntity, ErrorResponse{Error: "transcription_unavailable", Message: "Failed to transcribe audio. Please try again."}
	case errors.Is(err, usecase.ErrCompletionUnavailable):
		status, resp = http.StatusBadGateway, ErrorResponse{Error: "completion_unavailable", Message: "Failed to get response from assistant."}
	case errors.Is(err, audiocache.ErrNotFound):
		status, resp = http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Audio not found"}
	default:
		h.Logger.Error("Request failed",
			zap.String("path", c.Path()),
			zap.Error(err))
	}
	return c.JSON(status, resp)
}
