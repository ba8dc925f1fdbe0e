package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type credentials struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password,omitempty"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type serverMessage struct {
	Type           string `json:"type"`
	Transcript     string `json:"transcript"`
	Response       string `json:"response"`
	AudioAvailable bool   `json:"audio_available"`
	AudioKey       string `json:"audio_key"`
	Format         string `json:"format"`
	Notice         string `json:"notice"`
	Code           string `json:"error_code"`
	Message        string `json:"message"`
}

func run(ctx context.Context, opts *options, out io.Writer, logger *zap.Logger) error {
	if opts.register {
		creds := credentials{Username: opts.username, Password: opts.password, ConfirmPassword: opts.password}
		if err := postJSON(ctx, opts.server+"/api/v1/users/register", creds, http.StatusCreated, nil); err != nil {
			return fmt.Errorf("failed to register: %w", err)
		}
		logger.Info("Registered account", zap.String("username", opts.username))
	}

	var login loginResponse
	creds := credentials{Username: opts.username, Password: opts.password}
	if err := postJSON(ctx, opts.server+"/api/v1/users/login", creds, http.StatusOK, &login); err != nil {
		return fmt.Errorf("failed to log in: %w", err)
	}

	wsURL, err := websocketURL(opts.server)
	if err != nil {
		return err
	}
	headers := http.Header{}
	headers.Add("Authorization", "Bearer "+login.Token)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", wsURL, err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}()

	if opts.text != "" {
		err = conn.WriteJSON(map[string]interface{}{"type": "ask_text", "text": opts.text})
	} else {
		err = sendRecording(conn, opts, logger)
	}
	if err != nil {
		return err
	}

	return receive(conn, opts.outDir, out, logger)
}

func postJSON(ctx context.Context, url string, body interface{}, want int, into interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != want {
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	if into != nil {
		return json.Unmarshal(respBody, into)
	}
	return nil
}

func websocketURL(server string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String(), nil
}

// sendRecording streams the file as binary frames between listening_start and listening_end
func sendRecording(conn *websocket.Conn, opts *options, logger *zap.Logger) error {
	audio, err := os.ReadFile(opts.audioPath)
	if err != nil {
		return fmt.Errorf("failed to read audio: %w", err)
	}

	start := map[string]interface{}{"type": "listening_start"}
	if opts.rate > 0 {
		start["sample_rate"] = opts.rate
	}
	if opts.encoding != "" {
		start["encoding"] = opts.encoding
	}
	if err := conn.WriteJSON(start); err != nil {
		return err
	}

	chunkSize := opts.chunkSize
	if chunkSize <= 0 {
		chunkSize = 32 * 1024
	}
	chunks := 0
	for offset := 0; offset < len(audio); offset += chunkSize {
		end := min(offset+chunkSize, len(audio))
		if err := conn.WriteMessage(websocket.BinaryMessage, audio[offset:end]); err != nil {
			return fmt.Errorf("failed to send audio chunk %d: %w", chunks, err)
		}
		chunks++
	}
	logger.Info("Sent recording",
		zap.String("path", opts.audioPath),
		zap.Int("bytes", len(audio)),
		zap.Int("chunks", chunks))

	return conn.WriteJSON(map[string]interface{}{"type": "listening_end"})
}

// receive prints the answer and saves its audio, returning once the exchange is over
func receive(conn *websocket.Conn, outDir string, out io.Writer, logger *zap.Logger) error {
	var (
		current serverMessage
		audio   []byte
	)
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("connection closed: %w", err)
		}

		if messageType == websocket.BinaryMessage {
			audio = append(audio, data...)
			continue
		}

		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warn("Ignoring malformed message", zap.Error(err))
			continue
		}

		switch msg.Type {
		case "answer":
			current = msg
			fmt.Fprintf(out, "You asked: %s\nAssistant: %s\n", msg.Transcript, msg.Response)
			if !msg.AudioAvailable {
				if msg.Notice != "" {
					fmt.Fprintln(out, msg.Notice)
				}
				return nil
			}
		case "speaking_start":
			audio = audio[:0]
			if msg.Format != "" {
				current.Format = msg.Format
			}
		case "speaking_end":
			path, err := saveAudio(outDir, current, audio)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Audio saved to %s\n", path)
			return nil
		case "error":
			return errors.New(msg.Message)
		default:
			logger.Debug("Ignoring message", zap.String("type", msg.Type))
		}
	}
}

func saveAudio(dir string, answer serverMessage, audio []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create audio directory: %w", err)
	}
	format := answer.Format
	if format == "" {
		format = "mp3"
	}
	name := answer.AudioKey
	if name == "" {
		name = fmt.Sprintf("%d", time.Now().Unix())
	}
	path := filepath.Join(dir, name+"."+format)
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return "", fmt.Errorf("failed to save audio: %w", err)
	}
	return path, nil
}
