package tts

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/satriahrh/voicetutor/domain/repositories"
)

const (
	defaultGoogleTTSURL  = "https://translate.google.com/translate_tts"
	defaultGoogleMaxRune = 100
	googleNormalSpeed    = "1"
	googleSlowSpeed      = "0.24"
	googleUserAgent      = "Mozilla/5.0 (compatible; voicetutor)"
)

// GoogleTTSConfig holds configuration for the GoogleTranslateTTS adapter
type GoogleTTSConfig struct {
	BaseURL      string // Optional: translate_tts endpoint
	MaxChunkSize int    // Optional: maximum runes per request (default: 100)
	HTTPClient   *http.Client
}

// GoogleTranslateTTS synthesizes mp3 audio through the public Google Translate
// speech endpoint. Long text is split into chunks whose mp3 streams are
// concatenated, which yields a playable mp3.
type GoogleTranslateTTS struct {
	baseURL   string
	chunkSize int
	client    *http.Client
	logger    *zap.Logger
}

var _ repositories.TextToSpeech = (*GoogleTranslateTTS)(nil)

// NewGoogleTranslateTTS creates a new Google Translate TTS instance
func NewGoogleTranslateTTS(config GoogleTTSConfig, logger *zap.Logger) *GoogleTranslateTTS {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultGoogleTTSURL
	}
	chunkSize := config.MaxChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultGoogleMaxRune
	}
	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &GoogleTranslateTTS{
		baseURL:   baseURL,
		chunkSize: chunkSize,
		client:    client,
		logger:    logger,
	}
}

// Format implements repositories.TextToSpeech
func (g *GoogleTranslateTTS) Format() string {
	return "mp3"
}

// Synthesize implements repositories.TextToSpeech
func (g *GoogleTranslateTTS) Synthesize(ctx context.Context, text, language string, rate repositories.Rate) ([]byte, error) {
	chunks := splitText(text, g.chunkSize)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("text cannot be empty")
	}
	if language == "" {
		language = "en"
	}

	speed := googleNormalSpeed
	if rate == repositories.RateSlow {
		speed = googleSlowSpeed
	}

	var audio []byte
	for i, chunk := range chunks {
		part, err := g.fetch(ctx, chunk, language, speed, i, len(chunks))
		if err != nil {
			return nil, fmt.Errorf("failed to synthesize chunk %d/%d: %w", i+1, len(chunks), err)
		}
		audio = append(audio, part...)
	}

	g.logger.Debug("Synthesized speech with Google Translate",
		zap.String("language", language),
		zap.String("rate", string(rate)),
		zap.Int("chunks", len(chunks)),
		zap.Int("totalBytes", len(audio)))
	return audio, nil
}

func (g *GoogleTranslateTTS) fetch(ctx context.Context, chunk, language, speed string, idx, total int) ([]byte, error) {
	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("client", "tw-ob")
	q.Set("q", chunk)
	q.Set("tl", language)
	q.Set("ttsspeed", speed)
	q.Set("total", strconv.Itoa(total))
	q.Set("idx", strconv.Itoa(idx))
	q.Set("textlen", strconv.Itoa(len([]rune(chunk))))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("User-Agent", googleUserAgent)
	req.Header.Set("Referer", "https://translate.google.com/")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("google TTS returned error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio response: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("google TTS returned no audio")
	}
	return data, nil
}

// splitText breaks text into chunks of at most max runes, preferring sentence
// punctuation and then whitespace as break points.
func splitText(text string, max int) []string {
	var chunks []string
	rest := []rune(strings.TrimSpace(text))
	for len(rest) > 0 {
		if len(rest) <= max {
			chunks = append(chunks, string(rest))
			break
		}

		cut := -1
		for i := max; i > 0; i-- {
			if strings.ContainsRune(".!?;:,", rest[i-1]) {
				cut = i
				break
			}
		}
		if cut < 0 {
			for i := max; i > 0; i-- {
				if unicode.IsSpace(rest[i]) {
					cut = i
					break
				}
			}
		}
		if cut <= 0 {
			cut = max
		}

		if chunk := strings.TrimSpace(string(rest[:cut])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		rest = []rune(strings.TrimLeftFunc(string(rest[cut:]), unicode.IsSpace))
	}
	return chunks
}
