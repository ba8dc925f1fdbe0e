package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration of the voice tutor server
type Config struct {
	Server  ServerConfig
	Logging LoggingConfig
	Cache   CacheConfig
	TTS     TTSConfig
	LLM     LLMConfig
	STT     STTConfig
	Users   UserStoreConfig
	Auth    AuthConfig
	DevMode bool
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int
	ShutdownTimeout time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// CacheConfig holds TTS audio cache configuration
type CacheConfig struct {
	Dir           string
	Backend       string // "file" or "bolt"
	BoltPath      string
	MaxFiles      int           // 0 disables threshold clearing
	CleanInterval time.Duration // 0 checks the threshold at startup only
}

// TTSConfig holds speech synthesis configuration
type TTSConfig struct {
	Provider string // "gtts", "elevenlabs" or "mock"
	Timeout  time.Duration
	Language string
}

// LLMConfig holds language model configuration
type LLMConfig struct {
	Providers    []string
	GroqAPIKey   string
	GroqModel    string
	GeminiAPIKey string
	GeminiModel  string
}

// STTConfig holds speech-to-text configuration
type STTConfig struct {
	Providers    []string
	WhisperURL   string
	WhisperModel string
	Language     string
	SampleRate   int
}

// UserStoreConfig holds user and history storage configuration
type UserStoreConfig struct {
	Backend       string // "sqlite", "mongo" or "memory"
	DBPath        string
	MongoURI      string
	MongoDatabase string
}

// AuthConfig holds token configuration
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// Load reads an optional .env file and builds the configuration from the
// environment, applying defaults for unset values.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from the current environment only
func FromEnv() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Port:            getEnvInt("PORT", 8080),
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnvString("LOG_LEVEL", "info"),
			Format: getEnvString("LOG_FORMAT", "console"),
		},
		Cache: cacheFromEnv(),
		TTS: TTSConfig{
			Provider: strings.ToLower(getEnvString("TTS_PROVIDER", "gtts")),
			Timeout:  getEnvDuration("TTS_TIMEOUT", 30*time.Second),
			Language: getEnvString("TTS_LANGUAGE", "en"),
		},
		LLM: LLMConfig{
			Providers:    getEnvList("LLM_PROVIDERS", []string{"groq", "gemini"}),
			GroqAPIKey:   os.Getenv("GROQ_API_KEY"),
			GroqModel:    getEnvString("GROQ_MODEL", "llama-3.1-8b-instant"),
			GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
			GeminiModel:  getEnvString("GEMINI_MODEL", "gemini-2.0-flash"),
		},
		STT: STTConfig{
			Providers:    getEnvList("STT_PROVIDERS", []string{"whisper", "google"}),
			WhisperURL:   getEnvString("WHISPER_URL", "https://api.groq.com/openai/v1"),
			WhisperModel: getEnvString("WHISPER_MODEL", "whisper-large-v3"),
			Language:     getEnvString("STT_LANGUAGE", "en-US"),
			SampleRate:   getEnvInt("STT_SAMPLE_RATE", 16000),
		},
		Users: UserStoreConfig{
			Backend:       strings.ToLower(getEnvString("USER_STORE", "sqlite")),
			DBPath:        getEnvString("DB_PATH", "app.db"),
			MongoURI:      os.Getenv("MONGODB_URI"),
			MongoDatabase: getEnvString("MONGODB_DATABASE", "voicetutor"),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("JWT_SECRET"),
			TokenTTL:  getEnvDuration("JWT_TTL", 7*24*time.Hour),
		},
		DevMode: getEnvBool("DEV_MODE", false),
	}

	if config.DevMode && config.Auth.JWTSecret == "" {
		config.Auth.JWTSecret = "dev-secret"
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// LoadCache reads only the TTS cache settings, for tools that never start the server
func LoadCache() (CacheConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return CacheConfig{}, fmt.Errorf("failed to load .env file: %w", err)
	}
	cache := cacheFromEnv()
	if err := cache.validate(); err != nil {
		return CacheConfig{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cache, nil
}

func cacheFromEnv() CacheConfig {
	return CacheConfig{
		Dir:           getEnvString("TTS_CACHE_DIR", "tts_cache"),
		Backend:       strings.ToLower(getEnvString("TTS_CACHE_BACKEND", "file")),
		BoltPath:      getEnvString("TTS_CACHE_BOLT_PATH", "tts_cache.bolt"),
		MaxFiles:      getEnvInt("TTS_CACHE_MAX_FILES", 0),
		CleanInterval: getEnvDuration("TTS_CACHE_CLEAN_INTERVAL", 0),
	}
}

func (c CacheConfig) validate() error {
	switch c.Backend {
	case "file", "bolt":
	default:
		return fmt.Errorf("unknown TTS cache backend: %q", c.Backend)
	}
	if c.MaxFiles < 0 {
		return fmt.Errorf("TTS cache max files must not be negative: %d", c.MaxFiles)
	}
	if c.CleanInterval < 0 {
		return fmt.Errorf("TTS cache clean interval must not be negative: %s", c.CleanInterval)
	}
	return nil
}

// validate checks if the configuration is valid
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if err := c.Cache.validate(); err != nil {
		return err
	}

	switch c.TTS.Provider {
	case "gtts", "elevenlabs", "mock":
	default:
		return fmt.Errorf("unknown TTS provider: %q", c.TTS.Provider)
	}
	if c.TTS.Timeout <= 0 {
		return fmt.Errorf("TTS timeout must be positive: %s", c.TTS.Timeout)
	}

	switch c.Users.Backend {
	case "sqlite", "memory":
	case "mongo":
		if c.Users.MongoURI == "" {
			return fmt.Errorf("MONGODB_URI must be provided for the mongo user store")
		}
	default:
		return fmt.Errorf("unknown user store: %q", c.Users.Backend)
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be provided")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.ToLower(strings.TrimSpace(item)); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
