// Package config loads spotvec settings from the environment.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/dshills/spotvec/pkg/types"
)

const (
	DefaultAPIURL      = "https://api.spotify.com/v1/"
	DefaultAccountsURL = "https://accounts.spotify.com"
	DefaultPort        = "8000"
	DefaultGeminiModel = "gemini-2.0-flash"
)

type Config struct {
	Spotify    SpotifyConfig
	Store      StoreConfig
	Embeddings EmbeddingConfig
	Gemini     GeminiConfig
	Server     ServerConfig
	Logging    LoggingConfig
}

type SpotifyConfig struct {
	ClientID      string
	ClientSecret  string
	RedirectURI   string
	APIURL        string
	AccountsURL   string
	PlaylistLimit int
	EnrichDelay   time.Duration
}

type StoreConfig struct {
	DBPath          string
	BatchSize       int
	PreserveOnStart bool
}

type EmbeddingConfig struct {
	Provider     string
	JinaAPIKey   string
	OpenAIAPIKey string
	GeminiAPIKey string
}

type GeminiConfig struct {
	Enabled bool
	APIKey  string
	Model   string
}

type ServerConfig struct {
	Port      string
	SentryDSN string
	Release   string
}

type LoggingConfig struct {
	Level string
	File  string
}

// Load reads a .env file when one exists and builds the configuration from
// the environment. A missing .env file is not an error.
func Load() (*Config, bool) {
	loaded := godotenv.Load() == nil
	return FromEnv(), loaded
}

// FromEnv builds the configuration from the current environment only.
func FromEnv() *Config {
	geminiKey := os.Getenv("GEMINI_API_KEY")
	return &Config{
		Spotify: SpotifyConfig{
			ClientID:      os.Getenv("SPOTIFY_CLIENT_ID"),
			ClientSecret:  os.Getenv("SPOTIFY_CLIENT_SECRET"),
			RedirectURI:   os.Getenv("SPOTIFY_REDIRECT_URI"),
			APIURL:        withTrailingSlash(getString("SPOTIFY_API_URL", DefaultAPIURL)),
			AccountsURL:   strings.TrimRight(getString("SPOTIFY_ACCOUNTS_URL", DefaultAccountsURL), "/"),
			PlaylistLimit: getPlaylistLimit(),
			EnrichDelay:   getEnrichDelay(),
		},
		Store: StoreConfig{
			DBPath:          getDBPath(),
			BatchSize:       getBatchSize(),
			PreserveOnStart: os.Getenv("STORE_PRESERVE_ON_START") == "true",
		},
		Embeddings: EmbeddingConfig{
			Provider:     strings.ToLower(os.Getenv("SPOTVEC_EMBEDDING_PROVIDER")),
			JinaAPIKey:   os.Getenv("JINA_API_KEY"),
			OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),
			GeminiAPIKey: geminiKey,
		},
		Gemini: GeminiConfig{
			Enabled: os.Getenv("GEMINI_ENABLED") == "true" && geminiKey != "",
			APIKey:  geminiKey,
			Model:   getString("GEMINI_MODEL", DefaultGeminiModel),
		},
		Server: ServerConfig{
			Port:      getString("PORT", DefaultPort),
			SentryDSN: os.Getenv("SENTRY_DSN"),
			Release:   os.Getenv("RELEASE"),
		},
		Logging: LoggingConfig{
			Level: getString("LOG_LEVEL", "info"),
			File:  os.Getenv("LOG_FILE"),
		},
	}
}

// RequireExchange verifies the three values a code exchange needs.
func (s SpotifyConfig) RequireExchange() error {
	return requireSet(map[string]string{
		"SPOTIFY_CLIENT_ID":     s.ClientID,
		"SPOTIFY_CLIENT_SECRET": s.ClientSecret,
		"SPOTIFY_REDIRECT_URI":  s.RedirectURI,
	})
}

// RequireRefresh verifies the client credentials a refresh needs.
func (s SpotifyConfig) RequireRefresh() error {
	return requireSet(map[string]string{
		"SPOTIFY_CLIENT_ID":     s.ClientID,
		"SPOTIFY_CLIENT_SECRET": s.ClientSecret,
	})
}

// EnvStatus reports which Spotify settings are present without exposing
// secret values.
func (s SpotifyConfig) EnvStatus() map[string]string {
	status := func(v string) string {
		if v == "" {
			return "MISSING"
		}
		return "SET"
	}
	redirect := s.RedirectURI
	if redirect == "" {
		redirect = "MISSING"
	}
	return map[string]string{
		"SPOTIFY_CLIENT_ID":     status(s.ClientID),
		"SPOTIFY_CLIENT_SECRET": status(s.ClientSecret),
		"SPOTIFY_REDIRECT_URI":  redirect,
	}
}

func requireSet(values map[string]string) error {
	var missing []string
	for _, name := range []string{"SPOTIFY_CLIENT_ID", "SPOTIFY_CLIENT_SECRET", "SPOTIFY_REDIRECT_URI"} {
		if v, ok := values[name]; ok && v == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &types.ConfigurationError{Missing: missing}
	}
	return nil
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getPlaylistLimit() int {
	limitStr := os.Getenv("SPOTIFY_PLAYLIST_LIMIT")
	if limitStr == "" {
		return 200
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		return 200
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}

func getEnrichDelay() time.Duration {
	delayStr := os.Getenv("ENRICH_DELAY_MS")
	if delayStr == "" {
		return 100 * time.Millisecond
	}
	delay, err := strconv.Atoi(delayStr)
	if err != nil || delay < 0 {
		return 100 * time.Millisecond
	}
	if delay > 5000 {
		delay = 5000
	}
	return time.Duration(delay) * time.Millisecond
}

func getBatchSize() int {
	sizeStr := os.Getenv("STORE_BATCH_SIZE")
	if sizeStr == "" {
		return 100
	}
	size, err := strconv.Atoi(sizeStr)
	if err != nil || size <= 0 {
		return 100
	}
	if size > 100 {
		return 100 // embedding providers cap a batch at 100 texts
	}
	return size
}

func getDBPath() string {
	if p := os.Getenv("SPOTVEC_DB_PATH"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "spotvec.db"
	}
	return filepath.Join(home, ".spotvec", "spotvec.db")
}

func withTrailingSlash(u string) string {
	if strings.HasSuffix(u, "/") {
		return u
	}
	return u + "/"
}
