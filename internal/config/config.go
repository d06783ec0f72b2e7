package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all environment-driven settings.
type Config struct {
	HTTPPort        string
	DBPath          string
	PresetsPath     string
	EnableWatcher   bool
	JournalSize     int
	JournalWorkers  int
	HistoryLimit    int
	EventBufferSize int
	WebhookURL      string
	WebhookName     string
	Environment     string
}

// Presets is the optional YAML file of subscriber names seeded at
// startup (and re-read on change when the watcher is enabled).
type Presets struct {
	Subscribers []string `yaml:"subscribers"`
}

// Load reads configuration from environment and optional .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		HTTPPort:        getenv("PORT", "8080"),
		DBPath:          getenv("DB_PATH", "./busboard.db"),
		PresetsPath:     getenv("PRESETS_PATH", ""),
		EnableWatcher:   getenvBool("ENABLE_WATCHER", true),
		JournalSize:     clampInt(getenvInt("JOURNAL_SIZE", 256), 16, 4096),
		JournalWorkers:  clampInt(getenvInt("JOURNAL_WORKERS", 1), 1, 8),
		HistoryLimit:    clampInt(getenvInt("HISTORY_LIMIT", 100), 10, 1000),
		EventBufferSize: clampInt(getenvInt("EVENT_BUFFER_SIZE", 64), 16, 512),
		WebhookURL:      getenv("WEBHOOK_URL", ""),
		WebhookName:     getenv("WEBHOOK_NAME", "webhook"),
		Environment:     getenv("ENVIRONMENT", "local"),
	}

	log.Printf("config: port=%s db=%s presets=%s env=%s", cfg.HTTPPort, cfg.DBPath, cfg.PresetsPath, cfg.Environment)
	return cfg
}

// LoadPresets parses the presets YAML file. An empty path or a missing
// file yields empty presets, not an error.
func LoadPresets(path string) (Presets, error) {
	if path == "" {
		return Presets{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Presets{}, nil
		}
		return Presets{}, fmt.Errorf("read presets: %w", err)
	}
	var p Presets
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Presets{}, fmt.Errorf("parse presets: %w", err)
	}
	return p, nil
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// Now returns a utc time helper for deterministic timestamps.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
