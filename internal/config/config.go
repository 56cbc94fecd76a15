// Package config handles application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"content_scout/internal/model"
	"content_scout/internal/planner"
)

// minXResults is the smallest page recent search accepts.
const minXResults = 10

// Platform holds the credentials and read budget of one platform.
type Platform struct {
	Token        string
	DailyLimit   int
	MonthlyLimit int
}

// Config holds the application configuration.
type Config struct {
	GitHub  Platform
	YouTube Platform
	X       Platform

	MaxQueriesPerScan  int
	MaxResultsPerQuery int
	CacheTTL           time.Duration
	ScanInterval       time.Duration
	MinScore           int
	ExcludedTiers      []model.QualityTier

	DatabasePath   string
	VocabularyPath string
	LogLevel       string
	MetricsAddr    string

	TelegramBotToken string
	TelegramChatID   int64
	NotifyMinTier    model.QualityTier
	AllowedUsers     []int64
}

// LoadEnvFiles loads .env and .env.local when present. Values already set in
// the process environment win.
func LoadEnvFiles() ([]string, error) {
	var loaded []string
	for _, file := range []string{".env.local", ".env"} {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return loaded, fmt.Errorf("load %s: %w", file, err)
		}
		loaded = append(loaded, file)
	}
	return loaded, nil
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		DatabasePath:   envOr("DATABASE_PATH", "./data/scout.db"),
		VocabularyPath: os.Getenv("VOCABULARY_PATH"),
		LogLevel:       envOr("LOG_LEVEL", "info"),
		MetricsAddr:    os.Getenv("METRICS_ADDR"),

		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
	}

	var errs []error
	intVar := func(dst *int, key string, def int) {
		v, err := envInt(key, def)
		errs = append(errs, err)
		*dst = v
	}
	durVar := func(dst *time.Duration, key string, def time.Duration) {
		v, err := envDuration(key, def)
		errs = append(errs, err)
		*dst = v
	}

	cfg.GitHub.Token = os.Getenv("GITHUB_TOKEN")
	intVar(&cfg.GitHub.DailyLimit, "GITHUB_DAILY_LIMIT", 500)
	intVar(&cfg.GitHub.MonthlyLimit, "GITHUB_MONTHLY_LIMIT", 10000)
	cfg.YouTube.Token = os.Getenv("YOUTUBE_API_KEY")
	intVar(&cfg.YouTube.DailyLimit, "YOUTUBE_DAILY_LIMIT", 100)
	intVar(&cfg.YouTube.MonthlyLimit, "YOUTUBE_MONTHLY_LIMIT", 3000)
	cfg.X.Token = os.Getenv("X_BEARER_TOKEN")
	intVar(&cfg.X.DailyLimit, "X_DAILY_LIMIT", 50)
	intVar(&cfg.X.MonthlyLimit, "X_MONTHLY_LIMIT", 1500)

	intVar(&cfg.MaxQueriesPerScan, "MAX_QUERIES_PER_SCAN", 5)
	intVar(&cfg.MaxResultsPerQuery, "MAX_RESULTS_PER_QUERY", 10)
	intVar(&cfg.MinScore, "MIN_SCORE", 40)
	durVar(&cfg.CacheTTL, "CACHE_TTL", 24*time.Hour)
	durVar(&cfg.ScanInterval, "SCAN_INTERVAL", 6*time.Hour)
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	if cfg.GitHub.Token == "" && cfg.YouTube.Token == "" && cfg.X.Token == "" {
		return nil, fmt.Errorf("at least one of GITHUB_TOKEN, YOUTUBE_API_KEY, X_BEARER_TOKEN is required")
	}
	if cfg.MaxQueriesPerScan <= 0 || cfg.MaxResultsPerQuery <= 0 {
		return nil, fmt.Errorf("MAX_QUERIES_PER_SCAN and MAX_RESULTS_PER_QUERY must be positive")
	}
	// Recent search returns at least 10 posts and each is charged.
	if cfg.X.Token != "" && cfg.MaxResultsPerQuery < minXResults {
		return nil, fmt.Errorf("MAX_RESULTS_PER_QUERY must be at least %d when X_BEARER_TOKEN is set", minXResults)
	}
	if cfg.ScanInterval <= 0 {
		return nil, fmt.Errorf("SCAN_INTERVAL must be positive")
	}

	tiers, err := parseTiers(envOr("EXCLUDED_TIERS", "spam,low_quality"))
	if err != nil {
		return nil, fmt.Errorf("invalid EXCLUDED_TIERS: %w", err)
	}
	cfg.ExcludedTiers = tiers

	cfg.NotifyMinTier, err = model.ParseQualityTier(envOr("NOTIFY_MIN_TIER", string(model.Advanced)))
	if err != nil {
		return nil, fmt.Errorf("invalid NOTIFY_MIN_TIER: %w", err)
	}

	if raw := os.Getenv("TELEGRAM_CHAT_ID"); raw != "" {
		id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID %q: %w", raw, err)
		}
		cfg.TelegramChatID = id
	}

	if raw := os.Getenv("ALLOWED_USERS"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			uid, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid user ID %q in ALLOWED_USERS: %w", s, err)
			}
			cfg.AllowedUsers = append(cfg.AllowedUsers, uid)
		}
	}

	return cfg, nil
}

// Platforms returns the platforms that have credentials.
func (c *Config) Platforms() map[model.Platform]Platform {
	out := make(map[model.Platform]Platform, 3)
	for p, pc := range map[model.Platform]Platform{
		model.CodeHost:  c.GitHub,
		model.Video:     c.YouTube,
		model.ShortForm: c.X,
	} {
		if pc.Token != "" {
			out[p] = pc
		}
	}
	return out
}

// IsUserAllowed checks whether a user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	for _, id := range c.AllowedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

// LoadVocabulary reads a topic vocabulary from a YAML file. An empty path
// returns the built-in vocabulary. Sections missing from the file keep their
// defaults.
func LoadVocabulary(path string) (planner.Vocabulary, error) {
	vocab := planner.DefaultVocabulary()
	if path == "" {
		return vocab, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return vocab, fmt.Errorf("read vocabulary: %w", err)
	}
	var file planner.Vocabulary
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return vocab, fmt.Errorf("parse vocabulary %s: %w", path, err)
	}

	if len(file.Keywords) > 0 {
		vocab.Keywords = file.Keywords
	}
	if len(file.AdvancedPatterns) > 0 {
		vocab.AdvancedPatterns = file.AdvancedPatterns
	}
	if file.Authors != nil {
		for p := range file.Authors {
			if _, err := model.ParsePlatform(string(p)); err != nil {
				return vocab, fmt.Errorf("vocabulary authors: %w", err)
			}
		}
		vocab.Authors = file.Authors
	}
	if file.Filters != nil {
		vocab.Filters = file.Filters
	}
	if len(vocab.Keywords) == 0 {
		return vocab, fmt.Errorf("vocabulary %s has no keywords", path)
	}
	return vocab, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return def, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return def, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

// parseTiers reads a comma separated tier list; "none" yields an empty list.
func parseTiers(raw string) ([]model.QualityTier, error) {
	tiers := []model.QualityTier{}
	if strings.EqualFold(strings.TrimSpace(raw), "none") {
		return tiers, nil
	}
	for _, s := range strings.Split(raw, ",") {
		if strings.TrimSpace(s) == "" {
			continue
		}
		t, err := model.ParseQualityTier(s)
		if err != nil {
			return nil, err
		}
		tiers = append(tiers, t)
	}
	return tiers, nil
}
