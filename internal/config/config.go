package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Vocabulary sources.
const (
	SourceStatic = "static"
	SourceLive   = "live"
)

// Cache backends for vocabulary snapshots.
const (
	CacheSQLite = "sqlite"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

// Enrichment modes.
const (
	EnrichAsync  = "async"
	EnrichInline = "inline"
)

// Config holds application configuration.
type Config struct {
	// BoardID is the Trello board cards are created on.
	BoardID string `json:"board_id,omitempty"`

	// TrelloBaseURL is the REST root of the board API.
	TrelloBaseURL string `json:"trello_base_url,omitempty"`

	// TrelloAPIKey and TrelloToken are only read from the environment.
	TrelloAPIKey string `json:"-"`
	TrelloToken  string `json:"-"`

	// OpenAIBaseURL is the root of an OpenAI-compatible API (".../v1").
	OpenAIBaseURL string `json:"openai_base_url,omitempty"`

	// OpenAIAPIKey is only read from the environment.
	OpenAIAPIKey string `json:"-"`

	// Model is the chat model used for field extraction.
	Model string `json:"model,omitempty"`

	// Temperature for extraction completions. Zero means "use default".
	Temperature float64 `json:"temperature,omitempty"`

	// MappingsFile is the static vocabulary YAML. Relative paths are
	// resolved against the config directory.
	MappingsFile string `json:"mappings_file,omitempty"`

	// VocabularySources selects "static" or "live" per category
	// ("columns", "members", "labels").
	VocabularySources map[string]string `json:"vocabulary_sources,omitempty"`

	// LabelVocabulary is the fixed label list given to the model.
	// Empty means the label names of the resolved vocabulary are used.
	LabelVocabulary []string `json:"label_vocabulary,omitempty"`

	// FuzzyThreshold is the minimum similarity for a fuzzy match (0..1].
	FuzzyThreshold float64 `json:"fuzzy_threshold,omitempty"`

	// VocabularyTTLSeconds bounds how stale a cached vocabulary snapshot may be.
	VocabularyTTLSeconds int `json:"vocabulary_ttl_seconds,omitempty"`

	// CacheBackend is "sqlite", "redis" or "none". Empty picks redis when
	// RedisURL is set, sqlite otherwise.
	CacheBackend string `json:"cache_backend,omitempty"`

	// RedisURL is a redis:// URL for the redis cache backend.
	RedisURL string `json:"redis_url,omitempty"`

	// HTTPTimeoutSeconds applies to each outbound call.
	HTTPTimeoutSeconds int `json:"http_timeout_seconds,omitempty"`

	// EnrichMode is "async" (attachment runs after the response) or "inline".
	EnrichMode string `json:"enrich_mode,omitempty"`

	// Listen is the address for the HTTP server.
	Listen string `json:"listen,omitempty"`

	// LogFormat is "text" or "json".
	LogFormat string `json:"log_format,omitempty"`

	// AllowedPaths is an allowlist of directories vocabulary exports may be written to.
	// Paths outside ~/.cardbot/exports require either being in this list or AllowUnsafePaths=true.
	// Paths should be absolute (relative paths are ignored).
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths disables the directory restriction for exports.
	// Symlink and extension checks still apply.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		TrelloBaseURL: "https://api.trello.com/1",
		OpenAIBaseURL: "https://api.openai.com/v1",
		Model:         "gpt-4",
		Temperature:   0.2,
		MappingsFile:  "mappings.yml",
		VocabularySources: map[string]string{
			"columns": SourceLive,
			"members": SourceStatic,
			"labels":  SourceStatic,
		},
		FuzzyThreshold:       0.75,
		VocabularyTTLSeconds: 600,
		HTTPTimeoutSeconds:   30,
		EnrichMode:           EnrichAsync,
		Listen:               "127.0.0.1:8080",
		LogFormat:            "text",
	}
}

// Load loads configuration from baseDir/config.json and the environment.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.cardbot.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFile(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	cfg.MappingsFile = resolvePath(baseDir, cfg.MappingsFile)
	LoadEnv(cfg, baseDir)
	return cfg, nil
}

// LoadWithRepo loads configuration from both global (~/.cardbot) and repo (.cardbot) directories.
// Repo config is found by walking upward from startDir to find the nearest .cardbot/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}
	global.MappingsFile = resolvePath(globalDir, global.MappingsFile)

	repoConfigPath := FindRepoConfig(startDir)
	repo, err := loadFileRaw(repoConfigPath)
	if err != nil {
		return nil, err
	}
	if repoConfigPath != "" {
		repo.MappingsFile = resolvePath(filepath.Dir(repoConfigPath), repo.MappingsFile)
	}

	cfg := Merge(Merge(DefaultConfig(), global), repo)
	cfg.MappingsFile = resolvePath(globalDir, cfg.MappingsFile)
	LoadEnv(cfg, globalDir)
	return cfg, nil
}

// FindRepoConfig walks upward from startDir to find the nearest .cardbot/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".cardbot", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// LoadEnv reads .env files (baseDir/.env, then ./.env) into the process
// environment without overriding variables that are already set, then
// applies credentials and deployment overrides to cfg.
func LoadEnv(cfg *Config, baseDir string) {
	for _, p := range []string{filepath.Join(baseDir, ".env"), ".env"} {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
		}
	}

	cfg.TrelloAPIKey = firstEnv(cfg.TrelloAPIKey, "TRELLO_API_KEY")
	cfg.TrelloToken = firstEnv(cfg.TrelloToken, "TRELLO_TOKEN")
	cfg.BoardID = firstEnv(cfg.BoardID, "TRELLO_BOARD_ID")
	cfg.OpenAIAPIKey = firstEnv(cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	cfg.OpenAIBaseURL = firstEnv(cfg.OpenAIBaseURL, "OPENAI_BASE_URL")
	cfg.Model = firstEnv(cfg.Model, "OPENAI_MODEL")
	cfg.RedisURL = firstEnv(cfg.RedisURL, "CARDBOT_REDIS_URL")
	cfg.Listen = firstEnv(cfg.Listen, "CARDBOT_LISTEN")
}

// firstEnv returns the environment value for key if set, else current.
func firstEnv(current, key string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return current
}

// Validate reports missing credentials required to talk to external services.
func (c *Config) Validate() error {
	var missing []string
	if c.TrelloAPIKey == "" {
		missing = append(missing, "TRELLO_API_KEY")
	}
	if c.TrelloToken == "" {
		missing = append(missing, "TRELLO_TOKEN")
	}
	if c.BoardID == "" {
		missing = append(missing, "TRELLO_BOARD_ID")
	}
	if c.OpenAIAPIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing configuration: %s", strings.Join(missing, ", "))
	}
	for category, source := range c.VocabularySources {
		if source != SourceStatic && source != SourceLive {
			return fmt.Errorf("vocabulary_sources.%s: unknown source %q", category, source)
		}
	}
	if c.FuzzyThreshold <= 0 || c.FuzzyThreshold > 1 {
		return fmt.Errorf("fuzzy_threshold must be in (0, 1], got %v", c.FuzzyThreshold)
	}
	return nil
}

// Source returns the configured vocabulary source for a category.
func (c *Config) Source(category string) string {
	if s := c.VocabularySources[category]; s != "" {
		return s
	}
	return SourceLive
}

// VocabularyTTL returns the snapshot staleness bound.
func (c *Config) VocabularyTTL() time.Duration {
	return time.Duration(c.VocabularyTTLSeconds) * time.Second
}

// HTTPTimeout returns the per-call timeout for outbound requests.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// EffectiveCacheBackend resolves an empty CacheBackend.
func (c *Config) EffectiveCacheBackend() string {
	if c.CacheBackend != "" {
		return c.CacheBackend
	}
	if c.RedisURL != "" {
		return CacheRedis
	}
	return CacheSQLite
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated;
// vocabulary sources are merged per category.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.BoardID = pickString(overlay.BoardID, base.BoardID)
	result.TrelloBaseURL = pickString(overlay.TrelloBaseURL, base.TrelloBaseURL)
	result.TrelloAPIKey = pickString(overlay.TrelloAPIKey, base.TrelloAPIKey)
	result.TrelloToken = pickString(overlay.TrelloToken, base.TrelloToken)
	result.OpenAIBaseURL = pickString(overlay.OpenAIBaseURL, base.OpenAIBaseURL)
	result.OpenAIAPIKey = pickString(overlay.OpenAIAPIKey, base.OpenAIAPIKey)
	result.Model = pickString(overlay.Model, base.Model)
	result.MappingsFile = pickString(overlay.MappingsFile, base.MappingsFile)
	result.CacheBackend = pickString(overlay.CacheBackend, base.CacheBackend)
	result.RedisURL = pickString(overlay.RedisURL, base.RedisURL)
	result.EnrichMode = pickString(overlay.EnrichMode, base.EnrichMode)
	result.Listen = pickString(overlay.Listen, base.Listen)
	result.LogFormat = pickString(overlay.LogFormat, base.LogFormat)

	result.Temperature = overlay.Temperature
	if result.Temperature == 0 {
		result.Temperature = base.Temperature
	}
	result.FuzzyThreshold = overlay.FuzzyThreshold
	if result.FuzzyThreshold == 0 {
		result.FuzzyThreshold = base.FuzzyThreshold
	}
	result.VocabularyTTLSeconds = pickInt(overlay.VocabularyTTLSeconds, base.VocabularyTTLSeconds)
	result.HTTPTimeoutSeconds = pickInt(overlay.HTTPTimeoutSeconds, base.HTTPTimeoutSeconds)
	result.DBMaxOpenConns = pickInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = pickInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns)

	if len(base.VocabularySources) > 0 || len(overlay.VocabularySources) > 0 {
		result.VocabularySources = make(map[string]string, len(base.VocabularySources))
		for k, v := range base.VocabularySources {
			result.VocabularySources[k] = v
		}
		for k, v := range overlay.VocabularySources {
			if v = strings.TrimSpace(v); v != "" {
				result.VocabularySources[k] = v
			}
		}
	}

	// Booleans: overlay wins if true, else base
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths

	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.LabelVocabulary = mergeStringSlice(base.LabelVocabulary, overlay.LabelVocabulary)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

func pickString(overlay, base string) string {
	if overlay != "" {
		return overlay
	}
	return base
}

func pickInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

// resolvePath makes p absolute relative to dir. Empty stays empty.
func resolvePath(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
