package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"TRELLO_API_KEY", "TRELLO_TOKEN", "TRELLO_BOARD_ID",
		"OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_MODEL",
		"CARDBOT_REDIS_URL", "CARDBOT_LISTEN",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_DefaultWhenMissing(t *testing.T) {
	clearEnv(t)
	tmpDir := t.TempDir()

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Model != "gpt-4" {
		t.Errorf("Model = %q, want %q", cfg.Model, "gpt-4")
	}
	if cfg.FuzzyThreshold != 0.75 {
		t.Errorf("FuzzyThreshold = %v, want 0.75", cfg.FuzzyThreshold)
	}
	if cfg.MappingsFile != filepath.Join(tmpDir, "mappings.yml") {
		t.Errorf("MappingsFile = %q, want it resolved under %q", cfg.MappingsFile, tmpDir)
	}
	if cfg.Source("columns") != SourceLive || cfg.Source("members") != SourceStatic {
		t.Errorf("unexpected default sources: %v", cfg.VocabularySources)
	}
}

func TestLoad_OverridesFromFile(t *testing.T) {
	clearEnv(t)
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	body := `{"model": "gpt-4o-mini", "fuzzy_threshold": 0.9, "vocabulary_sources": {"columns": "static"}, "enrich_mode": "inline"}`
	if err := os.WriteFile(configPath, []byte(body), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Model != "gpt-4o-mini" {
		t.Errorf("Model = %q, want %q", cfg.Model, "gpt-4o-mini")
	}
	if cfg.FuzzyThreshold != 0.9 {
		t.Errorf("FuzzyThreshold = %v, want 0.9", cfg.FuzzyThreshold)
	}
	if cfg.Source("columns") != SourceStatic {
		t.Errorf("columns source = %q, want static", cfg.Source("columns"))
	}
	// Unspecified categories keep their defaults.
	if cfg.Source("labels") != SourceStatic {
		t.Errorf("labels source = %q, want static", cfg.Source("labels"))
	}
	if cfg.EnrichMode != EnrichInline {
		t.Errorf("EnrichMode = %q, want inline", cfg.EnrichMode)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	clearEnv(t)
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{not json}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := Load(tmpDir); err == nil {
		t.Fatalf("Load() expected error, got nil")
	}
}

func TestLoad_EnvCredentials(t *testing.T) {
	clearEnv(t)
	t.Setenv("TRELLO_API_KEY", "key")
	t.Setenv("TRELLO_TOKEN", "token")
	t.Setenv("TRELLO_BOARD_ID", "board")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.TrelloAPIKey != "key" || cfg.TrelloToken != "token" || cfg.BoardID != "board" {
		t.Errorf("trello credentials not loaded: %+v", cfg)
	}
	if cfg.OpenAIAPIKey != "sk-test" {
		t.Errorf("OpenAIAPIKey = %q, want %q", cfg.OpenAIAPIKey, "sk-test")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoad_DotEnvFile(t *testing.T) {
	clearEnv(t)
	tmpDir := t.TempDir()
	envBody := "TRELLO_BOARD_ID=from-dotenv\nCARDBOT_LISTEN=0.0.0.0:9999\n"
	if err := os.WriteFile(filepath.Join(tmpDir, ".env"), []byte(envBody), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	// godotenv sets real process variables; make sure they are restored.
	t.Setenv("TRELLO_BOARD_ID", "")
	os.Unsetenv("TRELLO_BOARD_ID")
	t.Setenv("CARDBOT_LISTEN", "")
	os.Unsetenv("CARDBOT_LISTEN")

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BoardID != "from-dotenv" {
		t.Errorf("BoardID = %q, want %q", cfg.BoardID, "from-dotenv")
	}
	if cfg.Listen != "0.0.0.0:9999" {
		t.Errorf("Listen = %q, want %q", cfg.Listen, "0.0.0.0:9999")
	}
}

func TestValidate_Missing(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for missing credentials")
	}
	for _, want := range []string{"TRELLO_API_KEY", "TRELLO_TOKEN", "TRELLO_BOARD_ID", "OPENAI_API_KEY"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err.Error(), want)
		}
	}
}

func TestValidate_UnknownSource(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TrelloAPIKey, cfg.TrelloToken, cfg.BoardID, cfg.OpenAIAPIKey = "k", "t", "b", "o"
	cfg.VocabularySources["columns"] = "carrier-pigeon"

	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() expected error for unknown source")
	}
}

func TestLoadWithRepo_RepoOverridesGlobal(t *testing.T) {
	clearEnv(t)
	globalDir := t.TempDir()
	repoRoot := t.TempDir()
	repoCfgDir := filepath.Join(repoRoot, ".cardbot")
	if err := os.MkdirAll(repoCfgDir, 0700); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(repoRoot, "a", "b")
	if err := os.MkdirAll(nested, 0700); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(globalDir, "config.json"), []byte(`{"model": "global-model", "label_vocabulary": ["Bug"]}`), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(repoCfgDir, "config.json"), []byte(`{"model": "repo-model", "label_vocabulary": ["Feature", "Bug"], "mappings_file": "vocab.yml"}`), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadWithRepo(globalDir, nested)
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}
	if cfg.Model != "repo-model" {
		t.Errorf("Model = %q, want %q", cfg.Model, "repo-model")
	}
	if len(cfg.LabelVocabulary) != 2 || cfg.LabelVocabulary[0] != "Bug" || cfg.LabelVocabulary[1] != "Feature" {
		t.Errorf("LabelVocabulary = %v, want [Bug Feature]", cfg.LabelVocabulary)
	}
	if cfg.MappingsFile != filepath.Join(repoCfgDir, "vocab.yml") {
		t.Errorf("MappingsFile = %q, want %q", cfg.MappingsFile, filepath.Join(repoCfgDir, "vocab.yml"))
	}
}

func TestFindRepoConfig_NotFound(t *testing.T) {
	if got := FindRepoConfig(t.TempDir()); got != "" {
		t.Errorf("FindRepoConfig() = %q, want empty", got)
	}
}

func TestMerge_ScalarsAndSlices(t *testing.T) {
	base := &Config{Model: "a", HTTPTimeoutSeconds: 30, DisabledTools: []string{"x"}}
	overlay := &Config{HTTPTimeoutSeconds: 5, DisabledTools: []string{" y ", "x"}}

	got := Merge(base, overlay)
	if got.Model != "a" {
		t.Errorf("Model = %q, want %q", got.Model, "a")
	}
	if got.HTTPTimeout() != 5*time.Second {
		t.Errorf("HTTPTimeout() = %v, want 5s", got.HTTPTimeout())
	}
	if len(got.DisabledTools) != 2 || got.DisabledTools[1] != "y" {
		t.Errorf("DisabledTools = %v, want [x y]", got.DisabledTools)
	}
}

func TestEffectiveCacheBackend(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.EffectiveCacheBackend(); got != CacheSQLite {
		t.Errorf("default backend = %q, want sqlite", got)
	}
	cfg.RedisURL = "redis://localhost:6379/0"
	if got := cfg.EffectiveCacheBackend(); got != CacheRedis {
		t.Errorf("backend with redis url = %q, want redis", got)
	}
	cfg.CacheBackend = CacheNone
	if got := cfg.EffectiveCacheBackend(); got != CacheNone {
		t.Errorf("explicit backend = %q, want none", got)
	}
}

func TestMerge_PathSettings(t *testing.T) {
	base := &Config{AllowedPaths: []string{"/srv/vocab"}}
	overlay := &Config{AllowedPaths: []string{"/srv/vocab", "/tmp/out"}, AllowUnsafePaths: true}

	got := Merge(base, overlay)
	if !got.AllowUnsafePaths {
		t.Error("AllowUnsafePaths = false, want true")
	}
	if len(got.AllowedPaths) != 2 {
		t.Errorf("AllowedPaths = %v, want 2 entries", got.AllowedPaths)
	}
}
