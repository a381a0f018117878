package main

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/hpungsan/cardbot/internal/board"
	"github.com/hpungsan/cardbot/internal/cache"
	"github.com/hpungsan/cardbot/internal/config"
	"github.com/hpungsan/cardbot/internal/db"
	"github.com/hpungsan/cardbot/internal/extract"
	"github.com/hpungsan/cardbot/internal/llm"
	"github.com/hpungsan/cardbot/internal/mcp"
	"github.com/hpungsan/cardbot/internal/ops"
	"github.com/hpungsan/cardbot/internal/resolve"
	"github.com/hpungsan/cardbot/internal/scrape"
	"github.com/hpungsan/cardbot/internal/ticket"
	"github.com/hpungsan/cardbot/internal/web"
)

// deps holds everything a command may need. Clients are cheap to build and
// only touch the network when used, so commands that never call out (attachment
// lookups, resolve against a static source) work without credentials.
type deps struct {
	cfg        *config.Config
	db         *sql.DB
	log        *logrus.Logger
	exportsDir string

	vocab    resolve.Provider
	cache    ops.Invalidator // nil when vocabulary is not cached
	pipeline *ops.Pipeline

	redis *redis.Client
}

// newLogger builds the process logger. Logs go to stderr; stdout is reserved
// for command output and the MCP protocol stream.
func newLogger(cfg *config.Config, debug bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	if cfg != nil && cfg.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	if debug {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

// wire assembles the vocabulary providers, the snapshot cache and the intake pipeline.
func wire(ctx context.Context, baseDir string, cfg *config.Config, database *sql.DB, log *logrus.Logger) (*deps, error) {
	d := &deps{
		cfg:        cfg,
		db:         database,
		log:        log,
		exportsDir: filepath.Join(baseDir, "exports"),
	}

	api := board.NewClient(board.Config{
		BaseURL: cfg.TrelloBaseURL,
		APIKey:  cfg.TrelloAPIKey,
		Token:   cfg.TrelloToken,
		BoardID: cfg.BoardID,
		Timeout: cfg.HTTPTimeout(),
	})

	vocab, err := d.vocabulary(ctx, api)
	if err != nil {
		d.close()
		return nil, err
	}
	d.vocab = vocab

	labels := cfg.LabelVocabulary
	if len(labels) == 0 {
		// Offer the model the board's own label names.
		if m, err := vocab.Vocabulary(ctx, ticket.CategoryLabels); err == nil {
			labels = m.Names()
		} else {
			log.WithError(err).Debug("label vocabulary unavailable, using default prompt labels")
		}
	}

	completer := llm.NewClient(llm.Config{
		BaseURL:     cfg.OpenAIBaseURL,
		APIKey:      cfg.OpenAIAPIKey,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		Timeout:     cfg.HTTPTimeout(),
	})

	d.pipeline = &ops.Pipeline{
		Extractor:  extract.New(completer, labels),
		Vocabulary: vocab,
		Board:      api,
		Fetcher:    scrape.NewHTTPFetcher(cfg.HTTPTimeout()),
		Reporter:   ops.DBReporter{DB: database},
		Logger:     log,
		Threshold:  cfg.FuzzyThreshold,
		Async:      cfg.EnrichMode != config.EnrichInline,
	}
	return d, nil
}

// vocabulary routes each category to its configured source. Live categories
// share one board reader and, unless disabled, one snapshot cache.
func (d *deps) vocabulary(ctx context.Context, api resolve.BoardReader) (resolve.Provider, error) {
	var static resolve.Provider
	var live resolve.Provider

	mux := resolve.Mux{}
	for _, category := range ticket.Categories {
		switch d.cfg.Source(category) {
		case config.SourceStatic:
			if static == nil {
				p, err := d.loadStatic()
				if err != nil {
					return nil, err
				}
				static = p
			}
			mux[category] = static
		default:
			if live == nil {
				p, err := d.liveProvider(ctx, api)
				if err != nil {
					return nil, err
				}
				live = p
			}
			mux[category] = live
		}
	}
	return mux, nil
}

// loadStatic reads the mappings file. A missing file yields empty maps so that
// commands unrelated to resolution still run; intake then reports unmatched values.
func (d *deps) loadStatic() (resolve.Provider, error) {
	p, err := resolve.LoadStatic(d.cfg.MappingsFile)
	if err == nil {
		return p, nil
	}
	if stderrors.Is(err, fs.ErrNotExist) {
		d.log.WithField("path", d.cfg.MappingsFile).Warn("mappings file not found, static vocabulary is empty")
		return resolve.NewStaticProvider(nil), nil
	}
	return nil, fmt.Errorf("load mappings: %w", err)
}

func (d *deps) liveProvider(ctx context.Context, api resolve.BoardReader) (resolve.Provider, error) {
	base := resolve.NewLiveProvider(api)
	ttl := d.cfg.VocabularyTTL()

	var store resolve.SnapshotStore
	switch d.cfg.EffectiveCacheBackend() {
	case config.CacheNone:
		return base, nil
	case config.CacheRedis:
		client, err := cache.Open(ctx, d.cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("open vocabulary cache: %w", err)
		}
		d.redis = client
		store = cache.NewSnapshotStore(client, ttl)
	default:
		store = db.NewSnapshotStore(d.db)
	}

	cached := resolve.NewCachedProvider(base, store, ttl, d.log)
	d.cache = cached
	return cached, nil
}

func (d *deps) mcpDeps() mcp.Deps {
	return mcp.Deps{
		DB:         d.db,
		Config:     d.cfg,
		Pipeline:   d.pipeline,
		Vocabulary: d.vocab,
		Cache:      d.cache,
		ExportsDir: d.exportsDir,
	}
}

func (d *deps) webDeps() web.Deps {
	return web.Deps{
		DB:         d.db,
		Config:     d.cfg,
		Pipeline:   d.pipeline,
		Vocabulary: d.vocab,
		Cache:      d.cache,
		Logger:     d.log,
	}
}

// close waits for detached enrichment jobs and releases the cache client.
func (d *deps) close() {
	if d.pipeline != nil {
		d.pipeline.Wait()
	}
	if d.redis != nil {
		_ = d.redis.Close()
	}
}

// runMCP serves the MCP tools over stdio.
func runMCP(d *deps) error {
	if err := d.cfg.Validate(); err != nil {
		return err
	}
	if unknown := mcp.ValidateDisabledTools(d.cfg.DisabledTools); len(unknown) > 0 {
		d.log.WithField("tools", unknown).Warn("unknown tools in disabled_tools")
	}
	return mcp.Run(d.mcpDeps(), Version, d.log)
}
