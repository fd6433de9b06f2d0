package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ppiankov/qbot/internal/answer"
	"github.com/ppiankov/qbot/internal/cache"
	"github.com/ppiankov/qbot/internal/conversation"
	"github.com/ppiankov/qbot/internal/embed"
	"github.com/ppiankov/qbot/internal/ingest"
	"github.com/ppiankov/qbot/internal/llm"
	"github.com/ppiankov/qbot/internal/logging"
	"github.com/ppiankov/qbot/internal/model"
	"github.com/ppiankov/qbot/internal/retrieval"
	"github.com/ppiankov/qbot/internal/router"
	"github.com/ppiankov/qbot/internal/store"
	"github.com/ppiankov/qbot/internal/util"
	"github.com/ppiankov/qbot/internal/worker"
)

// app holds the components shared by the commands
type app struct {
	cfg       *model.Config
	logger    *zap.Logger
	embedder  embed.Embedder
	store     *store.Store
	retriever *retrieval.Retriever
}

// newApp opens the embedder and store described by cfg. A memory store is
// filled from cfg.Store.Corpus when one is configured.
func newApp(ctx context.Context, cfg *model.Config) (*app, error) {
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	embedder, err := newEmbedder(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	s, err := store.Open(ctx, cfg.Store, embedder, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, embedder: embedder, store: s}

	if strings.EqualFold(cfg.Store.Backend, "memory") && cfg.Store.Corpus != "" {
		if _, err := a.ingestFile(ctx, cfg.Store.Corpus, nil); err != nil {
			_ = a.close()
			return nil, err
		}
	}

	a.retriever = retrieval.New(s.Verses, s.Themes)
	a.retriever.TopN = cfg.Conversation.TopN
	a.retriever.Window = cfg.Conversation.ContextWindow
	return a, nil
}

func newEmbedder(cfg *model.Config, logger *zap.Logger) (embed.Embedder, error) {
	e, err := embed.New(cfg.Embedding, cfg.HTTP)
	if err != nil {
		return nil, err
	}
	if !cfg.Cache.Enabled {
		return e, nil
	}
	c := cache.NewLayeredCache(cfg.Cache.MemoryTTL, util.ExpandHome(cfg.Cache.Dir), cfg.Cache.DiskTTL)
	return embed.NewCached(e, c, cfg.Cache.DiskTTL, logger), nil
}

// ingestFile loads a corpus file and writes it into the store
func (a *app) ingestFile(ctx context.Context, path string, progress worker.Progress) (ingest.Stats, error) {
	corpus, err := ingest.LoadFile(path)
	if err != nil {
		return ingest.Stats{}, err
	}

	limiter := worker.NewLimiter(a.cfg.Ingest.RequestsPerSecond, a.cfg.Ingest.BurstSize)
	processor := worker.NewBatchProcessor(a.cfg.Ingest.Workers, a.cfg.Embedding.BatchSize, limiter, a.logger)
	in := ingest.New(a.store, processor, a.embedder.Name(), a.logger)

	stats, err := in.Run(ctx, corpus, progress)
	if err != nil {
		return stats, err
	}
	a.logger.Debug("corpus loaded",
		zap.String("path", path),
		zap.Int("verses", stats.Verses),
		zap.Int("topics", stats.Topics),
		zap.Duration("duration", stats.Duration))
	return stats, nil
}

// assistant wires provider, router and answer processor into a conversation
// assistant
func (a *app) assistant(showIntermediate bool) (*conversation.Assistant, *router.Router, error) {
	provider, err := llm.NewProvider(llm.ConfigFromModel(a.cfg.LLM, a.cfg.HTTP))
	if err != nil {
		return nil, nil, fmt.Errorf("create LLM provider: %w", err)
	}

	r := router.New(a.retriever, answer.NewProcessor(a.store.Verses, a.logger), a.logger)
	r.ShowIntermediate = showIntermediate || a.cfg.Conversation.ShowIntermediate

	asst := conversation.NewAssistant(provider, r, conversation.Options{
		MaxLoops:  a.cfg.Conversation.MaxLoops,
		MaxTokens: a.cfg.LLM.MaxTokens,
	}, a.logger)
	return asst, r, nil
}

func (a *app) close() error {
	_ = a.logger.Sync()
	return a.store.Close()
}

// withApp loads configuration, opens the app and runs fn
func withApp(ctx context.Context, fn func(a *app) error) (err error) {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close store: %w", closeErr)
		}
	}()
	return fn(a)
}
