package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/shopgrep/shopgrep/internal/config"
	"github.com/shopgrep/shopgrep/internal/db"
	dbRedis "github.com/shopgrep/shopgrep/internal/db/redis"
	"github.com/shopgrep/shopgrep/internal/metrics"
	"github.com/shopgrep/shopgrep/internal/repository"
	catalogrepo "github.com/shopgrep/shopgrep/internal/repository/catalog"
	embeddingrepo "github.com/shopgrep/shopgrep/internal/repository/embedding"
	metadatarepo "github.com/shopgrep/shopgrep/internal/repository/metadata"
	openaiT "github.com/shopgrep/shopgrep/internal/transport/openai"
	engineuc "github.com/shopgrep/shopgrep/internal/usecase/engine"
	indexuc "github.com/shopgrep/shopgrep/internal/usecase/index"
	parseuc "github.com/shopgrep/shopgrep/internal/usecase/parse"
	profileuc "github.com/shopgrep/shopgrep/internal/usecase/profile"
	refineuc "github.com/shopgrep/shopgrep/internal/usecase/refine"
	retrieveuc "github.com/shopgrep/shopgrep/internal/usecase/retrieve"
)

// app is the composition root: the wired engine plus the resources the
// commands need to release.
type app struct {
	cfg     config.Config
	logger  *zap.Logger
	store   db.Store
	catalog *catalogrepo.Repo
	emb     *embeddingrepo.Repo
	engine  *engineuc.Service
}

// buildApp wires the store, repositories, providers, and usecases.
func buildApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
		DB:       cfg.Database.DB,
	})
	if err != nil {
		return nil, err
	}

	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, err
	}

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterChatMetrics()
	metrics.RegisterSearchMetrics()

	keys := repository.Keys{Prefix: cfg.Storage.KeyPrefix, Tenant: cfg.Storage.Tenant}

	catalogRepo := catalogrepo.New(store, keys)
	metadataRepo := metadatarepo.New(store, keys)
	embeddingRepo := embeddingrepo.New(store, keys)

	embedder := openaiT.NewEmbedder(&openaiT.EmbedderConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Timeout:    time.Duration(cfg.Embedding.TimeoutSec) * time.Second,
		Logger:     logger,
	})
	chat := openaiT.NewChat(&openaiT.ChatConfig{
		APIKey:  cfg.Chat.APIKey,
		BaseURL: cfg.Chat.BaseURL,
		Model:   cfg.Chat.Model,
		Timeout: time.Duration(cfg.Chat.TimeoutSec) * time.Second,
		Logger:  logger,
	})

	profileSvc := profileuc.New(
		profileuc.Config{CardinalityThreshold: cfg.Profile.CardinalityThreshold},
		catalogRepo, metadataRepo, catalogRepo, logger,
	)
	indexSvc := indexuc.New(
		indexuc.Config{
			BatchSize:    cfg.Index.BatchSize,
			Concurrency:  cfg.Index.Concurrency,
			MaxRetries:   cfg.Index.MaxRetries,
			RetryBackoff: time.Duration(cfg.Index.RetryBackoffMS) * time.Millisecond,
		},
		embedder, embeddingRepo, logger,
	)
	parseSvc := parseuc.New(chat, logger)
	retrieveSvc := retrieveuc.New(
		retrieveuc.Config{
			CandidateLimit: cfg.Retrieve.CandidateLimit,
			SQLWeight:      cfg.Retrieve.SQLWeight,
			SemanticWeight: cfg.Retrieve.SemanticWeight,
			Prefilter:      cfg.Retrieve.Prefilter,
			Timeout:        time.Duration(cfg.Retrieve.TimeoutSec) * time.Second,
		},
		catalogRepo, embeddingRepo, embedder, logger,
	)
	refineSvc := refineuc.New(
		refineuc.Config{
			Window:     cfg.Refine.Window,
			MaxResults: cfg.Refine.MaxResults,
			Timeout:    time.Duration(cfg.Refine.TimeoutSec) * time.Second,
		},
		chat, catalogRepo, logger,
	)

	engine := engineuc.New(
		parseSvc, retrieveSvc, refineSvc,
		profileSvc, indexSvc,
		metadataRepo, catalogRepo,
		logger,
	)

	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		catalog: catalogRepo,
		emb:     embeddingRepo,
		engine:  engine,
	}, nil
}

// ensureEmbeddingIndex creates the HNSW index if it does not exist yet.
func (a *app) ensureEmbeddingIndex(ctx context.Context) error {
	return a.emb.EnsureIndex(ctx, embeddingrepo.IndexParams{
		Dimensions:  a.cfg.Embedding.Dimensions,
		M:           a.cfg.Index.HNSWM,
		EFConstruct: a.cfg.Index.HNSWEFConstruct,
	})
}

func (a *app) close() {
	a.store.Close()
}
