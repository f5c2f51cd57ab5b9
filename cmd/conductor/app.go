package main

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"

	"conductor/internal/bootstrap"
	"conductor/internal/config"
	"conductor/internal/embedding"
	"conductor/internal/indexer"
	"conductor/internal/logging"
	"conductor/internal/store"
)

// app bundles the subsystems every command needs. Commands that only read
// state still go through here so config and store setup stay in one place.
type app struct {
	cfg      *config.Config
	db       *store.Store
	embedder embedding.Engine
	indexer  *indexer.Indexer
}

// openApp loads config, opens the store and builds the indexer stack.
func openApp() (*app, error) {
	path := configPath
	if path == "" {
		path = filepath.Join(workspace, ".conductor", "config.yaml")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	dbPath := cfg.Storage.DB.Path
	if dbPath != ":memory:" && !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(workspace, dbPath)
	}
	db, err := store.Open(dbPath, cfg.Storage.DB.PoolSize, cfg.Storage.DB.InitSchema)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	embedder, err := embedding.New(cfg.Embedding)
	if err != nil {
		db.Close()
		return nil, err
	}
	if embedder == nil {
		logging.Get(logging.CategoryBoot).Info("embedding disabled, indexing without vectors")
	}

	if data, err := os.ReadFile(path); err == nil {
		hash := fmt.Sprintf("%x", sha256.Sum256(data))
		if err := db.SetProjectConfig(context.Background(), "config_hash", hash); err != nil {
			logging.Get(logging.CategoryBoot).Warn("record config hash: %v", err)
		}
	}

	return &app{
		cfg:      cfg,
		db:       db,
		embedder: embedder,
		indexer:  indexer.NewIndexer(db, embedder, workspace),
	}, nil
}

// bootstrapper builds the bulk-index orchestrator over the app's stack.
func (a *app) bootstrapper() *bootstrap.Orchestrator {
	return bootstrap.New(a.db, a.indexer, a.cfg.Context, workspace)
}

// Close drains async index work and checkpoints the WAL before closing.
func (a *app) Close() {
	a.indexer.Wait()
	a.db.Checkpoint()
	if err := a.db.Close(); err != nil {
		logging.Get(logging.CategoryBoot).Error("close store: %v", err)
	}
}
