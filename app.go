package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"zexplorer/console"
	"zexplorer/core"
	"zexplorer/db"
	"zexplorer/download"
	"zexplorer/engines"
	"zexplorer/metrics"
	"zexplorer/modelcfg"
	"zexplorer/promptvars"
)

// app holds the wired application graph shared by the console and server
// frontends.
type app struct {
	cfg    *core.Config
	logger *zap.Logger

	database  *db.Database
	repo      *db.Repository
	history   *db.AsyncHistory
	store     *promptvars.Store
	residency *engines.Residency
	text      *engines.TextEngine
	image     *engines.ImageEngine
	generator *core.Generator
	presets   *modelcfg.Presets
	gpu       metrics.GPUReader
}

// newApp builds the full dependency graph: directories, model presets,
// optional downloads, database, engines, and the generator. interactive
// controls whether download progress renders to the terminal.
func newApp(cfg *core.Config, logger *zap.Logger, interactive bool) (*app, error) {
	for _, dir := range []string{cfg.LibraryDir, cfg.OutputDir, cfg.ModelsDir, filepath.Dir(cfg.DBPath)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	presets, err := modelcfg.Load(cfg.ModelPresetsPath)
	if err != nil {
		return nil, err
	}
	resolveModelPaths(cfg, presets)

	if cfg.AutoDownload {
		if err := ensureModels(context.Background(), cfg, interactive, logger); err != nil {
			return nil, err
		}
	}

	database, err := db.NewDatabase(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	repo := db.NewRepository(database)
	history := db.NewAsyncHistory(repo, logger)

	store := promptvars.NewStore(cfg.LibraryDir, logger)
	residency := engines.NewResidency(logger)
	text := engines.NewTextEngine(cfg, residency, logger)
	image := engines.NewImageEngine(cfg, residency, logger)

	generator := core.NewGenerator(store, text, image, logger,
		core.WithHistory(history),
		core.WithValueCount(cfg.VariableValueCount),
	)

	return &app{
		cfg:       cfg,
		logger:    logger,
		database:  database,
		repo:      repo,
		history:   history,
		store:     store,
		residency: residency,
		text:      text,
		image:     image,
		generator: generator,
		presets:   presets,
		gpu:       &metrics.NvidiaSMIReader{},
	}, nil
}

// close releases resources in dependency order. The server frontend uses the
// shutdown manager instead; this is the console path.
func (a *app) close() {
	a.history.Stop()
	if err := a.database.Close(); err != nil {
		a.logger.Warn("database close failed", zap.Error(err))
	}
	if err := a.residency.UnloadAll(); err != nil {
		a.logger.Warn("engine unload failed", zap.Error(err))
	}
}

// resolveModelPaths fills model paths and download URLs from the first
// matching preset when the environment did not set them explicitly.
func resolveModelPaths(cfg *core.Config, presets *modelcfg.Presets) {
	if cfg.LLMMode == core.LLMModeLocal && cfg.LLMModelPath == "" {
		if texts := presets.ByKind(modelcfg.KindText); len(texts) > 0 {
			cfg.LLMModelPath = filepath.Join(cfg.ModelsDir, texts[0].File)
			if cfg.LLMModelURL == "" {
				cfg.LLMModelURL = texts[0].URL
			}
		}
	}
	if cfg.SDModelPath == "" {
		if images := presets.ByKind(modelcfg.KindImage); len(images) > 0 {
			cfg.SDModelPath = filepath.Join(cfg.ModelsDir, images[0].File)
			if cfg.SDModelURL == "" {
				cfg.SDModelURL = images[0].URL
			}
		}
	}
}

// ensureModels downloads any configured model file that is missing.
func ensureModels(ctx context.Context, cfg *core.Config, interactive bool, logger *zap.Logger) error {
	type model struct {
		name, path, url string
	}
	models := []model{}
	if cfg.LLMMode == core.LLMModeLocal && cfg.LLMModelPath != "" {
		models = append(models, model{"text model", cfg.LLMModelPath, cfg.LLMModelURL})
	}
	if cfg.SDModelPath != "" {
		models = append(models, model{"image model", cfg.SDModelPath, cfg.SDModelURL})
	}

	for _, m := range models {
		var onProgress func(download.ProgressInfo)
		if interactive {
			onProgress = console.DownloadProgress(os.Stdout, m.name)
		}
		if err := download.EnsureModel(ctx, m.name, m.path, m.url, onProgress, logger); err != nil {
			return fmt.Errorf("ensuring %s: %w", m.name, err)
		}
	}
	return nil
}
