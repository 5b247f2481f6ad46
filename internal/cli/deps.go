package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nordbok/nordbok/internal/domain/import/mapper"
	importrepo "github.com/nordbok/nordbok/internal/domain/import/repository"
	importservice "github.com/nordbok/nordbok/internal/domain/import/service"
	"github.com/nordbok/nordbok/pkg/config"
	"github.com/nordbok/nordbok/pkg/db"
)

// Dependencies holds the wired application components.
type Dependencies struct {
	Config *config.Config
	DB     *db.DB
	Logger *slog.Logger

	ImportRepo    importrepo.ImportRepository
	ImportService *importservice.ImportService
}

// InitDependencies connects the database, runs migrations and wires the
// import pipeline.
func InitDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	database, err := db.New(db.Config{
		DSN:             cfg.Database.DSN(),
		MaxConns:        10,
		MinConns:        2,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}
	deps.DB = database

	if err := deps.DB.RunMigrations(); err != nil {
		deps.DB.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	deps.ImportRepo = importrepo.NewPostgresImportRepository(deps.DB.Pool)
	deps.ImportService = importservice.NewImportService(deps.ImportRepo, logger).
		WithMaxFileBytes(int64(cfg.Import.MaxFileMB) << 20)

	if cfg.Gemini.AIEnabled() {
		suggester, err := mapper.NewGeminiSuggester(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, logger)
		if err != nil {
			logger.Warn("gemini suggester unavailable, using heuristics only", "error", err)
		} else {
			deps.ImportService.WithAISuggester(suggester)
		}
	}

	logger.Info("dependencies initialized")
	return deps, nil
}

// Cleanup closes all resources.
func (d *Dependencies) Cleanup() {
	if d.DB != nil {
		d.DB.Close()
	}
}
