// Package app wires the workspace: database, schema, config and engine.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"taskline/internal/config"
	"taskline/internal/db"
	"taskline/internal/domain"
	"taskline/internal/engine"
	"taskline/internal/migrate"
	"taskline/internal/repo"
)

type App struct {
	DB     *sql.DB
	Config *config.Config
	Engine engine.Engine
}

// Open opens the workspace database, applies migrations and loads
// taskline.yml, falling back to defaults when the file is absent.
func Open(ctx context.Context, workspace string, logger *slog.Logger) (*App, error) {
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	dbCfg := db.Config{Workspace: workspace, File: cfg.Database.File}
	if dbCfg.File != "" && !filepath.IsAbs(dbCfg.File) {
		dbCfg.File = filepath.Join(workspace, dbCfg.File)
	}
	conn, err := db.Open(dbCfg)
	if err != nil {
		return nil, err
	}
	if _, err := migrate.Migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &App{DB: conn, Config: cfg, Engine: engine.New(conn, cfg, logger)}, nil
}

func (a *App) Close() error {
	return a.DB.Close()
}

// ResolvePrincipal turns the configured actor id into a principal. The id
// must name an existing active user.
func ResolvePrincipal(ctx context.Context, eng engine.Engine, actorID string) (domain.Principal, error) {
	if actorID == "" {
		return domain.Principal{}, fmt.Errorf("actor not specified; use --actor-id or TASKLINE_ACTOR_ID")
	}
	u, err := eng.Directory.LookupFold(ctx, actorID)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Principal{}, fmt.Errorf("actor %s is not a known user", actorID)
	}
	if err != nil {
		return domain.Principal{}, err
	}
	if !u.Active {
		return domain.Principal{}, engine.ErrInactiveUser
	}
	return domain.Principal{ID: u.ID, Role: u.Role}, nil
}
