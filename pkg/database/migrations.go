package database

import (
	"context"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"districts/pkg/config"
	"districts/pkg/logger"
)

// Migrator применяет встроенные goose-миграции через пул pgx
type Migrator struct {
	pool *pgxpool.Pool
	fsys fs.FS
	dir  string
}

// NewMigrator создаёт мигратор для каталога dir внутри fsys
func NewMigrator(pool *pgxpool.Pool, fsys fs.FS, dir string) *Migrator {
	return &Migrator{
		pool: pool,
		fsys: fsys,
		dir:  dir,
	}
}

// Up применяет недостающие миграции и возвращает итоговую версию схемы
func (m *Migrator) Up(ctx context.Context) (int64, error) {
	sub, err := fs.Sub(m.fsys, m.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to open migrations dir %q: %w", m.dir, err)
	}

	db := stdlib.OpenDBFromPool(m.pool)
	defer db.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, sub)
	if err != nil {
		return 0, fmt.Errorf("failed to create migration provider: %w", err)
	}

	applied, err := provider.Up(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to run migrations: %w", err)
	}

	version, err := provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}

	logger.Log.Info("Migrations applied", "applied", len(applied), "version", version)
	return version, nil
}

// RunMigrations запускает миграции, если они включены в конфигурации
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, cfg *config.DatabaseConfig, fsys fs.FS, dir string) error {
	if !cfg.AutoMigrate {
		logger.Log.Info("Auto-migration is disabled")
		return nil
	}

	_, err := NewMigrator(pool, fsys, dir).Up(ctx)
	return err
}
