package dbpool

import (
	"context"
	"embed"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

const migrationsTable = "taskbridge_migrations"

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies the embedded migrations. The identity provider owns the
// tables; these migrations only add indexes the session lookup relies on.
func Migrate(ctx context.Context, p *Pool, log *slog.Logger) error {
	if p.Closed() {
		return ErrPoolClosed
	}
	if log == nil {
		log = slog.Default()
	}

	db := stdlib.OpenDBFromPool(p.raw)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)
	goose.SetTableName(migrationsTable)
	goose.SetLogger(gooseLogger{log: log})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("%w: %w", ErrMigrationFailed, err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("%w: %w", ErrMigrationFailed, err)
	}

	version, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMigrationFailed, err)
	}
	log.Info("db.migrate.done", "version", version)
	return nil
}

type gooseLogger struct{ log *slog.Logger }

func (g gooseLogger) Printf(format string, v ...any) {
	g.log.Info("db.migrate", "msg", fmt.Sprintf(format, v...))
}

func (g gooseLogger) Fatalf(format string, v ...any) {
	g.log.Error("db.migrate.fatal", "msg", fmt.Sprintf(format, v...))
}
