package cardinfra

import (
	"context"
	"embed"
	"fmt"
	"strings"

	"github.com/Abraxas-365/flashmoji/pkg/errx"
	"github.com/Abraxas-365/flashmoji/pkg/logx"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// MigrationsTable is the goose version table used by Migrate
const MigrationsTable = "flashmoji_schema_migrations"

type gooseLogger struct{}

func (gooseLogger) Printf(format string, v ...interface{}) {
	logx.Debugf("goose: %s", strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (gooseLogger) Fatalf(format string, v ...interface{}) {
	logx.Errorf("goose: %s", strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// Migrate applies the embedded word_entries migrations
func Migrate(ctx context.Context, db *sqlx.DB) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{})
	goose.SetTableName(MigrationsTable)

	if err := goose.SetDialect("postgres"); err != nil {
		return errx.Wrap(err, "failed to set migration dialect", errx.TypeInternal)
	}
	if err := goose.UpContext(ctx, db.DB, "migrations"); err != nil {
		return errx.Wrap(err, "failed to apply word_entries migrations", errx.TypeInternal)
	}
	return nil
}
