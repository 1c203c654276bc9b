package migration

import (
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
)

// Embed SQL files from the local migrations folder
//
//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// RunMigrations prepares the archive schema. It is only called when an
// archive database is configured.
func RunMigrations(dbURL string, logger zerolog.Logger) error {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return fmt.Errorf("failed to connect to archive database: %w", err)
	}
	defer db.Close()

	// Ensure the etl schema exists before running migrations
	if _, err := db.Exec("CREATE SCHEMA IF NOT EXISTS etl"); err != nil {
		return fmt.Errorf("failed to create schema etl: %w", err)
	}
	if _, err := db.Exec("SET search_path TO etl"); err != nil {
		return fmt.Errorf("failed to set search path: %w", err)
	}

	goose.SetBaseFS(embeddedMigrations)
	goose.SetTableName("etl.goose_db_version")
	goose.SetLogger(NewGooseAdapter(logger))

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info().Msg("Archive migrations completed successfully")
	return nil
}

// GooseAdapter bridges goose's standard-library logger onto zerolog.
type GooseAdapter struct {
	logger zerolog.Logger
}

func NewGooseAdapter(logger zerolog.Logger) *GooseAdapter {
	return &GooseAdapter{logger: logger.With().Str("component", "goose").Logger()}
}

func (a *GooseAdapter) Fatalf(format string, v ...interface{}) {
	a.logger.Fatal().Msgf(format, v...)
}

func (a *GooseAdapter) Printf(format string, v ...interface{}) {
	a.logger.Info().Msgf(format, v...)
}
