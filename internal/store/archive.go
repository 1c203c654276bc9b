package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"

	"github.com/propflow/etl-api/internal/models"
)

// Archive mirrors terminal job runs and alerts into postgres so history
// survives restarts. It is write-only from the engine's point of view and
// never consulted on the hot path; the in-memory stores stay authoritative.
type Archive struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewArchive(db *sql.DB, logger zerolog.Logger) *Archive {
	return &Archive{
		db:     db,
		logger: logger.With().Str("component", "archive").Logger(),
	}
}

// SaveRun persists a terminal run. Errors are logged, not returned; archive
// failures must never fail a pipeline run.
func (a *Archive) SaveRun(ctx context.Context, run models.JobRun) {
	if a == nil || a.db == nil {
		return
	}
	const query = `
		INSERT INTO etl.job_runs (id, job_id, is_manual, status, started_at, ended_at, extracted, transformed, loaded, error_message, quality_issues)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`
	var issues interface{}
	if len(run.QualityIssues) > 0 {
		issues = strings.Join(run.QualityIssues, "\n")
	}
	_, err := a.db.ExecContext(ctx, query,
		run.ID, run.JobID, run.IsManual, string(run.Status),
		run.StartedAt, run.EndedAt,
		run.Counts.Extracted, run.Counts.Transformed, run.Counts.Loaded,
		nullable(run.Error), issues,
	)
	if err != nil {
		a.logger.Warn().Err(err).Str("run_id", run.ID).Msg("failed to archive job run")
	}
}

// SaveAlert persists an alert. Same failure policy as SaveRun.
func (a *Archive) SaveAlert(ctx context.Context, alert models.Alert) {
	if a == nil || a.db == nil {
		return
	}
	const query = `
		INSERT INTO etl.alerts (id, job_id, alert_type, message, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`
	var details interface{}
	if len(alert.Details) > 0 {
		bytes, err := json.Marshal(alert.Details)
		if err != nil {
			a.logger.Warn().Err(err).Str("alert_id", alert.ID).Msg("failed to marshal alert details")
		} else {
			details = bytes
		}
	}
	_, err := a.db.ExecContext(ctx, query,
		alert.ID, nullable(alert.JobID), string(alert.Type), alert.Message, details, alert.CreatedAt,
	)
	if err != nil {
		a.logger.Warn().Err(err).Str("alert_id", alert.ID).Msg("failed to archive alert")
	}
}

func nullable(s string) interface{} {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
