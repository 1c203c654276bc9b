// Package connector implements the capability contract between the
// orchestration core and concrete data-source kinds. The core only sees the
// Connector interface; everything network- or disk-shaped lives behind it.
package connector

import (
	"context"
	"fmt"

	"github.com/propflow/etl-api/internal/models"
)

// Connector is the per-kind capability a registered data source supplies.
// CheckAvailability must never panic; probe failures map to false.
type Connector interface {
	SourceName() string
	CheckAvailability(ctx context.Context) bool
	Extract(ctx context.Context) ([]models.Record, error)
	Load(ctx context.Context, records []models.Record) error
}

// Factory resolves a DataSource descriptor into a Connector.
type Factory interface {
	ForSource(ds models.DataSource) (Connector, error)
}

type factory struct{}

// NewFactory returns the default factory covering the database, api and
// file kinds.
func NewFactory() Factory {
	return &factory{}
}

func (f *factory) ForSource(ds models.DataSource) (Connector, error) {
	switch ds.Kind {
	case models.DataSourceKindDatabase:
		return newDatabaseConnector(ds)
	case models.DataSourceKindAPI:
		return newAPIConnector(ds)
	case models.DataSourceKindFile:
		return newFileConnector(ds)
	default:
		return nil, fmt.Errorf("unsupported data source kind %q", ds.Kind)
	}
}

func requiredConfig(ds models.DataSource, key string) (string, error) {
	val := ds.Config[key]
	if val == "" {
		return "", fmt.Errorf("data source %q is missing config key %q", ds.Name, key)
	}
	return val, nil
}
