// Package sources implements the data source registry: connection
// descriptors for the external systems jobs extract from and load into.
package sources

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/propflow/etl-api/internal/connector"
	"github.com/propflow/etl-api/internal/models"
	"github.com/propflow/etl-api/internal/store"
)

// Registry holds registered data sources. It carries no execution logic;
// external I/O lives behind the connector the factory supplies. Connectors
// are cached per source so a database source keeps one connection pool
// across runs instead of opening a fresh one per stage.
type Registry struct {
	store   store.DataSourceStore
	factory connector.Factory
	logger  zerolog.Logger

	mu    sync.Mutex
	conns map[string]connector.Connector
}

func NewRegistry(s store.DataSourceStore, factory connector.Factory, logger zerolog.Logger) *Registry {
	return &Registry{
		store:   s,
		factory: factory,
		logger:  logger.With().Str("component", "sources").Logger(),
		conns:   make(map[string]connector.Connector),
	}
}

// Register creates a data source from a descriptor. Identity is assigned
// here; the registry does not deduplicate by name.
func (r *Registry) Register(ds models.DataSource) (models.DataSource, error) {
	if strings.TrimSpace(ds.Name) == "" {
		return models.DataSource{}, fmt.Errorf("data source name is required")
	}
	if !models.IsValidDataSourceKind(ds.Kind) {
		return models.DataSource{}, fmt.Errorf("unknown data source kind %q", ds.Kind)
	}
	ds.ID = ""
	ds.Connected = false
	ds.LastConnectedAt = nil
	created := r.store.Create(ds)
	r.logger.Info().Str("source_id", created.ID).Str("kind", string(created.Kind)).Msg("data source registered")
	return created, nil
}

// Describe returns the data source, or store.ErrNotFound.
func (r *Registry) Describe(id string) (models.DataSource, error) {
	return r.store.GetByID(id)
}

func (r *Registry) List() []models.DataSource {
	return r.store.List()
}

func (r *Registry) Update(id string, mutate func(*models.DataSource)) (models.DataSource, error) {
	updated, err := r.store.Update(id, mutate)
	if err == nil {
		// The cached connector was built from the old descriptor.
		r.evict(id)
	}
	return updated, err
}

func (r *Registry) Delete(id string) bool {
	// Permissive: jobs referencing this source keep their id and fail at
	// run time with a FAILED run.
	deleted := r.store.Delete(id)
	if deleted {
		r.evict(id)
	}
	return deleted
}

// CheckAvailability probes the source. It never returns an error: a missing
// source, a broken descriptor or a panicking probe all map to false. A
// successful probe flips connected and stamps lastConnectedAt.
func (r *Registry) CheckAvailability(ctx context.Context, id string) (available bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().Interface("panic", rec).Str("source_id", id).Msg("availability probe panicked")
			available = false
		}
	}()

	conn, err := r.Connector(id)
	if err != nil {
		r.logger.Warn().Err(err).Str("source_id", id).Msg("could not resolve connector for probe")
		return false
	}

	available = conn.CheckAvailability(ctx)
	now := time.Now()
	_, updateErr := r.store.Update(id, func(ds *models.DataSource) {
		ds.Connected = available
		if available {
			ds.LastConnectedAt = &now
		}
	})
	if updateErr != nil {
		r.logger.Warn().Err(updateErr).Str("source_id", id).Msg("failed to record probe result")
	}
	return available
}

// Disconnect clears the connected flag and drops the live connector.
func (r *Registry) Disconnect(id string) (models.DataSource, error) {
	updated, err := r.store.Update(id, func(ds *models.DataSource) {
		ds.Connected = false
	})
	if err == nil {
		r.evict(id)
	}
	return updated, err
}

// Connector resolves the connector for a stored source, for use by the
// pipeline's extract and load stages. The first resolution builds the
// connector; later calls reuse it until the source is updated, deleted or
// disconnected.
func (r *Registry) Connector(id string) (connector.Connector, error) {
	ds, err := r.store.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("data source %s: %w", id, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if conn, ok := r.conns[id]; ok {
		return conn, nil
	}
	conn, err := r.factory.ForSource(ds)
	if err != nil {
		return nil, err
	}
	r.conns[id] = conn
	return conn, nil
}

// evict drops the cached connector and releases whatever it holds open.
func (r *Registry) evict(id string) {
	r.mu.Lock()
	conn, ok := r.conns[id]
	delete(r.conns, id)
	r.mu.Unlock()
	if !ok {
		return
	}
	if closer, ok := conn.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			r.logger.Warn().Err(err).Str("source_id", id).Msg("failed to close connector")
		}
	}
}
