package sources

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propflow/etl-api/internal/connector"
	"github.com/propflow/etl-api/internal/models"
	"github.com/propflow/etl-api/internal/store"
)

type scriptedConnector struct {
	available bool
	panics    bool
}

func (c *scriptedConnector) SourceName() string { return "scripted" }

func (c *scriptedConnector) CheckAvailability(context.Context) bool {
	if c.panics {
		panic("probe exploded")
	}
	return c.available
}

func (c *scriptedConnector) Extract(context.Context) ([]models.Record, error) { return nil, nil }

func (c *scriptedConnector) Load(context.Context, []models.Record) error { return nil }

type scriptedFactory struct {
	conn *scriptedConnector
	err  error
}

func (f *scriptedFactory) ForSource(models.DataSource) (connector.Connector, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.conn, nil
}

func newTestRegistry(t *testing.T, factory connector.Factory) (*Registry, store.DataSourceStore) {
	t.Helper()
	ds := store.NewMemoryDataSourceStore()
	return NewRegistry(ds, factory, zerolog.Nop()), ds
}

func TestRegisterValidation(t *testing.T) {
	reg, _ := newTestRegistry(t, &scriptedFactory{})

	_, err := reg.Register(models.DataSource{Name: "  ", Kind: models.DataSourceKindFile})
	assert.Error(t, err)

	_, err = reg.Register(models.DataSource{Name: "x", Kind: "carrier-pigeon"})
	assert.Error(t, err)

	created, err := reg.Register(models.DataSource{
		Name:      "mls-feed",
		Kind:      models.DataSourceKindAPI,
		Connected: true,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	// Connection state is earned by a probe, never supplied by the caller.
	assert.False(t, created.Connected)
	assert.Nil(t, created.LastConnectedAt)
}

func TestCheckAvailabilityFlipsConnected(t *testing.T) {
	conn := &scriptedConnector{available: true}
	reg, _ := newTestRegistry(t, &scriptedFactory{conn: conn})

	created, err := reg.Register(models.DataSource{Name: "mls", Kind: models.DataSourceKindAPI})
	require.NoError(t, err)

	assert.True(t, reg.CheckAvailability(context.Background(), created.ID))
	got, err := reg.Describe(created.ID)
	require.NoError(t, err)
	assert.True(t, got.Connected)
	require.NotNil(t, got.LastConnectedAt)

	// A failed probe clears connected but keeps the last success timestamp.
	conn.available = false
	assert.False(t, reg.CheckAvailability(context.Background(), created.ID))
	got, err = reg.Describe(created.ID)
	require.NoError(t, err)
	assert.False(t, got.Connected)
	assert.NotNil(t, got.LastConnectedAt)
}

func TestCheckAvailabilityNeverErrors(t *testing.T) {
	t.Run("unknown source", func(t *testing.T) {
		reg, _ := newTestRegistry(t, &scriptedFactory{})
		assert.False(t, reg.CheckAvailability(context.Background(), "missing"))
	})

	t.Run("broken descriptor", func(t *testing.T) {
		reg, _ := newTestRegistry(t, &scriptedFactory{err: fmt.Errorf("bad config")})
		created, err := reg.Register(models.DataSource{Name: "x", Kind: models.DataSourceKindFile})
		require.NoError(t, err)
		assert.False(t, reg.CheckAvailability(context.Background(), created.ID))
	})

	t.Run("panicking probe", func(t *testing.T) {
		reg, _ := newTestRegistry(t, &scriptedFactory{conn: &scriptedConnector{panics: true}})
		created, err := reg.Register(models.DataSource{Name: "x", Kind: models.DataSourceKindFile})
		require.NoError(t, err)
		assert.NotPanics(t, func() {
			assert.False(t, reg.CheckAvailability(context.Background(), created.ID))
		})
	})
}

func TestDisconnect(t *testing.T) {
	conn := &scriptedConnector{available: true}
	reg, _ := newTestRegistry(t, &scriptedFactory{conn: conn})

	created, err := reg.Register(models.DataSource{Name: "mls", Kind: models.DataSourceKindAPI})
	require.NoError(t, err)
	require.True(t, reg.CheckAvailability(context.Background(), created.ID))

	got, err := reg.Disconnect(created.ID)
	require.NoError(t, err)
	assert.False(t, got.Connected)
}

type closableConnector struct {
	scriptedConnector
	closed bool
}

func (c *closableConnector) Close() error {
	c.closed = true
	return nil
}

type countingFactory struct {
	conn  *closableConnector
	built int
}

func (f *countingFactory) ForSource(models.DataSource) (connector.Connector, error) {
	f.built++
	return f.conn, nil
}

func TestConnectorIsCachedPerSource(t *testing.T) {
	factory := &countingFactory{conn: &closableConnector{scriptedConnector: scriptedConnector{available: true}}}
	reg, _ := newTestRegistry(t, factory)

	created, err := reg.Register(models.DataSource{Name: "warehouse", Kind: models.DataSourceKindDatabase})
	require.NoError(t, err)

	first, err := reg.Connector(created.ID)
	require.NoError(t, err)
	second, err := reg.Connector(created.ID)
	require.NoError(t, err)
	assert.Same(t, first, second)

	// Probes resolve through the same cache instead of building anew.
	reg.CheckAvailability(context.Background(), created.ID)
	assert.Equal(t, 1, factory.built)
}

func TestUpdateEvictsAndClosesConnector(t *testing.T) {
	old := &closableConnector{}
	factory := &countingFactory{conn: old}
	reg, _ := newTestRegistry(t, factory)

	created, err := reg.Register(models.DataSource{Name: "warehouse", Kind: models.DataSourceKindDatabase})
	require.NoError(t, err)
	_, err = reg.Connector(created.ID)
	require.NoError(t, err)

	_, err = reg.Update(created.ID, func(ds *models.DataSource) {
		ds.Config = map[string]string{"dsn": "postgres://elsewhere"}
	})
	require.NoError(t, err)
	assert.True(t, old.closed)

	// The next resolution rebuilds from the new descriptor.
	fresh := &closableConnector{}
	factory.conn = fresh
	got, err := reg.Connector(created.ID)
	require.NoError(t, err)
	assert.Same(t, connector.Connector(fresh), got)
	assert.Equal(t, 2, factory.built)
}

func TestDeleteClosesConnector(t *testing.T) {
	conn := &closableConnector{}
	reg, _ := newTestRegistry(t, &countingFactory{conn: conn})

	created, err := reg.Register(models.DataSource{Name: "warehouse", Kind: models.DataSourceKindDatabase})
	require.NoError(t, err)
	_, err = reg.Connector(created.ID)
	require.NoError(t, err)

	require.True(t, reg.Delete(created.ID))
	assert.True(t, conn.closed)
}

func TestDisconnectClosesConnector(t *testing.T) {
	conn := &closableConnector{scriptedConnector: scriptedConnector{available: true}}
	reg, _ := newTestRegistry(t, &countingFactory{conn: conn})

	created, err := reg.Register(models.DataSource{Name: "warehouse", Kind: models.DataSourceKindDatabase})
	require.NoError(t, err)
	require.True(t, reg.CheckAvailability(context.Background(), created.ID))

	_, err = reg.Disconnect(created.ID)
	require.NoError(t, err)
	assert.True(t, conn.closed)
}

func TestDeleteIsPermissive(t *testing.T) {
	reg, _ := newTestRegistry(t, &scriptedFactory{})
	created, err := reg.Register(models.DataSource{Name: "mls", Kind: models.DataSourceKindAPI})
	require.NoError(t, err)

	assert.True(t, reg.Delete(created.ID))
	assert.False(t, reg.Delete(created.ID))
	_, err = reg.Describe(created.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
