package connector

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/pkg/errors"

	"github.com/propflow/etl-api/internal/models"
)

const probeTimeout = 5 * time.Second

// databaseConnector extracts with a configured query and loads with
// generated inserts. Descriptor keys: dsn, extract_query, load_table,
// optional driver (defaults to postgres).
type databaseConnector struct {
	name         string
	db           *sql.DB
	extractQuery string
	loadTable    string
}

func newDatabaseConnector(ds models.DataSource) (*databaseConnector, error) {
	dsn, err := requiredConfig(ds, "dsn")
	if err != nil {
		return nil, err
	}
	driver := ds.Config["driver"]
	if driver == "" {
		driver = "postgres"
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database for source %q", ds.Name)
	}
	return &databaseConnector{
		name:         ds.Name,
		db:           db,
		extractQuery: ds.Config["extract_query"],
		loadTable:    ds.Config["load_table"],
	}, nil
}

func (c *databaseConnector) SourceName() string { return c.name }

// Close releases the connection pool. Called when the source's descriptor
// changes or the source is removed.
func (c *databaseConnector) Close() error { return c.db.Close() }

func (c *databaseConnector) CheckAvailability(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	return c.db.PingContext(ctx) == nil
}

func (c *databaseConnector) Extract(ctx context.Context) ([]models.Record, error) {
	if c.extractQuery == "" {
		return nil, fmt.Errorf("source %q has no extract_query configured", c.name)
	}
	rows, err := c.db.QueryContext(ctx, c.extractQuery)
	if err != nil {
		return nil, errors.Wrap(err, "extract query failed")
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read result columns")
	}

	var records []models.Record
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.Wrap(err, "failed to scan row")
		}
		record := make(models.Record, len(columns))
		for i, col := range columns {
			// Drivers hand back []byte for text columns; normalize to string.
			if b, ok := values[i].([]byte); ok {
				record[col] = string(b)
			} else {
				record[col] = values[i]
			}
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (c *databaseConnector) Load(ctx context.Context, records []models.Record) error {
	if c.loadTable == "" {
		return fmt.Errorf("target %q has no load_table configured", c.name)
	}
	if len(records) == 0 {
		return nil
	}

	columns := sortedColumns(records[0])
	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		c.loadTable,
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
	)

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin load transaction")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return errors.Wrap(err, "failed to prepare load statement")
	}
	defer stmt.Close()

	for _, record := range records {
		args := make([]interface{}, len(columns))
		for i, col := range columns {
			args[i] = record[col]
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return errors.Wrap(err, "failed to insert record")
		}
	}
	return tx.Commit()
}

func sortedColumns(record models.Record) []string {
	columns := make([]string, 0, len(record))
	for col := range record {
		columns = append(columns, col)
	}
	sort.Strings(columns)
	return columns
}
