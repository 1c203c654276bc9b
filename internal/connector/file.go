package connector

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/pkg/errors"

	"github.com/propflow/etl-api/internal/models"
)

// fileConnector reads and writes record sets on local disk. Descriptor keys:
// path (extract side), load_path, format (json or csv, defaults to json).
type fileConnector struct {
	name     string
	path     string
	loadPath string
	format   string
}

func newFileConnector(ds models.DataSource) (*fileConnector, error) {
	path := ds.Config["path"]
	loadPath := ds.Config["load_path"]
	if path == "" && loadPath == "" {
		return nil, fmt.Errorf("data source %q needs a path or load_path", ds.Name)
	}
	format := ds.Config["format"]
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "csv" {
		return nil, fmt.Errorf("data source %q has unsupported format %q", ds.Name, format)
	}
	return &fileConnector{name: ds.Name, path: path, loadPath: loadPath, format: format}, nil
}

func (c *fileConnector) SourceName() string { return c.name }

func (c *fileConnector) CheckAvailability(ctx context.Context) bool {
	path := c.path
	if path == "" {
		path = c.loadPath
	}
	_, err := os.Stat(path)
	if os.IsNotExist(err) && c.path == "" {
		// A pure load target may not exist yet; writable is good enough.
		return true
	}
	return err == nil
}

func (c *fileConnector) Extract(ctx context.Context) ([]models.Record, error) {
	if c.path == "" {
		return nil, fmt.Errorf("source %q has no path configured", c.name)
	}
	if c.format == "csv" {
		return c.extractCSV()
	}
	return c.extractJSON()
}

func (c *fileConnector) extractJSON() ([]models.Record, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", c.path)
	}
	var records []models.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", c.path)
	}
	return records, nil
}

func (c *fileConnector) extractCSV() ([]models.Record, error) {
	f, err := os.Open(c.path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", c.path)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", c.path)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	header := rows[0]
	records := make([]models.Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		record := make(models.Record, len(header))
		for i, col := range header {
			if i < len(row) {
				record[col] = row[i]
			}
		}
		records = append(records, record)
	}
	return records, nil
}

func (c *fileConnector) Load(ctx context.Context, records []models.Record) error {
	path := c.loadPath
	if path == "" {
		path = c.path
	}
	if c.format == "csv" {
		return c.loadCSV(path, records)
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal records")
	}
	return os.WriteFile(path, data, 0644)
}

func (c *fileConnector) loadCSV(path string, records []models.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	defer writer.Flush()

	if len(records) == 0 {
		return nil
	}
	header := make([]string, 0, len(records[0]))
	for col := range records[0] {
		header = append(header, col)
	}
	sort.Strings(header)
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, record := range records {
		row := make([]string, len(header))
		for i, col := range header {
			if v, ok := record[col]; ok && v != nil {
				row[i] = fmt.Sprintf("%v", v)
			}
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	return nil
}
