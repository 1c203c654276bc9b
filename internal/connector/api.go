package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/propflow/etl-api/internal/models"
)

// apiConnector talks JSON to a third-party HTTP endpoint. Descriptor keys:
// base_url, extract_path, load_path, optional health_path and auth_token.
type apiConnector struct {
	name        string
	baseURL     string
	extractPath string
	loadPath    string
	healthPath  string
	authToken   string
	client      *http.Client
}

func newAPIConnector(ds models.DataSource) (*apiConnector, error) {
	baseURL, err := requiredConfig(ds, "base_url")
	if err != nil {
		return nil, err
	}
	return &apiConnector{
		name:        ds.Name,
		baseURL:     strings.TrimRight(baseURL, "/"),
		extractPath: ds.Config["extract_path"],
		loadPath:    ds.Config["load_path"],
		healthPath:  ds.Config["health_path"],
		authToken:   ds.Config["auth_token"],
		client:      &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (c *apiConnector) SourceName() string { return c.name }

func (c *apiConnector) CheckAvailability(ctx context.Context) bool {
	path := c.healthPath
	if path == "" {
		path = c.extractPath
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(path), nil)
	if err != nil {
		return false
	}
	c.authorize(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}

func (c *apiConnector) Extract(ctx context.Context) ([]models.Record, error) {
	if c.extractPath == "" {
		return nil, fmt.Errorf("source %q has no extract_path configured", c.name)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(c.extractPath), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build extract request")
	}
	c.authorize(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "extract request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("extract request returned status %d", resp.StatusCode)
	}

	var records []models.Record
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, errors.Wrap(err, "failed to decode extract response")
	}
	return records, nil
}

func (c *apiConnector) Load(ctx context.Context, records []models.Record) error {
	if c.loadPath == "" {
		return fmt.Errorf("target %q has no load_path configured", c.name)
	}
	body, err := json.Marshal(records)
	if err != nil {
		return errors.Wrap(err, "failed to marshal records")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(c.loadPath), bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to build load request")
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "load request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("load request returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *apiConnector) url(path string) string {
	if path == "" {
		return c.baseURL
	}
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

func (c *apiConnector) authorize(req *http.Request) {
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
}
