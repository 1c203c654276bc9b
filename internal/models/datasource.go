package models

import "time"

type DataSourceKind string

const (
	DataSourceKindDatabase DataSourceKind = "database"
	DataSourceKindAPI      DataSourceKind = "api"
	DataSourceKindFile     DataSourceKind = "file"
)

func IsValidDataSourceKind(kind DataSourceKind) bool {
	switch kind {
	case DataSourceKindDatabase, DataSourceKindAPI, DataSourceKindFile:
		return true
	}
	return false
}

// DataSource is a registered external system a job can extract from or load
// into. Config holds the kind-specific connection descriptor (DSN and query
// for databases, base URL and paths for APIs, path and format for files).
type DataSource struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	Description     string            `json:"description"`
	Kind            DataSourceKind    `json:"kind"`
	Config          map[string]string `json:"config"`
	Connected       bool              `json:"connected"`
	LastConnectedAt *time.Time        `json:"last_connected_at,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

func (d DataSource) Clone() DataSource {
	out := d
	if d.Config != nil {
		out.Config = make(map[string]string, len(d.Config))
		for k, v := range d.Config {
			out.Config[k] = v
		}
	}
	if d.LastConnectedAt != nil {
		t := *d.LastConnectedAt
		out.LastConnectedAt = &t
	}
	return out
}
