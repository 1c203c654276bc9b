package models

import "time"

type AlertType string

const (
	AlertTypeSuccess AlertType = "success"
	AlertTypeError   AlertType = "error"
	AlertTypeWarning AlertType = "warning"
	AlertTypeInfo    AlertType = "info"
)

// Alert is an immutable, typed notification surfaced to operators. JobID is
// empty for system-level alerts. Read state is the only mutation.
type Alert struct {
	ID        string                 `json:"id"`
	JobID     string                 `json:"job_id,omitempty"`
	Type      AlertType              `json:"type"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	IsRead    bool                   `json:"is_read"`
}

func (a Alert) Clone() Alert {
	out := a
	if a.Details != nil {
		out.Details = make(map[string]interface{}, len(a.Details))
		for k, v := range a.Details {
			out.Details[k] = v
		}
	}
	return out
}
