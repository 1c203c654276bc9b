package models

import "time"

// TransformationRule names a registered transformer and the parameters it
// runs with. Handler selects a function from the transform registry; rules
// never carry executable source text.
type TransformationRule struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	TargetType  string            `json:"target_type"`
	Handler     string            `json:"handler"`
	Params      map[string]string `json:"params,omitempty"`
	Active      bool              `json:"active"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func (r TransformationRule) Clone() TransformationRule {
	out := r
	if r.Params != nil {
		out.Params = make(map[string]string, len(r.Params))
		for k, v := range r.Params {
			out.Params[k] = v
		}
	}
	return out
}
