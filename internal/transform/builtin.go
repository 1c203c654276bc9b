package transform

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/propflow/etl-api/internal/models"
)

// The builtin set covers the common cleanups for property records: string
// normalization, field renames, numeric coercion and unit conversion.
func registerBuiltins(e *Engine) {
	e.Register("trim_strings", trimStrings)
	e.Register("uppercase_field", uppercaseField)
	e.Register("rename_field", renameField)
	e.Register("parse_float", parseFloat)
	e.Register("require_field", requireField)
	e.Register("default_value", defaultValue)
	e.Register("sqft_to_sqm", sqftToSqm)
	e.Register("cents_to_units", centsToUnits)
}

func trimStrings(record models.Record, _ map[string]string) (models.Record, error) {
	out := record.Clone()
	for k, v := range out {
		if s, ok := v.(string); ok {
			out[k] = strings.TrimSpace(s)
		}
	}
	return out, nil
}

func uppercaseField(record models.Record, params map[string]string) (models.Record, error) {
	field, err := param(params, "field")
	if err != nil {
		return nil, err
	}
	out := record.Clone()
	if s, ok := out[field].(string); ok {
		out[field] = strings.ToUpper(s)
	}
	return out, nil
}

func renameField(record models.Record, params map[string]string) (models.Record, error) {
	from, err := param(params, "from")
	if err != nil {
		return nil, err
	}
	to, err := param(params, "to")
	if err != nil {
		return nil, err
	}
	out := record.Clone()
	if v, ok := out[from]; ok {
		out[to] = v
		delete(out, from)
	}
	return out, nil
}

func parseFloat(record models.Record, params map[string]string) (models.Record, error) {
	field, err := param(params, "field")
	if err != nil {
		return nil, err
	}
	out := record.Clone()
	switch v := out[field].(type) {
	case nil:
		return out, nil
	case float64:
		return out, nil
	case int:
		out[field] = float64(v)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("field %q: cannot parse %q as number", field, v)
		}
		out[field] = f
	default:
		return nil, fmt.Errorf("field %q: unsupported type %T", field, v)
	}
	return out, nil
}

func requireField(record models.Record, params map[string]string) (models.Record, error) {
	field, err := param(params, "field")
	if err != nil {
		return nil, err
	}
	v, ok := record[field]
	if !ok || v == nil || v == "" {
		return nil, fmt.Errorf("missing required field %q", field)
	}
	return record, nil
}

func defaultValue(record models.Record, params map[string]string) (models.Record, error) {
	field, err := param(params, "field")
	if err != nil {
		return nil, err
	}
	out := record.Clone()
	if v, ok := out[field]; !ok || v == nil || v == "" {
		out[field] = params["value"]
	}
	return out, nil
}

func sqftToSqm(record models.Record, params map[string]string) (models.Record, error) {
	return scaleField(record, params, 0.09290304)
}

func centsToUnits(record models.Record, params map[string]string) (models.Record, error) {
	return scaleField(record, params, 0.01)
}

func scaleField(record models.Record, params map[string]string, factor float64) (models.Record, error) {
	field, err := param(params, "field")
	if err != nil {
		return nil, err
	}
	out, err := parseFloat(record, params)
	if err != nil {
		return nil, err
	}
	if f, ok := out[field].(float64); ok {
		out[field] = f * factor
	}
	return out, nil
}

func param(params map[string]string, key string) (string, error) {
	v := params[key]
	if v == "" {
		return "", fmt.Errorf("rule is missing param %q", key)
	}
	return v, nil
}
