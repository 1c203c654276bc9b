package transform

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propflow/etl-api/internal/models"
	"github.com/propflow/etl-api/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, store.RuleStore) {
	t.Helper()
	rules := store.NewMemoryRuleStore()
	return NewEngine(rules, zerolog.Nop()), rules
}

func TestApplyRunsRulesInOrder(t *testing.T) {
	engine, rules := newTestEngine(t)

	rename := rules.Create(models.TransformationRule{
		Name:    "rename-size",
		Handler: "rename_field",
		Params:  map[string]string{"from": "size_sqft", "to": "size"},
		Active:  true,
	})
	convert := rules.Create(models.TransformationRule{
		Name:    "to-sqm",
		Handler: "sqft_to_sqm",
		Params:  map[string]string{"field": "size"},
		Active:  true,
	})

	records := []models.Record{{"size_sqft": 1000.0}}
	result, err := engine.Apply(records, []string{rename.ID, convert.ID})
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.InDelta(t, 92.90304, result.Records[0]["size"], 0.0001)
	_, stillThere := result.Records[0]["size_sqft"]
	assert.False(t, stillThere)
}

func TestApplyIsolatesFailingRecords(t *testing.T) {
	engine, rules := newTestEngine(t)

	rule := rules.Create(models.TransformationRule{
		Name:    "numeric-price",
		Handler: "parse_float",
		Params:  map[string]string{"field": "price"},
		Active:  true,
	})

	records := []models.Record{
		{"price": "100000"},
		{"price": "oops"},
		{"price": "250000"},
		{"price": 310000.0},
		{"price": "480000"},
	}
	result, err := engine.Apply(records, []string{rule.ID})
	require.NoError(t, err)

	assert.Len(t, result.Records, 4)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 1, result.Errors[0].RecordIndex)
	assert.Equal(t, rule.ID, result.Errors[0].RuleID)
	assert.Contains(t, result.Errors[0].Message, "oops")
}

func TestApplyIsolatesPanickingTransformer(t *testing.T) {
	engine, rules := newTestEngine(t)
	engine.Register("explode", func(record models.Record, _ map[string]string) (models.Record, error) {
		if record["boom"] == true {
			panic("transformer bug")
		}
		return record, nil
	})

	rule := rules.Create(models.TransformationRule{Name: "explosive", Handler: "explode", Active: true})

	records := []models.Record{
		{"id": 1},
		{"id": 2, "boom": true},
		{"id": 3},
	}
	result, err := engine.Apply(records, []string{rule.ID})
	require.NoError(t, err)

	assert.Len(t, result.Records, 2)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, "panicked")
}

func TestApplyMissingRuleIsHardError(t *testing.T) {
	engine, _ := newTestEngine(t)
	_, err := engine.Apply([]models.Record{{"a": 1}}, []string{"gone"})
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestApplyUnknownHandlerIsHardError(t *testing.T) {
	engine, rules := newTestEngine(t)
	rule := rules.Create(models.TransformationRule{Name: "ghost", Handler: "not_registered", Active: true})

	_, err := engine.Apply([]models.Record{{"a": 1}}, []string{rule.ID})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown handler")
}

func TestApplySkipsInactiveRulesWithWarning(t *testing.T) {
	engine, rules := newTestEngine(t)
	rule := rules.Create(models.TransformationRule{
		Name:    "retired",
		Handler: "trim_strings",
		Active:  false,
	})

	records := []models.Record{{"city": "  Portland  "}}
	result, err := engine.Apply(records, []string{rule.ID})
	require.NoError(t, err)

	assert.Equal(t, "  Portland  ", result.Records[0]["city"])
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "inactive")
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	engine, rules := newTestEngine(t)
	rule := rules.Create(models.TransformationRule{
		Name:    "upper-city",
		Handler: "uppercase_field",
		Params:  map[string]string{"field": "city"},
		Active:  true,
	})

	input := []models.Record{{"city": "salem"}}
	result, err := engine.Apply(input, []string{rule.ID})
	require.NoError(t, err)

	assert.Equal(t, "SALEM", result.Records[0]["city"])
	assert.Equal(t, "salem", input[0]["city"])
}

func TestBuiltins(t *testing.T) {
	engine, rules := newTestEngine(t)

	apply := func(t *testing.T, handler string, params map[string]string, record models.Record) (models.Record, []RecordError) {
		t.Helper()
		rule := rules.Create(models.TransformationRule{
			Name:    fmt.Sprintf("test-%s", handler),
			Handler: handler,
			Params:  params,
			Active:  true,
		})
		result, err := engine.Apply([]models.Record{record}, []string{rule.ID})
		require.NoError(t, err)
		if len(result.Records) == 0 {
			return nil, result.Errors
		}
		return result.Records[0], result.Errors
	}

	t.Run("trim_strings", func(t *testing.T) {
		out, _ := apply(t, "trim_strings", nil, models.Record{"a": " x ", "n": 5})
		assert.Equal(t, "x", out["a"])
		assert.Equal(t, 5, out["n"])
	})

	t.Run("require_field rejects empty", func(t *testing.T) {
		out, errs := apply(t, "require_field", map[string]string{"field": "zip"}, models.Record{"zip": ""})
		assert.Nil(t, out)
		assert.Len(t, errs, 1)
	})

	t.Run("default_value fills blanks", func(t *testing.T) {
		out, _ := apply(t, "default_value", map[string]string{"field": "state", "value": "OR"}, models.Record{})
		assert.Equal(t, "OR", out["state"])
	})

	t.Run("default_value keeps existing", func(t *testing.T) {
		out, _ := apply(t, "default_value", map[string]string{"field": "state", "value": "OR"}, models.Record{"state": "WA"})
		assert.Equal(t, "WA", out["state"])
	})

	t.Run("cents_to_units", func(t *testing.T) {
		out, _ := apply(t, "cents_to_units", map[string]string{"field": "price"}, models.Record{"price": 1999})
		assert.InDelta(t, 19.99, out["price"], 0.0001)
	})

	t.Run("parse_float from string", func(t *testing.T) {
		out, _ := apply(t, "parse_float", map[string]string{"field": "beds"}, models.Record{"beds": " 3 "})
		assert.Equal(t, 3.0, out["beds"])
	})
}
