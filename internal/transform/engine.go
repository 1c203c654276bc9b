// Package transform applies named, ordered transformation rules to record
// batches. Rules select registered Go functions by handler name; the engine
// never executes rule-supplied source text.
package transform

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/propflow/etl-api/internal/models"
	"github.com/propflow/etl-api/internal/store"
)

// Func is a single registered transformer. It must treat the input record
// as read-only and return a new or cloned record.
type Func func(record models.Record, params map[string]string) (models.Record, error)

// RecordError ties a per-record failure to the rule that produced it. Bad
// records are excluded from the output; they never abort the batch.
type RecordError struct {
	RecordIndex int    `json:"record_index"`
	RuleID      string `json:"rule_id"`
	RuleName    string `json:"rule_name"`
	Message     string `json:"message"`
}

func (e RecordError) Error() string {
	return fmt.Sprintf("rule %s: record %d: %s", e.RuleName, e.RecordIndex, e.Message)
}

// Result is the outcome of applying a rule chain to a batch.
type Result struct {
	Records  []models.Record
	Errors   []RecordError
	Warnings []string
}

// Engine resolves rule ids against the rule store and executes their
// handlers in list order. Later rules observe earlier rules' output.
type Engine struct {
	rules  store.RuleStore
	logger zerolog.Logger

	mu       sync.RWMutex
	registry map[string]Func
}

func NewEngine(rules store.RuleStore, logger zerolog.Logger) *Engine {
	e := &Engine{
		rules:    rules,
		logger:   logger.With().Str("component", "transform").Logger(),
		registry: make(map[string]Func),
	}
	registerBuiltins(e)
	return e
}

// Register adds a transformer under the given handler name, replacing any
// previous registration.
func (e *Engine) Register(name string, fn Func) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.registry[name] = fn
}

// KnownHandler reports whether a handler name resolves to a registered
// transformer.
func (e *Engine) KnownHandler(name string) bool {
	_, ok := e.lookup(name)
	return ok
}

// Handlers lists the registered handler names in no particular order.
func (e *Engine) Handlers() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.registry))
	for name := range e.registry {
		names = append(names, name)
	}
	return names
}

func (e *Engine) lookup(name string) (Func, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	fn, ok := e.registry[name]
	return fn, ok
}

// Apply runs the rule chain over the batch. A rule id that does not resolve,
// or a handler that is not registered, is a hard error (the caller fails the
// run). A transformer that errors or panics on one record only excludes that
// record. Inactive rules are skipped with a warning note.
func (e *Engine) Apply(records []models.Record, ruleIDs []string) (Result, error) {
	result := Result{Records: records}

	for _, ruleID := range ruleIDs {
		rule, err := e.rules.GetByID(ruleID)
		if err != nil {
			return result, fmt.Errorf("transformation rule %s: %w", ruleID, err)
		}
		if !rule.Active {
			note := fmt.Sprintf("rule %q is inactive, skipped", rule.Name)
			result.Warnings = append(result.Warnings, note)
			e.logger.Warn().Str("rule_id", rule.ID).Msg("inactive rule referenced by job, skipping")
			continue
		}
		fn, ok := e.lookup(rule.Handler)
		if !ok {
			return result, fmt.Errorf("rule %q references unknown handler %q", rule.Name, rule.Handler)
		}

		kept := make([]models.Record, 0, len(result.Records))
		for i, record := range result.Records {
			out, err := applyOne(fn, record, rule.Params)
			if err != nil {
				result.Errors = append(result.Errors, RecordError{
					RecordIndex: i,
					RuleID:      rule.ID,
					RuleName:    rule.Name,
					Message:     err.Error(),
				})
				continue
			}
			kept = append(kept, out)
		}
		result.Records = kept
	}
	return result, nil
}

// applyOne isolates transformer panics so a misbehaving handler costs one
// record, not the batch.
func applyOne(fn Func, record models.Record, params map[string]string) (out models.Record, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("transformer panicked: %v", rec)
		}
	}()
	return fn(record, params)
}
