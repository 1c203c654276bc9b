// Package quality computes per-field statistics and data quality issues
// over record batches. It only classifies; visualization and any decision
// about what to do with a flagged batch belong to the caller.
package quality

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/propflow/etl-api/internal/models"
)

type IssueKind string

const (
	IssueMissingValues    IssueKind = "missing_values"
	IssueTypeMismatch     IssueKind = "type_mismatch"
	IssueOutOfRange       IssueKind = "out_of_range"
	IssueOutlier          IssueKind = "outlier"
	IssueInsufficientData IssueKind = "insufficient_data"
)

type Issue struct {
	Field   string    `json:"field,omitempty"`
	Kind    IssueKind `json:"kind"`
	Message string    `json:"message"`
}

func (i Issue) String() string {
	if i.Field == "" {
		return fmt.Sprintf("%s: %s", i.Kind, i.Message)
	}
	return fmt.Sprintf("%s [%s]: %s", i.Kind, i.Field, i.Message)
}

// FieldStatistics covers one attribute across the batch. Min/Max/Mean are
// only meaningful when NumericCount > 0.
type FieldStatistics struct {
	Count          int     `json:"count"`
	Missing        int     `json:"missing"`
	MissingRate    float64 `json:"missing_rate"`
	NumericCount   int     `json:"numeric_count"`
	TypeMismatches int     `json:"type_mismatches"`
	Min            float64 `json:"min"`
	Max            float64 `json:"max"`
	Mean           float64 `json:"mean"`
}

type Metadata struct {
	TotalRecords     int       `json:"total_records"`
	InsufficientData bool      `json:"insufficient_data"`
	AnalyzedAt       time.Time `json:"analyzed_at"`
}

type Report struct {
	Issues     []Issue                    `json:"issues"`
	FieldStats map[string]FieldStatistics `json:"field_statistics"`
	Metadata   Metadata                   `json:"metadata"`
}

// IssueStrings flattens the issues for attachment to a run.
func (r Report) IssueStrings() []string {
	out := make([]string, 0, len(r.Issues))
	for _, issue := range r.Issues {
		out = append(out, issue.String())
	}
	return out
}

// Range bounds an attribute for out-of-range checks. Nil means unbounded.
type Range struct {
	Min *float64
	Max *float64
}

type Options struct {
	// Attributes to analyze; empty means every field seen in the batch.
	Attributes []string
	// Below this record count the analyzer reports insufficient data
	// instead of statistics.
	MinRecordsForStats int
	// Missing-value rate above which an issue is raised.
	MissingRateThreshold float64
	// Expected numeric bounds per attribute.
	Ranges map[string]Range
	// Z-score beyond which numeric values are flagged as outliers.
	// Zero disables outlier detection.
	OutlierZScore float64
}

type Analyzer struct {
	defaults Options
	logger   zerolog.Logger
}

func NewAnalyzer(defaults Options, logger zerolog.Logger) *Analyzer {
	if defaults.MinRecordsForStats <= 0 {
		defaults.MinRecordsForStats = 3
	}
	if defaults.MissingRateThreshold <= 0 {
		defaults.MissingRateThreshold = 0.2
	}
	return &Analyzer{
		defaults: defaults,
		logger:   logger.With().Str("component", "quality").Logger(),
	}
}

// Analyze computes the report with the analyzer defaults.
func (a *Analyzer) Analyze(records []models.Record) Report {
	return a.AnalyzeWith(records, a.defaults)
}

// AnalyzeWith computes the report with explicit options. It degrades
// gracefully: too few records yields an explicit insufficient-data result.
func (a *Analyzer) AnalyzeWith(records []models.Record, opts Options) Report {
	if opts.MinRecordsForStats <= 0 {
		opts.MinRecordsForStats = a.defaults.MinRecordsForStats
	}
	if opts.MissingRateThreshold <= 0 {
		opts.MissingRateThreshold = a.defaults.MissingRateThreshold
	}

	report := Report{
		FieldStats: make(map[string]FieldStatistics),
		Metadata: Metadata{
			TotalRecords: len(records),
			AnalyzedAt:   time.Now(),
		},
	}

	if len(records) < opts.MinRecordsForStats {
		report.Metadata.InsufficientData = true
		report.Issues = append(report.Issues, Issue{
			Kind: IssueInsufficientData,
			Message: fmt.Sprintf("%d records is below the %d required for statistics",
				len(records), opts.MinRecordsForStats),
		})
		return report
	}

	attributes := opts.Attributes
	if len(attributes) == 0 {
		attributes = collectAttributes(records)
	}

	for _, attr := range attributes {
		stats, values := fieldStats(records, attr)

		if stats.MissingRate > opts.MissingRateThreshold {
			report.Issues = append(report.Issues, Issue{
				Field: attr,
				Kind:  IssueMissingValues,
				Message: fmt.Sprintf("%.0f%% of records have no value (threshold %.0f%%)",
					stats.MissingRate*100, opts.MissingRateThreshold*100),
			})
		}
		if stats.TypeMismatches > 0 {
			report.Issues = append(report.Issues, Issue{
				Field:   attr,
				Kind:    IssueTypeMismatch,
				Message: fmt.Sprintf("%d values are not of the dominant type", stats.TypeMismatches),
			})
		}
		if bounds, ok := opts.Ranges[attr]; ok {
			for _, v := range values {
				if (bounds.Min != nil && v < *bounds.Min) || (bounds.Max != nil && v > *bounds.Max) {
					report.Issues = append(report.Issues, Issue{
						Field:   attr,
						Kind:    IssueOutOfRange,
						Message: fmt.Sprintf("value %g outside expected range", v),
					})
				}
			}
		}
		if opts.OutlierZScore > 0 && len(values) >= opts.MinRecordsForStats {
			for _, v := range outliers(values, opts.OutlierZScore) {
				report.Issues = append(report.Issues, Issue{
					Field:   attr,
					Kind:    IssueOutlier,
					Message: fmt.Sprintf("value %g deviates more than %.1f standard deviations from the mean", v, opts.OutlierZScore),
				})
			}
		}

		report.FieldStats[attr] = stats
	}

	return report
}

func collectAttributes(records []models.Record) []string {
	seen := make(map[string]struct{})
	for _, record := range records {
		for k := range record {
			seen[k] = struct{}{}
		}
	}
	attrs := make([]string, 0, len(seen))
	for k := range seen {
		attrs = append(attrs, k)
	}
	sort.Strings(attrs)
	return attrs
}

func fieldStats(records []models.Record, attr string) (FieldStatistics, []float64) {
	stats := FieldStatistics{Count: len(records)}
	var values []float64
	numeric, nonNumeric := 0, 0

	for _, record := range records {
		v, ok := record[attr]
		if !ok || v == nil || v == "" {
			stats.Missing++
			continue
		}
		if f, ok := asFloat(v); ok {
			numeric++
			values = append(values, f)
		} else {
			nonNumeric++
		}
	}

	if stats.Count > 0 {
		stats.MissingRate = float64(stats.Missing) / float64(stats.Count)
	}
	stats.NumericCount = numeric
	// Dominant type wins; the minority counts as mismatched.
	if numeric > 0 && nonNumeric > 0 {
		if numeric >= nonNumeric {
			stats.TypeMismatches = nonNumeric
		} else {
			stats.TypeMismatches = numeric
		}
	}

	if len(values) > 0 {
		stats.Min = values[0]
		stats.Max = values[0]
		sum := 0.0
		for _, v := range values {
			if v < stats.Min {
				stats.Min = v
			}
			if v > stats.Max {
				stats.Max = v
			}
			sum += v
		}
		stats.Mean = sum / float64(len(values))
	}
	return stats, values
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func outliers(values []float64, zThreshold float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))
	stddev := math.Sqrt(variance)
	if stddev == 0 {
		return nil
	}

	var out []float64
	for _, v := range values {
		if math.Abs(v-mean)/stddev > zThreshold {
			out = append(out, v)
		}
	}
	return out
}
