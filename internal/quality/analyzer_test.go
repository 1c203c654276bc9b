package quality

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propflow/etl-api/internal/models"
)

func floatPtr(f float64) *float64 { return &f }

func records(prices ...interface{}) []models.Record {
	out := make([]models.Record, 0, len(prices))
	for _, p := range prices {
		r := models.Record{"address": "1 Main St"}
		if p != nil {
			r["price"] = p
		}
		out = append(out, r)
	}
	return out
}

func TestAnalyzeInsufficientData(t *testing.T) {
	a := NewAnalyzer(Options{MinRecordsForStats: 5}, zerolog.Nop())

	report := a.Analyze(records(100.0, 200.0))

	assert.True(t, report.Metadata.InsufficientData)
	require.Len(t, report.Issues, 1)
	assert.Equal(t, IssueInsufficientData, report.Issues[0].Kind)
	assert.Empty(t, report.FieldStats)
}

func TestAnalyzeMissingValues(t *testing.T) {
	a := NewAnalyzer(Options{MissingRateThreshold: 0.2}, zerolog.Nop())

	// 2 of 5 prices missing: 40% > 20% threshold.
	report := a.Analyze(records(100.0, nil, 300.0, nil, 500.0))

	require.False(t, report.Metadata.InsufficientData)
	var missing []Issue
	for _, issue := range report.Issues {
		if issue.Kind == IssueMissingValues {
			missing = append(missing, issue)
		}
	}
	require.Len(t, missing, 1)
	assert.Equal(t, "price", missing[0].Field)

	stats := report.FieldStats["price"]
	assert.Equal(t, 5, stats.Count)
	assert.Equal(t, 2, stats.Missing)
	assert.InDelta(t, 0.4, stats.MissingRate, 0.0001)
}

func TestAnalyzeTypeMismatch(t *testing.T) {
	a := NewAnalyzer(Options{}, zerolog.Nop())

	report := a.Analyze(records(100.0, 200.0, "expensive", 400.0))

	var mismatches []Issue
	for _, issue := range report.Issues {
		if issue.Kind == IssueTypeMismatch {
			mismatches = append(mismatches, issue)
		}
	}
	require.Len(t, mismatches, 1)
	assert.Equal(t, "price", mismatches[0].Field)
	assert.Equal(t, 1, report.FieldStats["price"].TypeMismatches)
}

func TestAnalyzeOutOfRange(t *testing.T) {
	a := NewAnalyzer(Options{
		Ranges: map[string]Range{
			"price": {Min: floatPtr(0), Max: floatPtr(1000000)},
		},
	}, zerolog.Nop())

	report := a.Analyze(records(250000.0, -5.0, 9000000.0))

	var outOfRange []Issue
	for _, issue := range report.Issues {
		if issue.Kind == IssueOutOfRange {
			outOfRange = append(outOfRange, issue)
		}
	}
	assert.Len(t, outOfRange, 2)
}

func TestAnalyzeOutliers(t *testing.T) {
	a := NewAnalyzer(Options{OutlierZScore: 2.0}, zerolog.Nop())

	// Tight cluster plus one far point.
	report := a.Analyze(records(100.0, 101.0, 99.0, 100.0, 102.0, 98.0, 100.0, 5000.0))

	var outliers []Issue
	for _, issue := range report.Issues {
		if issue.Kind == IssueOutlier {
			outliers = append(outliers, issue)
		}
	}
	require.Len(t, outliers, 1)
	assert.Contains(t, outliers[0].Message, "5000")
}

func TestAnalyzeFieldStatistics(t *testing.T) {
	a := NewAnalyzer(Options{}, zerolog.Nop())

	report := a.Analyze(records(100.0, 200.0, 300.0))

	stats, ok := report.FieldStats["price"]
	require.True(t, ok)
	assert.Equal(t, 100.0, stats.Min)
	assert.Equal(t, 300.0, stats.Max)
	assert.Equal(t, 200.0, stats.Mean)
	assert.Equal(t, 3, stats.NumericCount)
}

func TestAnalyzeScopedAttributes(t *testing.T) {
	a := NewAnalyzer(Options{}, zerolog.Nop())

	report := a.AnalyzeWith(records(100.0, nil, nil), Options{
		Attributes:           []string{"price"},
		MissingRateThreshold: 0.5,
	})

	_, hasAddress := report.FieldStats["address"]
	assert.False(t, hasAddress)
	_, hasPrice := report.FieldStats["price"]
	assert.True(t, hasPrice)
}

func TestAnalyzeEmptyBatch(t *testing.T) {
	a := NewAnalyzer(Options{}, zerolog.Nop())

	report := a.Analyze(nil)

	assert.True(t, report.Metadata.InsufficientData)
	assert.Equal(t, 0, report.Metadata.TotalRecords)
}

func TestIssueStrings(t *testing.T) {
	report := Report{Issues: []Issue{
		{Field: "price", Kind: IssueMissingValues, Message: "40% of records have no value"},
		{Kind: IssueInsufficientData, Message: "too few records"},
	}}
	out := report.IssueStrings()
	require.Len(t, out, 2)
	assert.Contains(t, out[0], "price")
	assert.Contains(t, out[1], "insufficient_data")
}
