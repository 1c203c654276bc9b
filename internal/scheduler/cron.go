package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule expressions are the conventional five whitespace-separated
// fields (minute hour day month weekday), but the trigger dialect is
// deliberately narrow: only a */n minute field and the no-previous-run case
// are honored; every other valid expression falls back to a fixed hourly
// cadence. Widening this to full cron semantics would silently change when
// existing jobs fire, so the dialect stays as-is.

const fallbackCadence = time.Hour

var exprParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateExpression checks the expression syntactically. The parser is
// only a validity oracle for diagnostics; trigger decisions never use it.
func ValidateExpression(expr string) error {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return fmt.Errorf("schedule %q: expected 5 fields, got %d", expr, len(fields))
	}
	if _, err := exprParser.Parse(strings.Join(fields, " ")); err != nil {
		return fmt.Errorf("schedule %q: %w", expr, err)
	}
	return nil
}

// ShouldTrigger decides whether a job is due. A job that has never run is
// always due. A */n minute field is due once n minutes have elapsed since
// the last run; everything else is due hourly.
func ShouldTrigger(expr string, lastRun *time.Time, now time.Time) bool {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return false
	}
	if lastRun == nil {
		return true
	}
	elapsed := now.Sub(*lastRun)

	minute := fields[0]
	if strings.HasPrefix(minute, "*/") {
		if n, err := strconv.Atoi(minute[2:]); err == nil && n > 0 {
			return elapsed >= time.Duration(n)*time.Minute
		}
	}
	return elapsed >= fallbackCadence
}
