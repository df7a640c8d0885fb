// Package status runs operational self-checks. The same engine backs
// the datatags doctor command and the gateway readiness probe.
package status

import (
	"context"
	"time"
)

// CheckResult is the outcome of one self-check.
type CheckResult struct {
	// Name identifies the check ("storage", "registry", ...).
	Name string `json:"name"`

	// OK reports whether the check passed.
	OK bool `json:"ok"`

	// Detail is the one-line outcome: what was found, pass or fail.
	Detail string `json:"detail"`

	// Hint suggests a fix. Set only on failure.
	Hint string `json:"hint,omitempty"`

	// Latency is how long the check took.
	Latency time.Duration `json:"latency"`
}

// Check is one runnable self-check. Run returns the outcome detail; a
// non-nil error marks the check failed. A failing check may still return
// a detail when the raw error would leak credentials or addresses.
type Check struct {
	// Name identifies the check in reports.
	Name string

	// Hint is attached to failed results.
	Hint string

	// Run performs the check.
	Run func(ctx context.Context) (string, error)
}

// StatusReport aggregates the outcomes of one diagnostics pass.
type StatusReport struct {
	Checks []CheckResult `json:"checks"`
}

// OK reports whether every check passed.
func (r *StatusReport) OK() bool {
	for _, check := range r.Checks {
		if !check.OK {
			return false
		}
	}
	return true
}

// Failed returns the failed checks, in run order.
func (r *StatusReport) Failed() []CheckResult {
	var failed []CheckResult
	for _, check := range r.Checks {
		if !check.OK {
			failed = append(failed, check)
		}
	}
	return failed
}

// Run executes the checks in order and collects their outcomes.
func Run(ctx context.Context, checks []Check) *StatusReport {
	report := &StatusReport{Checks: make([]CheckResult, 0, len(checks))}
	for _, check := range checks {
		start := time.Now()
		detail, err := check.Run(ctx)
		result := CheckResult{
			Name:    check.Name,
			OK:      err == nil,
			Detail:  detail,
			Latency: time.Since(start),
		}
		if err != nil {
			if result.Detail == "" {
				result.Detail = err.Error()
			}
			result.Hint = check.Hint
		}
		report.Checks = append(report.Checks, result)
	}
	return report
}
