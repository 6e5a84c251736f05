package enroll

import "github.com/kursadbilgin/enroll-engine/internal/domain"

// FailureKind classifies why one record's pipeline run failed.
type FailureKind string

const (
	// FailValidation covers bad record shape and ineligible emails.
	FailValidation FailureKind = "validation"
	// FailResolution covers required UI elements not found by any
	// locator strategy.
	FailResolution FailureKind = "resolution"
	// FailExtraction covers a submitted form with no confirmation code
	// on the resulting page.
	FailExtraction FailureKind = "extraction"
	// FailCritical covers anything the other kinds did not anticipate,
	// e.g. a session dying mid-record.
	FailCritical FailureKind = "critical"
)

// Result is the typed outcome of processing one record. Failures are
// values, not panics: only session provisioning escalates past the
// record.
type Result struct {
	Success bool
	Code    string
	Kind    FailureKind
	Detail  string
}

func succeed(code string) Result {
	return Result{Success: true, Code: code}
}

func fail(kind FailureKind, detail string) Result {
	return Result{Kind: kind, Detail: detail}
}

// CriticalFailure builds a critical result for failures detected
// outside the pipeline stages, such as a recovered panic.
func CriticalFailure(detail string) Result {
	return fail(FailCritical, detail)
}

// OutcomeStatus maps the result onto the artifact's status label.
func (r Result) OutcomeStatus() domain.OutcomeStatus {
	switch {
	case r.Success:
		return domain.OutcomeSuccess
	case r.Kind == FailCritical:
		return domain.OutcomeCriticalError
	default:
		return domain.OutcomeError
	}
}

// Observation is the human-readable note written to the artifact row.
func (r Result) Observation() string {
	if r.Success {
		return "enrollment completed"
	}
	return r.Detail
}
