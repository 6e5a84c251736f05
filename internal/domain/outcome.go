package domain

import "time"

// OutcomeStatus labels the fate of one processed record in the result
// artifact.
type OutcomeStatus string

const (
	OutcomeSuccess       OutcomeStatus = "SUCCESS"
	OutcomeError         OutcomeStatus = "ERROR"
	OutcomeCriticalError OutcomeStatus = "CRITICAL_ERROR"
)

func (s OutcomeStatus) String() string { return string(s) }

// OutcomeRow is one persisted result line, success or failure, per
// processed record. Append-only.
type OutcomeRow struct {
	SourceRowIndex int
	ReservationID  string
	FullName       string
	Email          string
	Code           string
	Affiliator     string
	Status         OutcomeStatus
	Observation    string
	ProcessedAt    time.Time
}

// NewOutcomeRow builds a row for a record, substituting "N/A" for a
// missing confirmation code.
func NewOutcomeRow(r Record, affiliator string, status OutcomeStatus, code, observation string, at time.Time) OutcomeRow {
	if code == "" {
		code = "N/A"
	}
	return OutcomeRow{
		SourceRowIndex: r.SourceRowIndex,
		ReservationID:  r.ReservationID,
		FullName:       r.FullName,
		Email:          r.Email,
		Code:           code,
		Affiliator:     affiliator,
		Status:         status,
		Observation:    observation,
		ProcessedAt:    at,
	}
}
