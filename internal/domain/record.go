package domain

import (
	"fmt"
	"strings"
)

// AffiliationType selects which enrollment form variant a task targets.
type AffiliationType string

const (
	AffiliationExpress AffiliationType = "EXPRESS"
	AffiliationJunior  AffiliationType = "JUNIOR"
)

// Destination addresses are fixed per affiliation type.
var affiliationURLs = map[AffiliationType]string{
	AffiliationExpress: "https://www.joinmarriottbonvoy.com/calaqr/s/ES/ch/cunxc",
	AffiliationJunior:  "https://www.joinmarriottbonvoy.com/calaqr/s/ES/ch/cunjc",
}

func (a AffiliationType) String() string { return string(a) }

func (a AffiliationType) IsValid() bool {
	switch a {
	case AffiliationExpress, AffiliationJunior:
		return true
	}
	return false
}

// URL returns the fixed enrollment form address for the affiliation type.
func (a AffiliationType) URL() string { return affiliationURLs[a] }

func ParseAffiliationFromString(s string) (AffiliationType, error) {
	a := AffiliationType(strings.ToUpper(strings.TrimSpace(s)))
	if !a.IsValid() {
		return "", fmt.Errorf("%w: invalid affiliation type %q", ErrValidation, s)
	}
	return a, nil
}

// Record is one enrollee taken from the uploaded roster. Immutable once
// ingested.
type Record struct {
	ReservationID  string
	FullName       string
	Email          string
	SourceRowIndex int
}

func (r *Record) Validate() error {
	if strings.TrimSpace(r.FullName) == "" {
		return fmt.Errorf("%w: full name is required", ErrValidation)
	}
	if len(strings.Fields(r.FullName)) < 2 {
		return fmt.Errorf("%w: full name must include given and family name", ErrValidation)
	}
	if !strings.Contains(r.Email, "@") {
		return fmt.Errorf("%w: email %q is malformed", ErrValidation, r.Email)
	}
	return nil
}

// SplitName returns the given name (first token) and the family name
// (remaining tokens joined). Validate must have passed first.
func (r *Record) SplitName() (given, family string) {
	parts := strings.Fields(r.FullName)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

func (r *Record) Describe() string {
	return fmt.Sprintf("%s (%s)", r.FullName, r.Email)
}
