package enroll

import (
	"fmt"
	"strings"

	"github.com/kursadbilgin/enroll-engine/internal/domain"
)

// allowedDomains is the fixed allow-list of consumer mail providers the
// enrollment form accepts.
var allowedDomains = map[string]struct{}{
	"hotmail.com": {},
	"hotmail.es":  {},
	"hotmail.mx":  {},
	"gmail.com":   {},
	"gmail.mx":    {},
	"outlook.com": {},
	"outlook.es":  {},
	"outlook.mx":  {},
	"icloud.com":  {},
}

// EmailFilter rejects ineligible and duplicate emails within one task.
type EmailFilter struct {
	processed map[string]struct{}
}

func NewEmailFilter() *EmailFilter {
	return &EmailFilter{processed: make(map[string]struct{})}
}

// Check validates an email against the allow-list and the task-scoped
// duplicate set. On acceptance the email is reserved immediately, so a
// later duplicate is rejected even if this attempt ends up failing.
func (f *EmailFilter) Check(email string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return fmt.Errorf("%w: email %q is malformed", domain.ErrValidation, email)
	}

	mailDomain := email[at+1:]
	if _, ok := allowedDomains[mailDomain]; !ok {
		return fmt.Errorf("%w: email domain %q is not allowed", domain.ErrValidation, mailDomain)
	}

	if _, dup := f.processed[email]; dup {
		return fmt.Errorf("%w: email %q already processed (duplicate)", domain.ErrValidation, email)
	}

	f.processed[email] = struct{}{}
	return nil
}

// Seen reports whether an email has already been reserved in this task.
func (f *EmailFilter) Seen(email string) bool {
	_, ok := f.processed[strings.ToLower(strings.TrimSpace(email))]
	return ok
}
