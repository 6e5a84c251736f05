package domain

import "errors"

var (
	// ErrValidation marks bad input: malformed records, ineligible
	// emails, unknown affiliation types.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks lookups of unknown task ids or artifacts.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState marks operations rejected by the task state
	// machine, e.g. deleting a task that is still processing.
	ErrInvalidState = errors.New("invalid state")

	// ErrProvision marks the terminal failure of browser session
	// provisioning after all strategies are exhausted. Fatal to the task.
	ErrProvision = errors.New("browser provisioning failed")
)
