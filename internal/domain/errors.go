package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCategory = errors.New("invalid chart category")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrNotFound        = errors.New("app not found")
)

// UpstreamError reports a transport failure or non-2xx answer from a provider.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Body       string
	Err        error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.StatusCode > 0 && e.Body != "":
		return fmt.Sprintf("%s HTTP %d: %s", e.Provider, e.StatusCode, e.Body)
	case e.StatusCode > 0:
		return fmt.Sprintf("%s HTTP %d", e.Provider, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Provider, e.Err)
	default:
		return e.Provider + ": upstream error"
	}
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// IsStatus reports whether the upstream answered with a non-2xx status, as
// opposed to failing at the transport level.
func (e *UpstreamError) IsStatus() bool {
	return e.StatusCode > 0
}

func InvalidCategory(value string) error {
	return fmt.Errorf("%w: %s", ErrInvalidCategory, value)
}
