package calendar

import (
	"errors"
	"fmt"
)

// ConfigurationError means no feed URL is configured for an apartment.
type ConfigurationError struct {
	ApartmentID int
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("no ICS URL configured for apartment %d", e.ApartmentID)
}

// FetchError is a transport failure or a non-2xx response while
// downloading a feed. URL is already redacted.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// DecodeError is raised by the ICS codec for malformed documents or events.
type DecodeError struct {
	UID string // empty when the failure is document-level
	Msg string
	Err error // raw parser error, if any
}

func (e *DecodeError) Error() string {
	msg := e.Msg
	if e.UID != "" {
		msg = fmt.Sprintf("event %q: %s", e.UID, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ParseError wraps a DecodeError at the sync boundary.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing feed: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Error kinds reported to API and WebSocket clients.
const (
	KindConfiguration = "configuration_error"
	KindFetch         = "fetch_error"
	KindParse         = "parse_error"
	KindSync          = "sync_error"
)

// ErrorKind classifies a sync error.
func ErrorKind(err error) string {
	var (
		cfgErr   *ConfigurationError
		fetchErr *FetchError
		parseErr *ParseError
		decErr   *DecodeError
	)
	switch {
	case errors.As(err, &cfgErr):
		return KindConfiguration
	case errors.As(err, &fetchErr):
		return KindFetch
	case errors.As(err, &parseErr), errors.As(err, &decErr):
		return KindParse
	default:
		return KindSync
	}
}
