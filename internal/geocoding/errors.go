package geocoding

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors returned while transforming provider payloads.
var (
	ErrMalformedResponse = errors.New("malformed provider response")
	ErrProviderRejected  = errors.New("provider rejected the request")
)

// UnknownProviderError is returned when no adapter is registered under the requested name.
type UnknownProviderError struct {
	Name      string
	Available []string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("provider '%s' not found. Available: %s", e.Name, strings.Join(e.Available, ", "))
}

// InvalidProviderError is returned when a provider reference cannot produce a usable adapter.
type InvalidProviderError struct {
	Name   string
	Reason string
}

func (e *InvalidProviderError) Error() string {
	return fmt.Sprintf("provider '%s' is invalid: %s", e.Name, e.Reason)
}

// MissingAPIKeyError is returned when a provider requires an API key that is not configured.
type MissingAPIKeyError struct {
	Provider string
	EnvVar   string // environment variable the key is read from, may be empty
}

func (e *MissingAPIKeyError) Error() string {
	if e.EnvVar == "" {
		return fmt.Sprintf("Please configure the API key for %s.", e.Provider)
	}

	return fmt.Sprintf("Please configure the API key for %s in your environment variables (%s).", e.Provider, e.EnvVar)
}

// ProviderAPIError reports a failed upstream call. StatusCode is the upstream HTTP status,
// zero when no response was received.
type ProviderAPIError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderAPIError) Error() string {
	msg := e.Provider + " API request failed"
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" with status %d", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *ProviderAPIError) Unwrap() error {
	return e.Err
}
