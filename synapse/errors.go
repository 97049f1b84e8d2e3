package synapse

import (
	"errors"
	"fmt"

	synapseapi "github.com/rudderlabs/bridge-exporter/synapse/internal/api"
	"github.com/rudderlabs/bridge-exporter/utils/httputil"
)

var (
	// ErrNotReady means an async job is still running. It is never a failure.
	ErrNotReady = synapseapi.ErrNotReady
	// ErrNotFound means the requested resource doesn't exist in the store.
	ErrNotFound = synapseapi.ErrNotFound
	// ErrNoMoreRows is returned by TableIterator.Next once the query results are exhausted.
	ErrNoMoreRows = errors.New("no more rows")
	// ErrIncompatibleSchema is returned when an existing table can't be migrated to a new set of columns.
	ErrIncompatibleSchema = errors.New("incompatible schema change")
)

// TimeoutError is returned when an async job isn't done after the configured number of polls.
type TimeoutError struct {
	JobToken string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out waiting for async job %s", e.JobToken)
}

// ConfigError is a column definition the compatibility check can't reason about.
type ConfigError struct {
	Column string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration for column %s: %s", e.Column, e.Reason)
}

// APIError is an unexpected HTTP response from the store.
type APIError = synapseapi.Error

// IsRetryable reports whether err is a transient failure worth another attempt: a transport error or a
// 408, 429 or 5xx response. Not-ready and not-found are never retryable.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, ErrNotReady) || errors.Is(err, ErrNotFound) {
		return false
	}
	var apiErr *synapseapi.Error
	if errors.As(err, &apiErr) {
		return httputil.RetriableStatus(apiErr.StatusCode)
	}
	return httputil.IsTransportError(err)
}
