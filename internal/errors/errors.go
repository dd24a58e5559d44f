package errors

import "fmt"

// Config errors

type ErrConfigNotFound struct {
	Path string
}

func (e *ErrConfigNotFound) Error() string {
	return fmt.Sprintf("config file not found: %s", e.Path)
}

type ErrConfigParse struct {
	Err error
}

func (e *ErrConfigParse) Error() string {
	return fmt.Sprintf("failed to parse YAML: %v", e.Err)
}

func (e *ErrConfigParse) Unwrap() error {
	return e.Err
}

type ErrConfigValidation struct {
	Err error
}

func (e *ErrConfigValidation) Error() string {
	return fmt.Sprintf("config validation failed: %v", e.Err)
}

func (e *ErrConfigValidation) Unwrap() error {
	return e.Err
}

// ErrMissingConfig reports a required configuration value that is absent,
// either from the config file or from prior persisted state.
type ErrMissingConfig struct {
	Field  string
	Reason string
}

func (e *ErrMissingConfig) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("missing required configuration %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("missing required configuration: %s", e.Field)
}

// Remote API errors

// ErrRemote is a non-2xx response from the LeadConnector API. Body carries
// the raw response text for diagnostics.
type ErrRemote struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *ErrRemote) Error() string {
	return fmt.Sprintf("remote error from %s: status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// ErrTransport is a network-level failure (timeout, connection refused)
// before any HTTP status was received.
type ErrTransport struct {
	Endpoint string
	Err      error
}

func (e *ErrTransport) Error() string {
	return fmt.Sprintf("transport error calling %s: %v", e.Endpoint, e.Err)
}

func (e *ErrTransport) Unwrap() error {
	return e.Err
}

// Filesystem errors

type ErrFileRead struct {
	Path string
	Err  error
}

func (e *ErrFileRead) Error() string {
	return fmt.Sprintf("failed to read file %s: %v", e.Path, e.Err)
}

func (e *ErrFileRead) Unwrap() error {
	return e.Err
}

type ErrFileWrite struct {
	Path string
	Err  error
}

func (e *ErrFileWrite) Error() string {
	return fmt.Sprintf("failed to write file %s: %v", e.Path, e.Err)
}

func (e *ErrFileWrite) Unwrap() error {
	return e.Err
}

type ErrDirectoryCreate struct {
	Path string
	Err  error
}

func (e *ErrDirectoryCreate) Error() string {
	return fmt.Sprintf("failed to create directory %s: %v", e.Path, e.Err)
}

func (e *ErrDirectoryCreate) Unwrap() error {
	return e.Err
}

// ErrStateNotFound reports missing persisted state that a stage depends on,
// such as the agency token file before the first authorization.
type ErrStateNotFound struct {
	Path string
}

func (e *ErrStateNotFound) Error() string {
	return fmt.Sprintf("persisted state not found: %s", e.Path)
}

// Database errors

type ErrDatabaseOpen struct {
	Path string
	Err  error
}

func (e *ErrDatabaseOpen) Error() string {
	return fmt.Sprintf("failed to open database %s: %v", e.Path, e.Err)
}

func (e *ErrDatabaseOpen) Unwrap() error {
	return e.Err
}

type ErrDatabaseQuery struct {
	Operation string
	Err       error
}

func (e *ErrDatabaseQuery) Error() string {
	return fmt.Sprintf("database query failed for operation %s: %v", e.Operation, e.Err)
}

func (e *ErrDatabaseQuery) Unwrap() error {
	return e.Err
}

// Generator errors

// ErrGenerator is a failure of the external content-generation command.
type ErrGenerator struct {
	Command string
	Output  string
	Err     error
}

func (e *ErrGenerator) Error() string {
	return fmt.Sprintf("generator command %q failed: %v", e.Command, e.Err)
}

func (e *ErrGenerator) Unwrap() error {
	return e.Err
}

// Server errors

type ErrServerStart struct {
	Addr string
	Err  error
}

func (e *ErrServerStart) Error() string {
	return fmt.Sprintf("failed to start server on %s: %v", e.Addr, e.Err)
}

func (e *ErrServerStart) Unwrap() error {
	return e.Err
}

type ErrServerShutdown struct {
	Err error
}

func (e *ErrServerShutdown) Error() string {
	return fmt.Sprintf("server shutdown failed: %v", e.Err)
}

func (e *ErrServerShutdown) Unwrap() error {
	return e.Err
}
