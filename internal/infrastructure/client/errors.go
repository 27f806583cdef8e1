package client

import (
	"errors"
	"fmt"
	"net/http"
)

// Platform error codes the engine reacts to
const (
	CodeUnauthorized   = 401
	CodeTokenExpired   = 2
	CodeVatomNotFound  = 1701
	CodeInvalidPayload = 516
)

// TransportError reports that the platform could not be reached or the
// exchange broke down before a platform answer was decoded.
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport failure: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// PlatformError is a decoded error answer from the platform
type PlatformError struct {
	Endpoint string
	Status   int
	Code     int
	Message  string
}

func (e *PlatformError) Error() string {
	return fmt.Sprintf("%s: platform error %d (http %d): %s", e.Endpoint, e.Code, e.Status, e.Message)
}

// IsAuth reports whether the error means the access token was rejected
func (e *PlatformError) IsAuth() bool {
	return e.Status == http.StatusUnauthorized || e.Code == CodeUnauthorized || e.Code == CodeTokenExpired
}

// IsTransport reports whether err is (or wraps) a TransportError
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsPlatform reports whether err is (or wraps) a PlatformError, returning it
func IsPlatform(err error) (*PlatformError, bool) {
	var pe *PlatformError
	ok := errors.As(err, &pe)
	return pe, ok
}
