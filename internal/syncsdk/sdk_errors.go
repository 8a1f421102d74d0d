package syncsdk

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/imroc/req/v3"
)

var (
	// config
	ErrNoServerURL = errors.New("sdk: server url missing")
	ErrNoAppName   = errors.New("sdk: app name missing")

	// taxonomy
	ErrInvalidToken = errors.New("sdk: invalid access token")
	ErrAccessDenied = errors.New("sdk: access denied")
	ErrTransport    = errors.New("sdk: transport failure")
	ErrIntegrity    = errors.New("sdk: content hash mismatch")
	ErrReadTimeout  = errors.New("sdk: read timeout")

	// responses
	ErrEmptyResponse = errors.New("sdk: empty response body")
)

// AuthError means the access token could not be verified
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	msg := "auth error: invalid access token"
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthError) Unwrap() error        { return e.Err }
func (e *AuthError) Is(target error) bool { return target == ErrInvalidToken }

// AccessDeniedError is a request the server rejected as forbidden. Never retried.
type AccessDeniedError struct {
	Op     string
	Status string
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("access denied: %s: %s", e.Op, e.Status)
}

func (e *AccessDeniedError) Is(target error) bool { return target == ErrAccessDenied }

// TransportError covers network failures and non-success statuses other than forbidden.
// StatusCode is zero when no response was received.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("transport error: %s: status %d: %s", e.Op, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("transport error: %s: status %d", e.Op, e.StatusCode)
	default:
		return fmt.Sprintf("transport error: %s: %v", e.Op, e.Err)
	}
}

func (e *TransportError) Unwrap() error        { return e.Err }
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// IntegrityError is a file whose content hash differs from what the manifest promised
type IntegrityError struct {
	Path     string
	Expected string
	Actual   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity error: %s: expected %s, got %s", e.Path, e.Expected, e.Actual)
}

func (e *IntegrityError) Is(target error) bool { return target == ErrIntegrity }

// ResponseErrorHandler maps a received response to an error. It returns nil for
// responses that should be treated as success.
type ResponseErrorHandler func(op string, resp *http.Response) error

// DefaultResponseErrorHandler accepts any 2xx, maps 403 to AccessDeniedError and
// everything else to TransportError.
func DefaultResponseErrorHandler(op string, resp *http.Response) error {
	if resp == nil {
		return &TransportError{Op: op, Err: ErrEmptyResponse}
	}
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusForbidden:
		return &AccessDeniedError{Op: op, Status: resp.Status}
	default:
		return &TransportError{Op: op, StatusCode: resp.StatusCode}
	}
}

// IsRetryable reports whether a failed transfer may be attempted again
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAccessDenied) || errors.Is(err, ErrIntegrity) || errors.Is(err, ErrInvalidToken) {
		return false
	}
	return errors.Is(err, ErrTransport)
}

// handleAPIError turns a req round trip into the error taxonomy
func handleAPIError(handler ResponseErrorHandler, resp *req.Response, requestErr error, op string) error {
	if requestErr != nil {
		return &TransportError{Op: op, Err: requestErr}
	}
	if resp == nil || resp.Response == nil {
		return &TransportError{Op: op, Err: ErrEmptyResponse}
	}
	if handler == nil {
		handler = DefaultResponseErrorHandler
	}
	return handler(op, resp.Response)
}
