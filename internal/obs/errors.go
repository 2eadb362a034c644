package obs

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthRequired is returned when OBS requests a password and none is configured.
	ErrAuthRequired = errors.New("obs: server requires a password")

	// ErrAuthFailed is returned when OBS rejects the identify message.
	ErrAuthFailed = errors.New("obs: authentication failed")

	// ErrHandshake is returned when the Hello/Identify exchange is malformed.
	ErrHandshake = errors.New("obs: handshake failed")

	// ErrClosed is returned for requests on a closed connection.
	ErrClosed = errors.New("obs: connection closed")

	// ErrTimeout is returned when a request receives no response in time.
	ErrTimeout = errors.New("obs: request timed out")

	// ErrGaveUp is returned by Supervisor.Run after MaxAttempts failed dials.
	ErrGaveUp = errors.New("obs: reconnect attempts exhausted")
)

// RequestError is a request OBS answered with a failed status.
type RequestError struct {
	RequestType string
	Code        int
	Comment     string
}

func (e *RequestError) Error() string {
	if e.Comment == "" {
		return fmt.Sprintf("obs: %s failed with code %d", e.RequestType, e.Code)
	}
	return fmt.Sprintf("obs: %s failed with code %d: %s", e.RequestType, e.Code, e.Comment)
}

// Request status codes used by this package.
// See the obs-websocket RequestStatus enum.
const (
	StatusSuccess          = 100
	StatusResourceNotFound = 600
)
