package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized is returned for a 401 from the backend. It ends the
	// current flow and sends the user back to login.
	ErrUnauthorized = errors.New("session expired, please login again")

	// ErrNoSession is returned before any request is made when there is no
	// stored token.
	ErrNoSession = errors.New("please login first")
)

// APIError is a non-2xx, non-401 response. Its message is the response body
// so backend validation text reaches the user unchanged.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body != "" {
		return e.Body
	}
	return fmt.Sprintf("backend error %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// IsAuthError reports whether err means the stored session can no longer be
// used.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrNoSession)
}
