package httpingestion

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/relex/logchannel/util"
)

// ErrClientClosed is passed to completion callbacks of sends attempted or aborted after Close
var ErrClientClosed = errors.New("ingestion client closed")

var errEncoding = errors.New("failed to encode logs")

// HTTPError is an unsuccessful HTTP response from the ingestion endpoint
type HTTPError struct {
	StatusCode int
	Body       string // truncated response body
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP status %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP status %d: %s", e.StatusCode, e.Body)
}

// IsRecoverableError tells whether the sending of logs may succeed later without any change
//
// Network errors, timeouts and server-side HTTP errors are recoverable. Other HTTP statuses and encoding errors are
// not, as the same request would be rejected again.
func IsRecoverableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, errEncoding) {
		return false
	}
	if errors.Is(err, ErrClientClosed) {
		return true
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode == http.StatusRequestTimeout, httpErr.StatusCode == http.StatusTooManyRequests:
			return true
		case httpErr.StatusCode >= 500:
			return true
		default:
			return false
		}
	}
	return util.IsNetworkError(err)
}
