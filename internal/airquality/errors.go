package airquality

import (
	"errors"
	"net/http"
	"strconv"
)

// Fetcher errors.
var (
	ErrRateLimited       = errors.New("rate limited by upstream")
	ErrTransport         = errors.New("upstream transport failure")
	ErrMalformedResponse = errors.New("malformed upstream response")
	ErrMissingCredential = errors.New("air quality API credential is not configured")
	ErrUnknownCity       = errors.New("unknown city")
)

// StatusError is returned for a non-2xx upstream reply other than 429.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return "upstream returned status " + strconv.Itoa(e.StatusCode) + " " + http.StatusText(e.StatusCode)
}

// FailureKind classifies a fetch failure.
type FailureKind string

const (
	FailureNone        FailureKind = ""
	FailureRateLimited FailureKind = "rate_limited"
	FailureHTTPStatus  FailureKind = "http_status"
	FailureTransport   FailureKind = "transport"
	FailureMalformed   FailureKind = "malformed_response"
)

// Classify maps a fetch error onto the failure taxonomy. Errors that match
// nothing specific are treated as transport failures.
func Classify(err error) FailureKind {
	if err == nil {
		return FailureNone
	}

	var statusErr *StatusError
	switch {
	case errors.Is(err, ErrRateLimited):
		return FailureRateLimited
	case errors.As(err, &statusErr):
		if statusErr.StatusCode == http.StatusTooManyRequests {
			return FailureRateLimited
		}
		return FailureHTTPStatus
	case errors.Is(err, ErrMalformedResponse):
		return FailureMalformed
	default:
		return FailureTransport
	}
}
