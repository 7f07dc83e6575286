package xclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrRateLimited is returned without sending the request while an endpoint is
// blocked by an earlier 429 or has used up its request budget.
var ErrRateLimited = errors.New("xclient: endpoint rate limited")

// ErrorKind categorizes API failures for targeted handling.
type ErrorKind int

const (
	KindUnknown         ErrorKind = iota
	KindBadRequest                // 400
	KindUnauthorized              // 401
	KindForbidden                 // 403
	KindNotFound                  // 404
	KindRequestTimeout            // 408
	KindTooManyRequests           // 429
	KindServerError               // 5xx
	KindRateLimitAbuse            // 88
	KindSuspended                 // 37, 64
	KindLocked                    // 326, captcha needed
	KindCSRF                      // 353, csrf token mismatch
	KindAuthExpired               // 32, could not authenticate
	KindBlocked                   // 161
	KindNotAuthorized             // 179, 219
	KindInternal                  // 131
)

var kindNames = map[ErrorKind]string{
	KindUnknown:         "unknown",
	KindBadRequest:      "bad request",
	KindUnauthorized:    "unauthorized",
	KindForbidden:       "forbidden",
	KindNotFound:        "not found",
	KindRequestTimeout:  "request timeout",
	KindTooManyRequests: "too many requests",
	KindServerError:     "server error",
	KindRateLimitAbuse:  "rate limit abuse",
	KindSuspended:       "account suspended",
	KindLocked:          "account locked",
	KindCSRF:            "csrf mismatch",
	KindAuthExpired:     "auth expired",
	KindBlocked:         "blocked",
	KindNotAuthorized:   "not authorized",
	KindInternal:        "internal error",
}

func (k ErrorKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "kind " + strconv.Itoa(int(k))
}

// APIError is a failed API response.
type APIError struct {
	Kind    ErrorKind
	Status  int
	Code    int // first error code in the body, 0 when absent
	Message string

	// RateLimitReset is set for KindTooManyRequests and KindRateLimitAbuse.
	RateLimitReset time.Time
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s (HTTP %d, code %d): %s", e.Kind, e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("%s (HTTP %d): %s", e.Kind, e.Status, e.Message)
}

// Retryable reports whether the same request may succeed on a later attempt.
func (e *APIError) Retryable() bool {
	return e.Kind == KindServerError || e.Kind == KindInternal
}

type errorBody struct {
	Errors []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// classifyError inspects a response body for known error codes.
// The first recognized code wins; code is the first code present.
func classifyError(body []byte) (kind ErrorKind, code int, message string) {
	var resp errorBody
	if json.Unmarshal(body, &resp) != nil || len(resp.Errors) == 0 {
		return KindUnknown, 0, ""
	}

	code, message = resp.Errors[0].Code, resp.Errors[0].Message
	for _, e := range resp.Errors {
		switch e.Code {
		case 88:
			return KindRateLimitAbuse, e.Code, e.Message
		case 37, 64:
			return KindSuspended, e.Code, e.Message
		case 326:
			return KindLocked, e.Code, e.Message
		case 353:
			return KindCSRF, e.Code, e.Message
		case 32:
			return KindAuthExpired, e.Code, e.Message
		case 161:
			return KindBlocked, e.Code, e.Message
		case 179, 219:
			return KindNotAuthorized, e.Code, e.Message
		case 131:
			return KindInternal, e.Code, e.Message
		}
	}
	return KindUnknown, code, message
}

func kindForStatus(status int) ErrorKind {
	switch {
	case status == 400:
		return KindBadRequest
	case status == 401:
		return KindUnauthorized
	case status == 403:
		return KindForbidden
	case status == 404:
		return KindNotFound
	case status == 408:
		return KindRequestTimeout
	case status == 429:
		return KindTooManyRequests
	case status >= 500 && status < 600:
		return KindServerError
	}
	return KindUnknown
}

// newAPIError builds the error for a response. A recognized body code takes
// precedence over the status, except for 429 and 5xx.
func newAPIError(status int, body []byte, headers map[string]string) *APIError {
	kind, code, message := classifyError(body)
	byStatus := kindForStatus(status)
	if kind == KindUnknown || byStatus == KindTooManyRequests || byStatus == KindServerError {
		kind = byStatus
	}
	if message == "" {
		message = truncateBytes(body, 200)
	}

	e := &APIError{Kind: kind, Status: status, Code: code, Message: message}
	if e.rateLimited() {
		e.RateLimitReset = parseRateLimitReset(headers["x-rate-limit-reset"])
	}
	return e
}

func (e *APIError) rateLimited() bool {
	return e.Kind == KindTooManyRequests || e.Kind == KindRateLimitAbuse
}

// parseRateLimitReset parses the X-Rate-Limit-Reset unix timestamp header.
// Falls back to 15 minutes from now if missing or invalid.
func parseRateLimitReset(v string) time.Time {
	if ts, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Unix(ts, 0)
	}
	return time.Now().Add(15 * time.Minute)
}

// hasResponseData returns true if the JSON body contains a non-null "data" field.
func hasResponseData(body []byte) bool {
	var probe struct {
		Data json.RawMessage `json:"data"`
	}
	if json.Unmarshal(body, &probe) != nil {
		return false
	}
	return len(probe.Data) > 0 && string(probe.Data) != "null"
}

func truncateBytes(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
