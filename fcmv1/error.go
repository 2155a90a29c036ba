package fcmv1

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
)

// ErrorCode is the classification of an error reported by FCM.
type ErrorCode int

// https://firebase.google.com/docs/reference/fcm/rest/v1/ErrorCode
const (
	Unspecified ErrorCode = iota
	InvalidArgument
	Unregistered
	SenderIDMismatch
	QuotaExceeded
	Unavailable
	Internal
	ThirdPartyAuthError
)

// ErrorCodes lists all of the error codes.
var ErrorCodes = []ErrorCode{
	Unspecified,
	InvalidArgument,
	Unregistered,
	SenderIDMismatch,
	QuotaExceeded,
	Unavailable,
	Internal,
	ThirdPartyAuthError,
}

var errorCodeLabels = map[ErrorCode]string{
	Unspecified:         "UnspecifiedError",
	InvalidArgument:     "Invalid Argument",
	Unregistered:        "Unregistered",
	SenderIDMismatch:    "Sender Id Mismatch",
	QuotaExceeded:       "Quota Exceeded",
	Unavailable:         "Unavailable",
	Internal:            "Internal ", // rendered as "Internal : detail"
	ThirdPartyAuthError: "Third Party Auth Error",
}

var errorCodeStatuses = map[ErrorCode]string{
	Unspecified:         "UNSPECIFIED_ERROR",
	InvalidArgument:     "INVALID_ARGUMENT",
	Unregistered:        "UNREGISTERED",
	SenderIDMismatch:    "SENDER_ID_MISMATCH",
	QuotaExceeded:       "QUOTA_EXCEEDED",
	Unavailable:         "UNAVAILABLE",
	Internal:            "INTERNAL",
	ThirdPartyAuthError: "THIRD_PARTY_AUTH_ERROR",
}

// ClassifyError maps a HTTP status code returned by FCM to a ServerError.
// Unknown status codes are classified as Unspecified.
func ClassifyError(statusCode int, detail string) ServerError {
	var code ErrorCode
	switch statusCode {
	case http.StatusBadRequest:
		code = InvalidArgument
	case http.StatusUnauthorized:
		code = ThirdPartyAuthError
	case http.StatusForbidden:
		code = SenderIDMismatch
	case http.StatusNotFound:
		code = Unregistered
	case http.StatusTooManyRequests:
		code = QuotaExceeded
	case http.StatusInternalServerError:
		code = Internal
	case http.StatusServiceUnavailable:
		code = Unavailable
	default:
		code = Unspecified
	}
	return ServerError{Code: code, Detail: detail}
}

// String returns the label used when rendering a ServerError.
func (c ErrorCode) String() string {
	if l, ok := errorCodeLabels[c]; ok {
		return l
	}
	return errorCodeLabels[Unspecified]
}

// Status returns the error status enum of the FCM v1 API.
func (c ErrorCode) Status() string {
	if s, ok := errorCodeStatuses[c]; ok {
		return s
	}
	return errorCodeStatuses[Unspecified]
}

// HTTPStatus returns the status code which ClassifyError maps to c, or 0 for Unspecified.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case InvalidArgument:
		return http.StatusBadRequest
	case ThirdPartyAuthError:
		return http.StatusUnauthorized
	case SenderIDMismatch:
		return http.StatusForbidden
	case Unregistered:
		return http.StatusNotFound
	case QuotaExceeded:
		return http.StatusTooManyRequests
	case Internal:
		return http.StatusInternalServerError
	case Unavailable:
		return http.StatusServiceUnavailable
	}
	return 0
}

// Retryable reports whether a request rejected with c may succeed later.
// FCM expects callers to back off exponentially before resending.
func (c ErrorCode) Retryable() bool {
	switch c {
	case QuotaExceeded, Unavailable, Internal:
		return true
	}
	return false
}

// ParseStatus returns the ErrorCode of an FCM v1 error status enum.
func ParseStatus(s string) (ErrorCode, bool) {
	for c, status := range errorCodeStatuses {
		if status == s {
			return c, true
		}
	}
	return Unspecified, false
}

// ServerError is an error reported by FCM.
type ServerError struct {
	Code   ErrorCode
	Detail string
}

func (e ServerError) Error() string {
	return e.Code.String() + ": " + e.Detail
}

// Kind is the kind of an Error.
type Kind int

// Error kinds
const (
	KindAuth Kind = iota
	KindConfig
	KindDeserialization
	KindTimeout
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindConfig:
		return "config"
	case KindDeserialization:
		return "deserialization"
	case KindTimeout:
		return "timeout"
	case KindServer:
		return "server"
	}
	return "unknown"
}

// Error is returned by every fallible operation of the client.
// Server is set only when Kind is KindServer.
// A request which never reached fcm (e.g. connection refused) is a server error
// with the Unspecified code and the transport error as detail.
type Error struct {
	Kind   Kind
	Server ServerError
}

// Errors without payload
var (
	// ErrAuth is returned when an access token cannot be obtained.
	ErrAuth = Error{Kind: KindAuth}
	// ErrConfig is returned when the client cannot be configured.
	ErrConfig = Error{Kind: KindConfig}
	// ErrDeserialization is returned when a response from FCM has an unexpected format.
	ErrDeserialization = Error{Kind: KindDeserialization}
	// ErrTimeout is returned when FCM does not respond in time.
	// Google recommends to retry with exponential back-off.
	ErrTimeout = Error{Kind: KindTimeout}
)

// NewServerError returns an Error which wraps an error reported by FCM.
func NewServerError(se ServerError) Error {
	return Error{
		Kind:   KindServer,
		Server: se,
	}
}

func (e Error) Error() string {
	switch e.Kind {
	case KindAuth:
		return "authentication error"
	case KindConfig:
		return "configuration error"
	case KindDeserialization:
		return "deserialization error"
	case KindTimeout:
		return "timeout"
	}
	return "firebase error: " + e.Server.Error()
}

// Timeout reports whether e is a timeout.
func (e Error) Timeout() bool {
	return e.Kind == KindTimeout
}

// Temporary reports whether the request may succeed when it is sent again later.
func (e Error) Temporary() bool {
	switch e.Kind {
	case KindTimeout:
		return true
	case KindServer:
		return e.Server.Code.Retryable()
	}
	return false
}

// Status returns the FCM status enum of a server error, or an empty string.
func (e Error) Status() string {
	if e.Kind != KindServer {
		return ""
	}
	return e.Server.Code.Status()
}

func (e Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind    string `json:"kind"`
		Status  string `json:"status,omitempty"`
		Message string `json:"message"`
	}{
		Kind:    e.Kind.String(),
		Status:  e.Status(),
		Message: e.Error(),
	})
}

// AsError finds the first Error in err's chain.
func AsError(err error) (Error, bool) {
	var e Error
	if errors.As(err, &e) {
		return e, true
	}
	return Error{}, false
}
