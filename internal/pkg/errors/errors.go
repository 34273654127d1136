package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
)

type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Code    string      `json:"code"`
	Details interface{} `json:"details,omitempty"`
}

const (
	ErrCodeInvalidInput      = "INVALID_INPUT"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeConflict          = "CONFLICT"
	ErrCodeExpired           = "EXPIRED"
	ErrCodeQuotaExceeded     = "QUOTA_EXCEEDED"
	ErrCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	ErrCodeTransport         = "TRANSPORT_ERROR"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// Kind classifies an AppError and decides its HTTP status.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuth
	KindPermission
	KindNotFound
	KindConflict
	KindExpired
	KindRateLimited
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindPermission:
		return "permission"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindExpired:
		return "expired"
	case KindRateLimited:
		return "rate_limited"
	case KindTransport:
		return "transport"
	default:
		return "internal"
	}
}

func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindPermission:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindExpired:
		return http.StatusGone
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindTransport:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (k Kind) code() string {
	switch k {
	case KindValidation:
		return ErrCodeInvalidInput
	case KindAuth:
		return ErrCodeUnauthorized
	case KindPermission:
		return ErrCodeForbidden
	case KindNotFound:
		return ErrCodeNotFound
	case KindConflict:
		return ErrCodeConflict
	case KindExpired:
		return ErrCodeExpired
	case KindRateLimited:
		return ErrCodeRateLimitExceeded
	case KindTransport:
		return ErrCodeTransport
	default:
		return ErrCodeInternal
	}
}

// AppError is the error type returned by services. Handlers turn it into a
// response with WriteAppError.
type AppError struct {
	Kind    Kind
	Code    string
	Message string
	Details interface{}
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// Is matches another *AppError of the same kind, so callers can write
// errors.Is(err, errors.ErrNotFound).
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// WithDetails returns a copy carrying details for the response body.
func (e *AppError) WithDetails(details interface{}) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

// Kind sentinels for errors.Is.
var (
	ErrValidation  = &AppError{Kind: KindValidation}
	ErrAuth        = &AppError{Kind: KindAuth}
	ErrPermission  = &AppError{Kind: KindPermission}
	ErrNotFound    = &AppError{Kind: KindNotFound}
	ErrConflict    = &AppError{Kind: KindConflict}
	ErrExpired     = &AppError{Kind: KindExpired}
	ErrRateLimited = &AppError{Kind: KindRateLimited}
	ErrTransport   = &AppError{Kind: KindTransport}
)

func newError(kind Kind, format string, args ...interface{}) *AppError {
	return &AppError{Kind: kind, Code: kind.code(), Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...interface{}) *AppError {
	return newError(KindValidation, format, args...)
}

func Auth(format string, args ...interface{}) *AppError {
	return newError(KindAuth, format, args...)
}

func Permission(format string, args ...interface{}) *AppError {
	return newError(KindPermission, format, args...)
}

func NotFound(format string, args ...interface{}) *AppError {
	return newError(KindNotFound, format, args...)
}

func Conflict(format string, args ...interface{}) *AppError {
	return newError(KindConflict, format, args...)
}

func Expired(format string, args ...interface{}) *AppError {
	return newError(KindExpired, format, args...)
}

func QuotaExceeded(format string, args ...interface{}) *AppError {
	e := newError(KindPermission, format, args...)
	e.Code = ErrCodeQuotaExceeded
	return e
}

func Transport(err error, format string, args ...interface{}) *AppError {
	e := newError(KindTransport, format, args...)
	e.Err = err
	return e
}

func Internal(err error, format string, args ...interface{}) *AppError {
	e := newError(KindInternal, format, args...)
	e.Err = err
	return e
}

// OrInternal returns err unchanged when it already is an *AppError and
// wraps it as an internal error otherwise. A nil err stays nil.
func OrInternal(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return Internal(err, format, args...)
}

// KindOf reports the kind of err, KindInternal when err is not an AppError.
func KindOf(err error) Kind {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// StatusFor maps err to an HTTP status code.
func StatusFor(err error) int {
	return KindOf(err).Status()
}

func WriteError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    code,
		Details: details,
	})
}

// WriteAppError writes err using its kind. Internal errors never leak their
// message to the client.
func WriteAppError(w http.ResponseWriter, err error) {
	var appErr *AppError
	if !stderrors.As(err, &appErr) || appErr.Kind == KindInternal {
		WriteError(w, http.StatusInternalServerError, ErrCodeInternal, "Internal server error", nil)
		return
	}
	code := appErr.Code
	if code == "" {
		code = appErr.Kind.code()
	}
	WriteError(w, appErr.Kind.Status(), code, appErr.Message, appErr.Details)
}
