// Package errs provides structured error types and helpers for metasweep.
package errs

import (
	"errors"
	"sort"
	"strconv"
	"strings"
)

// Code identifies a failure category.
type Code string

const (
	// CodeTransport indicates the remote store could not be reached or answered with a non-success HTTP status.
	CodeTransport Code = "transport"
	// CodeProtocol indicates a response that violates the expected shape or reports query-level errors.
	CodeProtocol Code = "protocol"
	// CodeValidation indicates the remote store rejected a mutation with field-level user errors.
	CodeValidation Code = "validation"
	// CodeNotFound indicates the addressed entry no longer exists.
	CodeNotFound Code = "not_found"
	// CodeThrottled indicates the remote store asked the caller to slow down.
	CodeThrottled Code = "throttled"
	// CodeInvalid indicates invalid input provided by the caller.
	CodeInvalid Code = "invalid_request"
)

// FieldError is a single remote-side validation failure.
type FieldError struct {
	Field   []string
	Message string
}

func (f FieldError) String() string {
	if len(f.Field) == 0 {
		return f.Message
	}
	return strings.Join(f.Field, ".") + ": " + f.Message
}

// E captures structured error information produced across the sweep.
type E struct {
	Platform string
	Op       string
	Code     Code
	HTTP     int
	RawCode  string
	Message  string
	Fields   []FieldError
	Metadata map[string]string

	cause error
}

// Option configures an error envelope.
type Option func(*E)

// New constructs an error envelope for the platform and error code.
func New(platform string, code Code, opts ...Option) *E {
	e := &E{
		Platform: strings.TrimSpace(platform),
		Op:       "",
		Code:     code,
		HTTP:     0,
		RawCode:  "",
		Message:  "",
		Fields:   nil,
		Metadata: nil,
		cause:    nil,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// WithOp names the operation that failed.
func WithOp(op string) Option {
	trimmed := strings.TrimSpace(op)
	return func(e *E) {
		e.Op = trimmed
	}
}

// WithMessage attaches a human-readable message to the error.
func WithMessage(message string) Option {
	trimmed := strings.TrimSpace(message)
	return func(e *E) {
		e.Message = trimmed
	}
}

// WithHTTP records the associated HTTP status code.
func WithHTTP(status int) Option {
	return func(e *E) {
		e.HTTP = status
	}
}

// WithRawCode captures the raw platform error code.
func WithRawCode(code string) Option {
	trimmed := strings.TrimSpace(code)
	return func(e *E) {
		e.RawCode = trimmed
	}
}

// WithFields records remote validation failures.
func WithFields(fields ...FieldError) Option {
	return func(e *E) {
		e.Fields = append(e.Fields, fields...)
	}
}

// WithField appends a single metadata key/value pair.
func WithField(key, value string) Option {
	return func(e *E) {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			return
		}
		if e.Metadata == nil {
			e.Metadata = make(map[string]string, 1)
		}
		e.Metadata[trimmedKey] = strings.TrimSpace(value)
	}
}

// WithCause sets the underlying cause error.
func WithCause(err error) Option {
	return func(e *E) {
		e.cause = err
	}
}

func (e *E) Error() string {
	if e == nil {
		return "<nil>"
	}
	var parts []string

	platform := e.Platform
	if platform == "" {
		platform = "unknown"
	}
	parts = append(parts, "platform="+platform)
	if e.Op != "" {
		parts = append(parts, "op="+e.Op)
	}

	code := strings.TrimSpace(string(e.Code))
	if code == "" {
		code = "unknown"
	}
	parts = append(parts, "code="+code)

	if e.HTTP > 0 {
		parts = append(parts, "http="+strconv.Itoa(e.HTTP))
	}
	if e.Message != "" {
		parts = append(parts, "message="+strconv.Quote(e.Message))
	}
	if e.RawCode != "" {
		parts = append(parts, "raw_code="+strconv.Quote(e.RawCode))
	}
	if len(e.Fields) > 0 {
		msgs := make([]string, 0, len(e.Fields))
		for _, f := range e.Fields {
			msgs = append(msgs, strconv.Quote(f.String()))
		}
		parts = append(parts, "fields="+strings.Join(msgs, ","))
	}
	if len(e.Metadata) > 0 {
		keys := make([]string, 0, len(e.Metadata))
		for k := range e.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, k+"="+strconv.Quote(e.Metadata[k]))
		}
		parts = append(parts, "meta="+strings.Join(pairs, ","))
	}
	if e.cause != nil {
		parts = append(parts, "cause="+strconv.Quote(e.cause.Error()))
	}

	return strings.Join(parts, " ")
}

func (e *E) Unwrap() error { return e.cause }

// CodeOf returns the code of the first envelope in err's chain, or "" when there is none.
func CodeOf(err error) Code {
	var e *E
	if errors.As(err, &e) && e != nil {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// IsFatal reports whether err must abort a run. Validation and not-found failures are scoped to
// a single record; everything else, including errors without an envelope, is fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	switch CodeOf(err) {
	case CodeValidation, CodeNotFound:
		return false
	default:
		return true
	}
}
