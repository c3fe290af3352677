package parley

import "github.com/pkg/errors"

// ErrorKind classifies a request failure so callers can decide how to
// surface it: redirect to login, inline field feedback, banner, or silence.
type ErrorKind int

const (
	// KindUnauthorized means the credential is missing or rejected.
	KindUnauthorized ErrorKind = iota
	// KindValidation means the input was rejected, locally or by the server.
	KindValidation
	// KindConflict means a uniqueness rule was violated, e.g. a duplicate
	// channel name.
	KindConflict
	// KindNotFound means a local reference is stale; the change has already
	// been applied elsewhere and there is nothing to report.
	KindNotFound
	// KindNetwork means the request never completed; retry is up to the
	// caller.
	KindNetwork
)

// Error is a classified request failure.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string { return e.Message }

func NewUnauthorizedError(msg string) error { return &Error{Kind: KindUnauthorized, Message: msg} }
func NewValidationError(msg string) error   { return &Error{Kind: KindValidation, Message: msg} }
func NewConflictError(msg string) error     { return &Error{Kind: KindConflict, Message: msg} }
func NewNotFoundError(msg string) error     { return &Error{Kind: KindNotFound, Message: msg} }
func NewNetworkError(msg string) error      { return &Error{Kind: KindNetwork, Message: msg} }

func kindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsUnauthorized reports whether err is a credential failure.
func IsUnauthorized(err error) bool { k, ok := kindOf(err); return ok && k == KindUnauthorized }

// IsValidation reports whether err is rejected input.
func IsValidation(err error) bool { k, ok := kindOf(err); return ok && k == KindValidation }

// IsConflict reports whether err is a uniqueness violation.
func IsConflict(err error) bool { k, ok := kindOf(err); return ok && k == KindConflict }

// IsNotFound reports whether err is a stale reference.
func IsNotFound(err error) bool { k, ok := kindOf(err); return ok && k == KindNotFound }

// IsNetwork reports whether err is a transport failure.
func IsNetwork(err error) bool { k, ok := kindOf(err); return ok && k == KindNetwork }
