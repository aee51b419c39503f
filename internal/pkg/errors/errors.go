package errors

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrForbidden            = errors.New("forbidden")
	ErrInvalid              = errors.New("invalid")
	ErrConflict             = errors.New("conflict")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrPayloadTooLarge      = errors.New("payload too large")
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrTooMany              = errors.New("too many requests")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

type detailError struct {
	kind error
	msg  string
}

func (e *detailError) Error() string {
	return e.msg
}

func (e *detailError) Unwrap() error {
	return e.kind
}

// WithMessage attaches a client-facing message to one of the sentinel errors.
// errors.Is still matches the sentinel.
func WithMessage(kind error, msg string) error {
	return &detailError{kind: kind, msg: msg}
}

// Message returns the client-facing message attached by WithMessage.
func Message(err error) (string, bool) {
	var detail *detailError
	if errors.As(err, &detail) {
		return detail.msg, true
	}
	return "", false
}
