package api

import (
	"errors"
	"net/http"

	"github.com/okian/nearby/internal/adapters/geocode"
	"github.com/okian/nearby/internal/adapters/repository"
	service "github.com/okian/nearby/internal/app"
	"github.com/okian/nearby/internal/domain/filter"
	"github.com/okian/nearby/internal/domain/location"
	"github.com/okian/nearby/internal/domain/model"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrBackpressure = errors.New("backpressure")
	ErrNotFound     = errors.New("not found")
)

// Error ties an API operation to an error kind and its cause.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err == nil:
		return e.Op + ": " + e.Kind.Error()
	case e.Kind == nil:
		return e.Op + ": " + e.Err.Error()
	default:
		return e.Op + ": " + e.Kind.Error() + ": " + e.Err.Error()
	}
}

// Unwrap exposes both the kind and the cause to errors.Is.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// NewKind returns an error of kind for op.
func NewKind(op string, kind error) error {
	return &Error{Op: op, Kind: kind}
}

// WrapKind wraps err as kind for op.
func WrapKind(op string, kind, err error) error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// Wrap annotates err with op.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// classify maps an error to a status and a stable code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, filter.ErrInvalidCriteria),
		errors.Is(err, model.ErrUnknownOperation),
		errors.Is(err, repository.ErrMissingID):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, location.ErrUnparseable):
		return http.StatusUnprocessableEntity, "unparseable"
	case errors.Is(err, ErrNotFound), errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ErrBackpressure), errors.Is(err, service.ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, geocode.ErrUpstream),
		errors.Is(err, geocode.ErrDecode),
		errors.Is(err, geocode.ErrBreakerOpen):
		return http.StatusBadGateway, "geocoder_unavailable"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "not_ready"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
