package tracekit

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tracekit/transport"
)

var (
	ErrInvalidParameter = errors.New("invalid parameter")

	ErrValidation       = errors.New("request validation error")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrAccessDenied     = errors.New("access denied")
	ErrNotFound         = errors.New("not found")
	ErrMethodNotAllowed = errors.New("method not allowed")
	ErrGenericAPI       = errors.New("api error")

	ErrResponseDecoding = errors.New("response decoding error")
)

var (
	// ErrTagAPI is attached to errors for non-2xx responses.
	ErrTagAPI = goerr.NewTag("api")
	// ErrTagDecode is attached to errors for 2xx responses that could not be decoded.
	ErrTagDecode = goerr.NewTag("decode")
	// ErrTagTransport is attached to network and timeout failures.
	ErrTagTransport = transport.ErrTagTransport
)

// ErrorKind classifies a non-2xx response.
type ErrorKind int

const (
	KindGeneric ErrorKind = iota
	KindValidation
	KindUnauthorized
	KindAccessDenied
	KindNotFound
	KindMethodNotAllowed
)

var kindErrors = map[ErrorKind]error{
	KindGeneric:          ErrGenericAPI,
	KindValidation:       ErrValidation,
	KindUnauthorized:     ErrUnauthorized,
	KindAccessDenied:     ErrAccessDenied,
	KindNotFound:         ErrNotFound,
	KindMethodNotAllowed: ErrMethodNotAllowed,
}

// statusKinds maps status codes to their kind. Anything else is KindGeneric.
var statusKinds = map[int]ErrorKind{
	http.StatusBadRequest:       KindValidation,
	http.StatusUnauthorized:     KindUnauthorized,
	http.StatusForbidden:        KindAccessDenied,
	http.StatusNotFound:         KindNotFound,
	http.StatusMethodNotAllowed: KindMethodNotAllowed,
}

func (k ErrorKind) String() string {
	if err, ok := kindErrors[k]; ok {
		return err.Error()
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// APIError is returned when the server answers with a non-2xx status.
// Use errors.Is with ErrNotFound, ErrUnauthorized, etc. to branch on the kind.
type APIError struct {
	Kind       ErrorKind
	StatusCode int

	// Body is the JSON-decoded response body. It is nil for a body that is
	// not valid JSON and for a JSON null. Only an invalid body forces
	// KindGeneric; a null body keeps the kind of its status code.
	Body any

	// RawBody is the response body as received.
	RawBody string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (status %d): %s", e.Kind, e.StatusCode, e.RawBody)
}

func (e *APIError) Unwrap() error {
	return kindErrors[e.Kind]
}

// DecodeError is returned when a 2xx response body does not match the
// expected result type. It matches ErrResponseDecoding with errors.Is.
type DecodeError struct {
	StatusCode int
	RawBody    string
	Cause      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s (status %d): %v", ErrResponseDecoding, e.StatusCode, e.Cause)
}

func (e *DecodeError) Unwrap() []error {
	return []error{ErrResponseDecoding, e.Cause}
}

// classify builds the APIError for a non-2xx response. A body that cannot be
// parsed as JSON always yields KindGeneric carrying the raw text.
func classify(resp *transport.Response) *APIError {
	apiErr := &APIError{
		Kind:       KindGeneric,
		StatusCode: resp.StatusCode,
		RawBody:    resp.Text(),
	}

	var body any
	if err := resp.JSON(&body); err != nil {
		return apiErr
	}
	apiErr.Body = body

	if kind, ok := statusKinds[resp.StatusCode]; ok {
		apiErr.Kind = kind
	}
	return apiErr
}
