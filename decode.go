package tracekit

import (
	"github.com/m-mizutani/tracekit/internal/schema"
	"github.com/m-mizutani/tracekit/transport"
	"github.com/segmentio/encoding/json"
)

// decode validates a 2xx body against the schema of T and then unmarshals it.
// Both failures are reported as *DecodeError.
func decode[T any](resp *transport.Response, name schema.Name) (*T, error) {
	if err := schema.Validate(name, resp.Body); err != nil {
		return nil, &DecodeError{
			StatusCode: resp.StatusCode,
			RawBody:    resp.Text(),
			Cause:      err,
		}
	}

	var v T
	if err := json.Unmarshal(resp.Body, &v); err != nil {
		return nil, &DecodeError{
			StatusCode: resp.StatusCode,
			RawBody:    resp.Text(),
			Cause:      err,
		}
	}
	return &v, nil
}
