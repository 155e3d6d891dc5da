package tracekit

import "github.com/m-mizutani/tracekit/transport"

// Classify is exported for testing.
func Classify(resp *transport.Response) *APIError {
	return classify(resp)
}
