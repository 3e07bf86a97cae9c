package host

//go:generate go tool mockgen -destination host_mock.go -package host . Host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kofuk/premises-launcher/internal/rpc"
)

type EventHandler func(payload json.RawMessage)

// Unlisten removes an event handler. Calling it more than once is harmless.
type Unlisten func()

type Host interface {
	// Invoke sends a request and decodes its result into result, which may
	// be nil to discard it.
	Invoke(ctx context.Context, method string, params, result any) error
	Listen(event string, handler EventHandler) (Unlisten, error)
}

// RequestError is returned for every request the host did not fulfil.
type RequestError struct {
	Method string
	Reason string
	Err    error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: %s", e.Method, e.Reason)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

func newRequestError(method string, err error) *RequestError {
	reason := err.Error()

	var rpcErr *rpc.RPCError
	if errors.As(err, &rpcErr) {
		reason = rpcErr.Message
		if rpcErr.Data != "" {
			reason = rpcErr.Data
		}
	}

	return &RequestError{
		Method: method,
		Reason: reason,
		Err:    err,
	}
}

// Reason returns the host supplied reason of a failed request, or the error
// text for anything else.
func Reason(err error) string {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Reason
	}
	return err.Error()
}
