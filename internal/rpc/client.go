package rpc

import (
	"context"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/kofuk/premises-launcher/internal/otel"
	"github.com/kofuk/premises-launcher/internal/retry"
	gootel "go.opentelemetry.io/otel"
)

const ScopeName = "github.com/kofuk/premises-launcher/internal/rpc"

var tracer = gootel.Tracer(ScopeName)

type NotificationFunc func(ctx context.Context, req *AbstractRequest)

type notificationHandler struct {
	id int
	fn NotificationFunc
}

// Client is the calling side of a Conn. Notifications pushed by the peer are
// fanned out to the functions registered with OnNotify.
type Client struct {
	conn    *Conn
	stopped chan struct{}

	m        sync.Mutex
	nextID   int
	handlers map[string][]notificationHandler
}

func NewClient(rwc io.ReadWriteCloser) *Client {
	c := &Client{
		stopped:  make(chan struct{}),
		handlers: make(map[string][]notificationHandler),
	}
	c.conn = NewConn(rwc, c.handleRequest)

	go func() {
		defer close(c.stopped)

		err := c.conn.Run(context.Background())
		if err != nil {
			slog.Error("RPC connection terminated", slog.Any("error", err))
		}
	}()

	return c
}

// Dial connects to the address and keeps retrying until failAfter has
// elapsed. Only the initial connection is retried.
func Dial(ctx context.Context, network, address string, failAfter time.Duration) (*Client, error) {
	conn, err := retry.Retry(ctx, retry.DefaultBackoff, func() (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, network, address)
	}, failAfter)
	if err != nil {
		return nil, err
	}

	return NewClient(conn), nil
}

func (c *Client) handleRequest(req *AbstractRequest) *Response[any] {
	if req.ID != nil {
		return &Response[any]{
			Version: Version,
			ID:      *req.ID,
			Error: &RPCError{
				Code:    MethodNotFound,
				Message: MethodNotFoundMessage,
			},
		}
	}

	c.m.Lock()
	handlers := append([]notificationHandler(nil), c.handlers[req.Method]...)
	c.m.Unlock()

	if len(handlers) == 0 {
		slog.Debug("No handler for notification", slog.String("method", req.Method))
		return nil
	}

	ctx := otel.ContextFromTraceContext(context.Background(), req.Traceparent)
	for _, h := range handlers {
		h.fn(ctx, req)
	}

	return nil
}

// OnNotify registers fn for notifications of the method. The returned
// function removes the registration and may be called more than once.
func (c *Client) OnNotify(method string, fn NotificationFunc) func() {
	c.m.Lock()
	defer c.m.Unlock()

	c.nextID++
	id := c.nextID
	c.handlers[method] = append(c.handlers[method], notificationHandler{id: id, fn: fn})

	return func() {
		c.m.Lock()
		defer c.m.Unlock()

		handlers := c.handlers[method]
		for i, h := range handlers {
			if h.id == id {
				c.handlers[method] = append(handlers[:i:i], handlers[i+1:]...)
				break
			}
		}
		if len(c.handlers[method]) == 0 {
			delete(c.handlers, method)
		}
	}
}

func (c *Client) Call(ctx context.Context, method string, params, result any) error {
	return c.conn.Call(ctx, method, params, result)
}

func (c *Client) Notify(ctx context.Context, method string, params any) error {
	return c.conn.Notify(ctx, method, params)
}

// Close closes the connection and waits for the read loop to finish. It must
// not be called from a notification handler.
func (c *Client) Close() error {
	err := c.conn.Close()
	<-c.stopped
	return err
}

func (c *Client) Done() <-chan struct{} {
	return c.conn.Done()
}
