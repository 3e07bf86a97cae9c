package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/kofuk/premises-launcher/internal/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var ErrClosed = errors.New("rpc: connection closed")

type RequestHandler func(req *AbstractRequest) *Response[any]

// Conn is one end of a persistent JSON-RPC stream. Both peers may send
// requests and notifications over it at any time.
type Conn struct {
	rwc     io.ReadWriteCloser
	reader  *packetReader
	handler RequestHandler

	wm sync.Mutex

	m       sync.Mutex
	nextID  int
	pending map[int]chan *Response[json.RawMessage]
	closed  bool

	done chan struct{}
	once sync.Once
}

func NewConn(rwc io.ReadWriteCloser, handler RequestHandler) *Conn {
	return &Conn{
		rwc:     rwc,
		reader:  newPacketReader(rwc),
		handler: handler,
		pending: make(map[int]chan *Response[json.RawMessage]),
		done:    make(chan struct{}),
	}
}

func (c *Conn) write(ctx context.Context, body any) error {
	c.wm.Lock()
	defer c.wm.Unlock()
	return writePacket(ctx, c.rwc, body)
}

func (c *Conn) register() (int, chan *Response[json.RawMessage], error) {
	c.m.Lock()
	defer c.m.Unlock()

	if c.closed {
		return 0, nil, ErrClosed
	}

	c.nextID++
	id := c.nextID
	ch := make(chan *Response[json.RawMessage], 1)
	c.pending[id] = ch

	return id, ch, nil
}

func (c *Conn) unregister(id int) {
	c.m.Lock()
	defer c.m.Unlock()
	delete(c.pending, id)
}

func (c *Conn) handleCall(ctx context.Context, method string, params, result any) error {
	id, ch, err := c.register()
	if err != nil {
		return err
	}
	defer c.unregister(id)

	if err := c.write(ctx, &Request[any]{
		Version: Version,
		ID:      &id,
		Method:  method,
		Params:  params,
	}); err != nil {
		return err
	}

	var resp *Response[json.RawMessage]
	select {
	case resp = <-ch:
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	if resp.Error != nil {
		return resp.Error
	}

	if result == nil || len(resp.Result) == 0 {
		return nil
	}

	if err := json.Unmarshal(resp.Result, result); err != nil {
		return err
	}

	return nil
}

func (c *Conn) handleNotify(ctx context.Context, method string, params any) error {
	if c.isClosed() {
		return ErrClosed
	}

	return c.write(ctx, &Request[any]{
		Version: Version,
		Method:  method,
		Params:  params,
	})
}

func (c *Conn) Call(ctx context.Context, method string, params, result any) error {
	ctx, span := tracer.Start(ctx, "RPC call",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("rpc.method", method)),
	)
	defer span.End()

	err := c.handleCall(ctx, method, params, result)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}

	return err
}

func (c *Conn) Notify(ctx context.Context, method string, params any) error {
	ctx, span := tracer.Start(ctx, "RPC notify",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("rpc.method", method)),
	)
	defer span.End()

	err := c.handleNotify(ctx, method, params)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}

	return err
}

func (c *Conn) isClosed() bool {
	c.m.Lock()
	defer c.m.Unlock()
	return c.closed
}

func (c *Conn) dispatchResponse(resp *Response[json.RawMessage]) {
	c.m.Lock()
	ch, ok := c.pending[resp.ID]
	c.m.Unlock()

	if !ok {
		slog.Warn("Response for unknown request", slog.Int("id", resp.ID))
		return
	}
	ch <- resp
}

// Run reads the stream until it fails or ctx is done. Calls from the peer are
// served concurrently; notifications are handled one by one in arrival
// order. Run waits for in-flight calls before returning.
func (c *Conn) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-c.done:
		}
	}()

	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
		c.Close()
	}()

	for {
		env, traceparent, err := c.reader.readEnvelope()
		if err != nil {
			if errors.Is(err, io.EOF) || c.isClosed() {
				return nil
			}
			return fmt.Errorf("rpc: read: %w", err)
		}

		if env.isResponse() {
			c.dispatchResponse(env.response(traceparent))
			continue
		}

		req := env.request(traceparent)
		if c.handler == nil {
			if req.ID != nil {
				c.write(ctx, &Response[any]{
					Version: Version,
					ID:      *req.ID,
					Error: &RPCError{
						Code:    MethodNotFound,
						Message: MethodNotFoundMessage,
					},
				})
			}
			continue
		}

		if req.ID == nil {
			c.handler(req)
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()

			resp := c.handler(req)
			if resp == nil {
				return
			}
			if err := c.write(otel.ContextFromTraceContext(ctx, req.Traceparent), resp); err != nil {
				slog.Error("Failed to write response", slog.String("method", req.Method), slog.Any("error", err))
			}
		}()
	}
}

func (c *Conn) Close() error {
	var err error
	c.once.Do(func() {
		c.m.Lock()
		c.closed = true
		c.m.Unlock()

		close(c.done)
		err = c.rwc.Close()
	})
	return err
}

func (c *Conn) Done() <-chan struct{} {
	return c.done
}
