package rpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"

	"github.com/kofuk/premises-launcher/internal/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type HandlerFunc func(ctx context.Context, req *AbstractRequest) (any, error)
type NotifyHandlerFunc func(ctx context.Context, req *AbstractRequest) error

type Server struct {
	methods       map[string]HandlerFunc
	notifyMethods map[string]NotifyHandlerFunc
	peers         map[*Conn]struct{}
	m             sync.Mutex
}

func NewServer() *Server {
	return &Server{
		methods:       make(map[string]HandlerFunc),
		notifyMethods: make(map[string]NotifyHandlerFunc),
		peers:         make(map[*Conn]struct{}),
	}
}

func (s *Server) RegisterMethod(name string, fn HandlerFunc) {
	s.m.Lock()
	defer s.m.Unlock()
	s.methods[name] = fn
}

func (s *Server) RegisterNotifyMethod(name string, fn NotifyHandlerFunc) {
	s.m.Lock()
	defer s.m.Unlock()
	s.notifyMethods[name] = fn
}

func (s *Server) getMethod(name string) (HandlerFunc, bool) {
	s.m.Lock()
	defer s.m.Unlock()
	fn, ok := s.methods[name]
	return fn, ok
}

func (s *Server) getNotifyMethod(name string) (NotifyHandlerFunc, bool) {
	s.m.Lock()
	defer s.m.Unlock()
	fn, ok := s.notifyMethods[name]
	return fn, ok
}

func (s *Server) handleRequest(req *AbstractRequest) *Response[any] {
	if req.Version != Version {
		if req.ID == nil {
			slog.Error("Invalid notification", slog.String("version", req.Version))
			return nil
		}
		return &Response[any]{
			Version: Version,
			ID:      *req.ID,
			Error: &RPCError{
				Code:    InvalidRequest,
				Message: InvalidRequestMessage,
			},
		}
	}

	ctx := otel.ContextFromTraceContext(context.Background(), req.Traceparent)
	kind := "call"
	if req.ID == nil {
		kind = "notify"
	}
	ctx, span := tracer.Start(ctx, fmt.Sprintf("RPC %s", kind),
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("rpc.method", req.Method)),
	)
	defer span.End()

	if req.ID == nil {
		method, ok := s.getNotifyMethod(req.Method)
		if !ok {
			span.SetStatus(codes.Error, "Method not found")

			slog.Error("Method for notify request not found", slog.String("method", req.Method))
			return nil
		}
		if err := method(ctx, req); err != nil {
			span.SetStatus(codes.Error, err.Error())

			slog.Error("Error handling notification", slog.Any("error", err))
		}
		return nil
	}

	method, ok := s.getMethod(req.Method)
	if !ok {
		span.SetStatus(codes.Error, "Method not found")

		return &Response[any]{
			Version: Version,
			ID:      *req.ID,
			Error: &RPCError{
				Code:    MethodNotFound,
				Message: MethodNotFoundMessage,
			},
		}
	}

	result, err := method(ctx, req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())

		return &Response[any]{
			Version: Version,
			ID:      *req.ID,
			Error: &RPCError{
				Code:    CallerError,
				Message: ServerErrorMessage,
				Data:    err.Error(),
			},
		}
	}

	return &Response[any]{
		Version: Version,
		ID:      *req.ID,
		Result:  result,
	}
}

func (s *Server) addPeer(c *Conn) {
	s.m.Lock()
	defer s.m.Unlock()
	s.peers[c] = struct{}{}
}

func (s *Server) removePeer(c *Conn) {
	s.m.Lock()
	defer s.m.Unlock()
	delete(s.peers, c)
}

// Broadcast sends a notification to every connected peer. Peers that fail to
// receive it are dropped.
func (s *Server) Broadcast(ctx context.Context, method string, params any) {
	s.m.Lock()
	peers := make([]*Conn, 0, len(s.peers))
	for c := range s.peers {
		peers = append(peers, c)
	}
	s.m.Unlock()

	for _, c := range peers {
		if err := c.Notify(ctx, method, params); err != nil {
			slog.Warn("Failed to notify peer", slog.String("method", method), slog.Any("error", err))
			c.Close()
		}
	}
}

func (s *Server) PeerCount() int {
	s.m.Lock()
	defer s.m.Unlock()
	return len(s.peers)
}

func (s *Server) handleConnection(ctx context.Context, rwc io.ReadWriteCloser) error {
	conn := NewConn(rwc, s.handleRequest)

	s.addPeer(conn)
	defer s.removePeer(conn)

	return conn.Run(ctx)
}

// ServeConn serves a single connection until it closes.
func (s *Server) ServeConn(ctx context.Context, rwc io.ReadWriteCloser) error {
	return s.handleConnection(ctx, rwc)
}

func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	go func() {
		<-ctx.Done()
		l.Close()
	}()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := l.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}

			slog.Error(err.Error())
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()

			if err := s.handleConnection(ctx, conn); err != nil {
				slog.Error(err.Error())
			}
		}()
	}
}

// Listen opens a listener for Serve. For unix sockets, a stale socket left at
// the address is removed first and the new one is made accessible to every
// local user; the returned cleanup removes it again.
func Listen(network, address string) (net.Listener, func(), error) {
	if network != "unix" {
		l, err := net.Listen(network, address)
		return l, func() {}, err
	}

	os.Remove(address)
	l, err := net.Listen(network, address)
	if err != nil {
		return nil, func() {}, err
	}
	if err := os.Chmod(address, 0666); err != nil {
		l.Close()
		os.Remove(address)
		return nil, func() {}, err
	}

	return l, func() { os.Remove(address) }, nil
}
