package host

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/kofuk/premises-launcher/internal/rpc"
)

type listener struct {
	id      int
	handler EventHandler
}

// Client talks to the host over an rpc.Client. Pushed events arrive as
// event/emit notifications and are fanned out to the listeners of the event.
type Client struct {
	rpc *rpc.Client

	m         sync.Mutex
	nextID    int
	listeners map[string][]listener

	unregister func()
}

var _ Host = (*Client)(nil)

func NewClient(c *rpc.Client) *Client {
	client := &Client{
		rpc:       c,
		listeners: make(map[string][]listener),
	}
	client.unregister = c.OnNotify(NotifyEventEmit, client.handleEmit)
	return client
}

func (c *Client) handleEmit(ctx context.Context, req *rpc.AbstractRequest) {
	var input struct {
		Event   string          `json:"event"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := req.Bind(&input); err != nil {
		slog.Error("Malformed event", slog.Any("error", err))
		return
	}

	c.m.Lock()
	listeners := append([]listener(nil), c.listeners[input.Event]...)
	c.m.Unlock()

	for _, l := range listeners {
		l.handler(input.Payload)
	}
}

func (c *Client) Invoke(ctx context.Context, method string, params, result any) error {
	if err := c.rpc.Call(ctx, method, params, result); err != nil {
		return newRequestError(method, err)
	}
	return nil
}

func (c *Client) Listen(event string, handler EventHandler) (Unlisten, error) {
	select {
	case <-c.rpc.Done():
		return nil, rpc.ErrClosed
	default:
	}

	c.m.Lock()
	defer c.m.Unlock()

	c.nextID++
	id := c.nextID
	c.listeners[event] = append(c.listeners[event], listener{id: id, handler: handler})

	var once sync.Once
	return func() {
		once.Do(func() {
			c.m.Lock()
			defer c.m.Unlock()

			listeners := c.listeners[event]
			for i, l := range listeners {
				if l.id == id {
					c.listeners[event] = append(listeners[:i:i], listeners[i+1:]...)
					break
				}
			}
			if len(c.listeners[event]) == 0 {
				delete(c.listeners, event)
			}
		})
	}, nil
}

func (c *Client) Close() error {
	c.unregister()
	return c.rpc.Close()
}

// Done is closed once the connection to the host is lost.
func (c *Client) Done() <-chan struct{} {
	return c.rpc.Done()
}
