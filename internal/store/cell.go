package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/kofuk/premises-launcher/internal/host"
)

type CellOptions[T any] struct {
	Name    string
	Default T

	// FetchMethod is requested once every time the cell opens.
	FetchMethod string
	FetchParams any
	// Event is listened to while the cell is open.
	Event string

	// DecodeFetch turns a fetch result into a value. Defaults to
	// json.Unmarshal.
	DecodeFetch func(payload json.RawMessage) (T, error)
	// DecodeEvent turns a pushed payload into the next value. Defaults to
	// replacing the current value with the decoded payload.
	DecodeEvent func(current T, payload json.RawMessage) (T, error)

	// ReplayOnFetch applies the updates made while the fetch was in flight on
	// top of the fetched value instead of discarding the fetch. Cells whose
	// updates append rather than replace need it.
	ReplayOnFetch bool
}

// journal records the updates made while a fetch is in flight.
type journal[T any] struct {
	updates []func(T) (T, error)
}

type subscriber[T any] struct {
	fn     func(T)
	primed bool
	seen   uint64
}

// Cell holds a value kept in sync with the host. It opens (fetches and starts
// listening) when the first subscriber attaches and closes when the last one
// leaves.
//
// Every publish bumps a sequence number. A fetch result is applied only if
// nothing was published since the fetch was issued, so a pushed or locally
// written value is never overwritten by an older fetch. With ReplayOnFetch the
// fetch result is applied anyway and the newer updates are replayed onto it.
type Cell[T any] struct {
	h    host.Host
	opts CellOptions[T]

	m          sync.Mutex
	value      T
	seq        uint64
	subs       []*subscriber[T]
	delivering bool
	journal    *journal[T]

	// openM serializes opening and closing.
	openM       sync.Mutex
	refs        int
	unlisten    host.Unlisten
	cancelFetch context.CancelFunc
	// settled is closed once the fetch issued by the latest open is over.
	settled chan struct{}
}

func NewCell[T any](h host.Host, opts CellOptions[T]) *Cell[T] {
	if opts.DecodeFetch == nil {
		opts.DecodeFetch = decodeJSON[T]
	}
	if opts.DecodeEvent == nil {
		opts.DecodeEvent = func(_ T, payload json.RawMessage) (T, error) {
			return decodeJSON[T](payload)
		}
	}

	return &Cell[T]{
		h:     h,
		opts:  opts,
		value: opts.Default,
	}
}

func decodeJSON[T any](payload json.RawMessage) (T, error) {
	var v T
	if err := json.Unmarshal(payload, &v); err != nil {
		return *new(T), err
	}
	return v, nil
}

func (c *Cell[T]) Name() string {
	return c.opts.Name
}

func (c *Cell[T]) Get() T {
	c.m.Lock()
	defer c.m.Unlock()
	return c.value
}

// Subscribe calls fn with the current value and then with every later value.
// Values reach fn in publish order; when several are published while fn is
// busy, fn only sees the newest of them.
func (c *Cell[T]) Subscribe(fn func(T)) *Subscription {
	sub := &subscriber[T]{fn: fn}

	c.m.Lock()
	c.subs = append(c.subs, sub)
	c.m.Unlock()

	c.openM.Lock()
	c.refs++
	if c.refs == 1 {
		c.open()
	}
	c.openM.Unlock()

	c.deliver()

	return newSubscription(func() {
		c.m.Lock()
		for i, s := range c.subs {
			if s == sub {
				c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
				break
			}
		}
		c.m.Unlock()

		c.openM.Lock()
		c.refs--
		if c.refs == 0 {
			c.close()
		}
		c.openM.Unlock()
	})
}

// Load opens the cell and waits until its fetch is over, successful or not.
// The cell stays open until the returned subscription is closed.
func (c *Cell[T]) Load(ctx context.Context) (T, *Subscription, error) {
	sub := c.Subscribe(func(T) {})

	c.openM.Lock()
	settled := c.settled
	c.openM.Unlock()

	select {
	case <-settled:
		return c.Get(), sub, nil
	case <-ctx.Done():
		sub.Close()
		return *new(T), nil, ctx.Err()
	}
}

func (c *Cell[T]) open() {
	if c.opts.Event != "" {
		unlisten, err := c.h.Listen(c.opts.Event, c.handleEvent)
		if err != nil {
			slog.Error("Failed to listen for event", slog.String("cell", c.opts.Name), slog.String("event", c.opts.Event), slog.Any("error", err))
		} else {
			c.unlisten = unlisten
		}
	}

	settled := make(chan struct{})
	c.settled = settled

	if c.opts.FetchMethod == "" {
		close(settled)
		return
	}

	c.m.Lock()
	issued := c.seq
	var j *journal[T]
	if c.opts.ReplayOnFetch {
		j = &journal[T]{}
	}
	c.journal = j
	c.m.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	c.cancelFetch = cancel
	go func() {
		defer close(settled)
		defer c.stopJournal(j)
		c.fetch(ctx, issued, j)
	}()
}

func (c *Cell[T]) close() {
	if c.unlisten != nil {
		c.unlisten()
		c.unlisten = nil
	}
	if c.cancelFetch != nil {
		c.cancelFetch()
		c.cancelFetch = nil
	}
}

func (c *Cell[T]) stopJournal(j *journal[T]) {
	c.m.Lock()
	defer c.m.Unlock()
	if c.journal == j {
		c.journal = nil
	}
}

func (c *Cell[T]) fetch(ctx context.Context, issued uint64, j *journal[T]) {
	var payload json.RawMessage
	if err := c.h.Invoke(ctx, c.opts.FetchMethod, c.opts.FetchParams, &payload); err != nil {
		if ctx.Err() == nil {
			slog.Error("Failed to fetch initial value", slog.String("cell", c.opts.Name), slog.Any("error", err))
		}
		return
	}

	v, err := c.opts.DecodeFetch(payload)
	if err != nil {
		slog.Error("Malformed fetch result", slog.String("cell", c.opts.Name), slog.Any("error", err))
		return
	}

	c.m.Lock()
	if c.seq != issued {
		if j == nil || c.journal != j {
			c.m.Unlock()
			slog.Debug("Discarding stale fetch result", slog.String("cell", c.opts.Name))
			return
		}
		for _, fn := range j.updates {
			if next, err := fn(v); err == nil {
				v = next
			}
		}
	}
	if c.journal == j {
		c.journal = nil
	}
	c.seq++
	c.value = v
	c.m.Unlock()

	c.deliver()
}

func (c *Cell[T]) handleEvent(payload json.RawMessage) {
	err := c.update(func(current T) (T, error) {
		return c.opts.DecodeEvent(current, payload)
	})
	if err != nil {
		slog.Error("Malformed event payload", slog.String("cell", c.opts.Name), slog.Any("error", err))
	}
}

func (c *Cell[T]) publish(v T) {
	c.update(func(T) (T, error) {
		return v, nil
	})
}

// update derives the next value from the current one under the cell lock.
func (c *Cell[T]) update(fn func(current T) (T, error)) error {
	c.m.Lock()
	v, err := fn(c.value)
	if err != nil {
		c.m.Unlock()
		return err
	}
	c.seq++
	c.value = v
	if c.journal != nil {
		c.journal.updates = append(c.journal.updates, fn)
	}
	c.m.Unlock()

	c.deliver()
	return nil
}

// deliver notifies subscribers that have not seen the latest value. Only one
// goroutine delivers at a time; publishes made meanwhile, including from the
// callbacks themselves, are picked up by the running loop.
func (c *Cell[T]) deliver() {
	c.m.Lock()
	if c.delivering {
		c.m.Unlock()
		return
	}
	c.delivering = true

	for {
		var next *subscriber[T]
		for _, s := range c.subs {
			if !s.primed || s.seen < c.seq {
				next = s
				break
			}
		}
		if next == nil {
			c.delivering = false
			c.m.Unlock()
			return
		}

		next.primed = true
		next.seen = c.seq
		v := c.value
		c.m.Unlock()

		next.fn(v)

		c.m.Lock()
	}
}

type Subscription struct {
	once  sync.Once
	close func()
}

func newSubscription(close func()) *Subscription {
	return &Subscription{close: close}
}

// Close detaches the subscriber. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(s.close)
}
