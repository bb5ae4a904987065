// Package stream bridges the blocking generation worker to a concurrently
// scheduled consumer (terminal renderer or SSE handler).
//
// The worker and the consumer communicate exclusively through a bounded,
// ordered, single-producer/single-consumer event queue. The producer never
// blocks: the queue is sized so overflow does not happen in practice, and if
// it does the event is dropped with a log line rather than stalling
// synthesis. The consumer multiplexes "next event" against a keepalive timer
// and client disconnect in a standard fan-in select loop.
package stream

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"zexplorer/core"
)

// DefaultBufferSize is the event queue capacity. A full batch of 100 images
// at 20 diffusion steps each emits well under this many events between
// consumer reads.
const DefaultBufferSize = 1024

// DefaultKeepalive is how long Forward waits on a silent worker before
// invoking the keepalive callback, so network consumers can emit a comment
// frame instead of starving.
const DefaultKeepalive = 200 * time.Millisecond

// Relay owns one batch's event queue and result slot. Create one per
// workflow invocation with Run; relays are not reusable.
type Relay struct {
	events  chan core.ProgressEvent
	done    chan core.GenerationResult
	dropped atomic.Int64
	logger  *zap.Logger
}

// Option configures a Relay.
type Option func(*relayConfig)

type relayConfig struct {
	bufferSize int
	logger     *zap.Logger
}

// WithBufferSize overrides the event queue capacity.
func WithBufferSize(n int) Option {
	return func(c *relayConfig) {
		if n > 0 {
			c.bufferSize = n
		}
	}
}

// WithLogger attaches a logger for drop and panic reporting.
func WithLogger(logger *zap.Logger) Option {
	return func(c *relayConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Run starts fn on a dedicated worker goroutine and returns the relay the
// consumer reads from. fn receives the relay's event sink and runs the whole
// batch synchronously; when it returns, the event channel is closed and the
// result is published on Done.
//
// A panic escaping fn is recovered into a failed result so the consumer
// always observes a terminal outcome (the worker must never die silently).
func Run(fn func(core.ProgressFunc) core.GenerationResult, opts ...Option) *Relay {
	cfg := relayConfig{
		bufferSize: DefaultBufferSize,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	r := &Relay{
		events: make(chan core.ProgressEvent, cfg.bufferSize),
		done:   make(chan core.GenerationResult, 1),
		logger: cfg.logger,
	}

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("generation worker panicked",
					zap.Any("panic", rec))
				close(r.events)
				r.done <- core.GenerationResult{
					Success: false,
					Errors:  []string{fmt.Sprintf("unknown error: %v", rec)},
				}
			}
		}()

		result := fn(r.emit)
		close(r.events)
		r.done <- result
	}()

	return r
}

// emit is the worker-side sink. It never blocks: when the queue is full the
// event is dropped and counted.
func (r *Relay) emit(ev core.ProgressEvent) {
	select {
	case r.events <- ev:
	default:
		r.dropped.Add(1)
		r.logger.Warn("progress queue full, dropping event",
			zap.String("stage", string(ev.Stage)))
	}
}

// Events returns the consumer side of the queue. The channel is closed after
// the worker finishes; events already queued remain readable.
func (r *Relay) Events() <-chan core.ProgressEvent {
	return r.events
}

// Done yields the batch result exactly once, after Events is exhausted.
func (r *Relay) Done() <-chan core.GenerationResult {
	return r.done
}

// Dropped reports how many events were discarded due to a full queue.
func (r *Relay) Dropped() int64 {
	return r.dropped.Load()
}

// Forward runs the consumer select loop: it delivers every queued event to
// onEvent in FIFO order, calls onKeepalive whenever the worker has been
// silent for the keepalive interval, and returns the batch result once the
// worker finishes.
//
// If ctx is cancelled (client disconnect) or a callback returns an error,
// Forward returns delivered=false and the underlying computation runs to
// completion with its result discarded. Cancellation stops event delivery,
// not the work.
func (r *Relay) Forward(
	ctx context.Context,
	keepalive time.Duration,
	onEvent func(core.ProgressEvent) error,
	onKeepalive func() error,
) (result core.GenerationResult, delivered bool, err error) {
	if keepalive <= 0 {
		keepalive = DefaultKeepalive
	}
	ticker := time.NewTicker(keepalive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return core.GenerationResult{}, false, ctx.Err()

		case ev, ok := <-r.events:
			if !ok {
				// Worker finished and the queue is drained.
				return <-r.done, true, nil
			}
			if err := onEvent(ev); err != nil {
				return core.GenerationResult{}, false, err
			}
			ticker.Reset(keepalive)

		case <-ticker.C:
			if onKeepalive == nil {
				continue
			}
			if err := onKeepalive(); err != nil {
				return core.GenerationResult{}, false, err
			}
		}
	}
}
