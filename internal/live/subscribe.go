// Package live turns store change notifications into snapshot
// subscriptions delivered on a session's event loop.
package live

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/yelbahhaoui/MediaConnectPruebas/internal/apperr"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/clock"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/eventloop"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/metrics"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/store"
)

const (
	minBackoff = 250 * time.Millisecond
	maxBackoff = 8 * time.Second
)

var errWatchClosed = errors.New("notification stream closed")

// Options tunes a subscription. The zero value is usable.
type Options struct {
	// Name labels the stream in metrics and logs.
	Name string

	Logger zerolog.Logger
	Clock  clock.Clock

	// OnError receives load and watch failures on the loop. The last
	// delivered snapshot stays current.
	OnError func(error)
}

// Subscription is a live snapshot feed. Unsubscribe must be called on the
// loop the subscription delivers to; once it returns no further callback
// runs.
type Subscription struct {
	closed atomic.Bool
	cancel context.CancelFunc
	done   chan struct{}
}

// Unsubscribe stops deliveries and releases the watch. It is idempotent.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.closed.Store(true)
	s.cancel()
}

// Done is closed once the background watcher has exited.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Subscribe watches topic and delivers load's result to onChange on loop:
// once when the watch is established and again after every change signal.
// A broken watch is re-established with exponential backoff and followed
// by a fresh snapshot, since signals may have been lost meanwhile.
// Stopping the loop releases the watch as Unsubscribe would.
func Subscribe[T any](loop *eventloop.Loop, w store.Watcher, topic string, load func(context.Context) (T, error), onChange func(T), opts Options) *Subscription {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Name == "" {
		opts.Name = topic
	}

	ctx, cancel := context.WithCancel(context.Background())
	sub := &Subscription{cancel: cancel, done: make(chan struct{})}

	r := &runner[T]{
		sub:      sub,
		loop:     loop,
		watcher:  w,
		topic:    topic,
		load:     load,
		onChange: onChange,
		opts:     opts,
		logger:   opts.Logger.With().Str("stream", opts.Name).Str("topic", topic).Logger(),
	}
	go r.run(ctx)

	// The watch never outlives the loop it delivers to.
	go func() {
		select {
		case <-loop.Done():
			sub.Unsubscribe()
		case <-ctx.Done():
		}
	}()
	return sub
}

type runner[T any] struct {
	sub      *Subscription
	loop     *eventloop.Loop
	watcher  store.Watcher
	topic    string
	load     func(context.Context) (T, error)
	onChange func(T)
	opts     Options
	logger   zerolog.Logger
}

func (r *runner[T]) run(ctx context.Context) {
	defer close(r.sub.done)

	backoff := minBackoff
	for {
		signals, err := r.watcher.Watch(ctx, r.topic)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.report(apperr.Transient("live: watch "+r.topic, err))
			if !r.sleep(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff)
			continue
		}

		r.refresh(ctx)

	consume:
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-signals:
				if !ok {
					break consume
				}
				backoff = minBackoff
				r.refresh(ctx)
			}
		}

		if ctx.Err() != nil {
			return
		}
		r.logger.Warn().Dur("backoff", backoff).Msg("watch closed, reconnecting")
		r.report(apperr.Transient("live: watch "+r.topic, errWatchClosed))
		if !r.sleep(ctx, backoff) {
			return
		}
		backoff = nextBackoff(backoff)
	}
}

func (r *runner[T]) refresh(ctx context.Context) {
	snapshot, err := r.load(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		r.report(err)
		return
	}
	r.loop.Post(func() {
		if r.sub.closed.Load() {
			return
		}
		metrics.SnapshotsDelivered.WithLabelValues(r.opts.Name).Inc()
		r.onChange(snapshot)
	})
}

func (r *runner[T]) report(err error) {
	metrics.SubscriptionErrors.WithLabelValues(r.opts.Name).Inc()
	r.logger.Warn().Err(err).Msg("subscription error")
	if r.opts.OnError == nil {
		return
	}
	r.loop.Post(func() {
		if r.sub.closed.Load() {
			return
		}
		r.opts.OnError(err)
	})
}

func (r *runner[T]) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-r.opts.Clock.After(d):
		return true
	}
}

func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}
