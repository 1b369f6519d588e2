package store

import (
	"context"
	"sync"
)

// broker fans change signals out to in-process watchers.
type broker struct {
	mu       sync.Mutex
	watchers map[string]map[chan struct{}]struct{}
}

func newBroker() *broker {
	return &broker{watchers: make(map[string]map[chan struct{}]struct{})}
}

// watch registers a coalescing signal channel for topic until ctx ends.
func (b *broker) watch(ctx context.Context, topic string) <-chan struct{} {
	ch := make(chan struct{}, 1)

	b.mu.Lock()
	set := b.watchers[topic]
	if set == nil {
		set = make(map[chan struct{}]struct{})
		b.watchers[topic] = set
	}
	set[ch] = struct{}{}
	b.mu.Unlock()

	context.AfterFunc(ctx, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.watchers[topic][ch]; !ok {
			return
		}
		delete(b.watchers[topic], ch)
		if len(b.watchers[topic]) == 0 {
			delete(b.watchers, topic)
		}
		close(ch)
	})
	return ch
}

// publish signals every watcher of each topic without blocking.
func (b *broker) publish(topics ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, topic := range topics {
		for ch := range b.watchers[topic] {
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	}
}

// closeAll closes every watcher channel, as a dropped connection would.
func (b *broker) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for topic, set := range b.watchers {
		for ch := range set {
			close(ch)
		}
		delete(b.watchers, topic)
	}
}
