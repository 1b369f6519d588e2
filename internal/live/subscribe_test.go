package live

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/yelbahhaoui/MediaConnectPruebas/internal/clock"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/eventloop"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/models"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/store"
)

func startLoop(t *testing.T) *eventloop.Loop {
	t.Helper()
	loop := eventloop.New()
	go loop.Run(context.Background())
	t.Cleanup(loop.Close)
	return loop
}

func countPosts(s *store.MemoryStore) func(context.Context) (int, error) {
	return func(ctx context.Context) (int, error) {
		posts, err := s.ListPosts(ctx)
		return len(posts), err
	}
}

func next(t *testing.T, ch <-chan int) int {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return 0
	}
}

func waitPending(t *testing.T, c *clock.FakeClock) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for c.Pending() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no timer registered")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSubscribeDeliversInitialAndUpdates(t *testing.T) {
	ctx := context.Background()
	loop := startLoop(t)
	s := store.NewMemoryStore(nil)

	got := make(chan int, 8)
	sub := Subscribe(loop, s, store.PostsTopic, countPosts(s), func(n int) { got <- n }, Options{Logger: zerolog.Nop()})
	defer loop.Do(ctx, sub.Unsubscribe)

	if n := next(t, got); n != 0 {
		t.Fatalf("expected empty initial snapshot, got %d", n)
	}
	if err := s.CreatePost(ctx, &models.Post{AuthorID: "alice", Content: "hi"}); err != nil {
		t.Fatal(err)
	}
	if n := next(t, got); n != 1 {
		t.Fatalf("expected one post, got %d", n)
	}
}

func TestUnsubscribeOnLoopStopsDeliveries(t *testing.T) {
	ctx := context.Background()
	loop := startLoop(t)
	s := store.NewMemoryStore(nil)

	var calls atomic.Int32
	first := make(chan struct{}, 1)
	sub := Subscribe(loop, s, store.PostsTopic, countPosts(s), func(int) {
		calls.Add(1)
		select {
		case first <- struct{}{}:
		default:
		}
	}, Options{Logger: zerolog.Nop()})

	select {
	case <-first:
	case <-time.After(2 * time.Second):
		t.Fatal("no initial snapshot")
	}

	if err := loop.Do(ctx, sub.Unsubscribe); err != nil {
		t.Fatal(err)
	}
	before := calls.Load()

	for i := 0; i < 3; i++ {
		if err := s.CreatePost(ctx, &models.Post{AuthorID: "alice", Content: "hi"}); err != nil {
			t.Fatal(err)
		}
	}
	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not exit")
	}
	// Flush anything queued before the watcher exited.
	if err := loop.Do(ctx, func() {}); err != nil {
		t.Fatal(err)
	}
	if after := calls.Load(); after != before {
		t.Fatalf("callback ran after unsubscribe: %d -> %d", before, after)
	}

	// Idempotent.
	if err := loop.Do(ctx, sub.Unsubscribe); err != nil {
		t.Fatal(err)
	}
}

func TestLoadErrorKeepsLastSnapshot(t *testing.T) {
	ctx := context.Background()
	loop := startLoop(t)
	s := store.NewMemoryStore(nil)

	var failing atomic.Bool
	boom := errors.New("backend unavailable")
	load := func(ctx context.Context) (int, error) {
		if failing.Load() {
			return 0, boom
		}
		return countPosts(s)(ctx)
	}

	got := make(chan int, 8)
	errs := make(chan error, 8)
	sub := Subscribe(loop, s, store.PostsTopic, load, func(n int) { got <- n }, Options{
		Logger:  zerolog.Nop(),
		OnError: func(err error) { errs <- err },
	})
	defer loop.Do(ctx, sub.Unsubscribe)

	next(t, got)
	failing.Store(true)
	if err := s.CreatePost(ctx, &models.Post{AuthorID: "alice", Content: "hi"}); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-errs:
		if !errors.Is(err, boom) {
			t.Fatalf("unexpected error %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("error not reported")
	}
	select {
	case n := <-got:
		t.Fatalf("snapshot %d delivered despite load failure", n)
	default:
	}

	failing.Store(false)
	if err := s.CreatePost(ctx, &models.Post{AuthorID: "alice", Content: "again"}); err != nil {
		t.Fatal(err)
	}
	if n := next(t, got); n != 2 {
		t.Fatalf("expected recovery snapshot of 2, got %d", n)
	}
}

func TestBrokenWatchReconnectsWithBackoff(t *testing.T) {
	ctx := context.Background()
	loop := startLoop(t)
	s := store.NewMemoryStore(nil)
	fake := clock.Fake(time.Now())

	got := make(chan int, 8)
	errs := make(chan error, 8)
	sub := Subscribe(loop, s, store.PostsTopic, countPosts(s), func(n int) { got <- n }, Options{
		Logger:  zerolog.Nop(),
		Clock:   fake,
		OnError: func(err error) { errs <- err },
	})
	defer loop.Do(ctx, sub.Unsubscribe)

	next(t, got)
	s.DropWatches()

	select {
	case <-errs:
	case <-time.After(2 * time.Second):
		t.Fatal("broken watch not reported")
	}

	// A write while disconnected must show up in the post-reconnect snapshot.
	if err := s.CreatePost(ctx, &models.Post{AuthorID: "alice", Content: "missed"}); err != nil {
		t.Fatal(err)
	}

	waitPending(t, fake)
	fake.Advance(minBackoff)

	if n := next(t, got); n != 1 {
		t.Fatalf("expected catch-up snapshot of 1, got %d", n)
	}
}

func TestNextBackoffCaps(t *testing.T) {
	d := minBackoff
	for i := 0; i < 10; i++ {
		d = nextBackoff(d)
	}
	if d != maxBackoff {
		t.Fatalf("expected cap %v, got %v", maxBackoff, d)
	}
	if nextBackoff(minBackoff) != 2*minBackoff {
		t.Fatal("expected doubling")
	}
}

func TestClosingLoopReleasesWatch(t *testing.T) {
	loop := eventloop.New()
	go loop.Run(context.Background())
	s := store.NewMemoryStore(nil)

	got := make(chan int, 8)
	sub := Subscribe(loop, s, store.PostsTopic, countPosts(s), func(n int) { got <- n }, Options{Logger: zerolog.Nop()})
	next(t, got)

	// Nobody calls Unsubscribe; stopping the loop alone must end the runner.
	loop.Close()
	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("watch still running after the loop stopped")
	}
}
