package feed

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/yelbahhaoui/MediaConnectPruebas/internal/apperr"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/models"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/session"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/store"
)

var (
	alice = models.Identity{ID: "alice", DisplayName: "Alice", Email: "alice@example.com"}
	bob   = models.Identity{ID: "bob", DisplayName: "Bob"}
)

func newSession(t *testing.T, id models.Identity) *session.Session {
	t.Helper()
	s := session.New(id, zerolog.Nop())
	t.Cleanup(s.SignOut)
	return s
}

func postsWith(contents ...string) []models.Post {
	posts := make([]models.Post, len(contents))
	for i, c := range contents {
		posts[i] = models.Post{Content: c}
	}
	return posts
}

func TestComputeTrends(t *testing.T) {
	got := ComputeTrends(postsWith("hello #foo", "#foo world", "#bar"), 0)
	want := []models.Trend{{Tag: "#foo", Count: 2}, {Tag: "#bar", Count: 1}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestComputeTrendsTiesKeepFirstSeenOrder(t *testing.T) {
	got := ComputeTrends(postsWith("#b #a", "#c", "#a #b"), 0)
	want := []models.Trend{{Tag: "#b", Count: 2}, {Tag: "#a", Count: 2}, {Tag: "#c", Count: 1}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestComputeTrendsLimitAndFallback(t *testing.T) {
	got := ComputeTrends(postsWith("#a #b #c #d #e #f #g"), 0)
	if len(got) != DefaultTrendLimit {
		t.Fatalf("expected %d trends, got %d", DefaultTrendLimit, len(got))
	}
	if got := ComputeTrends(postsWith("#a #b #c"), 2); len(got) != 2 {
		t.Fatalf("limit not applied: %+v", got)
	}

	got = ComputeTrends(postsWith("no tags", "still none", "#"), 0)
	want := []models.Trend{{Tag: GeneralTrend, Count: 3}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	got = ComputeTrends(nil, 0)
	if len(got) != 1 || got[0].Count != 0 {
		t.Fatalf("unexpected empty feed trends %+v", got)
	}
}

func TestPublish(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore(nil)
	f := NewFeed(newSession(t, alice), s, Options{})

	post, err := f.Publish(ctx, alice, "shipping #golang today #go")
	if err != nil {
		t.Fatal(err)
	}
	if post.Handle != "alice" || post.Author.Name != "Alice" || post.Tag != "golang" {
		t.Fatalf("unexpected post %+v", post)
	}
	if len(post.LikedBy) != 0 || post.CommentCount != 0 || post.CreatedAt.IsZero() {
		t.Fatalf("unexpected initial state %+v", post)
	}

	plain, err := f.Publish(ctx, alice, "no tags")
	if err != nil {
		t.Fatal(err)
	}
	if plain.Tag != "General" {
		t.Fatalf("expected General tag, got %q", plain.Tag)
	}

	anon := newSession(t, models.Identity{ID: "x"})
	p, err := NewFeed(anon, s, Options{}).Publish(ctx, models.Identity{ID: "x"}, "hi")
	if err != nil {
		t.Fatal(err)
	}
	if p.Author.Name != "User" || p.Handle != "user" {
		t.Fatalf("unexpected fallbacks %+v", p)
	}
}

func TestPublishRejectsBeforeWrite(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore(nil)
	f := NewFeed(newSession(t, alice), s, Options{})

	if _, err := f.Publish(ctx, alice, "  \n "); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := f.Publish(ctx, models.Identity{}, "hello"); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := f.Publish(ctx, bob, "hello"); !errors.Is(err, apperr.ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
	posts, _ := s.ListPosts(ctx)
	if len(posts) != 0 {
		t.Fatalf("rejected publish wrote %d posts", len(posts))
	}
}

func TestDeleteByNonAuthorIsRejected(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore(nil)
	post, err := NewFeed(newSession(t, alice), s, Options{}).Publish(ctx, alice, "mine")
	if err != nil {
		t.Fatal(err)
	}

	byBob := NewFeed(newSession(t, bob), s, Options{})
	if err := byBob.Delete(ctx, post.ID, "bob"); !errors.Is(err, apperr.ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
	if err := byBob.Delete(ctx, post.ID, "alice"); !errors.Is(err, apperr.ErrPermissionDenied) {
		t.Fatalf("expected permission denied for impersonation, got %v", err)
	}
	if _, err := s.GetPost(ctx, post.ID); err != nil {
		t.Fatalf("post was mutated: %v", err)
	}

	byAlice := NewFeed(newSession(t, alice), s, Options{})
	if err := byAlice.Delete(ctx, post.ID, "alice"); err != nil {
		t.Fatal(err)
	}
	if err := byAlice.Delete(ctx, post.ID, "alice"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestToggleIsAnInvolution(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore(nil)
	post, err := NewFeed(newSession(t, alice), s, Options{}).Publish(ctx, alice, "like me")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.AddLike(ctx, post.ID, "carol"); err != nil {
		t.Fatal(err)
	}

	likes := NewLikeToggle(newSession(t, bob), s)
	current := func() []string {
		p, err := s.GetPost(ctx, post.ID)
		if err != nil {
			t.Fatal(err)
		}
		out := append([]string(nil), p.LikedBy...)
		sort.Strings(out)
		return out
	}
	original := current()

	liked, err := likes.Toggle(ctx, post.ID, "bob", original)
	if err != nil || !liked {
		t.Fatalf("liked=%v err=%v", liked, err)
	}
	if got, want := current(), []string{"bob", "carol"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	liked, err = likes.Toggle(ctx, post.ID, "bob", current())
	if err != nil || liked {
		t.Fatalf("liked=%v err=%v", liked, err)
	}
	if got := current(); !reflect.DeepEqual(got, original) {
		t.Fatalf("got %v, want %v", got, original)
	}
}

func TestToggleWithStaleSetFlipsBack(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore(nil)
	post, _ := NewFeed(newSession(t, alice), s, Options{}).Publish(ctx, alice, "x")
	likes := NewLikeToggle(newSession(t, bob), s)

	stale := []string{}
	if _, err := likes.Toggle(ctx, post.ID, "bob", stale); err != nil {
		t.Fatal(err)
	}
	// The caller still believes bob has not liked the post.
	if _, err := likes.Toggle(ctx, post.ID, "bob", stale); err != nil {
		t.Fatal(err)
	}
	p, _ := s.GetPost(ctx, post.ID)
	if len(p.LikedBy) != 1 {
		t.Fatalf("expected a single like, got %v", p.LikedBy)
	}
}

func TestNextLikedBy(t *testing.T) {
	if got := NextLikedBy([]string{"a"}, "b"); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("unexpected %v", got)
	}
	if got := NextLikedBy([]string{"a", "b"}, "a"); !reflect.DeepEqual(got, []string{"b"}) {
		t.Fatalf("unexpected %v", got)
	}
	start := []string{"x", "y"}
	if got := NextLikedBy(NextLikedBy(start, "z"), "z"); !reflect.DeepEqual(got, start) {
		t.Fatalf("toggle twice changed the set: %v", got)
	}
}

func TestToggleValidation(t *testing.T) {
	likes := NewLikeToggle(newSession(t, bob), store.NewMemoryStore(nil))
	if _, err := likes.Toggle(context.Background(), "p1", "", nil); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := likes.Toggle(context.Background(), "p1", "alice", nil); !errors.Is(err, apperr.ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
	if _, err := likes.Toggle(context.Background(), "missing", "bob", nil); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestFeedSubscription(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore(nil)
	sess := newSession(t, alice)
	f := NewFeed(sess, s, Options{})

	snaps := make(chan Snapshot, 16)
	var unsubscribe func()
	if err := sess.Do(ctx, func() {
		unsubscribe = f.Subscribe(func(snap Snapshot) { snaps <- snap }).Unsubscribe
	}); err != nil {
		t.Fatal(err)
	}
	defer sess.Do(ctx, unsubscribe)

	waitFor := func(n int) Snapshot {
		t.Helper()
		deadline := time.After(2 * time.Second)
		for {
			select {
			case snap := <-snaps:
				if len(snap.Posts) == n {
					return snap
				}
			case <-deadline:
				t.Fatalf("timed out waiting for %d posts", n)
				return Snapshot{}
			}
		}
	}

	initial := waitFor(0)
	if len(initial.Trends) != 1 || initial.Trends[0].Tag != GeneralTrend {
		t.Fatalf("unexpected initial trends %+v", initial.Trends)
	}

	first, err := f.Publish(ctx, alice, "hello #foo")
	if err != nil {
		t.Fatal(err)
	}
	waitFor(1)
	time.Sleep(2 * time.Millisecond)
	if _, err := f.Publish(ctx, alice, "#foo world"); err != nil {
		t.Fatal(err)
	}
	snap := waitFor(2)
	if snap.Posts[1].ID != first.ID {
		t.Fatal("expected newest post first")
	}
	if snap.Trends[0].Tag != "#foo" || snap.Trends[0].Count != 2 {
		t.Fatalf("unexpected trends %+v", snap.Trends)
	}

	var liked []string
	var ok bool
	if err := sess.Do(ctx, func() { liked, ok = f.LikedBy(first.ID) }); err != nil {
		t.Fatal(err)
	}
	if !ok || len(liked) != 0 {
		t.Fatalf("unexpected like set %v %v", liked, ok)
	}
}
