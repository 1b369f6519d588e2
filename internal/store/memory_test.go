package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yelbahhaoui/MediaConnectPruebas/internal/apperr"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/clock"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/models"
)

func newTestMemoryStore() (*MemoryStore, *clock.FakeClock) {
	fake := clock.Fake(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	return NewMemoryStore(fake), fake
}

func expectSignal(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case _, ok := <-ch:
		if !ok {
			t.Fatal("watch channel closed")
		}
	case <-time.After(time.Second):
		t.Fatal("no change signal")
	}
}

func TestMemoryChatsOrderedByUpdatedAt(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestMemoryStore()

	first := &models.Conversation{ParticipantIDs: []string{"alice", "bob"}}
	if err := s.CreateChat(ctx, first); err != nil {
		t.Fatal(err)
	}
	fake.Advance(time.Minute)
	second := &models.Conversation{ParticipantIDs: []string{"alice", "carol"}}
	if err := s.CreateChat(ctx, second); err != nil {
		t.Fatal(err)
	}

	chats, err := s.ListChats(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(chats) != 2 || chats[0].ID != second.ID {
		t.Fatalf("expected newest first, got %+v", chats)
	}

	fake.Advance(time.Minute)
	if err := s.UpdateChatSummary(ctx, first.ID, models.LastMessage{Text: "hi", SenderID: "bob"}); err != nil {
		t.Fatal(err)
	}
	chats, _ = s.ListChats(ctx, "alice")
	if chats[0].ID != first.ID || chats[0].LastMessage.Text != "hi" {
		t.Fatalf("expected updated chat first, got %+v", chats)
	}

	bobs, _ := s.ListChats(ctx, "bob")
	if len(bobs) != 1 {
		t.Fatalf("expected one chat for bob, got %d", len(bobs))
	}
}

func TestMemoryMissingDocuments(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestMemoryStore()

	err := s.AddMessage(ctx, &models.Message{ConversationID: "nope", SenderID: "alice", Text: "x"})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := s.UpdateChatSummary(ctx, "nope", models.LastMessage{}); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := s.DeletePost(ctx, "nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := s.AddLike(ctx, "nope", "alice"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryWatchSignalsWrites(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s, fake := newTestMemoryStore()

	chats, err := s.Watch(ctx, ChatsTopic("bob"))
	if err != nil {
		t.Fatal(err)
	}
	posts, err := s.Watch(ctx, PostsTopic)
	if err != nil {
		t.Fatal(err)
	}

	chat := &models.Conversation{ParticipantIDs: []string{"alice", "bob"}}
	if err := s.CreateChat(ctx, chat); err != nil {
		t.Fatal(err)
	}
	expectSignal(t, chats)

	msgs, err := s.Watch(ctx, MessagesTopic(chat.ID))
	if err != nil {
		t.Fatal(err)
	}
	fake.Advance(time.Second)
	if err := s.AddMessage(ctx, &models.Message{ConversationID: chat.ID, SenderID: "alice", Text: "hey"}); err != nil {
		t.Fatal(err)
	}
	expectSignal(t, msgs)

	if err := s.CreatePost(ctx, &models.Post{AuthorID: "alice", Content: "hello"}); err != nil {
		t.Fatal(err)
	}
	expectSignal(t, posts)
}

func TestMemoryWatchClosedOnCancelAndDrop(t *testing.T) {
	s, _ := newTestMemoryStore()

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := s.Watch(ctx, PostsTopic)
	if err != nil {
		t.Fatal(err)
	}
	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("watch not closed on cancel")
	}

	ch, err = s.Watch(context.Background(), PostsTopic)
	if err != nil {
		t.Fatal(err)
	}
	s.DropWatches()
	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel after drop")
	}
}

func TestMemoryMessagesAscending(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestMemoryStore()

	chat := &models.Conversation{ParticipantIDs: []string{"alice", "bob"}}
	if err := s.CreateChat(ctx, chat); err != nil {
		t.Fatal(err)
	}
	for _, text := range []string{"one", "two", "three"} {
		fake.Advance(time.Second)
		if err := s.AddMessage(ctx, &models.Message{ConversationID: chat.ID, SenderID: "alice", Text: text}); err != nil {
			t.Fatal(err)
		}
	}

	msgs, err := s.ListMessages(ctx, chat.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 3 || msgs[0].Text != "one" || msgs[2].Text != "three" {
		t.Fatalf("unexpected order %+v", msgs)
	}
}

func TestMemoryLikesAreSets(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestMemoryStore()

	post := &models.Post{AuthorID: "alice", Content: "hello"}
	if err := s.CreatePost(ctx, post); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if err := s.AddLike(ctx, post.ID, "bob"); err != nil {
			t.Fatal(err)
		}
	}
	got, _ := s.GetPost(ctx, post.ID)
	if len(got.LikedBy) != 1 {
		t.Fatalf("expected one like, got %v", got.LikedBy)
	}
	if err := s.RemoveLike(ctx, post.ID, "bob"); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetPost(ctx, post.ID)
	if len(got.LikedBy) != 0 {
		t.Fatalf("expected no likes, got %v", got.LikedBy)
	}
}

func TestMemorySearchUsersRange(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestMemoryStore()

	for _, u := range []models.Identity{
		{ID: "1", DisplayName: "Alice"},
		{ID: "2", DisplayName: "Alicia"},
		{ID: "3", DisplayName: "Bob"},
		{ID: "4", DisplayName: "alice"},
	} {
		u := u
		created, err := s.EnsureUser(ctx, &u)
		if err != nil || !created {
			t.Fatalf("ensure %s: created=%v err=%v", u.ID, created, err)
		}
	}

	created, err := s.EnsureUser(ctx, &models.Identity{ID: "1", DisplayName: "Changed"})
	if err != nil || created {
		t.Fatalf("expected existing user to be kept, created=%v err=%v", created, err)
	}

	entries, err := s.SearchUsers(ctx, "Ali", "Ali"+HighSentinel, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[0].DisplayName != "Alice" || entries[1].DisplayName != "Alicia" {
		t.Fatalf("unexpected entries %+v", entries)
	}

	entries, _ = s.SearchUsers(ctx, "Ali", "Ali"+HighSentinel, 1)
	if len(entries) != 1 {
		t.Fatalf("limit not applied: %+v", entries)
	}
}
