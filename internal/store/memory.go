package store

import (
	"context"
	"sort"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/yelbahhaoui/MediaConnectPruebas/internal/apperr"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/clock"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/models"
)

// MemoryStore keeps every collection in process memory. It backs
// development runs without REDIS_URL and the component tests.
type MemoryStore struct {
	mu       sync.RWMutex
	clock    clock.Clock
	users    map[string]models.Identity
	chats    map[string]models.Conversation
	messages map[string][]models.Message
	posts    map[string]models.Post
	broker   *broker
}

var (
	_ LiveStore = (*MemoryStore)(nil)
	_ Directory = (*MemoryStore)(nil)
)

// NewMemoryStore creates an empty store stamping documents with c.
func NewMemoryStore(c clock.Clock) *MemoryStore {
	if c == nil {
		c = clock.Real()
	}
	return &MemoryStore{
		clock:    c,
		users:    make(map[string]models.Identity),
		chats:    make(map[string]models.Conversation),
		messages: make(map[string][]models.Message),
		posts:    make(map[string]models.Post),
		broker:   newBroker(),
	}
}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close closes every open watch.
func (s *MemoryStore) Close() error {
	s.broker.closeAll()
	return nil
}

// DropWatches closes every open watch channel, simulating a lost
// notification connection. Watches can be re-established afterwards.
func (s *MemoryStore) DropWatches() {
	s.broker.closeAll()
}

// Watch implements Watcher.
func (s *MemoryStore) Watch(ctx context.Context, topic string) (<-chan struct{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.broker.watch(ctx, topic), nil
}

// EnsureUser implements Directory.
func (s *MemoryStore) EnsureUser(ctx context.Context, user *models.Identity) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; ok {
		return false, nil
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.clock.Now()
	}
	s.users[user.ID] = *user
	return true, nil
}

// GetUser implements Directory.
func (s *MemoryStore) GetUser(ctx context.Context, id string) (*models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, apperr.NotFound("store: get user", "user "+id)
	}
	return &user, nil
}

// SearchUsers implements Directory.
func (s *MemoryStore) SearchUsers(ctx context.Context, lo, hi string, limit int) ([]models.DirectoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]models.DirectoryEntry, 0)
	for _, user := range s.users {
		if user.DisplayName >= lo && user.DisplayName < hi {
			entries = append(entries, user.Entry())
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].DisplayName != entries[j].DisplayName {
			return entries[i].DisplayName < entries[j].DisplayName
		}
		return entries[i].ID < entries[j].ID
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// CreateChat implements ChatStore.
func (s *MemoryStore) CreateChat(ctx context.Context, chat *models.Conversation) error {
	s.mu.Lock()
	chat.ID = ulid.Make().String()
	chat.UpdatedAt = s.clock.Now()
	if chat.LastMessage.At.IsZero() {
		chat.LastMessage.At = chat.UpdatedAt
	}
	s.chats[chat.ID] = cloneChat(*chat)
	s.mu.Unlock()

	s.broker.publish(chatTopics(chat.ParticipantIDs)...)
	return nil
}

// GetChat implements ChatStore.
func (s *MemoryStore) GetChat(ctx context.Context, id string) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chat, ok := s.chats[id]
	if !ok {
		return nil, apperr.NotFound("store: get chat", "chat "+id)
	}
	chat = cloneChat(chat)
	return &chat, nil
}

// ListChats implements ChatStore.
func (s *MemoryStore) ListChats(ctx context.Context, participantID string) ([]models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chats := make([]models.Conversation, 0)
	for _, chat := range s.chats {
		if chat.Includes(participantID) {
			chats = append(chats, cloneChat(chat))
		}
	}
	sort.Slice(chats, func(i, j int) bool {
		if !chats[i].UpdatedAt.Equal(chats[j].UpdatedAt) {
			return chats[i].UpdatedAt.After(chats[j].UpdatedAt)
		}
		return chats[i].ID > chats[j].ID
	})
	return chats, nil
}

// UpdateChatSummary implements ChatStore.
func (s *MemoryStore) UpdateChatSummary(ctx context.Context, chatID string, last models.LastMessage) error {
	s.mu.Lock()
	chat, ok := s.chats[chatID]
	if !ok {
		s.mu.Unlock()
		return apperr.NotFound("store: update chat summary", "chat "+chatID)
	}
	chat.UpdatedAt = s.clock.Now()
	if last.At.IsZero() {
		last.At = chat.UpdatedAt
	}
	chat.LastMessage = last
	s.chats[chatID] = chat
	participants := append([]string(nil), chat.ParticipantIDs...)
	s.mu.Unlock()

	s.broker.publish(chatTopics(participants)...)
	return nil
}

// AddMessage implements ChatStore.
func (s *MemoryStore) AddMessage(ctx context.Context, msg *models.Message) error {
	s.mu.Lock()
	if _, ok := s.chats[msg.ConversationID]; !ok {
		s.mu.Unlock()
		return apperr.NotFound("store: add message", "chat "+msg.ConversationID)
	}
	msg.ID = ulid.Make().String()
	msg.CreatedAt = s.clock.Now()
	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], *msg)
	s.mu.Unlock()

	s.broker.publish(MessagesTopic(msg.ConversationID))
	return nil
}

// ListMessages implements ChatStore.
func (s *MemoryStore) ListMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := append([]models.Message{}, s.messages[chatID]...)
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	return msgs, nil
}

// CreatePost implements PostStore.
func (s *MemoryStore) CreatePost(ctx context.Context, post *models.Post) error {
	s.mu.Lock()
	post.ID = ulid.Make().String()
	post.CreatedAt = s.clock.Now()
	if post.LikedBy == nil {
		post.LikedBy = []string{}
	}
	s.posts[post.ID] = clonePost(*post)
	s.mu.Unlock()

	s.broker.publish(PostsTopic)
	return nil
}

// GetPost implements PostStore.
func (s *MemoryStore) GetPost(ctx context.Context, id string) (*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	post, ok := s.posts[id]
	if !ok {
		return nil, apperr.NotFound("store: get post", "post "+id)
	}
	post = clonePost(post)
	return &post, nil
}

// ListPosts implements PostStore.
func (s *MemoryStore) ListPosts(ctx context.Context) ([]models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	posts := make([]models.Post, 0, len(s.posts))
	for _, post := range s.posts {
		posts = append(posts, clonePost(post))
	}
	sort.Slice(posts, func(i, j int) bool {
		if !posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].CreatedAt.After(posts[j].CreatedAt)
		}
		return posts[i].ID > posts[j].ID
	})
	return posts, nil
}

// DeletePost implements PostStore.
func (s *MemoryStore) DeletePost(ctx context.Context, id string) error {
	s.mu.Lock()
	if _, ok := s.posts[id]; !ok {
		s.mu.Unlock()
		return apperr.NotFound("store: delete post", "post "+id)
	}
	delete(s.posts, id)
	s.mu.Unlock()

	s.broker.publish(PostsTopic)
	return nil
}

// AddLike implements PostStore.
func (s *MemoryStore) AddLike(ctx context.Context, postID, userID string) error {
	return s.mutateLikes("store: add like", postID, func(post *models.Post) {
		if !post.IsLikedBy(userID) {
			post.LikedBy = append(post.LikedBy, userID)
		}
	})
}

// RemoveLike implements PostStore.
func (s *MemoryStore) RemoveLike(ctx context.Context, postID, userID string) error {
	return s.mutateLikes("store: remove like", postID, func(post *models.Post) {
		kept := post.LikedBy[:0]
		for _, id := range post.LikedBy {
			if id != userID {
				kept = append(kept, id)
			}
		}
		post.LikedBy = kept
	})
}

func (s *MemoryStore) mutateLikes(op, postID string, mutate func(*models.Post)) error {
	s.mu.Lock()
	post, ok := s.posts[postID]
	if !ok {
		s.mu.Unlock()
		return apperr.NotFound(op, "post "+postID)
	}
	post = clonePost(post)
	mutate(&post)
	s.posts[postID] = post
	s.mu.Unlock()

	s.broker.publish(PostsTopic)
	return nil
}

func chatTopics(participants []string) []string {
	topics := make([]string, 0, len(participants))
	for _, id := range participants {
		topics = append(topics, ChatsTopic(id))
	}
	return topics
}

func cloneChat(c models.Conversation) models.Conversation {
	c.ParticipantIDs = append([]string(nil), c.ParticipantIDs...)
	c.Profiles = append([]models.Profile(nil), c.Profiles...)
	return c
}

func clonePost(p models.Post) models.Post {
	p.LikedBy = append([]string{}, p.LikedBy...)
	return p
}
