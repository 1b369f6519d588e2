package store

import (
	"context"

	"github.com/yelbahhaoui/MediaConnectPruebas/internal/models"
)

// HighSentinel closes a prefix range: every string that starts with prefix
// sorts below prefix+HighSentinel under byte-wise comparison for the
// characters a display name realistically contains.
const HighSentinel = "\uf8ff"

// Watcher delivers change notifications for a topic. The returned channel
// carries a signal after each write that affects the topic; signals are
// coalesced, so one receive may stand for several writes. The channel is
// closed when ctx ends or the underlying notification stream breaks.
type Watcher interface {
	Watch(ctx context.Context, topic string) (<-chan struct{}, error)
}

// Directory stores users/{id} and answers prefix queries over display
// names. Both PostgresStore and SQLiteStore implement this interface.
type Directory interface {
	Close() error
	Ping(ctx context.Context) error

	// EnsureUser inserts the user unless one with the same id exists and
	// reports whether a row was created.
	EnsureUser(ctx context.Context, user *models.Identity) (bool, error)
	GetUser(ctx context.Context, id string) (*models.Identity, error)

	// SearchUsers returns users with lo <= displayName < hi, compared
	// byte-wise, ordered by display name. A limit of 0 means no limit.
	SearchUsers(ctx context.Context, lo, hi string, limit int) ([]models.DirectoryEntry, error)
}

// ChatStore holds chats/{id} and chats/{id}/messages.
type ChatStore interface {
	Watcher

	// CreateChat assigns the id and updatedAt and persists the chat.
	CreateChat(ctx context.Context, chat *models.Conversation) error
	GetChat(ctx context.Context, id string) (*models.Conversation, error)

	// ListChats returns the chats participantID belongs to, newest
	// updatedAt first.
	ListChats(ctx context.Context, participantID string) ([]models.Conversation, error)

	// UpdateChatSummary replaces lastMessage and stamps updatedAt with
	// the store's clock.
	UpdateChatSummary(ctx context.Context, chatID string, last models.LastMessage) error

	// AddMessage assigns the id and createdAt and appends the message.
	AddMessage(ctx context.Context, msg *models.Message) error

	// ListMessages returns a chat's messages, oldest first.
	ListMessages(ctx context.Context, chatID string) ([]models.Message, error)
}

// PostStore holds posts/{id}.
type PostStore interface {
	Watcher

	// CreatePost assigns the id and createdAt and persists the post.
	CreatePost(ctx context.Context, post *models.Post) error
	GetPost(ctx context.Context, id string) (*models.Post, error)

	// ListPosts returns every post, newest first.
	ListPosts(ctx context.Context) ([]models.Post, error)
	DeletePost(ctx context.Context, id string) error

	// AddLike and RemoveLike are atomic set operations on the like set.
	AddLike(ctx context.Context, postID, userID string) error
	RemoveLike(ctx context.Context, postID, userID string) error
}

// LiveStore is the substrate the subscriptions run on. Both RedisStore and
// MemoryStore implement this interface.
type LiveStore interface {
	ChatStore
	PostStore
	Ping(ctx context.Context) error
	Close() error
}

// ChatsTopic is notified whenever a chat userID participates in changes.
func ChatsTopic(userID string) string {
	return "chats:" + userID
}

// MessagesTopic is notified whenever a message is appended to chatID.
func MessagesTopic(chatID string) string {
	return "chat:" + chatID + ":messages"
}

// PostsTopic is notified on every post write.
const PostsTopic = "posts"
