package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/yelbahhaoui/MediaConnectPruebas/internal/apperr"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/live"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/metrics"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/models"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/session"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/store"
)

// ErrSummaryStale is returned together with the stored message when the
// message was appended but the conversation summary could not be updated.
// The message is durable; lastMessage and updatedAt lag behind it.
var ErrSummaryStale = errors.New("conversation summary not updated")

// ConversationView is a conversation as the session user sees it.
type ConversationView struct {
	models.Conversation
	OtherParty   models.Profile `json:"otherParty"`
	LastFromSelf bool           `json:"lastFromSelf"`
}

// Project derives the per-user views of a conversation list.
func Project(userID string, chats []models.Conversation) []ConversationView {
	views := make([]ConversationView, 0, len(chats))
	for i := range chats {
		views = append(views, ConversationView{
			Conversation: chats[i],
			OtherParty:   chats[i].OtherParty(userID),
			LastFromSelf: chats[i].LastMessage.SenderID == userID,
		})
	}
	return views
}

// ConversationStore keeps the session user's conversation list live and
// sends messages into it. Subscribe, Latest and Conversations must be
// called on the session loop.
type ConversationStore struct {
	sess   *session.Session
	chats  store.ChatStore
	opts   Options
	logger zerolog.Logger

	latest []ConversationView
}

// NewConversationStore creates a conversation store for the session user.
func NewConversationStore(sess *session.Session, chats store.ChatStore, opts Options) *ConversationStore {
	return &ConversationStore{
		sess:   sess,
		chats:  chats,
		opts:   opts,
		logger: sess.Logger().With().Str("component", "conversations").Logger(),
	}
}

// Subscribe delivers userID's conversations, newest updatedAt first, on
// every change. Only the session user's list can be subscribed to.
func (c *ConversationStore) Subscribe(userID string, onChange func([]ConversationView)) (*live.Subscription, error) {
	if userID == "" {
		return nil, apperr.Validation("chat: subscribe conversations", "user id is required")
	}
	if userID != c.sess.UserID() {
		return nil, apperr.PermissionDenied("chat: subscribe conversations", "not the session user")
	}

	load := func(ctx context.Context) ([]ConversationView, error) {
		chats, err := c.chats.ListChats(ctx, userID)
		if err != nil {
			return nil, err
		}
		return Project(userID, chats), nil
	}
	deliver := func(views []ConversationView) {
		c.latest = views
		onChange(views)
	}

	return live.Subscribe(c.sess.Loop(), c.chats, store.ChatsTopic(userID), load, deliver, live.Options{
		Name:    "conversations",
		Logger:  c.logger,
		Clock:   c.opts.Clock,
		OnError: c.opts.OnError,
	}), nil
}

// Latest returns the most recently delivered list.
func (c *ConversationStore) Latest() []ConversationView {
	return c.latest
}

// Conversations returns the latest list as plain records, the form the
// resolver expects.
func (c *ConversationStore) Conversations() []models.Conversation {
	out := make([]models.Conversation, 0, len(c.latest))
	for _, v := range c.latest {
		out = append(out, v.Conversation)
	}
	return out
}

// SendMessage appends text to the conversation's log, then updates the
// conversation summary. The two writes are not atomic. If the second one
// fails the stored message is returned along with an error wrapping
// ErrSummaryStale; nothing is rolled back.
func (c *ConversationStore) SendMessage(ctx context.Context, conversationID, senderID, text string) (*models.Message, error) {
	const op = "chat: send message"
	if strings.TrimSpace(text) == "" {
		return nil, apperr.Validation(op, "message text is empty")
	}
	if conversationID == "" {
		return nil, apperr.Validation(op, "conversation id is required")
	}
	if senderID != c.sess.UserID() {
		return nil, apperr.PermissionDenied(op, "sender is not the session user")
	}
	chat, err := c.chats.GetChat(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !chat.Includes(senderID) {
		return nil, apperr.PermissionDenied(op, "sender is not a participant")
	}

	msg := &models.Message{ConversationID: conversationID, SenderID: senderID, Text: text}
	if err := c.chats.AddMessage(ctx, msg); err != nil {
		return nil, err
	}
	metrics.MessagesSent.Inc()

	last := models.LastMessage{Text: text, SenderID: senderID, At: msg.CreatedAt}
	if err := c.chats.UpdateChatSummary(ctx, conversationID, last); err != nil {
		metrics.SummaryUpdatesFailed.Inc()
		c.logger.Warn().
			Err(err).
			Str("conversation_id", conversationID).
			Str("message_id", msg.ID).
			Msg("message stored but summary is stale")
		return msg, fmt.Errorf("%w: %w", ErrSummaryStale, err)
	}
	return msg, nil
}
