package chat

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/yelbahhaoui/MediaConnectPruebas/internal/apperr"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/live"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/models"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/session"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/store"
)

// MessageStream follows the message log of one conversation at a time.
// All methods must be called on the session loop.
type MessageStream struct {
	sess   *session.Session
	chats  store.ChatStore
	opts   Options
	logger zerolog.Logger

	sub     *live.Subscription
	current string
	latest  []models.Message
}

// NewMessageStream creates a message stream for the session user.
func NewMessageStream(sess *session.Session, chats store.ChatStore, opts Options) *MessageStream {
	return &MessageStream{
		sess:   sess,
		chats:  chats,
		opts:   opts,
		logger: sess.Logger().With().Str("component", "messages").Logger(),
	}
}

// Subscribe detaches the stream from its current conversation, then
// delivers conversationID's messages, oldest first, on every change.
// Once it returns, no snapshot of the previous conversation is delivered.
// Only participants see the log; anyone else gets OnError with
// PermissionDenied and no snapshot.
func (m *MessageStream) Subscribe(conversationID string, onChange func([]models.Message)) (*live.Subscription, error) {
	if conversationID == "" {
		return nil, apperr.Validation("chat: subscribe messages", "conversation id is required")
	}
	m.Unsubscribe()

	userID := m.sess.UserID()
	load := func(ctx context.Context) ([]models.Message, error) {
		chat, err := m.chats.GetChat(ctx, conversationID)
		if err != nil {
			return nil, err
		}
		if !chat.Includes(userID) {
			return nil, apperr.PermissionDenied("chat: subscribe messages", "not a participant")
		}
		msgs, err := m.chats.ListMessages(ctx, conversationID)
		if err != nil {
			return nil, err
		}
		kept := msgs[:0]
		for _, msg := range msgs {
			if msg.ConversationID == conversationID {
				kept = append(kept, msg)
			}
		}
		return kept, nil
	}
	deliver := func(msgs []models.Message) {
		if m.current != conversationID {
			return
		}
		m.latest = msgs
		onChange(msgs)
	}

	m.current = conversationID
	m.sub = live.Subscribe(m.sess.Loop(), m.chats, store.MessagesTopic(conversationID), load, deliver, live.Options{
		Name:    "messages",
		Logger:  m.logger.With().Str("conversation_id", conversationID).Logger(),
		Clock:   m.opts.Clock,
		OnError: m.opts.OnError,
	})
	return m.sub, nil
}

// Unsubscribe detaches the stream. It is a no-op when nothing is attached.
func (m *MessageStream) Unsubscribe() {
	if m.sub != nil {
		m.sub.Unsubscribe()
	}
	m.sub = nil
	m.current = ""
	m.latest = nil
}

// Current returns the attached conversation id, or "".
func (m *MessageStream) Current() string {
	return m.current
}

// Latest returns the most recently delivered log.
func (m *MessageStream) Latest() []models.Message {
	return m.latest
}
