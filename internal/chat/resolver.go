// Package chat implements one-to-one conversations: resolving the
// conversation for a pair of identities, the live conversation list with
// its two-phase send, and the live message log of the selected
// conversation.
package chat

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/yelbahhaoui/MediaConnectPruebas/internal/apperr"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/metrics"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/models"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/session"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/store"
)

// StartedText seeds lastMessage of a freshly created conversation.
const StartedText = "Chat started"

// Resolver finds or creates the conversation between the session user and
// another identity.
type Resolver struct {
	sess   *session.Session
	chats  store.ChatStore
	logger zerolog.Logger
}

// NewResolver creates a resolver acting as the session user.
func NewResolver(sess *session.Session, chats store.ChatStore) *Resolver {
	return &Resolver{
		sess:   sess,
		chats:  chats,
		logger: sess.Logger().With().Str("component", "resolver").Logger(),
	}
}

// Find returns the conversation in existing whose participant set is
// exactly {a, b}.
func Find(existing []models.Conversation, a, b string) (models.Conversation, bool) {
	for _, c := range existing {
		if c.HasParticipants(a, b) {
			return c, true
		}
	}
	return models.Conversation{}, false
}

// Resolve returns the conversation with remote from existing without any
// write, or creates and persists one. existing should be the latest
// conversation list snapshot.
//
// Two clients making first contact at the same time may both create a
// conversation; nothing here serializes them.
func (r *Resolver) Resolve(ctx context.Context, remote models.Identity, existing []models.Conversation) (*models.Conversation, error) {
	local := r.sess.Identity()
	if strings.TrimSpace(remote.ID) == "" {
		return nil, apperr.Validation("chat: resolve", "remote identity is required")
	}
	if remote.ID == local.ID {
		return nil, apperr.Validation("chat: resolve", "cannot open a conversation with yourself")
	}

	if found, ok := Find(existing, local.ID, remote.ID); ok {
		return &found, nil
	}

	conv := &models.Conversation{
		ParticipantIDs: []string{local.ID, remote.ID},
		Profiles:       []models.Profile{local.Profile(), remote.Profile()},
		LastMessage:    models.LastMessage{Text: StartedText, SenderID: local.ID},
	}
	if err := r.chats.CreateChat(ctx, conv); err != nil {
		return nil, err
	}

	metrics.ConversationsCreated.Inc()
	r.logger.Info().
		Str("conversation_id", conv.ID).
		Str("remote_id", remote.ID).
		Msg("conversation created")
	return conv, nil
}
