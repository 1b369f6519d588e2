// Package session holds the authenticated identity a client instance runs
// as, and the event loop all of its callbacks are delivered on. Every
// engine component takes a *Session in its constructor.
package session

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/yelbahhaoui/MediaConnectPruebas/internal/apperr"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/eventloop"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/models"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/store"
)

// Session is created on sign-in and torn down on sign-out. Its identity is
// read-only.
type Session struct {
	identity models.Identity
	loop     *eventloop.Loop
	logger   zerolog.Logger
	stop     context.CancelFunc
	once     sync.Once
}

// SignIn records the user in the directory if this is their first sign-in
// and starts a session for them. An existing profile is never overwritten.
func SignIn(ctx context.Context, dir store.Directory, identity models.Identity, provider string, logger zerolog.Logger) (*Session, error) {
	if strings.TrimSpace(identity.ID) == "" {
		return nil, apperr.Validation("session: sign in", "identity id is required")
	}

	user := identity
	user.Provider = provider
	created, err := dir.EnsureUser(ctx, &user)
	if err != nil {
		return nil, err
	}
	if created {
		logger.Info().Str("user_id", identity.ID).Str("provider", provider).Msg("directory entry created")
	}

	return New(identity, logger), nil
}

// New starts a session for an identity without touching the directory.
func New(identity models.Identity, logger zerolog.Logger) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		identity: identity,
		loop:     eventloop.New(),
		logger:   logger.With().Str("user_id", identity.ID).Logger(),
		stop:     cancel,
	}
	go s.loop.Run(ctx)
	return s
}

// Identity returns the signed-in identity.
func (s *Session) Identity() models.Identity {
	return s.identity
}

// UserID returns the signed-in identity's id.
func (s *Session) UserID() string {
	return s.identity.ID
}

// Loop returns the event loop callbacks are delivered on.
func (s *Session) Loop() *eventloop.Loop {
	return s.loop
}

// Logger returns a logger tagged with the user id.
func (s *Session) Logger() zerolog.Logger {
	return s.logger
}

// Do runs fn on the session loop and waits for it.
func (s *Session) Do(ctx context.Context, fn func()) error {
	return s.loop.Do(ctx, fn)
}

// SignOut stops the loop. Queued callbacks are dropped and nothing is
// delivered afterwards. SignOut is idempotent.
func (s *Session) SignOut() {
	s.once.Do(func() {
		s.loop.Close()
		s.stop()
	})
}

// Done is closed once the loop has stopped.
func (s *Session) Done() <-chan struct{} {
	return s.loop.Done()
}
