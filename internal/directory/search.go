package directory

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/yelbahhaoui/MediaConnectPruebas/internal/chat"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/clock"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/metrics"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/models"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/session"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/store"
)

// DefaultWindow is the quiescence period after the last input before a
// query runs.
const DefaultWindow = 300 * time.Millisecond

// Config tunes a Search. Zero fields take their defaults.
type Config struct {
	Window time.Duration
	Limit  int
	Clock  clock.Clock

	// OnResults receives every result set on the session loop.
	OnResults func([]models.DirectoryEntry)

	// OnError receives query failures on the session loop. The previous
	// results stay current.
	OnError func(error)
}

// Search is the session user's incremental directory search. Only the last
// input within a window is queried; a new input cancels both the pending
// timer and any query still in flight. Input, Clear, Close and Results
// must be called on the session loop.
type Search struct {
	sess     *session.Session
	dir      store.Directory
	resolver *chat.Resolver
	cfg      Config
	logger   zerolog.Logger

	seq     uint64
	timer   *clock.Timer
	cancel  context.CancelFunc
	results []models.DirectoryEntry
	closed  bool
}

// NewSearch creates a search that excludes the session user from results
// and opens conversations through resolver.
func NewSearch(sess *session.Session, dir store.Directory, resolver *chat.Resolver, cfg Config) *Search {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	return &Search{
		sess:     sess,
		dir:      dir,
		resolver: resolver,
		cfg:      cfg,
		logger:   sess.Logger().With().Str("component", "search").Logger(),
		results:  []models.DirectoryEntry{},
	}
}

// Input records a new search value. A blank value delivers an empty result
// at once and queries nothing.
func (s *Search) Input(prefix string) {
	if s.closed {
		return
	}
	s.reset()
	seq := s.seq

	if strings.TrimSpace(prefix) == "" {
		s.deliver([]models.DirectoryEntry{})
		return
	}

	loop := s.sess.Loop()
	s.timer = s.cfg.Clock.AfterFunc(s.cfg.Window, func() {
		loop.Post(func() {
			if s.closed || s.seq != seq {
				return
			}
			s.timer = nil
			s.run(seq, prefix)
		})
	})
}

func (s *Search) run(seq uint64, prefix string) {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	loop := s.sess.Loop()
	excludeID := s.sess.UserID()
	go func() {
		defer cancel()
		entries, err := Query(ctx, s.dir, prefix, excludeID, s.cfg.Limit)
		loop.Post(func() {
			if s.closed || s.seq != seq {
				return
			}
			s.cancel = nil
			if err != nil {
				s.logger.Warn().Err(err).Str("prefix", prefix).Msg("directory query failed")
				if s.cfg.OnError != nil {
					s.cfg.OnError(err)
				}
				return
			}
			s.deliver(entries)
		})
	}()
}

// reset supersedes whatever is pending or in flight.
func (s *Search) reset() {
	s.seq++
	if s.timer.Stop() {
		metrics.SearchInputsCoalesced.Inc()
	}
	s.timer = nil
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Search) deliver(entries []models.DirectoryEntry) {
	s.results = entries
	if s.cfg.OnResults != nil {
		s.cfg.OnResults(entries)
	}
}

// Results returns the current result set.
func (s *Search) Results() []models.DirectoryEntry {
	return s.results
}

// Clear drops pending work and empties the results.
func (s *Search) Clear() {
	if s.closed {
		return
	}
	s.reset()
	s.deliver([]models.DirectoryEntry{})
}

// Close cancels the pending timer and any query in flight. Nothing is
// delivered afterwards.
func (s *Search) Close() {
	if s.closed {
		return
	}
	s.reset()
	s.closed = true
}

// Select opens the conversation with the chosen entry and, on success,
// clears the search. existing should be the latest conversation list.
// Select performs I/O and must be called off the session loop.
func (s *Search) Select(ctx context.Context, entry models.DirectoryEntry, existing []models.Conversation) (*models.Conversation, error) {
	conv, err := s.resolver.Resolve(ctx, entry.Identity(), existing)
	if err != nil {
		return nil, err
	}
	if err := s.sess.Do(ctx, s.Clear); err != nil {
		return conv, err
	}
	return conv, nil
}
