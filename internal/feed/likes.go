package feed

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/yelbahhaoui/MediaConnectPruebas/internal/apperr"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/metrics"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/session"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/store"
)

// LikeToggle flips the session user's membership in a post's like set.
type LikeToggle struct {
	sess   *session.Session
	posts  store.PostStore
	logger zerolog.Logger
}

// NewLikeToggle creates a like toggle for the session user.
func NewLikeToggle(sess *session.Session, posts store.PostStore) *LikeToggle {
	return &LikeToggle{
		sess:   sess,
		posts:  posts,
		logger: sess.Logger().With().Str("component", "likes").Logger(),
	}
}

// NextLikedBy returns the like set a toggle by userID produces from
// current.
func NextLikedBy(current []string, userID string) []string {
	next := make([]string, 0, len(current)+1)
	member := false
	for _, id := range current {
		if id == userID {
			member = true
			continue
		}
		next = append(next, id)
	}
	if !member {
		next = append(next, userID)
	}
	return next
}

// Toggle removes userID from the post's like set when currentLikedBy
// contains it and adds it otherwise, and reports whether the post is now
// liked. The store operations are idempotent set operations, so a stale
// currentLikedBy flips the like back instead of adding it twice; callers
// should pass the like set from the latest feed snapshot.
func (l *LikeToggle) Toggle(ctx context.Context, postID, userID string, currentLikedBy []string) (bool, error) {
	const op = "feed: toggle like"
	if postID == "" {
		return false, apperr.Validation(op, "post id is required")
	}
	if userID == "" {
		return false, apperr.Validation(op, "sign in to like posts")
	}
	if userID != l.sess.UserID() {
		return false, apperr.PermissionDenied(op, "not the session user")
	}

	liked := false
	for _, id := range currentLikedBy {
		if id == userID {
			liked = true
			break
		}
	}

	l.logger.Debug().Str("post_id", postID).Bool("was_liked", liked).Msg("toggling like")
	if liked {
		if err := l.posts.RemoveLike(ctx, postID, userID); err != nil {
			return true, err
		}
		metrics.LikeToggles.WithLabelValues("unlike").Inc()
		return false, nil
	}

	if err := l.posts.AddLike(ctx, postID, userID); err != nil {
		return false, err
	}
	metrics.LikeToggles.WithLabelValues("like").Inc()
	return true, nil
}
