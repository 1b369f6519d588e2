// Package feed keeps the public post feed live, derives trending hashtags
// from it, and handles publishing, deleting and liking posts.
package feed

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/yelbahhaoui/MediaConnectPruebas/internal/apperr"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/clock"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/live"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/metrics"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/models"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/session"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/store"
)

// Options tunes a Feed. Zero fields take their defaults.
type Options struct {
	TrendLimit int
	Clock      clock.Clock

	// OnError receives read-path failures on the session loop.
	OnError func(error)
}

// Snapshot is one emission of the feed: every post, newest first, and the
// trends computed from them.
type Snapshot struct {
	Posts  []models.Post  `json:"posts"`
	Trends []models.Trend `json:"trends"`
}

// Feed is the session user's view of posts. Subscribe and Latest must be
// called on the session loop.
type Feed struct {
	sess   *session.Session
	posts  store.PostStore
	opts   Options
	logger zerolog.Logger

	latest Snapshot
}

// NewFeed creates a feed for the session user.
func NewFeed(sess *session.Session, posts store.PostStore, opts Options) *Feed {
	if opts.TrendLimit <= 0 {
		opts.TrendLimit = DefaultTrendLimit
	}
	return &Feed{
		sess:   sess,
		posts:  posts,
		opts:   opts,
		logger: sess.Logger().With().Str("component", "feed").Logger(),
	}
}

// Subscribe delivers a fresh snapshot on every change to any post.
func (f *Feed) Subscribe(onChange func(Snapshot)) *live.Subscription {
	load := func(ctx context.Context) (Snapshot, error) {
		posts, err := f.posts.ListPosts(ctx)
		if err != nil {
			return Snapshot{}, err
		}
		return Snapshot{Posts: posts, Trends: ComputeTrends(posts, f.opts.TrendLimit)}, nil
	}
	deliver := func(s Snapshot) {
		f.latest = s
		onChange(s)
	}
	return live.Subscribe(f.sess.Loop(), f.posts, store.PostsTopic, load, deliver, live.Options{
		Name:    "feed",
		Logger:  f.logger,
		Clock:   f.opts.Clock,
		OnError: f.opts.OnError,
	})
}

// Latest returns the most recently delivered snapshot.
func (f *Feed) Latest() Snapshot {
	return f.latest
}

// LikedBy returns the like set of postID in the latest snapshot.
func (f *Feed) LikedBy(postID string) ([]string, bool) {
	for _, p := range f.latest.Posts {
		if p.ID == postID {
			return p.LikedBy, true
		}
	}
	return nil, false
}

// Publish creates a post by author. Blank content or a missing identity is
// rejected before any write.
func (f *Feed) Publish(ctx context.Context, author models.Identity, content string) (*models.Post, error) {
	const op = "feed: publish"
	if author.ID == "" {
		return nil, apperr.Validation(op, "sign in to publish")
	}
	if strings.TrimSpace(content) == "" {
		return nil, apperr.Validation(op, "post content is empty")
	}
	if author.ID != f.sess.UserID() {
		return nil, apperr.PermissionDenied(op, "author is not the session user")
	}

	name := author.DisplayName
	if name == "" {
		name = models.UnknownProfile.Name
	}
	tag := "General"
	if tags := Hashtags(content); len(tags) > 0 {
		tag = strings.TrimPrefix(tags[0], "#")
	}

	post := &models.Post{
		AuthorID: author.ID,
		Author:   models.Author{Name: name, Avatar: author.AvatarURL},
		Handle:   author.Handle(),
		Content:  content,
		LikedBy:  []string{},
		Tag:      tag,
	}
	if err := f.posts.CreatePost(ctx, post); err != nil {
		return nil, err
	}

	metrics.PostsPublished.Inc()
	f.logger.Debug().Str("post_id", post.ID).Str("tag", tag).Msg("post published")
	return post, nil
}

// Delete removes a post. Only its author may delete it; anyone else is
// rejected before the store is touched.
func (f *Feed) Delete(ctx context.Context, postID, requesterID string) error {
	const op = "feed: delete"
	if postID == "" {
		return apperr.Validation(op, "post id is required")
	}
	if requesterID == "" || requesterID != f.sess.UserID() {
		return apperr.PermissionDenied(op, "requester is not the session user")
	}

	post, err := f.posts.GetPost(ctx, postID)
	if err != nil {
		return err
	}
	if !post.OwnedBy(requesterID) {
		return apperr.PermissionDenied(op, "only the author can delete a post")
	}

	if err := f.posts.DeletePost(ctx, postID); err != nil {
		return err
	}
	metrics.PostsDeleted.Inc()
	return nil
}
