package handlers

import (
	"errors"
	"time"

	"github.com/yelbahhaoui/MediaConnectPruebas/internal/api/middleware"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/apperr"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/chat"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/feed"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/metrics"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/models"
)

// commandLimits caps write-heavy commands per user per minute.
var commandLimits = map[string]int{
	"send_message": 60,
	"publish_post": 10,
	"toggle_like":  120,
	"search":       120,
}

// SendResult answers send_message. SummaryStale is set when the message
// was stored but the conversation summary could not be updated.
type SendResult struct {
	Message      *models.Message `json:"message"`
	SummaryStale bool            `json:"summaryStale,omitempty"`
}

// LikeResult answers toggle_like.
type LikeResult struct {
	PostID string `json:"postId"`
	Liked  bool   `json:"liked"`
}

// dispatch runs one command. Loop-confined work goes through sess.Do;
// store writes run on the reader goroutine so the loop never blocks on I/O.
func (c *liveClient) dispatch(cmd Command) {
	if !c.allow(cmd.Op) {
		c.emit(Event{Type: "error", ID: cmd.ID, Error: &EventError{Kind: "rate_limited", Message: "rate limit exceeded"}})
		return
	}

	uid := c.sess.UserID()
	var err error
	switch cmd.Op {
	case "subscribe_conversations":
		err = c.onLoop(func() error {
			c.convSub.Unsubscribe()
			sub, err := c.conversations.Subscribe(uid, func(views []chat.ConversationView) {
				c.emit(Event{Type: "conversations", Data: views})
			})
			c.convSub = sub
			return err
		})

	case "select_conversation":
		id := cmd.ConversationID
		err = c.onLoop(func() error {
			_, err := c.messages.Subscribe(id, func(msgs []models.Message) {
				c.emit(Event{Type: "messages", Data: MessagesEvent{ConversationID: id, Messages: msgs}})
			})
			return err
		})

	case "deselect_conversation":
		err = c.onLoop(func() error {
			c.messages.Unsubscribe()
			return nil
		})

	case "send_message":
		msg, sendErr := c.conversations.SendMessage(c.ctx, cmd.ConversationID, uid, cmd.Text)
		if errors.Is(sendErr, chat.ErrSummaryStale) {
			c.reply(cmd.ID, SendResult{Message: msg, SummaryStale: true})
			return
		}
		if sendErr == nil {
			c.reply(cmd.ID, SendResult{Message: msg})
			return
		}
		err = sendErr

	case "search":
		prefix := cmd.Prefix
		err = c.onLoop(func() error {
			c.search.Input(prefix)
			return nil
		})

	case "select_search_result":
		if cmd.Entry == nil {
			err = apperr.Validation("live: select search result", "entry is required")
			break
		}
		var existing []models.Conversation
		if err = c.onLoop(func() error {
			existing = c.conversations.Conversations()
			return nil
		}); err != nil {
			break
		}
		conv, selErr := c.search.Select(c.ctx, *cmd.Entry, existing)
		if selErr == nil {
			c.reply(cmd.ID, conv)
			return
		}
		err = selErr

	case "clear_search":
		err = c.onLoop(func() error {
			c.search.Clear()
			return nil
		})

	case "subscribe_feed":
		err = c.onLoop(func() error {
			c.feedSub.Unsubscribe()
			c.feedSub = c.feed.Subscribe(func(snap feed.Snapshot) {
				c.emit(Event{Type: "feed", Data: snap})
			})
			return nil
		})

	case "publish_post":
		post, pubErr := c.feed.Publish(c.ctx, c.sess.Identity(), cmd.Content)
		if pubErr == nil {
			c.reply(cmd.ID, post)
			return
		}
		err = pubErr

	case "delete_post":
		if err = c.feed.Delete(c.ctx, cmd.PostID, uid); err == nil {
			c.reply(cmd.ID, map[string]string{"postId": cmd.PostID})
			return
		}

	case "toggle_like":
		liked, likeErr := c.toggleLike(cmd.PostID, uid)
		if likeErr == nil {
			c.reply(cmd.ID, LikeResult{PostID: cmd.PostID, Liked: liked})
			return
		}
		err = likeErr

	default:
		err = apperr.Validation("live: dispatch", "unknown op "+cmd.Op)
	}

	if err != nil {
		c.fail(cmd.ID, err)
		return
	}
	c.reply(cmd.ID, nil)
}

// toggleLike derives the current like set from the feed snapshot when the
// post is in it, and from the store otherwise.
func (c *liveClient) toggleLike(postID, uid string) (bool, error) {
	var current []string
	var known bool
	if err := c.onLoop(func() error {
		current, known = c.feed.LikedBy(postID)
		return nil
	}); err != nil {
		return false, err
	}
	if !known && postID != "" {
		post, err := c.h.live.GetPost(c.ctx, postID)
		if err != nil {
			return false, err
		}
		current = post.LikedBy
	}
	return c.likes.Toggle(c.ctx, postID, uid, current)
}

func (c *liveClient) onLoop(fn func() error) error {
	var err error
	if doErr := c.sess.Do(c.ctx, func() { err = fn() }); doErr != nil {
		return doErr
	}
	return err
}

func (c *liveClient) allow(op string) bool {
	limit, ok := commandLimits[op]
	if !ok || c.h.opts.Limiter == nil {
		return true
	}
	allowed, _, _ := c.h.opts.Limiter.Allow(c.ctx, middleware.UserKey(c.sess.UserID(), op), limit, time.Minute)
	if !allowed {
		metrics.RateLimitHits.WithLabelValues("ws " + op).Inc()
	}
	return allowed
}
