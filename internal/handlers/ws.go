package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/yelbahhaoui/MediaConnectPruebas/internal/api/middleware"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/chat"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/directory"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/feed"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/live"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/metrics"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/models"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/session"
)

const (
	sendBuffer    = 64
	writeTimeout  = 10 * time.Second
	pingInterval  = 25 * time.Second
	teardownLimit = 5 * time.Second
)

// Command is a client request received over the live connection.
type Command struct {
	ID             string                 `json:"id"`
	Op             string                 `json:"op"`
	ConversationID string                 `json:"conversationId,omitempty"`
	Text           string                 `json:"text,omitempty"`
	Prefix         string                 `json:"prefix,omitempty"`
	Entry          *models.DirectoryEntry `json:"entry,omitempty"`
	PostID         string                 `json:"postId,omitempty"`
	Content        string                 `json:"content,omitempty"`
}

// Event is pushed to the client. Result and error events echo the id of
// the command they answer.
type Event struct {
	Type  string      `json:"type"`
	ID    string      `json:"id,omitempty"`
	Data  interface{} `json:"data,omitempty"`
	Error *EventError `json:"error,omitempty"`
}

// EventError describes a failed command or a failed read.
type EventError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// MessagesEvent is the payload of a messages event.
type MessagesEvent struct {
	ConversationID string           `json:"conversationId"`
	Messages       []models.Message `json:"messages"`
}

// liveClient is one connected client instance: one session and the
// components running on its loop. Fields below the marker are confined to
// the session loop.
type liveClient struct {
	h      *Handler
	conn   *websocket.Conn
	sess   *session.Session
	logger zerolog.Logger
	send   chan Event
	ctx    context.Context

	conversations *chat.ConversationStore
	messages      *chat.MessageStream
	search        *directory.Search
	feed          *feed.Feed
	likes         *feed.LikeToggle

	// loop-confined
	convSub *live.Subscription
	feedSub *live.Subscription
}

// Live upgrades the request to a websocket and runs a live session for the
// authenticated caller until either side hangs up.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipalFromContext(r.Context())
	if principal == nil {
		h.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	sess, err := session.SignIn(r.Context(), h.dir, principal.Identity, principal.Provider,
		h.logger.With().Str("conn_id", uuid.NewString()).Str("user_id", principal.Identity.ID).Logger())
	if err != nil {
		h.Fail(w, err)
		return
	}
	defer sess.SignOut()

	opts := &websocket.AcceptOptions{OriginPatterns: h.opts.AllowedOrigins}
	for _, o := range h.opts.AllowedOrigins {
		if o == "*" {
			opts.InsecureSkipVerify = true
		}
	}
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		return // Accept already wrote the response
	}

	metrics.WSSessions.Inc()
	defer metrics.WSSessions.Dec()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := h.newLiveClient(ctx, conn, sess)
	c.logger.Info().Msg("live session opened")

	go c.writeLoop(cancel)
	go c.keepAliveLoop()

	c.readLoop()
	cancel()
	c.teardown()

	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	c.logger.Info().Msg("live session closed")
}

func (h *Handler) newLiveClient(ctx context.Context, conn *websocket.Conn, sess *session.Session) *liveClient {
	c := &liveClient{
		h:      h,
		conn:   conn,
		sess:   sess,
		logger: sess.Logger(),
		send:   make(chan Event, sendBuffer),
		ctx:    ctx,
	}

	chatOpts := chat.Options{OnError: c.readError("conversations")}
	c.conversations = chat.NewConversationStore(sess, h.live, chatOpts)
	c.messages = chat.NewMessageStream(sess, h.live, chat.Options{OnError: c.readError("messages")})
	c.search = directory.NewSearch(sess, h.dir, chat.NewResolver(sess, h.live), directory.Config{
		Window: h.opts.SearchDebounce,
		Limit:  h.opts.SearchLimit,
		OnResults: func(entries []models.DirectoryEntry) {
			c.emit(Event{Type: "search_results", Data: entries})
		},
		OnError: c.readError("search"),
	})
	c.feed = feed.NewFeed(sess, h.live, feed.Options{
		TrendLimit: h.opts.TrendLimit,
		OnError:    c.readError("feed"),
	})
	c.likes = feed.NewLikeToggle(sess, h.live)
	return c
}

// emit queues ev for the writer. It blocks while the buffer is full so
// snapshots are never dropped, and gives up once the connection is gone.
func (c *liveClient) emit(ev Event) {
	select {
	case c.send <- ev:
	case <-c.ctx.Done():
	}
}

func (c *liveClient) reply(id string, data interface{}) {
	c.emit(Event{Type: "result", ID: id, Data: data})
}

func (c *liveClient) fail(id string, err error) {
	if errorKind(err) == "internal" {
		c.logger.Error().Err(err).Str("command_id", id).Msg("command failed")
	}
	c.emit(Event{Type: "error", ID: id, Error: &EventError{Kind: errorKind(err), Message: errorMessage(err)}})
}

func (c *liveClient) readError(stream string) func(error) {
	return func(err error) {
		c.emit(Event{Type: "error", Data: map[string]string{"stream": stream},
			Error: &EventError{Kind: errorKind(err), Message: errorMessage(err)}})
	}
}

func (c *liveClient) readLoop() {
	for {
		var cmd Command
		if err := wsjson.Read(c.ctx, c.conn, &cmd); err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				c.logger.Debug().Err(err).Msg("read failed")
			}
			return
		}
		c.dispatch(cmd)
	}
}

func (c *liveClient) writeLoop(cancel context.CancelFunc) {
	for {
		select {
		case <-c.ctx.Done():
			return
		case ev := <-c.send:
			writeCtx, done := context.WithTimeout(c.ctx, writeTimeout)
			err := wsjson.Write(writeCtx, c.conn, ev)
			done()
			if err != nil {
				c.logger.Debug().Err(err).Msg("write failed")
				cancel()
				return
			}
		}
	}
}

func (c *liveClient) keepAliveLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(c.ctx, 5*time.Second)
			_ = c.conn.Ping(pingCtx)
			cancel()
		}
	}
}

// teardown detaches every subscription and cancels the search so no
// callback reaches a closed connection.
func (c *liveClient) teardown() {
	ctx, cancel := context.WithTimeout(context.Background(), teardownLimit)
	defer cancel()

	err := c.sess.Do(ctx, func() {
		c.convSub.Unsubscribe()
		c.feedSub.Unsubscribe()
		c.messages.Unsubscribe()
		c.search.Close()
	})
	if err != nil {
		c.logger.Warn().Err(err).Msg("teardown did not finish")
	}
}
