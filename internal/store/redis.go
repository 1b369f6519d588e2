package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/yelbahhaoui/MediaConnectPruebas/internal/apperr"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/metrics"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/models"
)

// maxTxRetries bounds optimistic WATCH/MULTI retries on contention.
const maxTxRetries = 8

// RedisStore keeps chats, messages and posts in Redis and publishes a
// change notification per affected topic on every write.
type RedisStore struct {
	client *redis.Client
	logger zerolog.Logger
}

var _ LiveStore = (*RedisStore)(nil)

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &RedisStore{client: client, logger: zerolog.Nop()}, nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, logger: zerolog.Nop()}
}

// WithLogger sets the logger that reports documents skipped on read.
func (s *RedisStore) WithLogger(logger zerolog.Logger) *RedisStore {
	s.logger = logger.With().Str("component", "redis_store").Logger()
	return s
}

// Client exposes the underlying client for rate limiting.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// chatKey returns the key for a chat hash.
func chatKey(chatID string) string {
	return "chat:" + chatID
}

// userChatsKey returns the key for a user's chat index, scored by updatedAt.
func userChatsKey(userID string) string {
	return fmt.Sprintf("user:%s:chats", userID)
}

// chatMessagesKey returns the key for a chat's message sorted set.
func chatMessagesKey(chatID string) string {
	return fmt.Sprintf("chat:%s:messages", chatID)
}

// postKey returns the key for a post hash.
func postKey(postID string) string {
	return "post:" + postID
}

// postLikesKey returns the key for a post's like set.
func postLikesKey(postID string) string {
	return fmt.Sprintf("post:%s:likes", postID)
}

// postsIndexKey orders every post by createdAt.
const postsIndexKey = "posts:by_created"

// topicChannel returns the pub/sub channel for a topic.
func topicChannel(topic string) string {
	return "topic:" + topic
}

// now returns the Redis server time, so every client stamps documents
// from the same clock.
func (s *RedisStore) now(ctx context.Context) (time.Time, error) {
	t, err := s.client.Time(ctx).Result()
	if err != nil {
		return time.Time{}, apperr.Transient("store: server time", err)
	}
	return t.Truncate(time.Millisecond), nil
}

func (s *RedisStore) publish(ctx context.Context, topics ...string) {
	pipe := s.client.Pipeline()
	for _, topic := range topics {
		pipe.Publish(ctx, topicChannel(topic), "changed")
	}
	// Notifications are best-effort: the write itself already succeeded.
	_, _ = pipe.Exec(ctx)
}

func observe(start time.Time) {
	metrics.RedisLatency.Observe(time.Since(start).Seconds())
}

// Watch subscribes to a topic's pub/sub channel. A resubscription after a
// dropped connection is also signalled, since notifications published
// while disconnected are lost.
func (s *RedisStore) Watch(ctx context.Context, topic string) (<-chan struct{}, error) {
	pubsub := s.client.Subscribe(ctx, topicChannel(topic))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, apperr.Transient("store: watch "+topic, err)
	}

	out := make(chan struct{}, 1)
	incoming := pubsub.ChannelWithSubscriptions()
	go func() {
		defer close(out)
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-incoming:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out, nil
}

// CreateChat stores a chat and indexes it under both participants.
func (s *RedisStore) CreateChat(ctx context.Context, chat *models.Conversation) error {
	defer observe(time.Now())

	now, err := s.now(ctx)
	if err != nil {
		return err
	}
	chat.ID = ulid.Make().String()
	chat.UpdatedAt = now
	if chat.LastMessage.At.IsZero() {
		chat.LastMessage.At = now
	}

	participants, err := json.Marshal(chat.ParticipantIDs)
	if err != nil {
		return err
	}
	profiles, err := json.Marshal(chat.Profiles)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, chatKey(chat.ID),
			"participants", string(participants),
			"users", string(profiles),
			"last_text", chat.LastMessage.Text,
			"last_sender", chat.LastMessage.SenderID,
			"last_at", chat.LastMessage.At.UnixMilli(),
			"updated_at", now.UnixMilli(),
		)
		for _, id := range chat.ParticipantIDs {
			pipe.ZAdd(ctx, userChatsKey(id), redis.Z{Score: float64(now.UnixMilli()), Member: chat.ID})
		}
		return nil
	})
	if err != nil {
		return apperr.Transient("store: create chat", err)
	}

	s.publish(ctx, chatTopics(chat.ParticipantIDs)...)
	return nil
}

// GetChat retrieves a chat by ID.
func (s *RedisStore) GetChat(ctx context.Context, id string) (*models.Conversation, error) {
	fields, err := s.client.HGetAll(ctx, chatKey(id)).Result()
	if err != nil {
		return nil, apperr.Transient("store: get chat", err)
	}
	if len(fields) == 0 {
		return nil, apperr.NotFound("store: get chat", "chat "+id)
	}
	return decodeChat(id, fields)
}

// ListChats returns a participant's chats, newest updatedAt first.
func (s *RedisStore) ListChats(ctx context.Context, participantID string) ([]models.Conversation, error) {
	defer observe(time.Now())

	ids, err := s.client.ZRevRange(ctx, userChatsKey(participantID), 0, -1).Result()
	if err != nil {
		return nil, apperr.Transient("store: list chats", err)
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	pipe := s.client.Pipeline()
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, chatKey(id))
	}
	if len(ids) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, apperr.Transient("store: list chats", err)
		}
	}

	chats := make([]models.Conversation, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		chat, err := decodeChat(ids[i], fields)
		if err != nil {
			s.logger.Warn().Err(err).Str("chat_id", ids[i]).Msg("skipping undecodable chat")
			continue
		}
		chats = append(chats, *chat)
	}
	return chats, nil
}

// UpdateChatSummary rewrites lastMessage and updatedAt and re-scores the
// chat in each participant's index. The read of the participant list and
// the writes run under WATCH so a concurrent writer forces a retry.
func (s *RedisStore) UpdateChatSummary(ctx context.Context, chatID string, last models.LastMessage) error {
	defer observe(time.Now())

	now, err := s.now(ctx)
	if err != nil {
		return err
	}
	if last.At.IsZero() {
		last.At = now
	}

	key := chatKey(chatID)
	var participants []string
	update := func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, key, "participants").Result()
		if errors.Is(err, redis.Nil) {
			return apperr.NotFound("store: update chat summary", "chat "+chatID)
		}
		if err != nil {
			return err
		}
		if err := json.Unmarshal([]byte(raw), &participants); err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key,
				"last_text", last.Text,
				"last_sender", last.SenderID,
				"last_at", last.At.UnixMilli(),
				"updated_at", now.UnixMilli(),
			)
			for _, id := range participants {
				pipe.ZAdd(ctx, userChatsKey(id), redis.Z{Score: float64(now.UnixMilli()), Member: chatID})
			}
			return nil
		})
		return err
	}

	if err := s.retryWatch(ctx, update, key); err != nil {
		return apperr.Transient("store: update chat summary", err)
	}

	s.publish(ctx, chatTopics(participants)...)
	return nil
}

// AddMessage appends a message to its chat's sorted set.
func (s *RedisStore) AddMessage(ctx context.Context, msg *models.Message) error {
	defer observe(time.Now())

	exists, err := s.client.Exists(ctx, chatKey(msg.ConversationID)).Result()
	if err != nil {
		return apperr.Transient("store: add message", err)
	}
	if exists == 0 {
		return apperr.NotFound("store: add message", "chat "+msg.ConversationID)
	}

	now, err := s.now(ctx)
	if err != nil {
		return err
	}
	msg.ID = ulid.Make().String()
	msg.CreatedAt = now

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	err = s.client.ZAdd(ctx, chatMessagesKey(msg.ConversationID), redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: string(data),
	}).Err()
	if err != nil {
		return apperr.Transient("store: add message", err)
	}

	s.publish(ctx, MessagesTopic(msg.ConversationID))
	return nil
}

// ListMessages returns a chat's messages, oldest first.
func (s *RedisStore) ListMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	defer observe(time.Now())

	results, err := s.client.ZRange(ctx, chatMessagesKey(chatID), 0, -1).Result()
	if err != nil {
		return nil, apperr.Transient("store: list messages", err)
	}

	messages := make([]models.Message, 0, len(results))
	for _, data := range results {
		var msg models.Message
		if err := json.Unmarshal([]byte(data), &msg); err != nil {
			s.logger.Warn().Err(err).Str("chat_id", chatID).Msg("skipping undecodable message")
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// CreatePost stores a post and indexes it by createdAt.
func (s *RedisStore) CreatePost(ctx context.Context, post *models.Post) error {
	defer observe(time.Now())

	now, err := s.now(ctx)
	if err != nil {
		return err
	}
	post.ID = ulid.Make().String()
	post.CreatedAt = now
	post.LikedBy = []string{}

	author, err := json.Marshal(post.Author)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, postKey(post.ID),
			"content", post.Content,
			"uid", post.AuthorID,
			"user", string(author),
			"handle", post.Handle,
			"created_at", now.UnixMilli(),
			"comments_count", post.CommentCount,
			"retweets", post.Retweets,
			"tag", post.Tag,
		)
		pipe.ZAdd(ctx, postsIndexKey, redis.Z{Score: float64(now.UnixMilli()), Member: post.ID})
		return nil
	})
	if err != nil {
		return apperr.Transient("store: create post", err)
	}

	s.publish(ctx, PostsTopic)
	return nil
}

// GetPost retrieves a post with its like set.
func (s *RedisStore) GetPost(ctx context.Context, id string) (*models.Post, error) {
	pipe := s.client.Pipeline()
	fieldsCmd := pipe.HGetAll(ctx, postKey(id))
	likesCmd := pipe.SMembers(ctx, postLikesKey(id))
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, apperr.Transient("store: get post", err)
	}
	if len(fieldsCmd.Val()) == 0 {
		return nil, apperr.NotFound("store: get post", "post "+id)
	}
	return decodePost(id, fieldsCmd.Val(), likesCmd.Val())
}

// ListPosts returns every post, newest first.
func (s *RedisStore) ListPosts(ctx context.Context) ([]models.Post, error) {
	defer observe(time.Now())

	ids, err := s.client.ZRevRange(ctx, postsIndexKey, 0, -1).Result()
	if err != nil {
		return nil, apperr.Transient("store: list posts", err)
	}

	fieldCmds := make([]*redis.MapStringStringCmd, len(ids))
	likeCmds := make([]*redis.StringSliceCmd, len(ids))
	pipe := s.client.Pipeline()
	for i, id := range ids {
		fieldCmds[i] = pipe.HGetAll(ctx, postKey(id))
		likeCmds[i] = pipe.SMembers(ctx, postLikesKey(id))
	}
	if len(ids) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, apperr.Transient("store: list posts", err)
		}
	}

	posts := make([]models.Post, 0, len(ids))
	for i, id := range ids {
		if len(fieldCmds[i].Val()) == 0 {
			continue
		}
		post, err := decodePost(id, fieldCmds[i].Val(), likeCmds[i].Val())
		if err != nil {
			s.logger.Warn().Err(err).Str("post_id", id).Msg("skipping undecodable post")
			continue
		}
		posts = append(posts, *post)
	}
	return posts, nil
}

// DeletePost removes a post, its like set and its index entry.
func (s *RedisStore) DeletePost(ctx context.Context, id string) error {
	err := s.retryWatch(ctx, func(tx *redis.Tx) error {
		if err := s.requirePost(ctx, tx, "store: delete post", id); err != nil {
			return err
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, postKey(id), postLikesKey(id))
			pipe.ZRem(ctx, postsIndexKey, id)
			return nil
		})
		return err
	}, postKey(id))
	if err != nil {
		return apperr.Transient("store: delete post", err)
	}

	s.publish(ctx, PostsTopic)
	return nil
}

// AddLike adds userID to the post's like set.
func (s *RedisStore) AddLike(ctx context.Context, postID, userID string) error {
	return s.mutateLikes(ctx, "store: add like", postID, func(pipe redis.Pipeliner) {
		pipe.SAdd(ctx, postLikesKey(postID), userID)
	})
}

// RemoveLike removes userID from the post's like set.
func (s *RedisStore) RemoveLike(ctx context.Context, postID, userID string) error {
	return s.mutateLikes(ctx, "store: remove like", postID, func(pipe redis.Pipeliner) {
		pipe.SRem(ctx, postLikesKey(postID), userID)
	})
}

func (s *RedisStore) mutateLikes(ctx context.Context, op, postID string, mutate func(redis.Pipeliner)) error {
	defer observe(time.Now())

	err := s.retryWatch(ctx, func(tx *redis.Tx) error {
		if err := s.requirePost(ctx, tx, op, postID); err != nil {
			return err
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			mutate(pipe)
			return nil
		})
		return err
	}, postKey(postID))
	if err != nil {
		return apperr.Transient(op, err)
	}

	s.publish(ctx, PostsTopic)
	return nil
}

func (s *RedisStore) requirePost(ctx context.Context, tx *redis.Tx, op, postID string) error {
	exists, err := tx.Exists(ctx, postKey(postID)).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return apperr.NotFound(op, "post "+postID)
	}
	return nil
}

// retryWatch runs fn under WATCH on keys, retrying when another client
// modified a watched key first.
func (s *RedisStore) retryWatch(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error {
	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return redis.TxFailedErr
}

func decodeChat(id string, fields map[string]string) (*models.Conversation, error) {
	chat := &models.Conversation{ID: id}
	if err := json.Unmarshal([]byte(fields["participants"]), &chat.ParticipantIDs); err != nil {
		return nil, fmt.Errorf("decode chat %s participants: %w", id, err)
	}
	if raw := fields["users"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &chat.Profiles); err != nil {
			return nil, fmt.Errorf("decode chat %s users: %w", id, err)
		}
	}
	chat.LastMessage = models.LastMessage{
		Text:     fields["last_text"],
		SenderID: fields["last_sender"],
		At:       parseMillis(fields["last_at"]),
	}
	chat.UpdatedAt = parseMillis(fields["updated_at"])
	return chat, nil
}

func decodePost(id string, fields map[string]string, likes []string) (*models.Post, error) {
	post := &models.Post{
		ID:        id,
		AuthorID:  fields["uid"],
		Handle:    fields["handle"],
		Content:   fields["content"],
		CreatedAt: parseMillis(fields["created_at"]),
		Tag:       fields["tag"],
		LikedBy:   append([]string{}, likes...),
	}
	if raw := fields["user"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &post.Author); err != nil {
			return nil, fmt.Errorf("decode post %s user: %w", id, err)
		}
	}
	post.CommentCount, _ = strconv.Atoi(fields["comments_count"])
	post.Retweets, _ = strconv.Atoi(fields["retweets"])
	sort.Strings(post.LikedBy)
	return post, nil
}

func parseMillis(raw string) time.Time {
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
