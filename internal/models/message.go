package models

import "time"

// Message is an immutable entry of chats/{id}/messages. ID must stay the
// first field: the Redis store orders equal timestamps by the encoded
// member, which starts with the id.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"createdAt"`
}
