package models

import "time"

// Profile is a participant snapshot taken when a conversation is created.
type Profile struct {
	ID     string `json:"uid"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// LastMessage summarizes the newest message of a conversation.
type LastMessage struct {
	Text     string    `json:"text"`
	SenderID string    `json:"senderId"`
	At       time.Time `json:"at"`
}

// Conversation is the one-to-one thread stored at chats/{id}.
type Conversation struct {
	ID             string      `json:"id"`
	ParticipantIDs []string    `json:"participants"`
	Profiles       []Profile   `json:"users"`
	LastMessage    LastMessage `json:"lastMessage"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// Includes reports whether id is a participant.
func (c *Conversation) Includes(id string) bool {
	for _, p := range c.ParticipantIDs {
		if p == id {
			return true
		}
	}
	return false
}

// HasParticipants reports whether the participant set is exactly {a, b},
// regardless of order.
func (c *Conversation) HasParticipants(a, b string) bool {
	if len(c.ParticipantIDs) != 2 {
		return false
	}
	x, y := c.ParticipantIDs[0], c.ParticipantIDs[1]
	return (x == a && y == b) || (x == b && y == a)
}

// UnknownProfile stands in for the other participant when a conversation
// record lacks one.
var UnknownProfile = Profile{Name: "User"}

// OtherParty returns the participant profile whose id differs from userID,
// or UnknownProfile when the record is malformed.
func (c *Conversation) OtherParty(userID string) Profile {
	for _, p := range c.Profiles {
		if p.ID != "" && p.ID != userID {
			return p
		}
	}
	for _, id := range c.ParticipantIDs {
		if id != "" && id != userID {
			fallback := UnknownProfile
			fallback.ID = id
			return fallback
		}
	}
	return UnknownProfile
}
