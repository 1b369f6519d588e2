package models

import (
	"strings"
	"time"
)

// Identity is an authenticated user as supplied by the identity service,
// stored at users/{id}.
type Identity struct {
	ID          string    `json:"uid"`
	DisplayName string    `json:"displayName"`
	Email       string    `json:"email,omitempty"`
	AvatarURL   string    `json:"photoURL,omitempty"`
	Provider    string    `json:"provider,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Profile returns the snapshot embedded into conversations.
func (i Identity) Profile() Profile {
	return Profile{ID: i.ID, Name: i.DisplayName, Avatar: i.AvatarURL}
}

// Handle returns the local part of the email address, or "user".
func (i Identity) Handle() string {
	if local, _, ok := strings.Cut(i.Email, "@"); ok && local != "" {
		return local
	}
	return "user"
}

// Entry projects the identity into a directory entry.
func (i Identity) Entry() DirectoryEntry {
	return DirectoryEntry{ID: i.ID, DisplayName: i.DisplayName, AvatarURL: i.AvatarURL}
}

// DirectoryEntry is the read-only view of an Identity returned by
// directory searches.
type DirectoryEntry struct {
	ID          string `json:"uid"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"photoURL,omitempty"`
}

// Identity widens the entry back into an identity, e.g. for opening a
// conversation with the selected user.
func (e DirectoryEntry) Identity() Identity {
	return Identity{ID: e.ID, DisplayName: e.DisplayName, AvatarURL: e.AvatarURL}
}
