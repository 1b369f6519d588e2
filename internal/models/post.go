package models

import "time"

// Author is the author snapshot stored with a post.
type Author struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// Post is a feed entry stored at posts/{id}.
type Post struct {
	ID           string    `json:"id"`
	AuthorID     string    `json:"uid"`
	Author       Author    `json:"user"`
	Handle       string    `json:"handle"`
	Content      string    `json:"content"`
	CreatedAt    time.Time `json:"createdAt"`
	LikedBy      []string  `json:"likes"`
	CommentCount int       `json:"commentsCount"`
	Retweets     int       `json:"retweets"`
	Tag          string    `json:"tag"`
}

// IsLikedBy reports whether userID is in the like set.
func (p *Post) IsLikedBy(userID string) bool {
	for _, id := range p.LikedBy {
		if id == userID {
			return true
		}
	}
	return false
}

// OwnedBy reports whether userID authored the post.
func (p *Post) OwnedBy(userID string) bool {
	return userID != "" && p.AuthorID == userID
}

// Trend is a hashtag and the number of times it occurs across the live
// post set. It is derived, never stored.
type Trend struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}
