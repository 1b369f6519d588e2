package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/yelbahhaoui/MediaConnectPruebas/internal/feed"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/models"
)

// PostPreview represents a preview of a post.
type PostPreview struct {
	ID        string `json:"id"`
	AuthorID  string `json:"uid"`
	Author    string `json:"author"`
	Content   string `json:"content"`
	Likes     int    `json:"likes"`
	CreatedAt int64  `json:"createdAt"`
}

// StatsResponse represents the response from the stats endpoint.
type StatsResponse struct {
	TotalPosts   int            `json:"total_posts"`
	TotalLikes   int            `json:"total_likes"`
	LastActivity string         `json:"last_activity"`
	Trends       []models.Trend `json:"trends"`
	RecentPosts  []PostPreview  `json:"recent_posts"`
}

// Stats returns feed statistics for the landing page.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	posts, err := h.live.ListPosts(r.Context())
	if err != nil {
		h.Fail(w, err)
		return
	}

	totalLikes := 0
	for _, p := range posts {
		totalLikes += len(p.LikedBy)
	}

	lastActivity := "no activity yet"
	if len(posts) > 0 {
		lastActivity = formatTimeAgo(posts[0].CreatedAt)
	}

	recent := posts
	if len(recent) > 5 {
		recent = recent[:5]
	}
	previews := make([]PostPreview, 0, len(recent))
	for _, p := range recent {
		// Truncate content if too long
		content := p.Content
		if len(content) > 200 {
			content = content[:197] + "..."
		}
		previews = append(previews, PostPreview{
			ID:        p.ID,
			AuthorID:  p.AuthorID,
			Author:    p.Author.Name,
			Content:   content,
			Likes:     len(p.LikedBy),
			CreatedAt: p.CreatedAt.UnixMilli(),
		})
	}

	h.JSON(w, http.StatusOK, StatsResponse{
		TotalPosts:   len(posts),
		TotalLikes:   totalLikes,
		LastActivity: lastActivity,
		Trends:       feed.ComputeTrends(posts, h.opts.TrendLimit),
		RecentPosts:  previews,
	})
}

// formatTimeAgo formats a time as a human-readable "X ago" string.
func formatTimeAgo(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute") + " ago"
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour") + " ago"
	default:
		return plural(int(diff.Hours()/24), "day") + " ago"
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return strconv.Itoa(n) + " " + unit + "s"
}
