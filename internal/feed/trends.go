package feed

import (
	"regexp"
	"sort"

	"github.com/yelbahhaoui/MediaConnectPruebas/internal/models"
)

// DefaultTrendLimit is the number of trends kept.
const DefaultTrendLimit = 5

// GeneralTrend is reported alone when no post carries a hashtag.
const GeneralTrend = "#General"

var hashtagPattern = regexp.MustCompile(`#\w+`)

// Hashtags returns every hashtag in content, in order of appearance.
func Hashtags(content string) []string {
	return hashtagPattern.FindAllString(content, -1)
}

// ComputeTrends counts hashtag occurrences across posts and returns the
// limit most frequent. Equal counts keep the order in which the tags were
// first encountered. Without any hashtag the result is the single
// GeneralTrend counting every post.
func ComputeTrends(posts []models.Post, limit int) []models.Trend {
	if limit <= 0 {
		limit = DefaultTrendLimit
	}

	index := make(map[string]int)
	var trends []models.Trend
	for _, p := range posts {
		for _, tag := range Hashtags(p.Content) {
			i, ok := index[tag]
			if !ok {
				i = len(trends)
				index[tag] = i
				trends = append(trends, models.Trend{Tag: tag})
			}
			trends[i].Count++
		}
	}

	if len(trends) == 0 {
		return []models.Trend{{Tag: GeneralTrend, Count: len(posts)}}
	}

	sort.SliceStable(trends, func(i, j int) bool {
		return trends[i].Count > trends[j].Count
	})
	if len(trends) > limit {
		trends = trends[:limit]
	}
	return trends
}
