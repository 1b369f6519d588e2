// Package directory answers prefix queries over the user directory, both
// directly and as a debounced, cancellable incremental search.
package directory

import (
	"context"
	"strings"

	"github.com/yelbahhaoui/MediaConnectPruebas/internal/metrics"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/models"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/store"
)

// DefaultLimit caps the entries a query returns when no limit is given.
const DefaultLimit = 20

// Query returns directory entries whose display name starts with prefix,
// compared case-sensitively, excluding excludeID. A blank prefix returns
// an empty result without querying.
func Query(ctx context.Context, dir store.Directory, prefix, excludeID string, limit int) ([]models.DirectoryEntry, error) {
	if strings.TrimSpace(prefix) == "" {
		return []models.DirectoryEntry{}, nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	metrics.SearchQueries.Inc()
	// One extra row leaves room for the excluded identity.
	entries, err := dir.SearchUsers(ctx, prefix, prefix+store.HighSentinel, limit+1)
	if err != nil {
		return nil, err
	}

	out := make([]models.DirectoryEntry, 0, len(entries))
	for _, e := range entries {
		if e.ID == excludeID {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
