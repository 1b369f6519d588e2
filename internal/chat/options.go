package chat

import "github.com/yelbahhaoui/MediaConnectPruebas/internal/clock"

// Options carries the optional collaborators of the live components.
type Options struct {
	// Clock paces watch reconnects. Defaults to the real clock.
	Clock clock.Clock

	// OnError receives read-path failures on the session loop. The last
	// delivered snapshot stays current.
	OnError func(error)
}
