package notify

import "context"

// Noop discards alerts. Used when no alert channel is configured.
type Noop struct{}

func (Noop) Notify(ctx context.Context, message string) error { return nil }
