package keyword

import "context"

// Researcher suggests additional long-tail phrases for a seed using an external generative service.
type Researcher interface {
	Research(ctx context.Context, seed, location string, limit int) ([]string, error)
}
