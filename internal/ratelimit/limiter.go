package ratelimit

import "context"

// RateLimiter controls dispatch throughput towards the messaging gateway,
// keyed per municipality.
type RateLimiter interface {
	Allow(ctx context.Context, municipality string) (bool, error)
	Wait(ctx context.Context, municipality string) error
}
