package ratelimit

import (
	"context"
	"net/url"
	"strings"
)

const fallbackDestination = "webhook"

// Limiter throttles outbound deliveries per destination.
type Limiter interface {
	Allow(ctx context.Context, destination string) (bool, error)
	Wait(ctx context.Context, destination string) error
}

// Destination returns the limiter key for an outbound endpoint: its
// lower-cased host, or a shared fallback when the URL has none.
func Destination(endpoint string) string {
	u, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil || u.Host == "" {
		return fallbackDestination
	}
	return strings.ToLower(u.Host)
}

// Unlimited never throttles.
type Unlimited struct{}

func (Unlimited) Allow(context.Context, string) (bool, error) { return true, nil }

func (Unlimited) Wait(ctx context.Context, _ string) error { return ctx.Err() }
