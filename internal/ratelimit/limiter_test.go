package ratelimit

import (
	"context"
	"testing"
)

func TestDestination(t *testing.T) {
	t.Parallel()

	testCases := map[string]string{
		"https://N8N.example.com/webhook/slip": "n8n.example.com",
		"http://localhost:5678/webhook":        "localhost:5678",
		"":                                     "webhook",
		"::not a url":                          "webhook",
	}
	for endpoint, want := range testCases {
		if got := Destination(endpoint); got != want {
			t.Fatalf("Destination(%q) = %q, want %q", endpoint, got, want)
		}
	}
}

func TestUnlimited(t *testing.T) {
	t.Parallel()

	var l Limiter = Unlimited{}
	allowed, err := l.Allow(context.Background(), "any")
	if err != nil || !allowed {
		t.Fatalf("Allow() = %v, %v; want true, nil", allowed, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Wait(ctx, "any"); err == nil {
		t.Fatal("Wait() should report a cancelled context")
	}
}
