package main

import (
	"context"
	"testing"
	"time"

	"github.com/seenimoa/sentidash/internal/cache"
	"github.com/seenimoa/sentidash/internal/dashboard"
	"github.com/seenimoa/sentidash/internal/infra"
)

// trackedBackend is a lookup backend that records Close.
type trackedBackend struct {
	closed bool
}

func (b *trackedBackend) Get(context.Context, string) ([]byte, bool) { return nil, false }

func (b *trackedBackend) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (b *trackedBackend) Clear(context.Context) error { return nil }

func (b *trackedBackend) Close() error {
	b.closed = true
	return nil
}

func TestAppCloseReleasesCacheTiers(t *testing.T) {
	backend := &trackedBackend{}
	a := &app{
		queue: infra.NewQueue(),
		svc: dashboard.NewService(dashboard.Deps{
			Tiers: cache.NewTiers(context.Background(), cache.Options{Backend: backend}),
		}),
	}
	a.Close()
	if !backend.closed {
		t.Error("Close left the lookup backend open")
	}
}
