package app

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/healthassess/secure-gateway/models"
	"github.com/healthassess/secure-gateway/services/ratelimit"
)

func TestStartBackgroundWorkersReturnsImmediately(t *testing.T) {
	store := ratelimit.NewMemoryStore()
	deps := &Dependencies{
		Logger:          zap.NewNop(),
		Limiter:         ratelimit.NewService(store, models.DefaultRateLimitConfig(), zap.NewNop()),
		rateIdentifiers: store.Identifiers,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		deps.StartBackgroundWorkers(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("StartBackgroundWorkers blocked instead of returning")
	}
}
