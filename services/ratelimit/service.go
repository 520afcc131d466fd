// Package ratelimit enforces per-identifier request budgets over three
// concurrent sliding windows and applies temporary blocks to identifiers
// that exceed them.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/healthassess/secure-gateway/models"
	"github.com/healthassess/secure-gateway/services"
)

// Window names a sliding window tier.
type Window string

const (
	WindowMinute Window = "minute"
	WindowHour   Window = "hour"
	WindowDay    Window = "day"
)

// ReasonBlocked is the denial reason for an identifier under an active block.
const ReasonBlocked = "ip_blocked"

// historyRetention bounds how far back request timestamps are kept. The day
// window is the widest consumer, so anything older is dead weight.
const historyRetention = 24 * time.Hour

// Store persists request timestamps and block marks per identifier.
// Implementations must be safe for concurrent use.
type Store interface {
	// Record appends one request timestamp for the identifier.
	Record(ctx context.Context, identifier string, ts time.Time) error
	// CountSince returns how many recorded timestamps are at or after since.
	CountSince(ctx context.Context, identifier string, since time.Time) (int, error)
	// Prune discards timestamps strictly before cutoff.
	Prune(ctx context.Context, identifier string, cutoff time.Time) error
	// Block marks the identifier blocked until the given time.
	Block(ctx context.Context, identifier string, until time.Time) error
	// BlockedUntil reports the most recent block mark, if any. Callers
	// decide whether it is still in effect.
	BlockedUntil(ctx context.Context, identifier string) (time.Time, bool, error)
}

// Decision is the outcome of a single rate check.
type Decision struct {
	Allowed        bool           `json:"allowed"`
	Reason         string         `json:"reason,omitempty"`
	ViolatedWindow Window         `json:"violated_window,omitempty"`
	RetryAfter     time.Duration  `json:"retry_after,omitempty"`
	BlockedUntil   time.Time      `json:"blocked_until,omitempty"`
	Remaining      map[Window]int `json:"remaining,omitempty"`
}

type windowSpec struct {
	name     Window
	duration time.Duration
	limit    int
}

// Service evaluates rate limits against a Store. Checks for the same
// identifier serialize on a per-identifier lock so the count-then-record
// sequence is atomic; distinct identifiers never contend.
type Service struct {
	store  Store
	cfg    models.RateLimitConfig
	logger *zap.Logger
	now    func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates a rate limit service. Zero-valued limits fall back to
// the defaults.
func NewService(store Store, cfg models.RateLimitConfig, logger *zap.Logger) *Service {
	def := models.DefaultRateLimitConfig()
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = def.RequestsPerMinute
	}
	if cfg.RequestsPerHour <= 0 {
		cfg.RequestsPerHour = def.RequestsPerHour
	}
	if cfg.RequestsPerDay <= 0 {
		cfg.RequestsPerDay = def.RequestsPerDay
	}
	return &Service{
		store:  store,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		locks:  make(map[string]*sync.Mutex),
	}
}

func (s *Service) lockFor(identifier string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[identifier]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[identifier] = lock
	}
	return lock
}

func (s *Service) windows() []windowSpec {
	return []windowSpec{
		{WindowMinute, time.Minute, s.cfg.RequestsPerMinute},
		{WindowHour, time.Hour, s.cfg.RequestsPerHour},
		{WindowDay, 24 * time.Hour, s.cfg.RequestsPerDay},
	}
}

// Check evaluates one request for the identifier. The check order is fixed:
// an active block denies immediately, then each window is evaluated from
// narrowest to widest. A window whose current count has reached its limit
// denies the request, blocks the identifier for that window's duration, and
// leaves the denied request unrecorded. Only an allowed request is recorded.
//
// The whole evaluation holds the identifier's lock, so two concurrent
// requests cannot both claim the last slot of a window.
func (s *Service) Check(ctx context.Context, identifier string) (*Decision, error) {
	lock := s.lockFor(identifier)
	lock.Lock()
	defer lock.Unlock()

	now := s.now()

	until, blocked, err := s.store.BlockedUntil(ctx, identifier)
	if err != nil {
		return nil, services.WrapInternal("rate limit block lookup", err)
	}
	if blocked && until.After(now) {
		return &Decision{
			Allowed:      false,
			Reason:       ReasonBlocked,
			RetryAfter:   until.Sub(now),
			BlockedUntil: until,
		}, nil
	}

	if err := s.store.Prune(ctx, identifier, now.Add(-historyRetention)); err != nil {
		return nil, services.WrapInternal("rate limit prune", err)
	}

	remaining := make(map[Window]int, 3)
	for _, w := range s.windows() {
		count, err := s.store.CountSince(ctx, identifier, now.Add(-w.duration))
		if err != nil {
			return nil, services.WrapInternal("rate limit count", err)
		}
		if count >= w.limit {
			blockUntil := now.Add(w.duration)
			if err := s.store.Block(ctx, identifier, blockUntil); err != nil {
				return nil, services.WrapInternal("rate limit block", err)
			}
			s.logger.Warn("rate limit exceeded",
				zap.String("identifier", identifier),
				zap.String("window", string(w.name)),
				zap.Int("count", count),
				zap.Int("limit", w.limit),
				zap.Time("blocked_until", blockUntil))
			return &Decision{
				Allowed:        false,
				Reason:         fmt.Sprintf("rate_limit_%s", w.name),
				ViolatedWindow: w.name,
				RetryAfter:     w.duration,
				BlockedUntil:   blockUntil,
			}, nil
		}
		// The request being admitted consumes one slot itself.
		remaining[w.name] = w.limit - count - 1
	}

	if err := s.store.Record(ctx, identifier, now); err != nil {
		return nil, services.WrapInternal("rate limit record", err)
	}

	return &Decision{Allowed: true, Remaining: remaining}, nil
}

// Usage reports current per-window counts for an identifier without
// recording anything. Used by the admin security summary.
func (s *Service) Usage(ctx context.Context, identifier string) (map[Window]int, error) {
	now := s.now()
	usage := make(map[Window]int, 3)
	for _, w := range s.windows() {
		count, err := s.store.CountSince(ctx, identifier, now.Add(-w.duration))
		if err != nil {
			return nil, services.WrapInternal("rate limit usage", err)
		}
		usage[w.name] = count
	}
	return usage, nil
}

// StartCleanupWorker prunes stale history for a set of identifiers on a
// fixed interval until the context is cancelled. The Redis store expires
// entries on its own; this worker matters for the in-memory store.
func (s *Service) StartCleanupWorker(ctx context.Context, interval time.Duration, identifiers func() []string) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("started rate limit cleanup worker", zap.Duration("interval", interval))

	for {
		select {
		case <-ticker.C:
			cutoff := s.now().Add(-historyRetention)
			for _, id := range identifiers() {
				if err := s.store.Prune(ctx, id, cutoff); err != nil {
					s.logger.Error("rate limit prune failed", zap.String("identifier", id), zap.Error(err))
				}
			}
		case <-ctx.Done():
			s.logger.Info("stopping rate limit cleanup worker")
			return
		}
	}
}
