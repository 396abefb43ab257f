// Copyright 2025 Certen Protocol
//
// Package lock implements the Calendar block engine's Lock Service (C4):
// named TTL leases over Redis with blocking, bounded-backoff acquire, a
// release that is safe to call on every exit path, and asynchronous
// release/error/end notifications for the leaseholder.
//
// Grounded on the stack's Redis usage in
// paulwilltell-OFFGRIDFLOW/internal/performance/cache_layer.go
// (go-redis/v9 client construction, functional config, context-scoped
// calls) generalized from a cache client into a distributed mutex, since
// nothing in the teacher's own dependency tree provides one.
package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// CalendarLockKey is the single cluster-wide lock key that genesis
	// bootstrap, the C7 Calendar Writer and the C8 Anchor Engine (anchor
	// and confirm paths) serialize their block appends through. The Reward
	// Engine appends `reward` blocks without acquiring it.
	CalendarLockKey = "CALENDAR_LOCK_KEY"
	// DefaultTTL is the Calendar lock's lease duration (spec §4.4).
	DefaultTTL = 15 * time.Second
	// backoffCap bounds the randomized retry backoff on contention.
	backoffCap = 6 * time.Second
	// backoffBase seeds the first retry wait.
	backoffBase = 100 * time.Millisecond
	// backoffFactor grows the wait on each contended attempt.
	backoffFactor = 1.6
	// watchInterval is how often a held Lease polls for loss of ownership.
	watchInterval = 1 * time.Second
)

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// EventKind classifies a Lease notification.
type EventKind string

const (
	EventRelease EventKind = "release"
	EventError   EventKind = "error"
	EventEnd     EventKind = "end"
)

// Event is delivered on a Lease's event channel.
type Event struct {
	Kind EventKind
	Err  error
}

// Service is a named-key Redis lock factory.
type Service struct {
	rdb    *redis.Client
	logger *log.Logger
}

// New constructs a Service over an existing Redis client.
func New(rdb *redis.Client, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(log.Writer(), "[Lock] ", log.LstdFlags)
	}
	return &Service{rdb: rdb, logger: logger}
}

// Lease represents a held lock. Release is idempotent and safe to call
// from any exit path, including defer.
type Lease struct {
	svc      *Service
	key      string
	token    string
	valueTag string
	events   chan Event
	cancel   context.CancelFunc
	done     chan struct{}
	released chan struct{}
}

// Acquire blocks until the named key is locked or ctx is done, retrying on
// contention with randomized backoff capped at 6s (spec §4.4). valueTag is
// an informational value (e.g. "calendar", "btc-anchor") stored alongside
// the lease token so an operator inspecting the key can see what is
// holding it.
func (s *Service) Acquire(ctx context.Context, key, valueTag string) (*Lease, error) {
	token, err := randomToken()
	if err != nil {
		return nil, fmt.Errorf("lock: generate token: %w", err)
	}
	value := token + "|" + valueTag

	backoff := backoffBase
	for {
		ok, err := s.rdb.SetNX(ctx, key, value, DefaultTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("lock: acquire %s: %w", key, err)
		}
		if ok {
			break
		}

		wait := jitter(backoff)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
		backoff = time.Duration(float64(backoff) * backoffFactor)
		if backoff > backoffCap {
			backoff = backoffCap
		}
	}

	leaseCtx, cancel := context.WithCancel(context.Background())
	lease := &Lease{
		svc:      s,
		key:      key,
		token:    value,
		valueTag: valueTag,
		events:   make(chan Event, 8),
		cancel:   cancel,
		done:     make(chan struct{}),
		released: make(chan struct{}),
	}
	go lease.watch(leaseCtx)

	return lease, nil
}

// watch polls for loss of ownership (expiry, or another holder taking the
// key after this lease's TTL lapsed) and emits End when that happens.
// Redis errors are reported as Error without ending the watch, since the
// lock may still be held once connectivity returns.
func (l *Lease) watch(ctx context.Context) {
	defer close(l.done)
	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			val, err := l.svc.rdb.Get(ctx, l.key).Result()
			if errors.Is(err, redis.Nil) {
				l.emit(Event{Kind: EventEnd})
				return
			}
			if err != nil {
				l.emit(Event{Kind: EventError, Err: err})
				continue
			}
			if val != l.token {
				l.emit(Event{Kind: EventEnd})
				return
			}
		}
	}
}

func (l *Lease) emit(e Event) {
	select {
	case l.events <- e:
	default:
		l.svc.logger.Printf("event channel full, dropping %s event for %s", e.Kind, l.key)
	}
}

// Events returns the Lease's notification channel.
func (l *Lease) Events() <-chan Event {
	return l.events
}

// ValueTag returns the informational tag this lease was acquired with.
func (l *Lease) ValueTag() string {
	return l.valueTag
}

// Release deletes the lock key if and only if this lease still owns it,
// stops the background watcher, and emits a Release event. Safe to call
// more than once and safe to call after the lease has already ended.
func (l *Lease) Release(ctx context.Context) error {
	select {
	case <-l.released:
		return nil
	default:
		close(l.released)
	}

	l.cancel()
	<-l.done

	err := releaseScript.Run(ctx, l.svc.rdb, []string{l.key}, l.token).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		l.emit(Event{Kind: EventError, Err: err})
		return fmt.Errorf("lock: release %s: %w", l.key, err)
	}
	l.emit(Event{Kind: EventRelease})
	return nil
}

func randomToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// jitter returns a duration uniformly chosen from [d/2, d].
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	half := d / 2
	n, err := rand.Int(rand.Reader, big.NewInt(int64(half)+1))
	if err != nil {
		return d
	}
	return half + time.Duration(n.Int64())
}
