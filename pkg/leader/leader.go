// Copyright 2025 Certen Protocol
//
// Package leader implements the Calendar block engine's Leader Elector
// (C5): one leader per named role, built directly on the Lock Service's
// lease primitive rather than a separate consensus mechanism — a role's
// "leader" is simply whoever currently holds that role's lock key.
//
// IsLeader is a level signal: callers must re-check it on every tick
// rather than caching the result across an await, since leadership can be
// lost at any time (spec §4.5).
package leader

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/chainpoint-network/calendar-core/pkg/lock"
	"github.com/chainpoint-network/calendar-core/pkg/metrics"
)

const keyPrefix = "LEADER_ROLE:"

// Elector tracks whether this process currently holds leadership for one
// named role.
type Elector struct {
	svc   *lock.Service
	role  string
	key   string
	lease atomic.Pointer[lock.Lease]
}

// New constructs an Elector for role, contending on the Lock Service.
func New(svc *lock.Service, role string) *Elector {
	return &Elector{svc: svc, role: role, key: keyPrefix + role}
}

// Campaign blocks until this process becomes leader for the role, then
// returns. The returned channel receives lock.Event notifications for as
// long as leadership is held; it closes once leadership ends (whether via
// Resign or loss of the underlying lease).
func (e *Elector) Campaign(ctx context.Context) (<-chan lock.Event, error) {
	l, err := e.svc.Acquire(ctx, e.key, e.role)
	if err != nil {
		return nil, fmt.Errorf("leader: campaign for %s: %w", e.role, err)
	}
	e.lease.Store(l)
	metrics.LockHeld.WithLabelValues(e.key).Set(1)

	out := make(chan lock.Event)
	go func() {
		defer close(out)
		for ev := range l.Events() {
			out <- ev
			if ev.Kind == lock.EventEnd || ev.Kind == lock.EventRelease {
				e.lease.Store(nil)
				metrics.LockHeld.WithLabelValues(e.key).Set(0)
				return
			}
		}
	}()

	return out, nil
}

// IsLeader reports whether this process currently believes it holds
// leadership for the role. Callers must call this fresh on every tick,
// never cache it across an await (spec §4.5): the underlying lease can be
// lost between calls without this process being notified synchronously.
func (e *Elector) IsLeader() bool {
	return e.lease.Load() != nil
}

// Resign releases leadership if held.
func (e *Elector) Resign(ctx context.Context) error {
	l := e.lease.Load()
	if l == nil {
		return nil
	}
	metrics.LockHeld.WithLabelValues(e.key).Set(0)
	return l.Release(ctx)
}
