// Copyright 2025 Certen Protocol
package calendar

import (
	"context"
	"fmt"

	"github.com/chainpoint-network/calendar-core/pkg/block"
	"github.com/chainpoint-network/calendar-core/pkg/lock"
)

// EnsureGenesis appends the id:0 `gen` block for stackID if the store is
// still empty, under the Calendar lock's "genesis" tag. Safe to call on
// every startup: a populated store makes this a no-op (spec §9, property
// 1).
func EnsureGenesis(ctx context.Context, lockSvc *lock.Service, store *block.Store, stackID string) error {
	lease, err := lockSvc.Acquire(ctx, CalendarLockKey, "genesis")
	if err != nil {
		return fmt.Errorf("calendar: acquire lock for genesis: %w", err)
	}
	defer lease.Release(ctx)

	if _, err := store.Tip(ctx, stackID); err != block.ErrEmptyStore {
		return nil
	}

	_, err = store.Append(ctx, block.NewBlock{
		StackID: stackID,
		Type:    block.TypeGenesis,
		DataID:  "0",
		DataVal: block.GenesisPrevHash,
	})
	if err != nil {
		return fmt.Errorf("calendar: append genesis block: %w", err)
	}
	return nil
}
