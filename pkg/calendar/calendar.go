// Copyright 2025 Certen Protocol
//
// Package calendar implements the Calendar Writer (C7): a 10s-cadence
// scheduler that drains buffered aggregation roots into signed, chained
// `cal` blocks and publishes per-root inclusion proofs.
//
// Grounded on the teacher's pkg/batch/scheduler.go for the
// mutex-guarded-state, ticker-in-select scheduler loop shape, generalized
// from batch-close timing to the fixed 10s drain cadence spec §4.7
// requires, with the lock-acquire/snapshot/build/append/publish/ack
// sequence built fresh against pkg/lock, pkg/block, pkg/merkle, pkg/bus.
package calendar

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/chainpoint-network/calendar-core/pkg/block"
	"github.com/chainpoint-network/calendar-core/pkg/bus"
	"github.com/chainpoint-network/calendar-core/pkg/lock"
	"github.com/chainpoint-network/calendar-core/pkg/merkle"
	"github.com/chainpoint-network/calendar-core/pkg/proofstore"
)

// CalendarLockKey re-exports the shared lock key for callers that only
// import this package.
const CalendarLockKey = lock.CalendarLockKey

const tickInterval = 10 * time.Second

// Writer buffers aggregation roots and periodically commits them into a
// signed, hash-chained `cal` block.
type Writer struct {
	lockSvc *lock.Service
	store   *block.Store
	bus     *bus.Bus
	stackID string
	logger  *log.Logger

	mu     sync.Mutex
	buffer []PendingRoot

	stopCh chan struct{}
	doneCh chan struct{}
}

// New constructs a Calendar Writer for stackID.
func New(lockSvc *lock.Service, store *block.Store, b *bus.Bus, stackID string) *Writer {
	return &Writer{
		lockSvc: lockSvc,
		store:   store,
		bus:     b,
		stackID: stackID,
		logger:  log.New(log.Writer(), "[Calendar] ", log.LstdFlags),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Enqueue buffers a dequeued aggregation root. The caller has already
// dequeued msg from the bus without acking it; the Writer now owns it
// until the cal block is durable.
func (w *Writer) Enqueue(root PendingRoot) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buffer = append(w.buffer, root)
}

// Start runs the 10s-cadence scheduler, offset by a random 0-9s initial
// delay to de-conflict stacks sharing the same cluster (spec §4.7).
func (w *Writer) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop signals the scheduler to exit and waits for it to do so.
func (w *Writer) Stop() {
	close(w.stopCh)
	<-w.doneCh
}

func (w *Writer) run(ctx context.Context) {
	defer close(w.doneCh)

	offset, err := randSeconds(10)
	if err != nil {
		offset = 0
	}
	select {
	case <-ctx.Done():
		return
	case <-w.stopCh:
		return
	case <-time.After(offset):
	}

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			if err := w.tick(ctx); err != nil {
				w.logger.Printf("tick failed: %v", err)
			}
		}
	}
}

func randSeconds(n int64) (time.Duration, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(n))
	if err != nil {
		return 0, err
	}
	return time.Duration(v.Int64()) * time.Second, nil
}

// tick executes one full scheduler cycle (spec §4.7 steps 1-7).
func (w *Writer) tick(ctx context.Context) error {
	lease, err := w.lockSvc.Acquire(ctx, CalendarLockKey, "calendar")
	if err != nil {
		return fmt.Errorf("calendar: acquire lock: %w", err)
	}
	defer lease.Release(ctx)

	snapshot := w.drainBuffer()
	if len(snapshot) == 0 {
		return nil
	}

	leaves := make([][]byte, len(snapshot))
	for i, r := range snapshot {
		leaves[i] = r.AggRoot
	}
	tree, err := merkle.Build(leaves, merkle.SHA256)
	if err != nil {
		w.requeueHead(snapshot)
		w.nackAll(snapshot)
		return fmt.Errorf("calendar: build tree: %w", err)
	}

	nextID, err := w.predictNextID(ctx)
	if err != nil {
		w.requeueHead(snapshot)
		w.nackAll(snapshot)
		return fmt.Errorf("calendar: predict next id: %w", err)
	}

	var calBlock *block.Block
	err = withRetry(ctx, blockWriteRetry, func() error {
		b, appendErr := w.store.Append(ctx, block.NewBlock{
			StackID: w.stackID,
			Type:    block.TypeCal,
			DataID:  strconv.FormatInt(nextID, 10),
			DataVal: tree.RootHex(),
		})
		if appendErr != nil {
			return appendErr
		}
		calBlock = b
		return nil
	})
	if err != nil {
		w.requeueHead(snapshot)
		w.nackAll(snapshot)
		return fmt.Errorf("calendar: append cal block: %w", err)
	}

	if err := w.publishProofs(ctx, tree, calBlock, snapshot); err != nil {
		w.requeueHead(snapshot)
		w.nackAll(snapshot)
		return fmt.Errorf("calendar: publish proofs: %w", err)
	}

	for _, r := range snapshot {
		if r.Msg == nil {
			continue
		}
		if err := r.Msg.Ack(); err != nil {
			w.logger.Printf("ack aggregator message %s failed: %v", r.AggID, err)
		}
	}
	return nil
}

// publishProofs builds and emits the per-root proof segment for every
// snapshotted root onto the work.out.state queue (spec §4.7 step 5).
// Publish blocks for JetStream's ack, so by the time this returns the
// proof message is durable and the aggregator messages may be acked
// (spec §4.7 step 6).
func (w *Writer) publishProofs(ctx context.Context, tree *merkle.Tree, calBlock *block.Block, snapshot []PendingRoot) error {
	proofs, err := buildProofs(tree, calBlock, snapshot)
	if err != nil {
		return err
	}
	for _, proof := range proofs {
		if err := w.bus.Publish(ctx, bus.TypeState, proof); err != nil {
			return fmt.Errorf("publish proof for %s: %w", proof.Key, err)
		}
	}
	return nil
}

// buildProofs computes the per-root proof segment for every snapshotted
// root, extended with the ops that bind cal_root to the calendar block's
// own hash.
func buildProofs(tree *merkle.Tree, calBlock *block.Block, snapshot []PendingRoot) ([]proofstore.Proof, error) {
	out := make([]proofstore.Proof, 0, len(snapshot))
	for i, r := range snapshot {
		segment, err := tree.Proof(i)
		if err != nil {
			return nil, fmt.Errorf("proof for root %s: %w", r.AggID, err)
		}
		segment = append(segment,
			merkle.Op{L: block.MetaString(calBlock)},
			merkle.Op{R: calBlock.PrevHash},
			merkle.Op{Op: string(merkle.SHA256)},
		)
		out = append(out, proofstore.Proof{
			Key:       r.AggID,
			Ops:       segment,
			AnchorURI: fmt.Sprintf("/calendar/%d/hash", calBlock.ID),
		})
	}
	return out, nil
}

// predictNextID reads the current tip to determine the id the next
// append will receive. Safe only while holding the Calendar lock: no
// concurrent writer can intervene between this read and the Append call.
func (w *Writer) predictNextID(ctx context.Context) (int64, error) {
	tip, err := w.store.Tip(ctx, w.stackID)
	if err == block.ErrEmptyStore {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return tip.ID + 1, nil
}

// drainBuffer snapshots and clears the pending-root buffer.
func (w *Writer) drainBuffer() []PendingRoot {
	w.mu.Lock()
	defer w.mu.Unlock()
	snapshot := w.buffer
	w.buffer = nil
	return snapshot
}

// requeueHead puts snapshot back at the head of the buffer ahead of
// anything enqueued while the tick was in flight (spec §4.7 step 6).
func (w *Writer) requeueHead(snapshot []PendingRoot) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buffer = append(snapshot, w.buffer...)
}

func (w *Writer) nackAll(snapshot []PendingRoot) {
	for _, r := range snapshot {
		if r.Msg == nil {
			continue
		}
		if err := r.Msg.Nack(); err != nil {
			w.logger.Printf("nack aggregator message %s failed: %v", r.AggID, err)
		}
	}
}
