package anchor

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/chainpoint-network/calendar-core/pkg/block"
	"github.com/chainpoint-network/calendar-core/pkg/bus"
	"github.com/chainpoint-network/calendar-core/pkg/lock"
	"github.com/chainpoint-network/calendar-core/pkg/merkle"
	"github.com/chainpoint-network/calendar-core/pkg/metrics"
	"github.com/chainpoint-network/calendar-core/pkg/proofstore"
	"github.com/google/uuid"
)

// Engine runs the Anchor path: fixed-cadence rollup of Block Store
// contents into a `btc-a` block.
type Engine struct {
	lockSvc *lock.Service
	store   *block.Store
	bus     *bus.Bus
	stackID string

	anchorMinutes map[int]bool
	logger        *log.Logger

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewEngine constructs an Anchor Engine for stackID, anchoring at the
// given wall-clock minutes (spec default: 0 and 30).
func NewEngine(lockSvc *lock.Service, store *block.Store, b *bus.Bus, stackID string, anchorMinutes ...int) *Engine {
	minutes := make(map[int]bool, len(anchorMinutes))
	for _, m := range anchorMinutes {
		minutes[m] = true
	}
	return &Engine{
		lockSvc:       lockSvc,
		store:         store,
		bus:           b,
		stackID:       stackID,
		anchorMinutes: minutes,
		logger:        log.New(log.Writer(), "[Anchor] ", log.LstdFlags),
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
}

// Start runs the anchor scheduler in the background.
func (e *Engine) Start(ctx context.Context) {
	go e.run(ctx)
}

// Stop signals the scheduler to exit and waits for it to do so.
func (e *Engine) Stop() {
	close(e.stopCh)
	<-e.doneCh
}

func (e *Engine) run(ctx context.Context) {
	defer close(e.doneCh)

	for {
		wait := time.Until(nextMinuteBoundary(time.Now()))
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case <-time.After(wait):
		}

		if !e.anchorMinutes[time.Now().UTC().Minute()] {
			continue
		}

		jitter, err := randSeconds(30)
		if err != nil {
			jitter = 0
		}
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case <-time.After(jitter):
		}

		if err := e.attemptAnchor(ctx); err != nil {
			e.logger.Printf("anchor attempt failed: %v", err)
		}
	}
}

func nextMinuteBoundary(t time.Time) time.Time {
	return t.Truncate(time.Minute).Add(time.Minute)
}

func randSeconds(n int64) (time.Duration, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(n))
	if err != nil {
		return 0, err
	}
	return time.Duration(v.Int64()) * time.Second, nil
}

// attemptAnchor executes spec §4.8's Anchor path steps 1-8.
func (e *Engine) attemptAnchor(ctx context.Context) error {
	var lastAnchorID int64 = -1
	if last, err := e.store.LastOfType(ctx, e.stackID, block.TypeBTCAnchor); err == nil {
		lastAnchorID = last.ID
	} else if err != block.ErrNotFound {
		return fmt.Errorf("anchor: read last btc-a block: %w", err)
	}

	if !e.bus.IsConnected() {
		return fmt.Errorf("anchor: bus unavailable, aborting before any block write")
	}

	lease, err := e.lockSvc.Acquire(ctx, lock.CalendarLockKey, "btc-anchor")
	if err != nil {
		return fmt.Errorf("anchor: acquire lock: %w", err)
	}
	defer lease.Release(ctx)

	scanned, err := e.store.Scan(ctx, e.stackID, block.IDRange{MinID: lastAnchorID + 1}, nil)
	if err != nil {
		return fmt.Errorf("anchor: scan since last anchor: %w", err)
	}
	if len(scanned) == 0 {
		return nil
	}

	leaves := make([][]byte, len(scanned))
	for i, b := range scanned {
		h, err := hex.DecodeString(b.Hash)
		if err != nil {
			return fmt.Errorf("anchor: decode block %d hash: %w", b.ID, err)
		}
		leaves[i] = h
	}
	tree, err := merkle.Build(leaves, merkle.SHA256)
	if err != nil {
		return fmt.Errorf("anchor: build tree: %w", err)
	}

	aggID := uuid.New().String()

	btcA, err := e.store.Append(ctx, block.NewBlock{
		StackID: e.stackID,
		Type:    block.TypeBTCAnchor,
		DataID:  "",
		DataVal: tree.RootHex(),
	})
	if err != nil {
		return fmt.Errorf("anchor: append btc-a block: %w", err)
	}

	for i, b := range scanned {
		if b.Type != block.TypeCal {
			continue
		}
		segment, err := tree.Proof(i)
		if err != nil {
			return fmt.Errorf("anchor: proof for cal block %d: %w", b.ID, err)
		}
		proof := proofstore.Proof{
			Key:       fmt.Sprintf("anchor:%d", b.ID),
			Ops:       segment,
			AnchorURI: fmt.Sprintf("/calendar/%d/hash", btcA.ID),
		}
		if err := e.bus.Publish(ctx, bus.TypeState, proof); err != nil {
			return fmt.Errorf("anchor: publish proof for cal block %d: %w", b.ID, err)
		}
	}

	if err := e.bus.Publish(ctx, bus.TypeBTCTx, BTCTxRequest{
		AnchorBTCAggID:   aggID,
		AnchorBTCAggRoot: tree.RootHex(),
	}); err != nil {
		return fmt.Errorf("anchor: publish btctx request: %w", err)
	}

	metrics.AnchorsSubmitted.Inc()
	return nil
}
