package audit

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/chainpoint-network/calendar-core/pkg/bus"
	"github.com/chainpoint-network/calendar-core/pkg/leader"
	"github.com/chainpoint-network/calendar-core/pkg/metrics"
	"github.com/chainpoint-network/calendar-core/pkg/registry"
)

// NodeTask is one audit_node task enqueued per round (spec §4.9 audit
// round step 2).
type NodeTask struct {
	TntAddr     string `json:"tnt_addr"`
	PublicURI   string `json:"public_uri"`
	ActiveCount int    `json:"active_count"`
}

// Round runs the periodic audit round: select auditable Nodes, enqueue one
// task per Node, decay inactive Nodes' score, schedule pruning. Only the
// elected audit-producer leader runs a round.
type Round struct {
	elector   *leader.Elector
	nodes     *registry.Store
	auditLog  *Log
	bus       *bus.Bus
	retention time.Duration
	batchSize int
	logger    *log.Logger
}

// NewRound constructs a Round.
func NewRound(elector *leader.Elector, nodes *registry.Store, auditLog *Log, b *bus.Bus, retention time.Duration, batchSize int) *Round {
	return &Round{
		elector:   elector,
		nodes:     nodes,
		auditLog:  auditLog,
		bus:       b,
		retention: retention,
		batchSize: batchSize,
		logger:    log.New(log.Writer(), "[Audit] ", log.LstdFlags),
	}
}

// Run executes one audit round (spec §4.9, "Audit round").
func (r *Round) Run(ctx context.Context) error {
	if !r.elector.IsLeader() {
		return nil
	}

	auditable, err := r.nodes.WithPublicURI(ctx)
	if err != nil {
		return fmt.Errorf("audit: list auditable nodes: %w", err)
	}

	activeCount, err := r.nodes.ActiveCount(ctx)
	if err != nil {
		return fmt.Errorf("audit: active count: %w", err)
	}

	for _, n := range auditable {
		task := NodeTask{TntAddr: n.TntAddr, PublicURI: n.PublicURI, ActiveCount: activeCount}
		if err := r.bus.Publish(ctx, bus.TypeAudit, task); err != nil {
			r.logger.Printf("enqueue audit task for %s: %v", n.TntAddr, err)
		}
	}

	if _, err := r.nodes.DecrementAuditScore(ctx); err != nil {
		r.logger.Printf("decrement audit score: %v", err)
	}

	go func() {
		pruned, err := r.auditLog.Prune(context.Background(), r.retention, r.batchSize)
		if err != nil {
			r.logger.Printf("prune audit log: %v", err)
			return
		}
		if pruned > 0 {
			r.logger.Printf("pruned %d audit log rows older than %s", pruned, r.retention)
		}
	}()

	metrics.AuditRounds.Inc()
	return nil
}
