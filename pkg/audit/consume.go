package audit

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"log"
	"net"
	"net/url"
	"time"

	"github.com/chainpoint-network/calendar-core/pkg/bus"
	"github.com/chainpoint-network/calendar-core/pkg/metrics"
	"github.com/chainpoint-network/calendar-core/pkg/registry"
	"github.com/chainpoint-network/calendar-core/pkg/tokensvc"
)

// Thresholds configures the predicates Consumer evaluates.
type Thresholds struct {
	MinCredits     int64
	MinVersion     int
	MinBalance     int64
	ClockSkew      time.Duration
}

// Consumer is the per-task worker that evaluates one Node's audit result
// (spec §4.9, "Audit result consumption"). It is not a leader-only path:
// every process running a Consumer may pick up and evaluate tasks.
type Consumer struct {
	challenges *ChallengeGenerator
	nodeClient *NodeClient
	tokens     *tokensvc.Client
	nodes      *registry.Store
	auditLog   *Log
	thresholds Thresholds
	logger     *log.Logger
}

// NewConsumer constructs a Consumer.
func NewConsumer(challenges *ChallengeGenerator, nodeClient *NodeClient, tokens *tokensvc.Client, nodes *registry.Store, auditLog *Log, thresholds Thresholds) *Consumer {
	return &Consumer{
		challenges: challenges,
		nodeClient: nodeClient,
		tokens:     tokens,
		nodes:      nodes,
		auditLog:   auditLog,
		thresholds: thresholds,
		logger:     log.New(log.Writer(), "[Audit] ", log.LstdFlags),
	}
}

// Subscribe registers the task handler on the audit subject.
func (c *Consumer) Subscribe(b *bus.Bus) (*bus.Subscription, error) {
	return b.Subscribe(bus.TypeAudit, c.handle)
}

func (c *Consumer) handle(ctx context.Context, msg *bus.Message) error {
	var task NodeTask
	if err := msg.Decode(&task); err != nil {
		return fmt.Errorf("audit: decode node task: %w", err)
	}

	node, err := c.nodes.ByAddr(ctx, task.TntAddr)
	if err != nil {
		return fmt.Errorf("audit: fetch node %s: %w", task.TntAddr, err)
	}

	result := c.evaluate(ctx, node)
	if err := c.auditLog.Record(ctx, result); err != nil {
		return fmt.Errorf("audit: record result for %s: %w", task.TntAddr, err)
	}

	outcome := "fail"
	if result.OverallPass() {
		outcome = "pass"
	}
	metrics.AuditResults.WithLabelValues(outcome).Inc()
	return nil
}

// evaluate queries the Node and scores its response against the eight
// predicates. A failed query still produces a Result (Reachable=false,
// every other predicate false) rather than an error, since "not reachable"
// is itself a valid, recordable audit outcome.
func (c *Consumer) evaluate(ctx context.Context, node *registry.Node) Result {
	result := Result{TntAddr: node.TntAddr}

	report, err := c.nodeClient.Query(ctx, node.PublicURI)
	if err != nil {
		c.logger.Printf("audit node %s unreachable: %v", node.TntAddr, err)
		return result
	}
	result.Reachable = true

	result.URIPass = report.PublicURI == node.PublicURI
	result.IPPass = ipMatchesURI(report.ObservedIP, node.PublicURI)
	result.TimePass = clockSkewOK(report.ReportedAt, time.Now(), c.thresholds.ClockSkew)
	result.CalPass = c.calendarSolutionCorrect(report.Solution)
	result.CreditPass = node.TntCredit >= c.thresholds.MinCredits
	result.VersionPass = report.Version >= c.thresholds.MinVersion

	balance, err := c.tokens.Balance(ctx, node.TntAddr)
	if err != nil {
		c.logger.Printf("audit balance check for %s failed: %v", node.TntAddr, err)
	} else {
		result.BalancePass = balance >= c.thresholds.MinBalance
	}

	return result
}

func (c *Consumer) calendarSolutionCorrect(reportedHex string) bool {
	challenge := c.challenges.Current()
	if challenge == nil {
		return false
	}
	reported, err := hex.DecodeString(reportedHex)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(reported, challenge.Solution) == 1
}

func ipMatchesURI(observedIP, publicURI string) bool {
	u, err := url.Parse(publicURI)
	if err != nil {
		return false
	}
	host := u.Hostname()
	a := net.ParseIP(host)
	b := net.ParseIP(observedIP)
	return a != nil && b != nil && a.Equal(b)
}

func clockSkewOK(reported, now time.Time, max time.Duration) bool {
	skew := reported.Sub(now)
	if skew < 0 {
		skew = -skew
	}
	return skew <= max
}
