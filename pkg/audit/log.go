package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/chainpoint-network/calendar-core/pkg/storage"
)

// Result is one Node's outcome for a single audit task (spec §4.9, "Audit
// result consumption").
type Result struct {
	TntAddr     string
	IPPass      bool
	URIPass     bool
	TimePass    bool
	CalPass     bool
	CreditPass  bool
	VersionPass bool
	BalancePass bool
	Reachable   bool
}

// OverallPass reports whether every predicate the audit evaluated passed.
func (r Result) OverallPass() bool {
	return r.IPPass && r.URIPass && r.TimePass && r.CalPass &&
		r.CreditPass && r.VersionPass && r.BalancePass && r.Reachable
}

// Log is the Postgres-backed audit_log repository.
type Log struct {
	pool *storage.Pool
}

// NewLog constructs a Log.
func NewLog(pool *storage.Pool) *Log {
	return &Log{pool: pool}
}

// Record inserts one audit result row.
func (l *Log) Record(ctx context.Context, r Result) error {
	_, err := l.pool.DB().ExecContext(ctx, `
		INSERT INTO audit_log (
			tnt_addr, ip_pass, uri_pass, time_pass, cal_pass,
			credit_pass, version_pass, balance_pass, reachable, overall_pass
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, r.TntAddr, r.IPPass, r.URIPass, r.TimePass, r.CalPass,
		r.CreditPass, r.VersionPass, r.BalancePass, r.Reachable, r.OverallPass())
	if err != nil {
		return fmt.Errorf("audit: record result: %w", err)
	}
	return nil
}

// LastFor returns the most recent row for tntAddr, or nil if none exists.
func (l *Log) LastFor(ctx context.Context, tntAddr string) (*Result, error) {
	r := &Result{TntAddr: tntAddr}
	err := l.pool.DB().QueryRowContext(ctx, `
		SELECT ip_pass, uri_pass, time_pass, cal_pass, credit_pass,
		       version_pass, balance_pass, reachable
		FROM audit_log WHERE tnt_addr = $1
		ORDER BY audit_at DESC LIMIT 1
	`, tntAddr).Scan(&r.IPPass, &r.URIPass, &r.TimePass, &r.CalPass,
		&r.CreditPass, &r.VersionPass, &r.BalancePass, &r.Reachable)
	if err != nil {
		return nil, nil
	}
	return r, nil
}

// Prune deletes audit rows older than retention in batches of batchSize
// (spec §4.9 audit round step 4), returning the total rows removed.
func (l *Log) Prune(ctx context.Context, retention time.Duration, batchSize int) (int64, error) {
	cutoff := time.Now().Add(-retention)
	var total int64
	for {
		res, err := l.pool.DB().ExecContext(ctx, `
			DELETE FROM audit_log WHERE id IN (
				SELECT id FROM audit_log WHERE audit_at < $1 LIMIT $2
			)
		`, cutoff, batchSize)
		if err != nil {
			return total, fmt.Errorf("audit: prune batch: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("audit: prune rows affected: %w", err)
		}
		total += n
		if n < int64(batchSize) {
			return total, nil
		}
	}
}
