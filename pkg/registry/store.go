// Copyright 2025 Certen Protocol
//
// Package registry implements the Node Registry (C11): create/update of
// auditable Nodes with HMAC-window authentication and URI validation, the
// randomHealthy/blacklist queries behind its HTTP handlers, and the Node
// listing/scoring queries the audit round uses.
//
// Grounded on the teacher's pkg/database repository shape (prepared
// queries, sql.ErrNoRows -> sentinel translation, unique-violation ->
// ErrDuplicate via SQLSTATE 23505) and the teacher's use of
// github.com/ethereum/go-ethereum/common for EVM-style address handling,
// applied here to validate/normalize tntAddr.
package registry

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chainpoint-network/calendar-core/pkg/storage"
	"github.com/chainpoint-network/calendar-core/pkg/tokensvc"
)

// Store is the Postgres-backed Node Registry.
type Store struct {
	pool    *storage.Pool
	tokens  *tokensvc.Client
	cap     int
	minBal  int64
	now     func() time.Time
}

// New constructs a Store. registrationCap bounds total registered Nodes;
// minBalanceGrains is the balance threshold create/update re-check.
func New(pool *storage.Pool, tokens *tokensvc.Client, registrationCap int, minBalanceGrains int64) *Store {
	return &Store{
		pool:   pool,
		tokens: tokens,
		cap:    registrationCap,
		minBal: minBalanceGrains,
		now:    time.Now,
	}
}

// normalizeAddr validates an EVM-style address the same way the teacher's
// chain clients accept user input and returns it as 40 lower-case hex
// chars without the 0x prefix, the form the nodes table stores.
func normalizeAddr(addr string) (string, error) {
	if !common.IsHexAddress(addr) {
		return "", fmt.Errorf("%w: malformed tntAddr", ErrInvalidURI)
	}
	return strings.ToLower(strings.TrimPrefix(common.HexToAddress(addr).Hex(), "0x")), nil
}

// Create registers a new Node (spec §4.11 create). publicUri may be empty.
func (s *Store) Create(ctx context.Context, tntAddr, publicURI string, version, minNewVersion int) (*Node, error) {
	addr, err := normalizeAddr(tntAddr)
	if err != nil {
		return nil, err
	}
	if version < minNewVersion {
		return nil, ErrVersionTooLow
	}
	if publicURI != "" {
		if err := ValidateURI(publicURI); err != nil {
			return nil, err
		}
	}

	var existing int
	if err := s.pool.DB().QueryRowContext(ctx, `SELECT count(*) FROM nodes`).Scan(&existing); err != nil {
		return nil, fmt.Errorf("registry: count nodes: %w", err)
	}
	if existing >= s.cap {
		return nil, ErrCapReached
	}

	balance, err := s.tokens.Balance(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("registry: check balance: %w", err)
	}
	if balance < s.minBal {
		return nil, ErrInsufficientBalance
	}

	hmacKey, err := randomHMACKey()
	if err != nil {
		return nil, fmt.Errorf("registry: generate hmac key: %w", err)
	}

	tx, err := s.pool.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("registry: begin tx: %w", err)
	}
	defer tx.Rollback()

	// Cap is re-checked immediately before insertion: a request that
	// passed an earlier check but lost a race to fill the last slot is
	// rejected here, under the same transaction as the insert.
	var count int
	if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM nodes`).Scan(&count); err != nil {
		return nil, fmt.Errorf("registry: count nodes: %w", err)
	}
	if count >= s.cap {
		return nil, ErrCapReached
	}

	var uriVal any
	if publicURI != "" {
		uriVal = publicURI
	}

	n := &Node{TntAddr: addr, PublicURI: publicURI, HMACKey: hmacKey}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO nodes (tnt_addr, public_uri, hmac_key)
		VALUES ($1, $2, $3)
		RETURNING tnt_credit, pass_count, fail_count, consecutive_passes,
		          consecutive_fails, audit_score, created_at, updated_at
	`, addr, uriVal, hmacKey).Scan(
		&n.TntCredit, &n.PassCount, &n.FailCount,
		&n.ConsecutivePasses, &n.ConsecutiveFails, &n.AuditScore,
		&n.CreatedAt, &n.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, fmt.Errorf("registry: insert node: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("registry: commit: %w", err)
	}
	return n, nil
}

// Update verifies hmac and updates publicUri (spec §4.11 update).
func (s *Store) Update(ctx context.Context, tntAddr, publicURI, hmacCandidate string, version, minExistingVersion int) (*Node, error) {
	addr, err := normalizeAddr(tntAddr)
	if err != nil {
		return nil, err
	}
	if version < minExistingVersion {
		return nil, ErrVersionTooLow
	}
	if publicURI != "" {
		if err := ValidateURI(publicURI); err != nil {
			return nil, err
		}
	}

	existing, err := s.ByAddr(ctx, addr)
	if err != nil {
		return nil, err
	}
	if !VerifyHMAC(existing.HMACKey, addr, existing.PublicURI, hmacCandidate, s.now()) {
		return nil, ErrAuthFailure
	}

	balance, err := s.tokens.Balance(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("registry: check balance: %w", err)
	}
	if balance < s.minBal {
		return nil, ErrInsufficientBalance
	}

	var uriVal any
	if publicURI != "" {
		uriVal = publicURI
	}

	n := &Node{TntAddr: addr, HMACKey: existing.HMACKey}
	err = s.pool.DB().QueryRowContext(ctx, `
		UPDATE nodes SET public_uri = $2, updated_at = now()
		WHERE tnt_addr = $1
		RETURNING public_uri, tnt_credit, pass_count, fail_count,
		          consecutive_passes, consecutive_fails, audit_score,
		          created_at, updated_at
	`, addr, uriVal).Scan(
		&nullableString{&n.PublicURI},
		&n.TntCredit, &n.PassCount, &n.FailCount,
		&n.ConsecutivePasses, &n.ConsecutiveFails, &n.AuditScore,
		&n.CreatedAt, &n.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, fmt.Errorf("registry: update node: %w", err)
	}
	return n, nil
}

// ByAddr fetches a Node by its normalized tntAddr.
func (s *Store) ByAddr(ctx context.Context, tntAddr string) (*Node, error) {
	n := &Node{TntAddr: tntAddr}
	err := s.pool.DB().QueryRowContext(ctx, `
		SELECT public_uri, hmac_key, tnt_credit, pass_count, fail_count,
		       consecutive_passes, consecutive_fails, audit_score,
		       created_at, updated_at
		FROM nodes WHERE tnt_addr = $1
	`, tntAddr).Scan(
		&nullableString{&n.PublicURI}, &n.HMACKey,
		&n.TntCredit, &n.PassCount, &n.FailCount,
		&n.ConsecutivePasses, &n.ConsecutiveFails, &n.AuditScore,
		&n.CreatedAt, &n.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("registry: fetch node: %w", err)
	}
	return n, nil
}

// RandomHealthy returns up to n Nodes with consecutivePasses > 0, uniformly
// sampled (spec §4.11 randomHealthy).
func (s *Store) RandomHealthy(ctx context.Context, n int) ([]*Node, error) {
	rows, err := s.pool.DB().QueryContext(ctx, `
		SELECT tnt_addr, public_uri, consecutive_passes
		FROM nodes
		WHERE consecutive_passes > 0
		ORDER BY random()
		LIMIT $1
	`, n)
	if err != nil {
		return nil, fmt.Errorf("registry: random healthy query: %w", err)
	}
	defer rows.Close()

	var out []*Node
	for rows.Next() {
		node := &Node{}
		if err := rows.Scan(&node.TntAddr, &nullableString{&node.PublicURI}, &node.ConsecutivePasses); err != nil {
			return nil, fmt.Errorf("registry: scan random healthy row: %w", err)
		}
		out = append(out, node)
	}
	return out, rows.Err()
}

// Blacklist returns the current IP blacklist. The registry does not
// maintain one today; an empty slice satisfies spec §4.11's "may be empty"
// clause while leaving the call site stable if one is introduced later.
func (s *Store) Blacklist(ctx context.Context) ([]string, error) {
	return []string{}, nil
}

// DecrementAuditScore decrements auditScore by 1, floored at 0, for every
// Node whose publicUri is null (spec §4.9 audit round step 3).
func (s *Store) DecrementAuditScore(ctx context.Context) (int64, error) {
	res, err := s.pool.DB().ExecContext(ctx, `
		UPDATE nodes SET audit_score = GREATEST(audit_score - 1, 0), updated_at = now()
		WHERE public_uri IS NULL
	`)
	if err != nil {
		return 0, fmt.Errorf("registry: decrement audit score: %w", err)
	}
	return res.RowsAffected()
}

// WithPublicURI lists Nodes with a non-null publicUri (spec §4.9 audit
// round step 1's join target).
func (s *Store) WithPublicURI(ctx context.Context) ([]*Node, error) {
	rows, err := s.pool.DB().QueryContext(ctx, `
		SELECT tnt_addr, public_uri, hmac_key, audit_score
		FROM nodes WHERE public_uri IS NOT NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("registry: list nodes with public uri: %w", err)
	}
	defer rows.Close()

	var out []*Node
	for rows.Next() {
		node := &Node{}
		if err := rows.Scan(&node.TntAddr, &nullableString{&node.PublicURI}, &node.HMACKey, &node.AuditScore); err != nil {
			return nil, fmt.Errorf("registry: scan node row: %w", err)
		}
		out = append(out, node)
	}
	return out, rows.Err()
}

// ActiveCount returns the count of Nodes with auditScore > 0.
func (s *Store) ActiveCount(ctx context.Context) (int, error) {
	var count int
	err := s.pool.DB().QueryRowContext(ctx, `SELECT count(*) FROM nodes WHERE audit_score > 0`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("registry: active count: %w", err)
	}
	return count, nil
}

func randomHMACKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// isUniqueViolation matches lib/pq's unique_violation SQLSTATE (23505) on
// its stable string form, the same way pkg/block does, to avoid importing
// the driver error type here.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	const code = "23505"
	for i := 0; i+len(code) <= len(msg); i++ {
		if msg[i:i+len(code)] == code {
			return true
		}
	}
	return false
}

// nullableString scans a nullable TEXT column into *string, leaving it "" on
// NULL rather than requiring every caller to juggle sql.NullString.
type nullableString struct {
	dest *string
}

func (n *nullableString) Scan(src any) error {
	if src == nil {
		*n.dest = ""
		return nil
	}
	switch v := src.(type) {
	case string:
		*n.dest = v
	case []byte:
		*n.dest = string(v)
	default:
		return fmt.Errorf("registry: cannot scan %T into string", src)
	}
	return nil
}
