package block

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/chainpoint-network/calendar-core/pkg/metrics"
	"github.com/chainpoint-network/calendar-core/pkg/signer"
	"github.com/chainpoint-network/calendar-core/pkg/storage"
)

// Store is the single-writer append log backed by Postgres.
type Store struct {
	pool   *storage.Pool
	signer *signer.Signer
	now    func() time.Time
}

// NewStore constructs a Store. Appends are signed with the given Signer.
func NewStore(pool *storage.Pool, sgn *signer.Signer) *Store {
	return &Store{pool: pool, signer: sgn, now: time.Now}
}

// Append builds the next block from in, chaining it to the store's current
// tip, and persists it inside a single transaction that also re-reads the
// tip under a row lock — this guards against a concurrent writer slipping
// in even if the caller's C4 lock were somehow lost mid-append. The id and
// prevHash are derived from that tip, so the chain cannot break here; the
// insert fails with ErrIDExists if another row already holds the id.
func (s *Store) Append(ctx context.Context, in NewBlock) (*Block, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	tx, err := s.pool.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("block: begin append transaction: %w", err)
	}
	defer tx.Rollback()

	tip, err := currentTip(ctx, tx, in.StackID)
	if err != nil && err != ErrEmptyStore {
		return nil, fmt.Errorf("block: read tip: %w", err)
	}

	b := &Block{
		Time:    s.now().Unix(),
		Version: schemaVersion,
		StackID: in.StackID,
		Type:    in.Type,
		DataID:  in.DataID,
		DataVal: in.DataVal,
	}
	if err == ErrEmptyStore {
		b.ID = 0
		b.PrevHash = GenesisPrevHash
	} else {
		b.ID = tip.ID + 1
		b.PrevHash = tip.Hash
	}

	hash, err := computeHash(b)
	if err != nil {
		return nil, fmt.Errorf("block: compute hash: %w", err)
	}
	b.Hash = hash
	b.Sig = s.signer.Sign(hash)

	const query = `
		INSERT INTO blocks (id, stack_id, time, version, type, data_id, data_val, prev_hash, hash, sig)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err = tx.ExecContext(ctx, query,
		b.ID, b.StackID, b.Time, b.Version, string(b.Type), b.DataID, b.DataVal, b.PrevHash, b.Hash, b.Sig)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrIDExists
		}
		return nil, fmt.Errorf("block: insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("block: commit append: %w", err)
	}

	metrics.BlocksAppended.WithLabelValues(string(b.Type)).Inc()
	return b, nil
}

// currentTip reads the highest-id block for stackId within tx, locking the
// row so a concurrent append (should one slip past the external lock)
// blocks rather than races.
func currentTip(ctx context.Context, tx *sql.Tx, stackID string) (Tip, error) {
	const query = `
		SELECT id, hash FROM blocks
		WHERE stack_id = $1
		ORDER BY id DESC
		LIMIT 1
		FOR UPDATE`
	var t Tip
	err := tx.QueryRowContext(ctx, query, stackID).Scan(&t.ID, &t.Hash)
	if err == sql.ErrNoRows {
		return Tip{}, ErrEmptyStore
	}
	if err != nil {
		return Tip{}, err
	}
	return t, nil
}

// Tip returns the current highest-id block's (id, hash) for stackId.
func (s *Store) Tip(ctx context.Context, stackID string) (Tip, error) {
	const query = `
		SELECT id, hash FROM blocks
		WHERE stack_id = $1
		ORDER BY id DESC
		LIMIT 1`
	var t Tip
	err := s.pool.DB().QueryRowContext(ctx, query, stackID).Scan(&t.ID, &t.Hash)
	if err == sql.ErrNoRows {
		return Tip{}, ErrEmptyStore
	}
	if err != nil {
		return Tip{}, fmt.Errorf("block: read tip: %w", err)
	}
	return t, nil
}

// ByID retrieves a single block by stackId and id.
func (s *Store) ByID(ctx context.Context, stackID string, id int64) (*Block, error) {
	const query = `
		SELECT id, stack_id, time, version, type, data_id, data_val, prev_hash, hash, sig
		FROM blocks WHERE stack_id = $1 AND id = $2`
	b := &Block{}
	var typ string
	err := s.pool.DB().QueryRowContext(ctx, query, stackID, id).Scan(
		&b.ID, &b.StackID, &b.Time, &b.Version, &typ, &b.DataID, &b.DataVal, &b.PrevHash, &b.Hash, &b.Sig)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("block: byId: %w", err)
	}
	b.Type = Type(typ)
	return b, nil
}

// Scan returns blocks for stackId within idRange (inclusive), optionally
// filtered to types, ordered by id ascending. A nil/empty types filters
// nothing.
func (s *Store) Scan(ctx context.Context, stackID string, idRange IDRange, types []Type) ([]*Block, error) {
	query := `
		SELECT id, stack_id, time, version, type, data_id, data_val, prev_hash, hash, sig
		FROM blocks WHERE stack_id = $1 AND id >= $2`
	args := []any{stackID, idRange.MinID}

	if idRange.MaxID > 0 {
		query += fmt.Sprintf(" AND id <= $%d", len(args)+1)
		args = append(args, idRange.MaxID)
	}
	if len(types) > 0 {
		placeholders := ""
		for i, t := range types {
			if i > 0 {
				placeholders += ", "
			}
			placeholders += fmt.Sprintf("$%d", len(args)+1)
			args = append(args, string(t))
		}
		query += fmt.Sprintf(" AND type IN (%s)", placeholders)
	}
	query += " ORDER BY id ASC"

	rows, err := s.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("block: scan: %w", err)
	}
	defer rows.Close()

	var blocks []*Block
	for rows.Next() {
		b := &Block{}
		var typ string
		if err := rows.Scan(&b.ID, &b.StackID, &b.Time, &b.Version, &typ, &b.DataID, &b.DataVal, &b.PrevHash, &b.Hash, &b.Sig); err != nil {
			return nil, fmt.Errorf("block: scan row: %w", err)
		}
		b.Type = Type(typ)
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}

// LastOfType returns the most recent block of the given type for stackId,
// used by the anchor scheduler to find the last btc-a block.
func (s *Store) LastOfType(ctx context.Context, stackID string, t Type) (*Block, error) {
	const query = `
		SELECT id, stack_id, time, version, type, data_id, data_val, prev_hash, hash, sig
		FROM blocks WHERE stack_id = $1 AND type = $2
		ORDER BY id DESC LIMIT 1`
	b := &Block{}
	var typ string
	err := s.pool.DB().QueryRowContext(ctx, query, stackID, string(t)).Scan(
		&b.ID, &b.StackID, &b.Time, &b.Version, &typ, &b.DataID, &b.DataVal, &b.PrevHash, &b.Hash, &b.Sig)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("block: lastOfType: %w", err)
	}
	b.Type = Type(typ)
	return b, nil
}

func isUniqueViolation(err error) bool {
	// lib/pq surfaces unique_violation as SQLSTATE 23505; avoid importing
	// the driver error type here and match on its stable string form.
	msg := err.Error()
	return len(msg) > 0 && containsCode23505(msg)
}

func containsCode23505(msg string) bool {
	const code = "23505"
	for i := 0; i+len(code) <= len(msg); i++ {
		if msg[i:i+len(code)] == code {
			return true
		}
	}
	return false
}
