// Copyright 2025 Certen Protocol
//
// Integration tests for the Block Store. Requires a Postgres instance;
// skipped entirely when CALENDAR_TEST_DB is unset, matching the teacher's
// pkg/database/proof_artifact_repository_test.go TestMain pattern.
package block

import (
	"context"
	"os"
	"testing"

	"github.com/chainpoint-network/calendar-core/pkg/config"
	"github.com/chainpoint-network/calendar-core/pkg/signer"
	"github.com/chainpoint-network/calendar-core/pkg/storage"
)

var testPool *storage.Pool

func TestMain(m *testing.M) {
	dsn := os.Getenv("CALENDAR_TEST_DB")
	if dsn == "" {
		os.Exit(0)
	}

	cfg := &config.Config{DatabaseURL: dsn, DatabaseMaxConns: 4, DatabaseMinConns: 1}
	pool, err := storage.Open(cfg)
	if err != nil {
		panic("connect test database: " + err.Error())
	}
	if err := pool.MigrateUp(context.Background()); err != nil {
		panic("migrate test database: " + err.Error())
	}
	testPool = pool

	code := m.Run()
	pool.Close()
	os.Exit(code)
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	if testPool == nil {
		t.Skip("CALENDAR_TEST_DB not configured")
	}
	keyFile := t.TempDir() + "/key.hex"
	sgn, err := signer.LoadOrGenerate(keyFile)
	if err != nil {
		t.Fatalf("LoadOrGenerate: %v", err)
	}
	return NewStore(testPool, sgn)
}

func TestAppendBuildsGenesisThenChains(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	stackID := "test-" + t.Name()

	gen, err := s.Append(ctx, NewBlock{StackID: stackID, Type: TypeGenesis})
	if err != nil {
		t.Fatalf("append genesis: %v", err)
	}
	if gen.ID != 0 || gen.PrevHash != GenesisPrevHash {
		t.Fatalf("genesis block malformed: %+v", gen)
	}

	next, err := s.Append(ctx, NewBlock{StackID: stackID, Type: TypeCal, DataVal: "aabb"})
	if err != nil {
		t.Fatalf("append cal: %v", err)
	}
	if next.ID != 1 {
		t.Fatalf("expected id=1, got %d", next.ID)
	}
	if next.PrevHash != gen.Hash {
		t.Fatalf("prevHash invariant violated: got %s want %s", next.PrevHash, gen.Hash)
	}

	tip, err := s.Tip(ctx, stackID)
	if err != nil {
		t.Fatalf("tip: %v", err)
	}
	if tip.ID != 1 || tip.Hash != next.Hash {
		t.Fatalf("tip mismatch: %+v", tip)
	}
}

func TestScanFiltersByTypeAndRange(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	stackID := "test-" + t.Name()

	if _, err := s.Append(ctx, NewBlock{StackID: stackID, Type: TypeGenesis}); err != nil {
		t.Fatalf("append genesis: %v", err)
	}
	if _, err := s.Append(ctx, NewBlock{StackID: stackID, Type: TypeCal, DataVal: "aa"}); err != nil {
		t.Fatalf("append cal: %v", err)
	}
	if _, err := s.Append(ctx, NewBlock{StackID: stackID, Type: TypeBTCAnchor}); err != nil {
		t.Fatalf("append btc-a: %v", err)
	}

	blocks, err := s.Scan(ctx, stackID, IDRange{MinID: 0}, []Type{TypeCal})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(blocks) != 1 || blocks[0].Type != TypeCal {
		t.Fatalf("expected exactly one cal block, got %+v", blocks)
	}
}

func TestLastOfTypeReturnsMostRecent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	stackID := "test-" + t.Name()

	if _, err := s.Append(ctx, NewBlock{StackID: stackID, Type: TypeGenesis}); err != nil {
		t.Fatalf("append genesis: %v", err)
	}
	if _, err := s.Append(ctx, NewBlock{StackID: stackID, Type: TypeBTCAnchor}); err != nil {
		t.Fatalf("append btc-a 1: %v", err)
	}
	second, err := s.Append(ctx, NewBlock{StackID: stackID, Type: TypeBTCAnchor})
	if err != nil {
		t.Fatalf("append btc-a 2: %v", err)
	}

	last, err := s.LastOfType(ctx, stackID, TypeBTCAnchor)
	if err != nil {
		t.Fatalf("lastOfType: %v", err)
	}
	if last.ID != second.ID {
		t.Fatalf("expected id %d, got %d", second.ID, last.ID)
	}
}

func TestLastOfTypeNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	stackID := "test-" + t.Name()

	if _, err := s.Append(ctx, NewBlock{StackID: stackID, Type: TypeGenesis}); err != nil {
		t.Fatalf("append genesis: %v", err)
	}
	if _, err := s.LastOfType(ctx, stackID, TypeReward); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
