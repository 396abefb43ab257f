// Package storage provides the shared Postgres connection pool and
// embedded-migration runner backing the Block Store, Node Registry, and
// audit log repositories.
package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/chainpoint-network/calendar-core/pkg/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Pool represents a database client with connection pooling.
type Pool struct {
	db     *sql.DB
	logger *log.Logger
}

// Open creates a new pool and verifies connectivity.
func Open(cfg *config.Config) (*Pool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storage: config cannot be nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("storage: database URL cannot be empty")
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("storage: open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.DatabaseMaxConns)
	db.SetMaxIdleConns(cfg.DatabaseMinConns)
	db.SetConnMaxIdleTime(time.Duration(cfg.DatabaseMaxIdleTime) * time.Second)
	db.SetConnMaxLifetime(time.Duration(cfg.DatabaseMaxLifetime) * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: ping database: %w", err)
	}

	logger := log.New(log.Writer(), "[Storage] ", log.LstdFlags)
	logger.Printf("connected to database (max_conns=%d, min_conns=%d)",
		cfg.DatabaseMaxConns, cfg.DatabaseMinConns)

	return &Pool{db: db, logger: logger}, nil
}

// DB returns the underlying *sql.DB for repository use.
func (p *Pool) DB() *sql.DB {
	return p.db
}

// Close closes the database connection.
func (p *Pool) Close() error {
	if p.db != nil {
		p.logger.Println("closing database connection")
		return p.db.Close()
	}
	return nil
}

// Ping verifies the database connection is alive.
func (p *Pool) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// HealthStatus reports pool health. The /health endpoint serves
// pkg/healthz's status, not this struct.
type HealthStatus struct {
	Healthy            bool          `json:"healthy"`
	Error              string        `json:"error,omitempty"`
	OpenConnections    int           `json:"open_connections"`
	InUse              int           `json:"in_use"`
	Idle               int           `json:"idle"`
	WaitCount          int64         `json:"wait_count"`
	WaitDuration       time.Duration `json:"wait_duration"`
	MaxOpenConnections int           `json:"max_open_connections"`
	CheckedAt          time.Time     `json:"checked_at"`
}

// Health returns database health information.
func (p *Pool) Health(ctx context.Context) *HealthStatus {
	status := &HealthStatus{CheckedAt: time.Now()}

	if err := p.db.PingContext(ctx); err != nil {
		status.Healthy = false
		status.Error = err.Error()
		return status
	}

	stats := p.db.Stats()
	status.Healthy = true
	status.OpenConnections = stats.OpenConnections
	status.InUse = stats.InUse
	status.Idle = stats.Idle
	status.WaitCount = stats.WaitCount
	status.WaitDuration = stats.WaitDuration
	status.MaxOpenConnections = stats.MaxOpenConnections
	return status
}

// Migration represents a single embedded migration file.
type Migration struct {
	Version  string
	Filename string
	SQL      string
}

// MigrateUp runs all pending migrations in version order, each in its own
// transaction, recording itself into schema_migrations.
func (p *Pool) MigrateUp(ctx context.Context) error {
	p.logger.Println("running database migrations...")

	migrations, err := p.loadMigrations()
	if err != nil {
		return fmt.Errorf("storage: load migrations: %w", err)
	}

	applied, err := p.appliedMigrations(ctx)
	if err != nil {
		if !strings.Contains(err.Error(), "does not exist") {
			return fmt.Errorf("storage: load applied migrations: %w", err)
		}
		applied = make(map[string]bool)
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		p.logger.Printf("  applying %s...", m.Version)
		if err := p.applyMigration(ctx, m); err != nil {
			return fmt.Errorf("storage: apply migration %s: %w", m.Version, err)
		}
	}

	p.logger.Println("migrations complete")
	return nil
}

func (p *Pool) loadMigrations() ([]Migration, error) {
	var migrations []Migration

	err := fs.WalkDir(migrationsFS, "migrations", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".sql") {
			return nil
		}
		content, err := migrationsFS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		migrations = append(migrations, Migration{
			Version:  strings.TrimSuffix(d.Name(), ".sql"),
			Filename: d.Name(),
			SQL:      string(content),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return migrations, nil
}

func (p *Pool) appliedMigrations(ctx context.Context) (map[string]bool, error) {
	rows, err := p.db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func (p *Pool) applyMigration(ctx context.Context, m Migration) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return fmt.Errorf("execute migration SQL: %w", err)
	}
	return tx.Commit()
}
