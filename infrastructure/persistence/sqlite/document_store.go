// Package sqlite keeps the synergy graph in a local SQLite file. It serves
// single-node deployments and offline runs where DynamoDB is not available.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"synergy-backend/application/ports"
	"synergy-backend/domain/core/entities"
	"synergy-backend/domain/core/valueobjects"
	"synergy-backend/pkg/retry"
)

// MemoryPath opens a private in-memory database
const MemoryPath = ":memory:"

// DocumentStore implements ports.DocumentStore on a SQLite database.
// Each mutation group is applied in one transaction.
type DocumentStore struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
}

// Open opens (or creates) the database at path and runs migrations
func Open(ctx context.Context, path string, logger *zap.Logger) (*DocumentStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; an in-memory database also lives on a single connection.
	db.SetMaxOpenConns(1)

	store := &DocumentStore{db: db, path: path, logger: logger.Named("sqlite")}
	if err := store.configurePragmas(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return store, nil
}

// NewDialer returns a StoreDialer opening the database at path once and
// handing out the same store on later dials. A store that no longer answers
// a ping (for example after Close) is reopened.
func NewDialer(path string, logger *zap.Logger) ports.StoreDialer {
	var (
		mu     sync.Mutex
		opened *DocumentStore
	)
	return func(ctx context.Context) (ports.DocumentStore, error) {
		mu.Lock()
		defer mu.Unlock()
		if opened != nil {
			if err := opened.Ping(ctx); err == nil {
				return opened, nil
			}
			opened.Close()
			opened = nil
		}
		store, err := Open(ctx, path, logger)
		if err != nil {
			return nil, err
		}
		opened = store
		return store, nil
	}
}

func (s *DocumentStore) configurePragmas(ctx context.Context) error {
	pragmas := []string{
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	if s.path != MemoryPath {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}
	for _, p := range pragmas {
		if _, err := s.db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("pragma %q: %w", p, err)
		}
	}
	return nil
}

// ApplyMutations writes one group in a single transaction
func (s *DocumentStore) ApplyMutations(ctx context.Context, mutations []ports.Mutation) error {
	if len(mutations) == 0 {
		return nil
	}
	for _, m := range mutations {
		if m.Kind != ports.MutationUpsert && m.Kind != ports.MutationDelete {
			return fmt.Errorf("unknown mutation kind: %s", m.Kind)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(fmt.Errorf("begin transaction: %w", err))
	}
	defer tx.Rollback() //nolint:errcheck

	for _, m := range mutations {
		switch m.Kind {
		case ports.MutationUpsert:
			_, err = tx.ExecContext(ctx, `
				INSERT INTO synergy_edges (source, target, score, last_updated)
				VALUES (?, ?, ?, ?)
				ON CONFLICT (source, target) DO UPDATE SET
					score = excluded.score,
					last_updated = excluded.last_updated
			`, m.Edge.Source.String(), m.Edge.Target.String(), m.Edge.Score.Float64(),
				m.Edge.LastUpdated.UTC().Format(time.RFC3339Nano))
		case ports.MutationDelete:
			_, err = tx.ExecContext(ctx,
				"DELETE FROM synergy_edges WHERE source = ? AND target = ?",
				m.Key.Source.String(), m.Key.Target.String())
		}
		if err != nil {
			return classify(fmt.Errorf("%s %s: %w", m.Kind, m.Key, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return classify(fmt.Errorf("commit %d mutations: %w", len(mutations), err))
	}
	return nil
}

// LoadEdges returns every stored edge scoring at least minScore
func (s *DocumentStore) LoadEdges(ctx context.Context, minScore float64) ([]entities.SynergyEdge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source, target, score, last_updated
		FROM synergy_edges
		WHERE score >= ?
		ORDER BY source, target
	`, minScore)
	if err != nil {
		return nil, classify(fmt.Errorf("query edges: %w", err))
	}
	defer rows.Close()

	var edges []entities.SynergyEdge
	for rows.Next() {
		var source, target, updated string
		var score float64
		if err := rows.Scan(&source, &target, &score, &updated); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		edge, err := toEdge(source, target, score, updated)
		if err != nil {
			s.logger.Warn("Skipping malformed edge row",
				zap.String("source", source),
				zap.String("target", target),
				zap.Error(err))
			continue
		}
		edges = append(edges, edge)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(fmt.Errorf("iterate edges: %w", err))
	}
	return edges, nil
}

// Ping verifies the database is open
func (s *DocumentStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return classify(fmt.Errorf("ping sqlite %s: %w", s.path, err))
	}
	return nil
}

// Close releases the database
func (s *DocumentStore) Close() error {
	return s.db.Close()
}

func toEdge(source, target string, score float64, updated string) (entities.SynergyEdge, error) {
	src, err := valueobjects.NewDomainID(source)
	if err != nil {
		return entities.SynergyEdge{}, err
	}
	tgt, err := valueobjects.NewDomainID(target)
	if err != nil {
		return entities.SynergyEdge{}, err
	}
	s, err := valueobjects.NewScore(score)
	if err != nil {
		return entities.SynergyEdge{}, err
	}
	at, err := time.Parse(time.RFC3339Nano, updated)
	if err != nil {
		return entities.SynergyEdge{}, fmt.Errorf("invalid last_updated %q: %w", updated, err)
	}
	return entities.NewSynergyEdge(src, tgt, s, at)
}

// classify marks lock contention as transient so the connection manager retries it
func classify(err error) error {
	var sqlErr *sqlite.Error
	if errors.As(err, &sqlErr) {
		switch sqlErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return retry.Transient(err)
		}
	}
	return err
}

var _ ports.DocumentStore = (*DocumentStore)(nil)
