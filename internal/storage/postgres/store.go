// Package postgres implements the join catalog on PostgreSQL. Collections
// are read with plain projections and results are published by bulk-loading
// a staging table and renaming it over the output inside one transaction, so
// readers see either the previous relation or the complete new one.
package postgres

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/internal/evaluate"
	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/internal/simjoin"
	apperrors "github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/pkg/errors"
	pg "github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/pkg/resilience"
)

const (
	pqUndefinedTable  = "42P01"
	pqUndefinedColumn = "42703"

	stagingPrefix = "simjoin_stage_"
)

// stagingName derives the staging table of a join from a digest of its ID.
// Join IDs are caller supplied and unbounded, while PostgreSQL truncates
// identifiers past 63 bytes; the digest keeps the name at 46 bytes.
func stagingName(joinID string) string {
	sum := sha256.Sum256([]byte(joinID))
	return stagingPrefix + hex.EncodeToString(sum[:16])
}

// Store reads collections from and publishes relations to PostgreSQL.
type Store struct {
	client  *pg.Client
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig
	logger  *slog.Logger
}

// NewStore wraps client. A nil breaker gets a default one.
func NewStore(client *pg.Client, breaker *resilience.CircuitBreaker, retry resilience.RetryConfig) *Store {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker("postgres", resilience.CircuitBreakerConfig{})
	}
	return &Store{
		client:  client,
		breaker: breaker,
		retry:   retry,
		logger:  slog.Default().With("component", "postgres-store"),
	}
}

// Load projects a table onto (keyAttr, joinAttr). NULL attributes load as
// empty strings.
func (s *Store) Load(ctx context.Context, name, keyAttr, joinAttr string) (simjoin.Collection, error) {
	query := fmt.Sprintf("SELECT %s::text, coalesce(%s::text, '') FROM %s",
		pq.QuoteIdentifier(keyAttr), pq.QuoteIdentifier(joinAttr), quoteQualified(name))

	coll := simjoin.Collection{Name: name, KeyAttr: keyAttr, JoinAttr: joinAttr}
	start := time.Now()
	err := s.query(ctx, "load "+name, query, func(rows *sql.Rows) error {
		coll.Rows = coll.Rows[:0]
		for rows.Next() {
			var key sql.NullString
			var value string
			if err := rows.Scan(&key, &value); err != nil {
				return err
			}
			coll.Rows = append(coll.Rows, simjoin.Row{Key: key.String, Value: value})
		}
		return rows.Err()
	})
	if err != nil {
		return simjoin.Collection{}, s.classify(name, err)
	}
	s.logger.Debug("collection loaded", "collection", name, "rows", len(coll.Rows), "duration", time.Since(start))
	return coll, nil
}

// LoadPairs reads two columns of a stored relation.
func (s *Store) LoadPairs(ctx context.Context, relation, leftCol, rightCol string) ([]evaluate.Pair, error) {
	query := fmt.Sprintf("SELECT %s::text, %s::text FROM %s",
		pq.QuoteIdentifier(leftCol), pq.QuoteIdentifier(rightCol), quoteQualified(relation))

	var pairs []evaluate.Pair
	err := s.query(ctx, "load pairs "+relation, query, func(rows *sql.Rows) error {
		pairs = pairs[:0]
		for rows.Next() {
			var a, b sql.NullString
			if err := rows.Scan(&a, &b); err != nil {
				return err
			}
			pairs = append(pairs, evaluate.Pair{A: a.String, B: b.String})
		}
		return rows.Err()
	})
	if err != nil {
		return nil, s.classify(relation, err)
	}
	return pairs, nil
}

// Publish replaces rel.Name with the pairs of rel. The staging table is
// named after the join so concurrent joins never collide.
func (s *Store) Publish(ctx context.Context, joinID string, rel simjoin.Relation) error {
	schema, table := splitQualified(rel.Name)
	staging := stagingName(joinID)
	qualifiedStaging := pq.QuoteIdentifier(staging)
	if schema != "" {
		qualifiedStaging = pq.QuoteIdentifier(schema) + "." + qualifiedStaging
	}

	err := s.breaker.Execute(func() error {
		return s.client.InTx(ctx, func(tx *sql.Tx) error {
			create := fmt.Sprintf("CREATE TABLE %s (%s text NOT NULL, %s text NOT NULL)",
				qualifiedStaging, pq.QuoteIdentifier(rel.Columns[0]), pq.QuoteIdentifier(rel.Columns[1]))
			if _, err := tx.ExecContext(ctx, create); err != nil {
				return fmt.Errorf("creating staging table: %w", err)
			}
			if err := copyPairs(ctx, tx, schema, staging, rel); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteQualified(rel.Name)); err != nil {
				return fmt.Errorf("dropping previous %s: %w", rel.Name, err)
			}
			rename := fmt.Sprintf("ALTER TABLE %s RENAME TO %s", qualifiedStaging, pq.QuoteIdentifier(table))
			if _, err := tx.ExecContext(ctx, rename); err != nil {
				return fmt.Errorf("renaming staging table: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("%w: publishing %s: %w", apperrors.ErrStorage, rel.Name, err)
	}
	s.logger.Info("relation published", "join_id", joinID, "relation", rel.Name, "rows", len(rel.Pairs))
	return nil
}

func copyPairs(ctx context.Context, tx *sql.Tx, schema, staging string, rel simjoin.Relation) error {
	copyStmt := pq.CopyIn(staging, rel.Columns[0], rel.Columns[1])
	if schema != "" {
		copyStmt = pq.CopyInSchema(schema, staging, rel.Columns[0], rel.Columns[1])
	}
	stmt, err := tx.PrepareContext(ctx, copyStmt)
	if err != nil {
		return fmt.Errorf("preparing copy: %w", err)
	}
	defer stmt.Close()
	for _, p := range rel.Pairs {
		if _, err := stmt.ExecContext(ctx, p.Left, p.Right); err != nil {
			return fmt.Errorf("copying pair (%s, %s): %w", p.Left, p.Right, err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		return fmt.Errorf("flushing copy: %w", err)
	}
	return nil
}

// query runs a read through the breaker with retries. Missing tables and
// columns are not retried.
func (s *Store) query(ctx context.Context, op, query string, scan func(*sql.Rows) error) error {
	return resilience.Retry(ctx, op, s.retry, func() error {
		return s.breaker.Execute(func() error {
			rows, err := s.client.DB.QueryContext(ctx, query)
			if err != nil {
				if isUndefined(err) {
					return resilience.Permanent(err)
				}
				return err
			}
			defer rows.Close()
			return scan(rows)
		})
	})
}

func (s *Store) classify(name string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUndefinedTable:
			return fmt.Errorf("%w: %s", apperrors.ErrCollectionNotFound, name)
		case pqUndefinedColumn:
			return fmt.Errorf("%w: %s: %s", apperrors.ErrInvalidInput, name, pqErr.Message)
		}
	}
	return fmt.Errorf("%w: reading %s: %w", apperrors.ErrStorage, name, err)
}

func isUndefined(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && (pqErr.Code == pqUndefinedTable || pqErr.Code == pqUndefinedColumn)
}

func splitQualified(name string) (schema, table string) {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

// quoteQualified quotes each dot-separated part of a relation name.
func quoteQualified(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = pq.QuoteIdentifier(p)
	}
	return strings.Join(parts, ".")
}
