// Package memory is an in-process relational catalog. It backs the CLI's CSV
// mode and tests, and publishes join results with the same replace-or-nothing
// semantics as the Postgres store.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/internal/evaluate"
	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/internal/simjoin"
	apperrors "github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/pkg/errors"
)

// Table is a named relation of string columns.
type Table struct {
	Columns []string
	Rows    [][]string
}

func (t *Table) column(name string) (int, error) {
	for i, c := range t.Columns {
		if c == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: no column %q", apperrors.ErrInvalidInput, name)
}

// Catalog holds tables by name. It is safe for concurrent use.
type Catalog struct {
	mu     sync.RWMutex
	tables map[string]*Table
	logger *slog.Logger
}

func NewCatalog() *Catalog {
	return &Catalog{
		tables: make(map[string]*Table),
		logger: slog.Default().With("component", "memory-catalog"),
	}
}

// Put stores a table, replacing any table of the same name.
func (c *Catalog) Put(name string, columns []string, rows [][]string) error {
	for i, row := range rows {
		if len(row) != len(columns) {
			return fmt.Errorf("%w: row %d of %s has %d values for %d columns", apperrors.ErrInvalidInput, i, name, len(row), len(columns))
		}
	}
	c.mu.Lock()
	c.tables[name] = &Table{Columns: columns, Rows: rows}
	c.mu.Unlock()
	return nil
}

// Table returns a copy of the named table.
func (c *Catalog) Table(name string) (Table, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tables[name]
	if !ok {
		return Table{}, false
	}
	rows := make([][]string, len(t.Rows))
	copy(rows, t.Rows)
	return Table{Columns: append([]string(nil), t.Columns...), Rows: rows}, true
}

// Names lists the stored tables in order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.tables))
	for name := range c.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Drop removes a table and reports whether it existed.
func (c *Catalog) Drop(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.tables[name]
	delete(c.tables, name)
	return ok
}

// Load projects a table onto (keyAttr, joinAttr).
func (c *Catalog) Load(ctx context.Context, name, keyAttr, joinAttr string) (simjoin.Collection, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tables[name]
	if !ok {
		return simjoin.Collection{}, fmt.Errorf("%w: %s", apperrors.ErrCollectionNotFound, name)
	}
	ki, err := t.column(keyAttr)
	if err != nil {
		return simjoin.Collection{}, err
	}
	vi, err := t.column(joinAttr)
	if err != nil {
		return simjoin.Collection{}, err
	}
	coll := simjoin.Collection{Name: name, KeyAttr: keyAttr, JoinAttr: joinAttr, Rows: make([]simjoin.Row, len(t.Rows))}
	for i, row := range t.Rows {
		coll.Rows[i] = simjoin.Row{Key: row[ki], Value: row[vi]}
	}
	return coll, nil
}

// Publish replaces the relation named rel.Name in one step. A done ctx
// leaves the catalog untouched.
func (c *Catalog) Publish(ctx context.Context, joinID string, rel simjoin.Relation) error {
	if rel.Columns[0] == rel.Columns[1] {
		return fmt.Errorf("%w: duplicate column %q", apperrors.ErrInvalidInput, rel.Columns[0])
	}
	rows := make([][]string, len(rel.Pairs))
	for i, p := range rel.Pairs {
		rows[i] = []string{p.Left, p.Right}
	}
	c.mu.Lock()
	if err := ctx.Err(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.tables[rel.Name] = &Table{Columns: []string{rel.Columns[0], rel.Columns[1]}, Rows: rows}
	c.mu.Unlock()
	c.logger.Debug("relation published", "join_id", joinID, "relation", rel.Name, "rows", len(rows))
	return nil
}

// LoadPairs reads two key columns of a stored relation.
func (c *Catalog) LoadPairs(ctx context.Context, relation, leftCol, rightCol string) ([]evaluate.Pair, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tables[relation]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrCollectionNotFound, relation)
	}
	li, err := t.column(leftCol)
	if err != nil {
		return nil, err
	}
	ri, err := t.column(rightCol)
	if err != nil {
		return nil, err
	}
	pairs := make([]evaluate.Pair, len(t.Rows))
	for i, row := range t.Rows {
		pairs[i] = evaluate.Pair{A: row[li], B: row[ri]}
	}
	return pairs, nil
}
