package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/internal/evaluate"
	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/internal/simjoin"
	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/internal/storage/memory"
	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/internal/storage/postgres"
	pg "github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/pkg/resilience"
)

// store is the catalog a command runs against.
type store struct {
	catalog simjoin.Catalog
	pairs   evaluate.PairSource
	memory  *memory.Catalog
	close   func() error
}

func (c *cli) openStore(ctx context.Context) (*store, error) {
	if c.csvMode {
		mem := memory.NewCatalog()
		return &store{catalog: mem, pairs: mem, memory: mem, close: func() error { return nil }}, nil
	}
	db, err := pg.New(c.cfg.Postgres)
	if err != nil {
		return nil, err
	}
	st := postgres.NewStore(db, nil, resilience.RetryConfig{})
	return &store{catalog: st, pairs: st, close: db.Close}, nil
}

func (s *store) Close() error { return s.close() }

// Tables CSV inputs are imported as. Each input role gets its own name so
// two files never overwrite each other.
const (
	leftTable     = "csv_left"
	rightTable    = "csv_right"
	truthTable    = "csv_truth"
	computedTable = "csv_computed"
)

// samePath reports whether two CSV arguments name the same file.
func samePath(a, b string) bool {
	return filepath.Clean(a) == filepath.Clean(b)
}

// importCSV loads the CSV file at path into the in-memory catalog as table
// name and returns name. The first record is the header. Importing into a
// name that is already taken is an error.
func (s *store) importCSV(path, name string) (string, error) {
	if s.memory == nil {
		return "", fmt.Errorf("csv import requires --csv")
	}
	if _, ok := s.memory.Table(name); ok {
		return "", fmt.Errorf("importing %s: table %q already loaded", path, name)
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	if err := loadCSV(s.memory, name, f); err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return name, nil
}

func loadCSV(catalog *memory.Catalog, name string, r io.Reader) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 0
	records, err := cr.ReadAll()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("missing header row")
	}
	return catalog.Put(name, records[0], records[1:])
}
