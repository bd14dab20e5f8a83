package dataset

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Store resolves catalog names to files under one data directory.
type Store struct {
	dir string
}

// Open returns a store rooted at dir. No I/O happens until Load.
func Open(dir string) *Store {
	return &Store{dir: dir}
}

// Load reads one cataloged table and enforces its required columns.
func (s *Store) Load(ctx context.Context, name string) (*Table, error) {
	desc, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(s.dir, desc.File)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dataset %s: %w", desc.Name, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading dataset %s: %w", desc.Name, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("dataset %s is empty", desc.Name)
	}

	header := records[0]
	table := &Table{Name: desc.Name, File: desc.File, Columns: header}
	for _, col := range desc.Required {
		if !table.HasColumn(col) {
			return nil, fmt.Errorf("dataset %s missing required column %q", desc.Name, col)
		}
	}

	table.Rows = make([]Row, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(Row, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// LoadAll reads several tables in parallel. Any single failure fails the
// whole load; partial dataset views are never handed to the engine.
func (s *Store) LoadAll(ctx context.Context, names ...string) (map[string]*Table, error) {
	out := make(map[string]*Table, len(names))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	for _, name := range names {
		name := name
		g.Go(func() error {
			table, err := s.Load(ctx, name)
			if err != nil {
				return err
			}
			mu.Lock()
			out[name] = table
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
