// Package seed reads the crawl's starting channel list.
package seed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Seed is one starting channel. Key is the handle queried by username and
// Group labels every channel discovered from it.
type Seed struct {
	Key   string
	Group string
}

// Load reads seeds from the CSV file at path.
func Load(path string) ([]Seed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	seeds, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	return seeds, nil
}

// Parse reads header-less CSV rows of "handle[,group]". Blank rows and rows
// with an empty handle are skipped; a missing group defaults to the handle.
// Order is preserved and duplicates are kept.
func Parse(r io.Reader) ([]Seed, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var seeds []Seed
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if len(row) == 0 {
			continue
		}
		key := strings.TrimSpace(row[0])
		if key == "" {
			continue
		}
		group := key
		if len(row) > 1 {
			if g := strings.TrimSpace(row[1]); g != "" {
				group = g
			}
		}
		seeds = append(seeds, Seed{Key: key, Group: group})
	}
	return seeds, nil
}
