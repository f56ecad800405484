package corpus

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Row is one dialogue exchange: a line and the reply to it.
type Row struct {
	Line  string
	Reply string
}

// Lines yields both sides of every row, line first.
func Lines(rows []Row) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, r := range rows {
			if !yield(r.Line) || !yield(r.Reply) {
				return
			}
		}
	}
}

// Load reads rows from a CSV stream of (line, reply) records. A leading
// "line,reply" header is skipped. A record with a single field gets an empty
// reply; fields past the second are ignored. loadFirst > 0 stops after that
// many rows.
func Load(r io.Reader, loadFirst int) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	var rows []Row
	for first := true; loadFirst <= 0 || len(rows) < loadFirst; first = false {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if first && isHeader(rec) {
			continue
		}

		var row Row
		switch len(rec) {
		case 0:
			continue
		case 1:
			row.Line = rec[0]
		default:
			row.Line, row.Reply = rec[0], rec[1]
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func isHeader(rec []string) bool {
	return len(rec) >= 2 &&
		strings.EqualFold(strings.TrimSpace(rec[0]), "line") &&
		strings.EqualFold(strings.TrimSpace(rec[1]), "reply")
}

// LoadFile reads rows from a CSV file.
func LoadFile(path string, loadFirst int) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := Load(f, loadFirst)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}

// LoadFiles reads several CSV files concurrently and concatenates their rows
// in argument order, keeping at most loadFirst rows overall when loadFirst > 0.
func LoadFiles(ctx context.Context, loadFirst int, paths ...string) ([]Row, error) {
	parts := make([][]Row, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rows, err := LoadFile(path, loadFirst)
			if err != nil {
				return err
			}
			parts[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var rows []Row
	for _, part := range parts {
		rows = append(rows, part...)
		if loadFirst > 0 && len(rows) >= loadFirst {
			return rows[:loadFirst], nil
		}
	}
	return rows, nil
}
