// Package sheets exposes a range-addressed cell grid backed by Google Sheets,
// plus an in-memory grid with the same semantics.
package sheets

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Grid is the subset of a spreadsheet the record store relies on. Ranges use
// A1 notation without a sheet prefix ("A:R", "B2:R2", "E5:K5").
type Grid interface {
	// Read returns the rows of rng. Trailing empty cells and rows are omitted,
	// matching the Sheets values API.
	Read(ctx context.Context, rng string) ([][]string, error)
	// Write overwrites the cells of rng starting at its top-left corner.
	Write(ctx context.Context, rng string, rows [][]string) error
	// BatchWrite applies several range writes in one round trip.
	BatchWrite(ctx context.Context, updates []Update) error
	// Append adds row directly below the last non-empty row of the table in rng.
	Append(ctx context.Context, rng string, row []string) error
}

// Update is a single range write inside a batch.
type Update struct {
	Range string
	Rows  [][]string
}

// Range is a parsed A1 range. Row bounds are 1-based; zero means unbounded.
type Range struct {
	StartCol int
	EndCol   int
	StartRow int
	EndRow   int
}

// ParseRange parses "B:R", "B2:R2" or a single cell "B1".
func ParseRange(rng string) (Range, error) {
	parts := strings.Split(strings.TrimSpace(rng), ":")
	if len(parts) == 0 || len(parts) > 2 || parts[0] == "" {
		return Range{}, fmt.Errorf("invalid range %q", rng)
	}
	startCol, startRow, err := parseCell(parts[0])
	if err != nil {
		return Range{}, fmt.Errorf("invalid range %q: %w", rng, err)
	}
	endCol, endRow := startCol, startRow
	if len(parts) == 2 {
		endCol, endRow, err = parseCell(parts[1])
		if err != nil {
			return Range{}, fmt.Errorf("invalid range %q: %w", rng, err)
		}
	}
	if endCol < startCol || (endRow != 0 && endRow < startRow) {
		return Range{}, fmt.Errorf("invalid range %q: end before start", rng)
	}
	return Range{StartCol: startCol, EndCol: endCol, StartRow: startRow, EndRow: endRow}, nil
}

func parseCell(ref string) (col int, row int, err error) {
	i := 0
	for i < len(ref) && ref[i] >= 'A' && ref[i] <= 'Z' {
		col = col*26 + int(ref[i]-'A'+1)
		i++
	}
	if i == 0 {
		return 0, 0, fmt.Errorf("missing column in %q", ref)
	}
	if i < len(ref) {
		row, err = strconv.Atoi(ref[i:])
		if err != nil || row < 1 {
			return 0, 0, fmt.Errorf("bad row in %q", ref)
		}
	}
	return col - 1, row, nil
}

// ColumnLetter converts a 0-based column index into its A1 letter.
func ColumnLetter(idx int) string {
	var b []byte
	for n := idx + 1; n > 0; n = (n - 1) / 26 {
		b = append([]byte{byte('A' + (n-1)%26)}, b...)
	}
	return string(b)
}

// RowRange builds the range covering columns [from, to] of a single 1-based row.
func RowRange(from, to, row int) string {
	return fmt.Sprintf("%s%d:%s%d", ColumnLetter(from), row, ColumnLetter(to), row)
}
