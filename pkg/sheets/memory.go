package sheets

import (
	"context"
	"sync"
)

// MemoryGrid is a concurrency-safe in-process Grid. It backs tests and local
// dry runs and mirrors how the Sheets API trims empty trailing cells.
type MemoryGrid struct {
	mu     sync.Mutex
	cells  [][]string
	writes int
	// Err, when set, is returned by every call.
	Err error
}

// NewMemoryGrid seeds a grid with rows starting at A1.
func NewMemoryGrid(rows ...[]string) *MemoryGrid {
	g := &MemoryGrid{}
	for _, row := range rows {
		g.cells = append(g.cells, append([]string(nil), row...))
	}
	return g
}

// Writes reports how many mutating calls succeeded.
func (g *MemoryGrid) Writes() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.writes
}

// Row returns a copy of the 1-based row, padded to width.
func (g *MemoryGrid) Row(n, width int) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, width)
	if n-1 < len(g.cells) {
		copy(out, g.cells[n-1])
	}
	return out
}

func (g *MemoryGrid) Read(ctx context.Context, rng string) ([][]string, error) {
	if err := g.check(ctx); err != nil {
		return nil, err
	}
	r, err := ParseRange(rng)
	if err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	first := 0
	if r.StartRow > 0 {
		first = r.StartRow - 1
	}
	last := len(g.cells) - 1
	if r.EndRow > 0 && r.EndRow-1 < last {
		last = r.EndRow - 1
	}

	var out [][]string
	for i := first; i <= last; i++ {
		row := g.cells[i]
		slice := []string{}
		for c := r.StartCol; c <= r.EndCol && c < len(row); c++ {
			slice = append(slice, row[c])
		}
		out = append(out, trimRight(slice))
	}
	for len(out) > 0 && len(out[len(out)-1]) == 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (g *MemoryGrid) Write(ctx context.Context, rng string, rows [][]string) error {
	if err := g.check(ctx); err != nil {
		return err
	}
	r, err := ParseRange(rng)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.put(r, rows)
	g.writes++
	return nil
}

func (g *MemoryGrid) BatchWrite(ctx context.Context, updates []Update) error {
	if err := g.check(ctx); err != nil {
		return err
	}
	parsed := make([]Range, len(updates))
	for i, u := range updates {
		r, err := ParseRange(u.Range)
		if err != nil {
			return err
		}
		parsed[i] = r
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, u := range updates {
		g.put(parsed[i], u.Rows)
	}
	g.writes++
	return nil
}

func (g *MemoryGrid) Append(ctx context.Context, rng string, row []string) error {
	if err := g.check(ctx); err != nil {
		return err
	}
	r, err := ParseRange(rng)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	next := 0
	for i, existing := range g.cells {
		for c := r.StartCol; c <= r.EndCol && c < len(existing); c++ {
			if existing[c] != "" {
				next = i + 1
				break
			}
		}
	}
	g.put(Range{StartCol: r.StartCol, EndCol: r.EndCol, StartRow: next + 1}, [][]string{row})
	g.writes++
	return nil
}

func (g *MemoryGrid) put(r Range, rows [][]string) {
	start := r.StartRow
	if start == 0 {
		start = 1
	}
	for i, row := range rows {
		idx := start - 1 + i
		for len(g.cells) <= idx {
			g.cells = append(g.cells, nil)
		}
		for j, value := range row {
			col := r.StartCol + j
			if col > r.EndCol {
				break
			}
			for len(g.cells[idx]) <= col {
				g.cells[idx] = append(g.cells[idx], "")
			}
			g.cells[idx][col] = value
		}
	}
}

func (g *MemoryGrid) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return g.Err
}

func trimRight(row []string) []string {
	end := len(row)
	for end > 0 && row[end-1] == "" {
		end--
	}
	return row[:end]
}
