package service

import (
	"context"
	"sync"
)

// IDAllocator hands out participant ids. floor is the largest id currently
// present in the sheet; the returned id is always greater than floor and than
// every id the allocator issued before.
type IDAllocator interface {
	Next(ctx context.Context, floor int) (int, error)
}

// SerialAllocator is the in-process allocator. It is correct as long as a
// single bot instance writes to the sheet.
type SerialAllocator struct {
	mu   sync.Mutex
	last int
}

// NewSerialAllocator constructs a SerialAllocator.
func NewSerialAllocator() *SerialAllocator {
	return &SerialAllocator{}
}

// Next implements IDAllocator.
func (a *SerialAllocator) Next(ctx context.Context, floor int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if floor > a.last {
		a.last = floor
	}
	a.last++
	return a.last, nil
}
