package registry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/trufnetwork/wageproof/canonical"
)

// entry is created lazily on the first consumption attempt. consumedAt moves
// from nil to a timestamp once and is never cleared.
type entry struct {
	consumedAt atomic.Pointer[time.Time]
}

// Memory is an in-process Registry. Consumption is a single compare-and-swap
// on the entry, so it is linearizable without a global lock.
type Memory struct {
	entries sync.Map // canonical.Digest -> *entry
	now     func() time.Time
}

// MemoryOption configures a Memory registry.
type MemoryOption func(*Memory)

// WithMemoryClock sets the time source used for consumedAt.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMemory creates an empty in-memory registry.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) TryConsume(ctx context.Context, nullifier canonical.Digest) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	v, _ := m.entries.LoadOrStore(nullifier, &entry{})
	ts := m.now().UTC()
	return v.(*entry).consumedAt.CompareAndSwap(nil, &ts), nil
}

func (m *Memory) IsUsed(ctx context.Context, nullifier canonical.Digest) (bool, error) {
	_, used, err := m.ConsumedAt(ctx, nullifier)
	return used, err
}

func (m *Memory) ConsumedAt(ctx context.Context, nullifier canonical.Digest) (time.Time, bool, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, false, err
	}
	v, ok := m.entries.Load(nullifier)
	if !ok {
		return time.Time{}, false, nil
	}
	ts := v.(*entry).consumedAt.Load()
	if ts == nil {
		return time.Time{}, false, nil
	}
	return *ts, true, nil
}

// Len returns the number of consumed nullifiers.
func (m *Memory) Len() int {
	n := 0
	m.entries.Range(func(_, v any) bool {
		if v.(*entry).consumedAt.Load() != nil {
			n++
		}
		return true
	})
	return n
}
