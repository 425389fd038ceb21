// Package queue buffers watcher change batches for the regeneration loop.
package queue

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"fortrandep/internal/core/ports"
	"fortrandep/internal/shared/util"
)

var _ ports.ChangeQueue = (*MemoryQueue)(nil)

// MemoryQueue is a bounded, non-blocking channel of change batches.
type MemoryQueue struct {
	ch     chan ports.ChangeBatch
	mu     sync.RWMutex
	closed bool
}

func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &MemoryQueue{ch: make(chan ports.ChangeBatch, capacity)}
}

// Enqueue never blocks the watcher. A full or closed queue drops the batch.
func (q *MemoryQueue) Enqueue(batch ports.ChangeBatch) ports.EnqueueResult {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ports.EnqueueDropped
	}
	if batch.At.IsZero() {
		batch.At = time.Now()
	}
	select {
	case q.ch <- batch:
		return ports.EnqueueAccepted
	default:
		return ports.EnqueueDropped
	}
}

// DequeueBatch waits up to wait for the first batch (forever when wait is
// zero or negative), then takes whatever else is already queued, up to
// maxItems. A closed queue reports io.EOF once drained.
func (q *MemoryQueue) DequeueBatch(ctx context.Context, maxItems int, wait time.Duration) ([]ports.ChangeBatch, error) {
	if maxItems <= 0 {
		maxItems = 1
	}

	var timer <-chan time.Time
	if wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()
		timer = t.C
	}

	out := make([]ports.ChangeBatch, 0, maxItems)
	select {
	case b, ok := <-q.ch:
		if !ok {
			return nil, io.EOF
		}
		out = append(out, b)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer:
		return nil, nil
	}

	for len(out) < maxItems {
		select {
		case b, ok := <-q.ch:
			if !ok {
				return out, io.EOF
			}
			out = append(out, b)
		default:
			return out, nil
		}
	}
	return out, nil
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	close(q.ch)
	return nil
}

func (q *MemoryQueue) Len() int {
	if q == nil {
		return 0
	}
	return len(q.ch)
}

// MergePaths returns the sorted, de-duplicated paths of every batch.
func MergePaths(batches []ports.ChangeBatch) []string {
	var all []string
	for _, b := range batches {
		all = append(all, b.Paths...)
	}
	all = util.UniqueStrings(all)
	sort.Strings(all)
	return all
}
