package keypool

import (
	"sync"
	"time"
)

// QuotaWindow is a sliding window counter tracking requests made with one
// credential during the current limiting window.
//
// It uses a fixed ring of time-stamped buckets: adds land in the bucket for
// the current time slice, buckets older than the window are pruned on every
// operation, and the in-window count is the sum of the survivors. This
// avoids the reset spike of a fixed window while keeping memory bounded.
//
// QuotaWindow is safe for concurrent use; concurrent increments never lose
// updates.
type QuotaWindow struct {
	window     time.Duration
	bucketSize time.Duration
	buckets    []quotaBucket
	mu         sync.Mutex
}

// quotaBucket is a single time-stamped counter bucket.
type quotaBucket struct {
	timestamp time.Time
	value     int64
}

// NewQuotaWindow creates a quota window of the given duration with the given
// bucket granularity. Smaller buckets are more accurate but use more memory.
func NewQuotaWindow(window, bucketSize time.Duration) *QuotaWindow {
	numBuckets := int(window / bucketSize)
	if numBuckets == 0 {
		numBuckets = 1
	}
	return &QuotaWindow{
		window:     window,
		bucketSize: bucketSize,
		buckets:    make([]quotaBucket, numBuckets),
	}
}

// Add increments the in-window count by n at time now.
func (q *QuotaWindow) Add(now time.Time, n int64) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.pruneLocked(now)
	q.bucketForLocked(now).value += n
}

// Count returns the number of requests recorded within the window ending at
// now.
func (q *QuotaWindow) Count(now time.Time) int64 {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.pruneLocked(now)

	var sum int64
	for i := range q.buckets {
		if !q.buckets[i].timestamp.IsZero() {
			sum += q.buckets[i].value
		}
	}
	return sum
}

// Reset clears all buckets. Used when a credential is replaced and granted a
// fresh quota window.
func (q *QuotaWindow) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i := range q.buckets {
		q.buckets[i] = quotaBucket{}
	}
}

// pruneLocked clears buckets older than the window. Caller holds q.mu.
func (q *QuotaWindow) pruneLocked(now time.Time) {
	cutoff := now.Add(-q.window)
	for i := range q.buckets {
		if !q.buckets[i].timestamp.IsZero() && q.buckets[i].timestamp.Before(cutoff) {
			q.buckets[i] = quotaBucket{}
		}
	}
}

// bucketForLocked returns the bucket covering now, reusing an empty or the
// oldest slot when the time slice has no bucket yet. Caller holds q.mu.
func (q *QuotaWindow) bucketForLocked(now time.Time) *quotaBucket {
	slice := now.Truncate(q.bucketSize)

	for i := range q.buckets {
		if q.buckets[i].timestamp.Equal(slice) {
			return &q.buckets[i]
		}
	}

	target := -1
	for i := range q.buckets {
		if q.buckets[i].timestamp.IsZero() {
			target = i
			break
		}
	}
	if target == -1 {
		target = 0
		for i := 1; i < len(q.buckets); i++ {
			if q.buckets[i].timestamp.Before(q.buckets[target].timestamp) {
				target = i
			}
		}
	}

	q.buckets[target] = quotaBucket{timestamp: slice}
	return &q.buckets[target]
}
