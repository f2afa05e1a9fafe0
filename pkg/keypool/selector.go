package keypool

import (
	"sort"
	"time"
)

// Selector implements the selection policy: given the pool and the set of
// credentials already tried for the in-flight request, pick the next
// eligible credential.
//
// Eligibility: Active, or Cooling with an elapsed cooldown (promoted to
// Active before being returned). Ordering is deterministic: fewest requests
// in the current quota window first, then least recently used, then id.
// Given an identical pool snapshot and exclusion set, repeated calls return
// the same credential.
type Selector struct {
	pool    *Pool
	breaker *Breaker
}

// NewSelector creates a selector over the given pool and breaker.
func NewSelector(pool *Pool, breaker *Breaker) *Selector {
	return &Selector{pool: pool, breaker: breaker}
}

// candidate is the sortable view of an eligible credential, captured at
// selection time so the sort comparator sees one consistent snapshot.
type candidate struct {
	cred        *Credential
	windowCount int64
	lastUsedAt  time.Time
}

// Pick returns one eligible credential, or ErrPoolExhausted when none
// qualifies. The exclude set holds credential ids already tried for this
// request.
func (s *Selector) Pick(now time.Time, exclude map[string]struct{}) (*Credential, error) {
	var candidates []candidate

	for _, c := range s.pool.All() {
		if _, skip := exclude[c.ID()]; skip {
			continue
		}

		switch c.State() {
		case StateActive:
			// eligible
		case StateCooling:
			if _, promoted := s.breaker.Promote(c, now); !promoted {
				continue
			}
		default:
			continue
		}

		candidates = append(candidates, candidate{
			cred:        c,
			windowCount: c.WindowCount(now),
			lastUsedAt:  c.LastUsedAt(),
		})
	}

	if len(candidates) == 0 {
		return nil, ErrPoolExhausted
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.windowCount != b.windowCount {
			return a.windowCount < b.windowCount
		}
		if !a.lastUsedAt.Equal(b.lastUsedAt) {
			return a.lastUsedAt.Before(b.lastUsedAt)
		}
		return a.cred.ID() < b.cred.ID()
	})

	return candidates[0].cred, nil
}
