package ledger

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// accountLocks serializes balance mutations per account. Each account gets a
// one-slot semaphore so acquisition can respect context cancellation, and
// multi-account acquisition always proceeds in ascending id order to rule
// out deadlock between two transfers moving value in opposite directions
// between the same pair.
type accountLocks struct {
	mu    sync.Mutex
	slots map[uuid.UUID]chan struct{}
}

func newAccountLocks() *accountLocks {
	return &accountLocks{slots: make(map[uuid.UUID]chan struct{})}
}

func (al *accountLocks) slot(id uuid.UUID) chan struct{} {
	al.mu.Lock()
	defer al.mu.Unlock()
	s, ok := al.slots[id]
	if !ok {
		s = make(chan struct{}, 1)
		al.slots[id] = s
	}
	return s
}

// Acquire locks the given accounts, deduplicated and in ascending id order,
// and returns a release func. Release is idempotent; calling it again is a
// no-op. On cancellation Acquire releases whatever it had already taken and
// returns ctx.Err().
func (al *accountLocks) Acquire(ctx context.Context, ids ...uuid.UUID) (func(), error) {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	ordered := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ordered = append(ordered, id)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].String() < ordered[j].String()
	})

	held := make([]chan struct{}, 0, len(ordered))
	var once sync.Once
	release := func() {
		once.Do(func() {
			for i := len(held) - 1; i >= 0; i-- {
				<-held[i]
			}
		})
	}

	for _, id := range ordered {
		s := al.slot(id)
		select {
		case s <- struct{}{}:
			held = append(held, s)
		case <-ctx.Done():
			release()
			return nil, ctx.Err()
		}
	}

	return release, nil
}
