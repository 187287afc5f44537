package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"cardledger/internal/errors"
)

// CardLocker serializes check-then-mutate sequences per card. Locks are
// acquired in ascending card-id order so two opposite-direction transfers can
// never deadlock, and every acquisition waits at most the configured timeout
// before failing with the retryable ErrCardBusy.
type CardLocker struct {
	locks sync.Map // card id -> chan struct{} with capacity 1
	wait  time.Duration
}

// NewCardLocker creates a lock manager with the given bounded wait.
func NewCardLocker(wait time.Duration) *CardLocker {
	return &CardLocker{wait: wait}
}

func (l *CardLocker) lockChan(id uuid.UUID) chan struct{} {
	value, _ := l.locks.LoadOrStore(id.String(), make(chan struct{}, 1))
	return value.(chan struct{})
}

// Acquire takes the exclusive locks for the given cards, in ascending id
// order. On timeout or context cancellation it releases whatever was already
// taken and returns ErrCardBusy; the caller may retry.
func (l *CardLocker) Acquire(ctx context.Context, ids ...uuid.UUID) (release func(), err error) {
	sorted := make([]uuid.UUID, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].String() < sorted[j].String()
	})

	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	held := make([]chan struct{}, 0, len(sorted))
	releaseHeld := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
	}

	for _, id := range sorted {
		ch := l.lockChan(id)
		select {
		case ch <- struct{}{}:
			held = append(held, ch)
		case <-timer.C:
			releaseHeld()
			return nil, errors.ErrCardBusy
		case <-ctx.Done():
			releaseHeld()
			return nil, errors.ErrCardBusy
		}
	}

	var once sync.Once
	return func() { once.Do(releaseHeld) }, nil
}
