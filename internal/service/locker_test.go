package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardledger/internal/errors"
)

func TestCardLocker_AcquireRelease(t *testing.T) {
	locker := NewCardLocker(50 * time.Millisecond)
	id := uuid.New()

	release, err := locker.Acquire(context.Background(), id)
	require.NoError(t, err)

	// Held lock fails within the bounded wait.
	_, err = locker.Acquire(context.Background(), id)
	assert.ErrorIs(t, err, errors.ErrCardBusy)

	release()

	// Released lock can be taken again.
	release2, err := locker.Acquire(context.Background(), id)
	require.NoError(t, err)
	release2()
}

func TestCardLocker_ReleaseIsIdempotent(t *testing.T) {
	locker := NewCardLocker(50 * time.Millisecond)
	id := uuid.New()

	release, err := locker.Acquire(context.Background(), id)
	require.NoError(t, err)
	release()
	release() // second call must not unlock for someone else

	release2, err := locker.Acquire(context.Background(), id)
	require.NoError(t, err)
	defer release2()

	_, err = locker.Acquire(context.Background(), id)
	assert.ErrorIs(t, err, errors.ErrCardBusy)
}

func TestCardLocker_PartialAcquisitionRollsBack(t *testing.T) {
	locker := NewCardLocker(50 * time.Millisecond)
	a, b := uuid.New(), uuid.New()

	// Hold one of the pair so the pair acquisition times out.
	releaseB, err := locker.Acquire(context.Background(), b)
	require.NoError(t, err)

	_, err = locker.Acquire(context.Background(), a, b)
	assert.ErrorIs(t, err, errors.ErrCardBusy)

	// The partially taken lock must have been returned.
	releaseA, err := locker.Acquire(context.Background(), a)
	require.NoError(t, err)
	releaseA()
	releaseB()
}

func TestCardLocker_CancelledContext(t *testing.T) {
	locker := NewCardLocker(time.Minute)
	id := uuid.New()

	release, err := locker.Acquire(context.Background(), id)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = locker.Acquire(ctx, id)
	assert.ErrorIs(t, err, errors.ErrCardBusy)
}

func TestCardLocker_OppositeOrderPairsDoNotDeadlock(t *testing.T) {
	locker := NewCardLocker(2 * time.Second)
	a, b := uuid.New(), uuid.New()

	const rounds = 50
	var wg sync.WaitGroup
	errs := make(chan error, 2*rounds)

	worker := func(first, second uuid.UUID) {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			release, err := locker.Acquire(context.Background(), first, second)
			if err != nil {
				errs <- err
				return
			}
			release()
		}
	}

	wg.Add(2)
	go worker(a, b)
	go worker(b, a)
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatalf("pair acquisition failed: %v", err)
	}
}

func TestCardLocker_MutualExclusion(t *testing.T) {
	locker := NewCardLocker(5 * time.Second)
	id := uuid.New()

	const workers = 20
	var counter int
	var wg sync.WaitGroup

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			release, err := locker.Acquire(context.Background(), id)
			if err != nil {
				return
			}
			defer release()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, workers, counter)
}
