package session_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SlowStore simulates latency to provoke race conditions if locking is missing.
type SlowStore struct {
	data  map[string]*domain.State
	mu    sync.Mutex
	saves atomic.Int32
}

func (s *SlowStore) Save(ctx context.Context, sessionID string, state *domain.State) error {
	time.Sleep(10 * time.Millisecond) // Simulate IO
	s.saves.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data == nil {
		s.data = make(map[string]*domain.State)
	}
	s.data[sessionID] = state.Clone()
	return nil
}

func (s *SlowStore) Load(ctx context.Context, sessionID string) (*domain.State, error) {
	time.Sleep(10 * time.Millisecond) // Simulate IO
	s.mu.Lock()
	defer s.mu.Unlock()

	if state, ok := s.data[sessionID]; ok {
		return state.Clone(), nil
	}
	return nil, domain.ErrSessionNotFound
}

func (s *SlowStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}

func (s *SlowStore) List(ctx context.Context) ([]string, error) {
	return nil, nil
}

type countingLocker struct {
	locks    atomic.Int32
	unlocks  atomic.Int32
	lastTTL  atomic.Int64
	failWith error
}

func (l *countingLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	if l.failWith != nil {
		return nil, l.failWith
	}
	l.locks.Add(1)
	l.lastTTL.Store(int64(ttl))
	return func(context.Context) error {
		l.unlocks.Add(1)
		return nil
	}, nil
}

func TestManager_Locking(t *testing.T) {
	store := &SlowStore{}
	manager := session.NewManager(store)
	ctx := context.Background()
	id := "race-test"

	_ = manager.Save(ctx, id, domain.NewState(id, "intake"))

	// Read-modify-write under the lock must not lose increments.
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := manager.WithLock(ctx, id, func(ctx context.Context) error {
				state, err := store.Load(ctx, id)
				if err != nil {
					return err
				}
				state.Page++
				return store.Save(ctx, id, state)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	state, err := manager.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 11, state.Page)
}

func TestManager_WithLockIsHeldAcrossNestedCalls(t *testing.T) {
	store := &SlowStore{}
	locker := &countingLocker{}
	manager := session.NewManager(store, session.WithLocker(locker))
	ctx := context.Background()
	id := "nested"

	done := make(chan error, 1)
	go func() {
		done <- manager.WithLock(ctx, id, func(ctx context.Context) error {
			state, err := manager.LoadOrStart(ctx, id, "intake")
			if err != nil {
				return err
			}
			state.Page = 2
			return manager.Save(ctx, id, state)
		})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("nested manager calls deadlocked")
	}
	assert.EqualValues(t, 1, locker.locks.Load(), "inner calls reuse the held lock")

	state, err := manager.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, state.Page)
}

func TestManager_LoadOrStart(t *testing.T) {
	store := &SlowStore{}
	manager := session.NewManager(store)
	ctx := context.Background()
	id := "atomic-init"

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			state, err := manager.LoadOrStart(ctx, id, "intake", "household")
			assert.NoError(t, err)
			assert.NotNil(t, state)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, store.saves.Load(), "only the first caller creates the session")

	state, err := manager.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"intake", "household"}, state.Groups)
	assert.Equal(t, 1, state.Page)
	assert.Equal(t, domain.StatusLoading, state.Status)
}

func TestManager_LoadOrStartWithoutGroups(t *testing.T) {
	manager := session.NewManager(&SlowStore{})
	_, err := manager.LoadOrStart(context.Background(), "nothing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestManager_DistributedLocker(t *testing.T) {
	locker := &countingLocker{}
	manager := session.NewManager(&SlowStore{}, session.WithLocker(locker), session.WithLockTTL(time.Minute))
	ctx := context.Background()

	require.NoError(t, manager.Save(ctx, "s1", domain.NewState("s1", "intake")))
	_, err := manager.Load(ctx, "s1")
	require.NoError(t, err)

	assert.EqualValues(t, 2, locker.locks.Load())
	assert.EqualValues(t, 2, locker.unlocks.Load())
	assert.Equal(t, int64(time.Minute), locker.lastTTL.Load())

	locker.failWith = errors.New("redis unavailable")
	err = manager.Save(ctx, "s1", domain.NewState("s1", "intake"))
	assert.ErrorContains(t, err, "distributed lock")
}
