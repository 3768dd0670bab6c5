package state

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/empathyphone/aitalk/internal/fsm"
)

func TestStoreStartsIdle(t *testing.T) {
	snap := NewStore().Snapshot()
	require.Equal(t, fsm.StateIdle, snap.Phase)
	require.False(t, snap.Recording)
	require.False(t, snap.Processing)
	require.Zero(t, snap.Version)
}

func TestStoreUpdateBumpsVersion(t *testing.T) {
	store := NewStore()

	first := store.Update(func(s *Snapshot) { s.Recording = true })
	second := store.Update(func(s *Snapshot) { s.Recording = false; s.Processing = true })

	require.Equal(t, uint64(1), first.Version)
	require.Equal(t, uint64(2), second.Version)
	require.True(t, first.Recording)
	require.Equal(t, second, store.Snapshot())
}

func TestSubscribeReceivesCurrentThenLatest(t *testing.T) {
	store := NewStore()
	ch, cancel := store.Subscribe()
	defer cancel()

	initial := <-ch
	require.Zero(t, initial.Version)

	store.Update(func(s *Snapshot) { s.Recording = true })
	store.Update(func(s *Snapshot) { s.Recording = false })
	store.Update(func(s *Snapshot) { s.Processing = true })

	latest := <-ch
	require.Equal(t, uint64(3), latest.Version)
	require.True(t, latest.Processing)

	select {
	case extra := <-ch:
		t.Fatalf("expected coalesced delivery, got extra snapshot %+v", extra)
	default:
	}
}

func TestSubscribeCancelClosesChannel(t *testing.T) {
	store := NewStore()
	ch, cancel := store.Subscribe()
	<-ch

	cancel()
	cancel()

	_, ok := <-ch
	require.False(t, ok)

	store.Update(func(s *Snapshot) { s.Recording = true })
}

func TestStoreConcurrentReaders(t *testing.T) {
	store := NewStore()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				_ = store.Snapshot()
			}
		}()
	}
	for range 100 {
		store.Update(func(s *Snapshot) { s.Processing = !s.Processing })
	}
	wg.Wait()

	require.Equal(t, uint64(100), store.Snapshot().Version)
}
