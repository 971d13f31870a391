package escrow

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedLock_ReleasesEntryOnLastUnlock(t *testing.T) {
	var k keyedLock
	id := uuid.New()

	unlock := k.Lock(id)
	assert.Equal(t, 1, k.Len())
	unlock()
	assert.Equal(t, 0, k.Len())

	unlock = k.Lock(id)
	unlock()
	assert.Equal(t, 0, k.Len())
}

func TestKeyedLock_SerializesSameID(t *testing.T) {
	var k keyedLock
	id := uuid.New()

	const workers = 16
	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock(id)
			n := inside.Add(1)
			for {
				m := maxInside.Load()
				if n <= m || maxInside.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside.Load())
	assert.Equal(t, 0, k.Len())
}

func TestKeyedLock_DistinctIDsDoNotBlock(t *testing.T) {
	var k keyedLock
	unlockA := k.Lock(uuid.New())
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := k.Lock(uuid.New())
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		require.Fail(t, "lock on a different id waited")
	}
	assert.Equal(t, 1, k.Len())
}
