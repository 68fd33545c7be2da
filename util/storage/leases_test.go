package storage_test

import (
	"github.com/APTrust/fixity/util/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sync"
	"testing"
	"time"
)

func TestLeases(t *testing.T) {
	leases := storage.NewLeases(newBoltDB(t))

	acquired, err := leases.Acquire("res1", "worker-a", time.Minute)
	require.Nil(t, err)
	assert.True(t, acquired)

	// Someone else can't take it.
	acquired, err = leases.Acquire("res1", "worker-b", time.Minute)
	require.Nil(t, err)
	assert.False(t, acquired)

	// The holder can extend it.
	acquired, err = leases.Acquire("res1", "worker-a", time.Minute)
	require.Nil(t, err)
	assert.True(t, acquired)

	lease, err := leases.Get("res1")
	require.Nil(t, err)
	require.NotNil(t, lease)
	assert.Equal(t, "worker-a", lease.Holder)

	// Only the holder can release it.
	require.Nil(t, leases.Release("res1", "worker-b"))
	lease, err = leases.Get("res1")
	require.Nil(t, err)
	assert.NotNil(t, lease)
	require.Nil(t, leases.Release("res1", "worker-a"))
	lease, err = leases.Get("res1")
	require.Nil(t, err)
	assert.Nil(t, lease)

	acquired, err = leases.Acquire("res1", "worker-b", time.Minute)
	require.Nil(t, err)
	assert.True(t, acquired)
}

func TestLeaseExpires(t *testing.T) {
	leases := storage.NewLeases(newBoltDB(t))
	acquired, err := leases.Acquire("res1", "worker-a", -time.Second)
	require.Nil(t, err)
	assert.True(t, acquired)
	acquired, err = leases.Acquire("res1", "worker-b", time.Minute)
	require.Nil(t, err)
	assert.True(t, acquired)
}

func TestLeaseOneWinner(t *testing.T) {
	leases := storage.NewLeases(newBoltDB(t))
	var wg sync.WaitGroup
	var mutex sync.Mutex
	winners := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			acquired, err := leases.Acquire("res1", string(rune('a'+n)), time.Minute)
			assert.Nil(t, err)
			if acquired {
				mutex.Lock()
				winners++
				mutex.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, winners)
}
