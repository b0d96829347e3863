package lock

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestSingleSessionPerKeyProperty: check-then-create under the key lock never creates
// two sessions for one chat.
// *For any* number of concurrent starts on one chat, exactly one succeeds.
func TestSingleSessionPerKeyProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		chatID := rapid.Int64Range(-1_000_000_000_000, -1).Draw(t, "chatID")
		numStarts := rapid.IntRange(2, 30).Draw(t, "numStarts")

		kl := NewKeyLock()
		sessions := make(map[int64]int)
		var created atomic.Int32

		var wg sync.WaitGroup
		wg.Add(numStarts)
		start := make(chan struct{})
		for i := 0; i < numStarts; i++ {
			go func(id int) {
				defer wg.Done()
				<-start
				kl.Lock(chatID)
				defer kl.Unlock(chatID)
				if _, exists := sessions[chatID]; exists {
					return
				}
				// The gap a repository read would open.
				time.Sleep(time.Microsecond)
				sessions[chatID] = id
				created.Add(1)
			}(i)
		}
		close(start)
		wg.Wait()

		if created.Load() != 1 {
			t.Fatalf("expected exactly one session, got %d", created.Load())
		}
	})
}

// TestIndependentKeysProperty: locks for different chats do not interfere.
func TestIndependentKeysProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numKeys := rapid.IntRange(2, 10).Draw(t, "numKeys")
		opsPerKey := rapid.IntRange(5, 20).Draw(t, "opsPerKey")

		kl := NewKeyLock()
		counters := make([]int, numKeys)

		var wg sync.WaitGroup
		wg.Add(numKeys * opsPerKey)
		for k := 0; k < numKeys; k++ {
			for j := 0; j < opsPerKey; j++ {
				go func(key int) {
					defer wg.Done()
					kl.Lock(int64(key))
					defer kl.Unlock(int64(key))
					counters[key]++
				}(k)
			}
		}
		wg.Wait()

		for k, c := range counters {
			if c != opsPerKey {
				t.Fatalf("key %d: expected %d, got %d", k, opsPerKey, c)
			}
		}
	})
}

// TestLockUnlockSymmetryProperty: after balanced Lock/Unlock cycles the key is free.
func TestLockUnlockSymmetryProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		key := rapid.Int64().Draw(t, "key")
		cycles := rapid.IntRange(1, 50).Draw(t, "cycles")

		kl := NewKeyLock()
		for i := 0; i < cycles; i++ {
			kl.Lock(key)
			kl.Unlock(key)
		}

		if !kl.TryLock(key) {
			t.Fatal("lock should be available after symmetric cycles")
		}
		kl.Unlock(key)
	})
}

// TestTryLockProperty: TryLock fails only while the same key is held.
// *For any* pair of keys, holding one blocks TryLock on it and nothing else.
func TestTryLockProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		held := rapid.Int64().Draw(t, "held")
		other := rapid.Int64().Filter(func(k int64) bool { return k != held }).Draw(t, "other")

		kl := NewKeyLock()
		require.True(t, kl.TryLock(held))
		assert.False(t, kl.TryLock(held), "held key")
		assert.True(t, kl.TryLock(other), "other key")
		kl.Unlock(other)

		kl.Unlock(held)
		assert.True(t, kl.TryLock(held), "released key")
		kl.Unlock(held)
	})
}
