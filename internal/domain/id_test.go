package domain

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDv7Generator_Monotonic(t *testing.T) {
	g := NewIDGenerator()
	prev := int64(0)
	for i := 0; i < 1000; i++ {
		id, err := g.NextID()
		require.NoError(t, err)
		require.Greater(t, id, prev)
		prev = id
	}
}

func TestUUIDv7Generator_Concurrent(t *testing.T) {
	g := NewIDGenerator()
	const workers, perWorker = 8, 200

	var (
		mu   sync.Mutex
		seen = make(map[int64]bool, workers*perWorker)
		wg   sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				id, err := g.NextID()
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, workers*perWorker)
}

func TestParseIDs(t *testing.T) {
	id, err := ParseTenantID("42")
	require.NoError(t, err)
	assert.Equal(t, TenantID(42), id)
	assert.Equal(t, "TenantID:42", id.String())

	for _, in := range []string{"", "abc", "0", "-3"} {
		_, err := ParseGroupID(in)
		assert.Error(t, err, in)
	}
}
