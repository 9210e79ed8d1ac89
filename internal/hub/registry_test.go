package hub

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewRegistry()

	_, hadStale := r.Register(1, "conn-a")
	assert.False(t, hadStale)

	connID, ok := r.Lookup(1)
	assert.True(t, ok)
	assert.Equal(t, "conn-a", connID)

	userID, ok := r.LookupUser("conn-a")
	assert.True(t, ok)
	assert.Equal(t, uint64(1), userID)
}

func TestRegistry_LastConnectionWins(t *testing.T) {
	r := NewRegistry()

	r.Register(1, "conn-old")
	stale, hadStale := r.Register(1, "conn-new")

	assert.True(t, hadStale)
	assert.Equal(t, "conn-old", stale)

	connID, ok := r.Lookup(1)
	assert.True(t, ok)
	assert.Equal(t, "conn-new", connID)

	// 旧连接的反向映射一并清掉
	_, ok = r.LookupUser("conn-old")
	assert.False(t, ok)
}

func TestRegistry_StaleUnregisterKeepsNewConnection(t *testing.T) {
	r := NewRegistry()

	r.Register(1, "conn-old")
	r.Register(1, "conn-new")

	// 旧连接延迟下线，不能挤掉新连接
	r.Unregister(1, "conn-old")

	connID, ok := r.Lookup(1)
	assert.True(t, ok)
	assert.Equal(t, "conn-new", connID)

	r.Unregister(1, "conn-new")
	_, ok = r.Lookup(1)
	assert.False(t, ok)
}

func TestRegistry_ConcurrentReconnects(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			connID := fmt.Sprintf("conn-%d", i)
			r.Register(1, connID)
		}(i)
	}
	wg.Wait()

	// 无论谁胜出，正反向映射必须一致
	connID, ok := r.Lookup(1)
	assert.True(t, ok)
	userID, ok := r.LookupUser(connID)
	assert.True(t, ok)
	assert.Equal(t, uint64(1), userID)
}
