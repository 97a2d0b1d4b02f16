package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_RecordsInOrder(t *testing.T) {
	r := NewRecorder()

	assert.Equal(t, int64(1), r.Record("cell", "pets", "fido"))
	assert.Equal(t, int64(2), r.Record("row"))
	assert.Equal(t, int64(3), r.Record("cell"))

	calls := r.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, Call{Seq: 1, Name: "cell", Args: []any{"pets", "fido"}}, calls[0])
	assert.Equal(t, []string{"cell", "row", "cell"}, r.Names())
	assert.Equal(t, 2, r.Count("cell"))
	assert.Equal(t, 0, r.Count("table"))
	assert.Equal(t, int64(3), r.Seq())
}

func TestRecorder_Reset(t *testing.T) {
	r := NewRecorder()
	r.Record("a")
	r.Record("b")

	r.Reset()
	assert.Empty(t, r.Calls())
	assert.Equal(t, int64(0), r.Seq())

	// First call after reset returns 1
	assert.Equal(t, int64(1), r.Record("c"))
}

func TestRecorder_CallsIsACopy(t *testing.T) {
	r := NewRecorder()
	r.Record("a")

	calls := r.Calls()
	calls[0].Name = "changed"
	assert.Equal(t, []string{"a"}, r.Names())
}

func TestRecorder_ThreadSafe(t *testing.T) {
	r := NewRecorder()
	const numGoroutines = 50
	const callsPerGoroutine = 20

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < callsPerGoroutine; j++ {
				r.Record("x")
			}
		}()
	}
	wg.Wait()

	calls := r.Calls()
	require.Len(t, calls, numGoroutines*callsPerGoroutine)
	for i, c := range calls {
		assert.Equal(t, int64(i+1), c.Seq)
	}
}
