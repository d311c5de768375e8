package dedup

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdmit_OncePerKey(t *testing.T) {
	s := NewSeenSet()

	assert.True(t, s.Admit("River overflow warning issued in Assam, India"))
	for i := 0; i < 5; i++ {
		assert.False(t, s.Admit("River overflow warning issued in Assam, India"))
	}
	assert.True(t, s.Admit("https://example.com/quake"))
	assert.Equal(t, 2, s.Len())
}

func TestSeen_DoesNotRecord(t *testing.T) {
	s := NewSeenSet()

	assert.False(t, s.Seen("k"))
	assert.False(t, s.Seen("k"))
	assert.True(t, s.Admit("k"))
	assert.True(t, s.Seen("k"))
}

func TestAdmit_ConcurrentCallersAdmitEachKeyOnce(t *testing.T) {
	s := NewSeenSet()
	const workers = 8
	const keys = 200

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for k := 0; k < keys; k++ {
				if s.Admit(fmt.Sprintf("key-%d", k)) {
					admitted.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(keys), admitted.Load())
	assert.Equal(t, keys, s.Len())
}
