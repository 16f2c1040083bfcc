package log

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTagMemoJoinsOnFirstSight(t *testing.T) {
	m := newTagMemo()
	loc := At("a.go", 1)
	assert.Equal(t, "a,b,c", m.Join(loc, []string{"a", "b", "c"}))
}

func TestTagMemoReusesJoinedStringForSameLocation(t *testing.T) {
	m := newTagMemo()
	loc := At("a.go", 1)
	first := m.Join(loc, []string{"a", "b"})
	// A second call with different tags for the same location still
	// returns the first-seen joined string, matching the "tags are
	// constant per source location, never re-joined" invariant.
	second := m.Join(loc, []string{"z"})
	assert.Equal(t, first, second)
}

func TestTagMemoConcurrentFirstTouchIsRaceFree(t *testing.T) {
	m := newTagMemo()
	loc := At("a.go", 1)

	var wg sync.WaitGroup
	results := make([]string, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = m.Join(loc, []string{"x", "y"})
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, "x,y", r)
	}
}
