package log

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueEnqueueDrainUnordered(t *testing.T) {
	q := NewQueue(false)
	for i := 0; i < 10; i++ {
		q.Enqueue(Record{Body: "x"})
	}
	require.Equal(t, int64(10), q.Outstanding())

	batch := q.Drain()
	assert.Len(t, batch, 10)
	assert.Equal(t, int64(0), q.Outstanding())
}

func TestQueueOrderedDrainSortsBySequence(t *testing.T) {
	q := NewQueue(true)

	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				q.Enqueue(Record{Body: "x"})
			}
		}()
	}
	wg.Wait()

	batch := q.Drain()
	require.Len(t, batch, 1600)
	for i := 1; i < len(batch); i++ {
		assert.Less(t, batch[i-1].Seq, batch[i].Seq)
	}
}

func TestQueueSequenceStrictlyIncreasingAcrossShardSwaps(t *testing.T) {
	q := NewQueue(true)

	var all []Record
	for round := 0; round < 3; round++ {
		for i := 0; i < 50; i++ {
			q.Enqueue(Record{Body: "x"})
		}
		all = append(all, q.Drain()...)
	}

	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].Seq, all[i].Seq)
	}
}

func TestQueueDropsOnFullShardWithoutBlocking(t *testing.T) {
	q := NewQueue(false)
	for i := 0; i < shardCapacity+10; i++ {
		q.Enqueue(Record{Body: "x"})
	}
	assert.Equal(t, uint64(10), q.Dropped())
}

func TestQueueDrainOnEmptyReturnsNil(t *testing.T) {
	q := NewQueue(false)
	assert.Empty(t, q.Drain())

	qOrdered := NewQueue(true)
	assert.Empty(t, qOrdered.Drain())
}
