package log

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSink struct {
	mu      sync.Mutex
	filters *FilterChain
	batches [][]Record
}

func newCountingSink() *countingSink {
	return &countingSink{filters: NewFilterChain()}
}

func (s *countingSink) Handle(batch []Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, batch)
}
func (s *countingSink) SetTimeout(time.Duration)  {}
func (s *countingSink) Filters() *FilterChain     { return s.filters }
func (s *countingSink) Close() error              { return nil }
func (s *countingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

func TestRegistryRegisterAndLive(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.AnyLive())

	h := r.Register(newCountingSink())
	assert.True(t, r.AnyLive())

	sinks, expired := r.live()
	assert.Len(t, sinks, 1)
	assert.Equal(t, 0, expired)
	assert.NotNil(t, h.Sink())
}

func TestRegistryExpiredCountNeverExceedsRegistered(t *testing.T) {
	r := NewRegistry()
	func() {
		h := r.Register(newCountingSink())
		_ = h
	}()

	// Force the handle above out of scope and collected.
	runtime.GC()
	runtime.GC()

	_, expired := r.live()
	// GC timing for weak references is not guaranteed within a single
	// test run; only assert the invariant that expired never exceeds the
	// number of registered references.
	assert.LessOrEqual(t, expired, 1)
}

func TestDispatcherFansOutToLiveSinks(t *testing.T) {
	q := NewQueue(false)
	r := NewRegistry()
	sink := newCountingSink()
	h := r.Register(sink)
	defer h.Close()

	d := NewDispatcher(q, r, AllowUnordered)
	defer d.Stop()

	for i := 0; i < 100; i++ {
		q.Enqueue(Record{Body: "x"})
	}

	require.Eventually(t, func() bool {
		return sink.count() == 100
	}, time.Second, time.Millisecond)
}

func TestDispatcherNoOpModeDiscardsBatches(t *testing.T) {
	q := NewQueue(true)
	r := NewRegistry()
	sink := newCountingSink()
	h := r.Register(sink)
	defer h.Close()

	d := NewDispatcher(q, r, NoOpOrdered)
	defer d.Stop()

	for i := 0; i < 50; i++ {
		q.Enqueue(Record{Body: "x"})
	}
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, 0, sink.count())
}

func TestDispatcherStopDrainsOutstandingBeforeReturning(t *testing.T) {
	q := NewQueue(false)
	r := NewRegistry()
	sink := newCountingSink()
	h := r.Register(sink)
	defer h.Close()

	d := NewDispatcher(q, r, AllowUnordered)

	for i := 0; i < 500; i++ {
		q.Enqueue(Record{Body: "x"})
	}
	d.Stop()

	assert.Equal(t, int64(0), q.Outstanding())
	assert.Equal(t, 500, sink.count())
}

func TestInitializationModeOrderedAndDispatches(t *testing.T) {
	assert.True(t, PerfectlyOrdered.ordered())
	assert.True(t, PerfectlyOrdered.dispatches())

	assert.False(t, AllowUnordered.ordered())
	assert.True(t, AllowUnordered.dispatches())

	assert.False(t, NoOpMode.ordered())
	assert.False(t, NoOpMode.dispatches())

	assert.True(t, NoOpOrdered.ordered())
	assert.False(t, NoOpOrdered.dispatches())
}

func TestRegistryCompactDropsOnlyExpiredReferences(t *testing.T) {
	r := NewRegistry()
	h1 := r.Register(newCountingSink())
	defer h1.Close()

	var counter atomic.Int32
	counter.Add(1)

	r.compact()
	sinks, _ := r.live()
	assert.Len(t, sinks, 1)
}
