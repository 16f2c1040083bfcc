package log

import (
	"sync"
	"sync/atomic"
)

// state is the process-wide mutable state a System tracks outside of
// its Config: the shutdown flag every producer's should_log consults,
// and the guard ensuring Shutdown's RAII teardown chain runs exactly
// once, per §5/§9's shutdown guidance.
type state struct {
	quit         atomic.Bool
	shutdownOnce sync.Once
}
