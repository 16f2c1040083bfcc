package log

import "time"

// Sink is the capability interface every concrete sink implements. Per
// §9's guidance, sinks are not a class hierarchy: both concrete variants
// compose the same FilterChain + FormatProgram substrate rather than
// inheriting from a common base.
type Sink interface {
	// Handle processes one drained batch: filtering, formatting, and
	// delivering accepted records. It never blocks the dispatcher
	// indefinitely and never returns an error to the caller — failures
	// are reported to the diagnostic stream, per §7.
	Handle(batch []Record)

	// SetTimeout sets a network sink's send timeout; file sinks ignore
	// it. Network-only per §9's capability interface. DatagramSink stores
	// the value but does not apply it to its sends.
	SetTimeout(d time.Duration)

	// Filters exposes the sink's filter chain so callers can configure
	// acceptance rules without reaching into sink internals.
	Filters() *FilterChain

	// Close releases the sink's resources (file handle, socket,
	// background workers). Safe to call more than once.
	Close() error
}
