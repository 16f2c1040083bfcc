package log

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/davecgh/go-spew/spew"
)

// spewConfig mirrors the reference library's own fallback dumper
// configuration for non-primitive values passed to Producer.Log.
var spewConfig = spew.ConfigState{
	Indent:                  " ",
	MaxDepth:                10,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// sprintArgs renders Log's variadic argument list into a message body
// (Printf uses fmt.Sprintf and Stream.Add uses fmt.Fprint instead):
// strings, errors, primitives and fmt.Stringer values render normally,
// anything else falls back to a
// compact spew dump, matching the reference library's own
// writeRawValue fallback.
func sprintArgs(args []any) string {
	parts := make([]string, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case string:
			parts[i] = v
		case error:
			parts[i] = v.Error()
		case fmt.Stringer:
			parts[i] = v.String()
		case nil, bool, int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64, uintptr,
			float32, float64:
			parts[i] = fmt.Sprint(v)
		default:
			parts[i] = strings.TrimSpace(spewConfig.Sdump(v))
		}
	}
	return strings.Join(parts, " ")
}

// everyIDKey identifies one "every N per key" counter: a caller-chosen
// key paired with the call site it was hit from.
type everyIDKey struct {
	key    string
	source SourceLocation
}

// Producer is the explicit per-producer handle required by the
// stream-style API. Go has no native thread-local storage, so per §9's
// guidance this module binds the stream buffer and the "every N per
// key" counters to a caller-held handle instead of a goroutine-local;
// a Producer must not be shared across concurrently-running goroutines.
type Producer struct {
	sys *System

	buf strings.Builder

	everyIDMu sync.Mutex
	everyID   map[everyIDKey]*atomic.Uint32
}

// NewProducer returns a Producer bound to sys. Call sites typically
// keep one Producer per goroutine that logs, matching the original's
// one-LoggingStream-per-thread design.
func (sys *System) NewProducer() *Producer {
	return &Producer{sys: sys, everyID: make(map[everyIDKey]*atomic.Uint32)}
}

// ShouldLog is the short-circuit predicate from §4.8: producers pay
// near-zero cost when no sink would accept the record.
func (p *Producer) ShouldLog(tags []string) bool {
	return p.sys.ShouldLog(tags)
}

// Printf formats format/args into a message body and commits a Record,
// provided ShouldLog(tags) passes.
func (p *Producer) Printf(source SourceLocation, tags []string, format string, args ...any) {
	if !p.sys.ShouldLog(tags) {
		return
	}
	p.sys.emit(source, tags, fmt.Sprintf(format, args...))
}

// Log joins args (spew-dumping any non-primitive value, matching the
// reference library's own raw-format fallback) into a message body and
// commits a Record.
func (p *Producer) Log(source SourceLocation, tags []string, args ...any) {
	if !p.sys.ShouldLog(tags) {
		return
	}
	p.sys.emit(source, tags, sprintArgs(args))
}

// Stream begins a stream-style entry bound to this Producer's buffer.
// Callers accumulate text with Add and commit the accumulated body with
// Commit, the stream-style terminator named in §4.8.
func (p *Producer) Stream(source SourceLocation, tags ...string) *Stream {
	p.buf.Reset()
	return &Stream{p: p, source: source, tags: tags}
}

// Stream accumulates text for one stream-style log entry into its
// owning Producer's buffer. It must be terminated with Commit or the
// accumulated text is discarded on the next Stream call.
type Stream struct {
	p      *Producer
	source SourceLocation
	tags   []string
}

// Add appends the string form of args to the stream's buffer and
// returns the stream for chaining.
func (s *Stream) Add(args ...any) *Stream {
	fmt.Fprint(&s.p.buf, args...)
	return s
}

// Commit is the stream terminator: it evaluates ShouldLog once for the
// whole entry, commits a Record carrying the accumulated text if
// accepted, and resets the buffer either way.
func (s *Stream) Commit() {
	body := s.p.buf.String()
	s.p.buf.Reset()
	if !s.p.sys.ShouldLog(s.tags) {
		return
	}
	s.p.sys.emit(s.source, s.tags, body)
}

// EveryN reports whether the call site at source has been hit a
// multiple-of-n number of times, using a process-wide atomic counter
// keyed by source location (the non-ID "every N" helper of §4.8).
// Wrapping the counter past its 32-bit range is accepted behavior, not
// a bug — LogAsync.h documents the same side effect for its C++
// equivalent.
func (p *Producer) EveryN(n uint32, source SourceLocation) bool {
	if n == 0 {
		return true
	}
	c := p.sys.everyCounter(source)
	return c.Add(1)%n == 0
}

// EveryNID is the per-key variant of EveryN: the counter is keyed by
// (key, source location) and lives on this Producer handle, matching
// the original's thread-local storage for the ID variant.
func (p *Producer) EveryNID(key string, n uint32, source SourceLocation) bool {
	if n == 0 {
		return true
	}
	k := everyIDKey{key: key, source: source}

	p.everyIDMu.Lock()
	c, ok := p.everyID[k]
	if !ok {
		c = &atomic.Uint32{}
		p.everyID[k] = c
	}
	p.everyIDMu.Unlock()

	return c.Add(1)%n == 0
}
