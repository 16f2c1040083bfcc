package log

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/veyron-labs/asynclog/sanitizer"
)

// System is the process-scoped service object wiring together every
// component named in §2: queue, dispatcher, registry, tag memo,
// diagnostics, and the shared format program. Per §9's "global mutable
// registry and memos" guidance, it is exposed as a single object
// initialised once by New; tests construct their own private instance
// to isolate state rather than reaching for package-level globals.
type System struct {
	cfg atomic.Pointer[Config]

	queue      *Queue
	registry   *Registry
	dispatcher *Dispatcher
	tagMemo    *tagMemo
	diag       *diagnostics
	format     *FormatProgram

	level atomic.Pointer[string]

	everyCounters sync.Map // SourceLocation -> *atomic.Uint32

	state state

	heartbeatQuit chan struct{}
	heartbeatWG   sync.WaitGroup
}

// New constructs a System from cfg (DefaultConfig() if nil), starting
// the dispatcher and, if configured, the heartbeat producer. The
// dispatcher's ordering and dispatch behavior are fixed for the
// System's lifetime by cfg.Mode, matching §4.4's "one-time choice per
// process".
func New(cfg *Config) (*System, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg = cfg.Clone()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	mode := modeFromString(cfg.Mode)
	memo := newTagMemo()

	sys := &System{
		queue:    NewQueue(mode.ordered()),
		registry: NewRegistry(),
		tagMemo:  memo,
		diag:     newDiagnostics(cfg.InternalErrorsToStderr),
		format:   CompileFormat(cfg.LineFormat, cfg.TimeFormat, memo, sanitizer.PolicyPreset(cfg.SanitizePolicy)),
	}
	sys.cfg.Store(cfg)
	level := cfg.Level
	sys.level.Store(&level)
	sys.dispatcher = NewDispatcher(sys.queue, sys.registry, mode)

	if cfg.HeartbeatInterval > 0 {
		sys.startHeartbeat(cfg.HeartbeatInterval)
	}

	return sys, nil
}

// Config returns a clone of the System's current configuration.
func (sys *System) Config() *Config {
	return sys.cfg.Load().Clone()
}

// SetLevel reconfigures the process-wide level-filter threshold (§6,
// §4.9), taking effect on the next should_log evaluation.
func (sys *System) SetLevel(tag string) {
	sys.level.Store(&tag)
}

// SetDiskSpaceThreshold reconfigures the used-fraction threshold (0-100)
// on every currently-registered file sink (§6). Sinks registered after
// this call use their own constructor-supplied default.
func (sys *System) SetDiskSpaceThreshold(pct float64) {
	sinks, _ := sys.registry.live()
	for _, s := range sinks {
		if fs, ok := s.(*FileSink); ok {
			fs.SetDiskThreshold(pct)
		}
	}
}

// DiskFull reports the process-wide disk-full short-circuit used by
// should_log: true iff at least one file sink is registered and every
// registered file sink currently reports its own disk-full flag. A
// process with no file sinks, or with at least one sink that still has
// room, is never considered disk-full — only total exhaustion across
// every file target should stop producers from even trying.
func (sys *System) DiskFull() bool {
	sinks, _ := sys.registry.live()
	total, full := 0, 0
	for _, s := range sinks {
		if fs, ok := s.(*FileSink); ok {
			total++
			if fs.diskFull.Load() {
				full++
			}
		}
	}
	return total > 0 && full == total
}

// ShouldLog is §4.8's producer short-circuit: disk-full, no live sinks,
// or the level filter rejecting the tag set all reject without
// touching the queue.
func (sys *System) ShouldLog(tags []string) bool {
	if sys.state.quit.Load() {
		return false
	}
	if !sys.registry.AnyLive() {
		return false
	}
	if sys.DiskFull() {
		return false
	}
	levelTag := *sys.level.Load()
	return LevelFilterFor(levelTag)(tags)
}

// emit stamps the wall-clock instant and enqueues a Record. Callers
// (Producer, heartbeat) are expected to have already checked
// ShouldLog.
func (sys *System) emit(source SourceLocation, tags []string, body string) {
	sys.queue.Enqueue(Record{
		When:   time.Now(),
		Source: source,
		Tags:   tags,
		Body:   body,
	})
}

// everyCounter returns the process-wide atomic counter for the
// non-keyed "every N" helper at source, creating it on first sight.
func (sys *System) everyCounter(source SourceLocation) *atomic.Uint32 {
	if v, ok := sys.everyCounters.Load(source); ok {
		return v.(*atomic.Uint32)
	}
	c := &atomic.Uint32{}
	actual, _ := sys.everyCounters.LoadOrStore(source, c)
	return actual.(*atomic.Uint32)
}

// RegisterAppendLog registers an append-only file sink at path (§6).
func (sys *System) RegisterAppendLog(path string) (*Handle, error) {
	sink, err := NewFileSink(path, sys.cfg.Load().DiskThresholdPercent, sys.diag, sys.format)
	if err != nil {
		return nil, err
	}
	return sys.registry.Register(sink), nil
}

// RegisterSizeRotatedLog registers a size-triggered cascading-rename
// file sink (§4.6, §6).
func (sys *System) RegisterSizeRotatedLog(path string, maxBytes int64, rotateThrough int) (*Handle, error) {
	sink, err := NewFileSink(path, sys.cfg.Load().DiskThresholdPercent, sys.diag, sys.format)
	if err != nil {
		return nil, err
	}
	if err := sink.RotateAtSize(maxBytes, rotateThrough); err != nil {
		sink.Close()
		return nil, err
	}
	return sys.registry.Register(sink), nil
}

// RegisterIntervalRotatedLog registers an interval-triggered
// cascading-rename file sink (§4.6, §6).
func (sys *System) RegisterIntervalRotatedLog(path string, interval time.Duration, rotateThrough int) (*Handle, error) {
	sink, err := NewFileSink(path, sys.cfg.Load().DiskThresholdPercent, sys.diag, sys.format)
	if err != nil {
		return nil, err
	}
	if err := sink.RotateAfterElapsed(interval, rotateThrough); err != nil {
		sink.Close()
		return nil, err
	}
	return sys.registry.Register(sink), nil
}

// RegisterDailyRotatedLog registers a daily-time-triggered file sink
// with a `.YYYY.M.D` filename suffix (§4.6, §6).
func (sys *System) RegisterDailyRotatedLog(path string, hour, minute, second int) (*Handle, error) {
	sink, err := NewFileSink(path, sys.cfg.Load().DiskThresholdPercent, sys.diag, sys.format)
	if err != nil {
		return nil, err
	}
	if err := sink.RotateAtTime(hour, minute, second); err != nil {
		sink.Close()
		return nil, err
	}
	return sys.registry.Register(sink), nil
}

// RegisterDatagram registers a UDP datagram destination, v4 or v6
// (§4.7, §6).
func (sys *System) RegisterDatagram(host, port string, v6 bool) (*Handle, error) {
	sink := NewDatagramSink(host, port, v6, sys.diag, sys.format)
	return sys.registry.Register(sink), nil
}

// Flush blocks until the ingestion queue reports zero outstanding
// records, without stopping the dispatcher.
func (sys *System) Flush() {
	for sys.queue.Outstanding() > 0 {
		time.Sleep(time.Millisecond)
	}
}

// Shutdown runs the RAII teardown chain of §5/§9 exactly once:
// producers quiesce (the quit flag flips, so ShouldLog starts
// rejecting), the dispatcher drains the queue to zero outstanding
// records and stops, and every live sink is closed.
func (sys *System) Shutdown() {
	sys.state.shutdownOnce.Do(func() {
		sys.state.quit.Store(true)
		sys.stopHeartbeat()
		sys.dispatcher.Stop()
		sinks, _ := sys.registry.live()
		for _, s := range sinks {
			s.Close()
		}
	})
}
