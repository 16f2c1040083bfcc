package log

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"
)

// heartbeatSource is the synthetic call site every heartbeat record is
// stamped with, since a heartbeat has no producer call site of its own.
const heartbeatSource = SourceLocation("asynclog::heartbeat")

// processStartTime backs the "proc" heartbeat's uptime figure; its
// sequence number is a counter local to runHeartbeat and its drop count
// comes from Queue.Dropped.
var processStartTime = time.Now()

// startHeartbeat launches the heartbeat producer goroutine, emitting a
// proc/disk/sys triplet of tagged Records every interval until
// stopHeartbeat is called. Heartbeats are ordinary Records: each
// carries the well-known "heartbeat" tag plus one of "proc", "disk",
// "sys" naming which report it is, rather than a numeric heartbeat
// level.
func (sys *System) startHeartbeat(interval time.Duration) {
	sys.heartbeatQuit = make(chan struct{})
	sys.heartbeatWG.Add(1)
	go sys.runHeartbeat(interval)
}

func (sys *System) stopHeartbeat() {
	if sys.heartbeatQuit == nil {
		return
	}
	close(sys.heartbeatQuit)
	sys.heartbeatWG.Wait()
}

func (sys *System) runHeartbeat(interval time.Duration) {
	defer sys.heartbeatWG.Done()
	var sequence atomic.Uint64

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-sys.heartbeatQuit:
			return
		case <-ticker.C:
			seq := sequence.Add(1)
			sys.emitProcHeartbeat(seq)
			sys.emitDiskHeartbeat(seq)
			sys.emitSysHeartbeat(seq)
		}
	}
}

func (sys *System) emitHeartbeat(subTag string, body string) {
	tags := []string{"heartbeat", subTag}
	if !sys.ShouldLog(tags) {
		return
	}
	sys.emit(heartbeatSource, tags, body)
}

func (sys *System) emitProcHeartbeat(sequence uint64) {
	uptime := time.Since(processStartTime)
	body := fmt.Sprintf("sequence=%d uptime_hours=%.2f dropped=%d",
		sequence, uptime.Hours(), sys.queue.Dropped())
	sys.emitHeartbeat("proc", body)
}

func (sys *System) emitDiskHeartbeat(sequence uint64) {
	sinks, _ := sys.registry.live()
	var reporting, full int
	for _, s := range sinks {
		if fs, ok := s.(*FileSink); ok {
			reporting++
			if fs.diskFull.Load() {
				full++
			}
		}
	}
	body := fmt.Sprintf("sequence=%d file_sinks=%d disk_full=%d", sequence, reporting, full)
	sys.emitHeartbeat("disk", body)
}

func (sys *System) emitSysHeartbeat(sequence uint64) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	body := fmt.Sprintf("sequence=%d alloc_mb=%.2f sys_mb=%.2f num_gc=%d num_goroutine=%d",
		sequence,
		float64(mem.Alloc)/(1000*1000),
		float64(mem.Sys)/(1000*1000),
		mem.NumGC,
		runtime.NumGoroutine())
	sys.emitHeartbeat("sys", body)
}
