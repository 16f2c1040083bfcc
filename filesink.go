package log

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// RotationMode selects the rotating file sink's rotation state machine,
// per §4.6.
type RotationMode int

const (
	RotationNone RotationMode = iota
	RotationBySize
	RotationByInterval
	RotationAtDailyTime
)

// writeFlushThreshold is the buffer size at which the write path writes
// and flushes rather than continuing to accumulate, per §4.6's write
// path step 3.
const writeFlushThreshold = 4096

// diskSampleInterval is how often the disk-space watcher re-samples
// free space for the sink's directory, per §4.6.
const diskSampleInterval = 5 * time.Second

// FileSink is the rotating-file sink. Rotation mode, size cap, interval,
// and daily trigger are configured after construction via the
// transition methods below (AppendOnly, RotateAtSize, ...), matching
// the state-machine transitions named in §4.6.
type FileSink struct {
	filters *FilterChain
	format  *FormatProgram
	diag    *diagnostics

	mu            sync.Mutex
	basePath      string
	mode          RotationMode
	maxBytes      int64
	rotateThrough int
	interval      time.Duration
	dailyH        int
	dailyM        int
	dailyS        int

	file        *os.File
	curSize     int64
	lastRotated time.Time
	buf         []byte

	diskFull      atomic.Bool
	diskThreshold float64

	// closeCh is closed exactly once, by Close, and is watched only by
	// watchDiskSpace, which runs for the sink's entire lifetime.
	closeCh  chan struct{}
	closeWG  sync.WaitGroup
	closeOnce sync.Once

	// driverQuit is the current rotation-driver worker's private quit
	// channel, replaced on every mode transition under mu so a stale
	// worker never observes a channel meant for its successor.
	driverQuit chan struct{}
	driverWG   sync.WaitGroup
}

// NewFileSink opens basePath in append-only mode and starts the
// disk-space watcher. diskThresholdPct is a 0-100 percentage per §4.6
// and LogAsync.h's SetDiskSpaceThreshold; 0 means "always full" (drop
// everything), 100 means "log until the device refuses".
func NewFileSink(basePath string, diskThresholdPct float64, diag *diagnostics, format *FormatProgram) (*FileSink, error) {
	s := &FileSink{
		filters:       NewFilterChain(),
		format:        format,
		diag:          diag,
		basePath:      basePath,
		mode:          RotationNone,
		diskThreshold: diskThresholdPct / 100.0,
		closeCh:       make(chan struct{}),
	}
	if err := s.openFresh(basePath); err != nil {
		return nil, err
	}
	s.closeWG.Add(1)
	go s.watchDiskSpace()
	return s, nil
}

func (s *FileSink) Filters() *FilterChain { return s.filters }

// SetDiskThreshold reconfigures the used-fraction threshold (0-100) the
// disk-space watcher compares against, per §6's "set disk-space
// threshold" process-global control.
func (s *FileSink) SetDiskThreshold(pct float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.diskThreshold = pct / 100.0
}

func (s *FileSink) SetTimeout(time.Duration) {} // network-only capability; no-op for files

// AppendOnly transitions to RotationNone: no automatic rotation.
func (s *FileSink) AppendOnly() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopDriver()
	s.mode = RotationNone
	return s.reopenLocked(s.basePath)
}

// RotateAtSize transitions to RotationBySize: the write path rotates
// inline once curSize reaches maxBytes.
func (s *FileSink) RotateAtSize(maxBytes int64, rotateThrough int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopDriver()
	s.mode = RotationBySize
	s.maxBytes = maxBytes
	s.rotateThrough = rotateThrough
	return s.reopenLocked(s.basePath)
}

// RotateAfterElapsed transitions to RotationByInterval: a dedicated
// worker rotates every interval regardless of size.
func (s *FileSink) RotateAfterElapsed(interval time.Duration, rotateThrough int) error {
	s.mu.Lock()
	s.stopDriverLocked()
	s.mode = RotationByInterval
	s.interval = interval
	s.rotateThrough = rotateThrough
	s.lastRotated = time.Now()
	err := s.reopenLocked(s.basePath)
	quit := make(chan struct{})
	s.driverQuit = quit
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.driverWG.Add(1)
	go s.runIntervalWorker(quit)
	return nil
}

// RotateAtTime transitions to RotationAtDailyTime: a dedicated worker
// opens a new, date-suffixed file at the configured H:M:S boundary.
func (s *FileSink) RotateAtTime(h, m, sec int) error {
	s.mu.Lock()
	s.stopDriverLocked()
	s.mode = RotationAtDailyTime
	s.dailyH, s.dailyM, s.dailyS = h, m, sec
	name := s.dailyFilename(time.Now())
	err := s.reopenLocked(name)
	s.lastRotated = time.Now()
	quit := make(chan struct{})
	s.driverQuit = quit
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.driverWG.Add(1)
	go s.runDailyWorker(quit)
	return nil
}

// stopDriver stops any running rotation-driver worker before a mode
// transition installs a new one.
func (s *FileSink) stopDriver() {
	s.stopDriverLocked()
}

// stopDriverLocked must be called with mu held. It signals the current
// driver worker (if any) and waits for it to exit before a caller
// installs a new one, so two drivers never run concurrently.
func (s *FileSink) stopDriverLocked() {
	if s.driverQuit != nil {
		close(s.driverQuit)
		s.driverQuit = nil
		s.mu.Unlock()
		s.driverWG.Wait()
		s.mu.Lock()
	}
}

// dailyFilename constructs the "<base>.YYYY.M.D" name for the daily
// rotation mode. If now precedes today's H:M:S trigger, the record
// "belongs" to yesterday (§4.6), so the suffix names yesterday's date.
// Numerals are locale-insensitive decimal integers without zero padding — Open
// Question 4's resolution — not the OS locale's month/day names.
func (s *FileSink) dailyFilename(now time.Time) string {
	trigger := time.Date(now.Year(), now.Month(), now.Day(), s.dailyH, s.dailyM, s.dailyS, 0, now.Location())
	day := now
	if now.Before(trigger) {
		day = now.AddDate(0, 0, -1)
	}
	return fmt.Sprintf("%s.%d.%d.%d", s.basePath, day.Year(), int(day.Month()), day.Day())
}

// openFresh opens path in append mode as the sink's active file. Called
// only outside the sink's own lock (construction time).
func (s *FileSink) openFresh(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reopenLocked(path)
}

func (s *FileSink) reopenLocked(path string) error {
	if s.file != nil {
		s.file.Close()
		s.file = nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		s.diag.Report("open %s: %v", path, err)
		return fmtErrorf("open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err == nil {
		s.curSize = info.Size()
	} else {
		s.curSize = 0
	}
	s.file = f
	return nil
}

// rotateCascade implements §4.6's cascading rename: close the active
// file, unlink <base>.(N-1) if present, shift <base>.1..<base>.(N-2) up
// by one, rename <base> to <base>.1, and open a fresh <base>. With
// rotateThrough == N this leaves at most <base>.1..<base>.(N-1) on disk
// alongside the active file, per Testable Property 6. Grounded in
// original_source/LogAsync/LogHandler.cpp's RenameExistingLogs
// (deletionCandidate = baseFileName + "." + (_numToRotateThrough - 1)).
func (s *FileSink) rotateCascade() {
	if s.file != nil {
		s.file.Close()
		s.file = nil
	}

	n := s.rotateThrough
	if n > 1 {
		oldest := s.basePath + "." + strconv.Itoa(n-1)
		if _, err := os.Stat(oldest); err == nil {
			if err := os.Remove(oldest); err != nil {
				s.diag.Report("remove %s: %v", oldest, err)
			}
		}
		for i := n - 1; i >= 1; i-- {
			from := s.basePath + "." + strconv.Itoa(i)
			to := s.basePath + "." + strconv.Itoa(i+1)
			if _, err := os.Stat(from); err == nil {
				if err := os.Rename(from, to); err != nil {
					s.diag.Report("rename %s -> %s: %v", from, to, err)
				}
			}
		}
	}

	if _, err := os.Stat(s.basePath); err == nil {
		to := s.basePath + ".1"
		if err := os.Rename(s.basePath, to); err != nil {
			s.diag.Report("rename %s -> %s: %v", s.basePath, to, err)
		}
	}

	if err := s.reopenLocked(s.basePath); err != nil {
		return
	}
	s.lastRotated = time.Now()
	s.curSize = 0
}

// checkRotationLocked re-checks the mode-appropriate trigger after a
// flush, per §4.6's "size check policy": size mode checks the byte
// cap inline; interval mode is checked here too as a backup in case the
// dedicated worker is asleep.
func (s *FileSink) checkRotationLocked() {
	switch s.mode {
	case RotationBySize:
		if s.curSize >= s.maxBytes {
			s.rotateCascade()
		}
	case RotationByInterval:
		if !s.lastRotated.IsZero() && time.Since(s.lastRotated) >= s.interval {
			s.rotateCascade()
		}
	}
}

func (s *FileSink) runIntervalWorker(quit chan struct{}) {
	defer s.driverWG.Done()
	for {
		s.mu.Lock()
		next := s.lastRotated.Add(s.interval)
		s.mu.Unlock()
		wait := time.Until(next)
		if wait < 0 {
			wait = 0
		}
		t := time.NewTimer(wait)
		select {
		case <-quit:
			t.Stop()
			return
		case <-t.C:
			s.mu.Lock()
			if s.mode == RotationByInterval && time.Since(s.lastRotated) >= s.interval {
				s.rotateCascade()
			}
			s.mu.Unlock()
		}
	}
}

func (s *FileSink) runDailyWorker(quit chan struct{}) {
	defer s.driverWG.Done()
	for {
		now := time.Now()
		trigger := time.Date(now.Year(), now.Month(), now.Day(), s.dailyH, s.dailyM, s.dailyS, 0, now.Location())
		if !trigger.After(now) {
			trigger = trigger.AddDate(0, 0, 1)
		}
		t := time.NewTimer(time.Until(trigger))
		select {
		case <-quit:
			t.Stop()
			return
		case <-t.C:
			s.mu.Lock()
			if s.mode == RotationAtDailyTime {
				name := s.dailyFilename(time.Now())
				s.reopenLocked(name)
				s.lastRotated = time.Now()
			}
			s.mu.Unlock()
		}
	}
}

// watchDiskSpace periodically samples free space for the sink's
// directory and sets diskFull when the used fraction reaches the
// configured threshold. Per Open Question 2, equality counts as full.
func (s *FileSink) watchDiskSpace() {
	defer s.closeWG.Done()
	ticker := time.NewTicker(diskSampleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.closeCh:
			return
		case <-ticker.C:
			used, err := usedFraction(filepath.Dir(s.basePath))
			if err != nil {
				continue
			}
			s.diskFull.Store(used >= s.diskThreshold)
		}
	}
}

// usedFraction reports the fraction of the filesystem containing dir
// that is currently in use.
func usedFraction(dir string) (float64, error) {
	var st syscall.Statfs_t
	if err := syscall.Statfs(dir, &st); err != nil {
		return 0, err
	}
	total := st.Blocks * uint64(st.Bsize)
	free := st.Bfree * uint64(st.Bsize)
	if total == 0 {
		return 0, nil
	}
	return 1.0 - float64(free)/float64(total), nil
}

// Handle implements Sink: filter, format, and append each accepted
// record, flushing in writeFlushThreshold-byte chunks and re-checking
// rotation after every flush, per §4.6's write path.
func (s *FileSink) Handle(batch []Record) {
	s.filters.Lock()
	defer s.filters.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.diskFull.Load() {
		return
	}
	if s.file == nil {
		if err := s.reopenLocked(s.basePath); err != nil {
			return
		}
	}

	for i := range batch {
		rec := &batch[i]
		if !s.filters.Accepts(rec) {
			continue
		}
		s.buf = s.format.Render(s.buf, rec)
		s.buf = append(s.buf, '\n')

		if len(s.buf) >= writeFlushThreshold {
			s.flushLocked()
		}
	}
	s.flushLocked()
}

func (s *FileSink) flushLocked() {
	if len(s.buf) == 0 {
		return
	}
	n, err := s.file.Write(s.buf)
	s.curSize += int64(n)
	s.buf = s.buf[:0]
	if err != nil {
		s.diag.Report("write %s: %v", s.basePath, err)
		return
	}
	if err := s.file.Sync(); err != nil {
		s.diag.Report("sync %s: %v", s.basePath, err)
	}
	s.checkRotationLocked()
}

// Close stops all background workers and closes the active file
// handle. Safe to call more than once.
func (s *FileSink) Close() error {
	s.mu.Lock()
	s.stopDriverLocked()
	s.mu.Unlock()

	s.closeOnce.Do(func() {
		close(s.closeCh)
	})
	s.closeWG.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file != nil {
		err := s.file.Close()
		s.file = nil
		return err
	}
	return nil
}
