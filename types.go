package log

import (
	"fmt"
	"sort"
	"time"
)

// Well-known level tags. A Record's level, if any, is just one of these
// tags among its tag set — logging here is tag-based, not level-based.
const (
	LogFatal = "LOG_FATAL"
	LogError = "LOG_ERROR"
	LogWarn  = "LOG_WARN"
	LogInfo  = "LOG_INFO"
	LogDebug = "LOG_DEBUG"
	LogAll   = "LOG_ALL"
)

// levelRank orders the six well-known tags from most to least severe.
// Fatal < Error < Warn < Info < Debug < All, matching §4.9.
var levelRank = map[string]int{
	LogFatal: 0,
	LogError: 1,
	LogWarn:  2,
	LogInfo:  3,
	LogDebug: 4,
	LogAll:   5,
}

// SourceLocation is the compile-time "file::line" literal identifying a
// producer call site. It is assumed immutable once constructed and is
// used as the key for the tag memo, the filter cache, and the "every N"
// counters.
type SourceLocation string

// At builds a SourceLocation from a file path and line number, matching
// the "file::line" format used throughout the design notes.
func At(file string, line int) SourceLocation {
	return SourceLocation(fmt.Sprintf("%s::%d", file, line))
}

// Record is a single logging event. Once constructed it is read-only:
// it travels from the ingestion queue into a batch and from there into
// every live sink that accepts it.
type Record struct {
	Seq    uint64
	When   time.Time
	Source SourceLocation
	Tags   []string
	Body   string
}

// HasTag reports whether the record carries the given tag.
func (r *Record) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// sortBySeq sorts records in place by ascending sequence number, used by
// the ordered drain path.
func sortBySeq(records []Record) {
	sort.Slice(records, func(i, j int) bool { return records[i].Seq < records[j].Seq })
}

// fmtErrorf wraps fmt.Errorf, guaranteeing an "asynclog: " prefix so
// errors originating in this package are attributable at a glance in a
// mixed-package stack trace.
func fmtErrorf(format string, args ...any) error {
	return fmt.Errorf("asynclog: "+format, args...)
}

// combineErrors folds multiple independent errors (e.g. from validating
// several override keys at once) into a single error.
func combineErrors(errs []error) error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	}
	msg := "asynclog: multiple errors:"
	for i, err := range errs {
		msg += fmt.Sprintf("\n  %d. %s", i+1, err.Error())
	}
	return fmt.Errorf("%s", msg)
}
