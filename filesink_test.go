package log

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veyron-labs/asynclog/sanitizer"
)

func newTestFormat() *FormatProgram {
	return CompileFormat("%m", "%S", newTagMemo(), sanitizer.PolicyRaw)
}

func TestFileSinkAppendOnlyWritesEachRecord(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	diag := newDiagnostics(false)

	s, err := NewFileSink(path, 100, diag, newTestFormat())
	require.NoError(t, err)
	defer s.Close()

	s.Handle([]Record{{Body: "one"}, {Body: "two"}})

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", string(data))
}

func TestFileSinkRespectsFilterChain(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	diag := newDiagnostics(false)

	s, err := NewFileSink(path, 100, diag, newTestFormat())
	require.NoError(t, err)
	defer s.Close()

	s.Filters().Add(func(r *Record) bool { return r.HasTag("keep") })
	s.Handle([]Record{
		{Source: At("a.go", 1), Body: "dropped", Tags: []string{"other"}},
		{Source: At("b.go", 2), Body: "kept", Tags: []string{"keep"}},
	})

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "kept\n", string(data))
}

func TestFileSinkSkipsWriteWhenDiskFull(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	diag := newDiagnostics(false)

	s, err := NewFileSink(path, 100, diag, newTestFormat())
	require.NoError(t, err)
	defer s.Close()
	s.diskFull.Store(true)

	s.Handle([]Record{{Body: "nope"}})

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestFileSinkRotateAtSizeCascadesRename(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	diag := newDiagnostics(false)

	s, err := NewFileSink(path, 100, diag, newTestFormat())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.RotateAtSize(10, 3))

	s.Handle([]Record{{Body: "aaaaaaaaaaaa"}}) // exceeds the 10-byte cap, rotates after write
	s.Handle([]Record{{Body: "second"}})

	_, err = os.Stat(path + ".1")
	assert.NoError(t, err)
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestFileSinkRotateAtSizeCapsGenerationsAtRotateThroughMinusOne(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	diag := newDiagnostics(false)

	s, err := NewFileSink(path, 100, diag, newTestFormat())
	require.NoError(t, err)
	defer s.Close()

	// rotateThrough=2 caps the on-disk generation suffix at N-1=1: only
	// <base>.1 may ever exist alongside the active file (Testable
	// Property 6), regardless of how many rotations occur.
	require.NoError(t, s.RotateAtSize(1, 2))

	for i := 0; i < 3; i++ {
		s.Handle([]Record{{Body: "xxxxxxxxxx"}})
	}

	_, err = os.Stat(path + ".1")
	assert.NoError(t, err)
	_, err = os.Stat(path + ".2")
	assert.True(t, os.IsNotExist(err), "rotateThrough=2 must never create .2")
}

func TestFileSinkRotateAtSizeKeepsNMinusOneGenerations(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	diag := newDiagnostics(false)

	s, err := NewFileSink(path, 100, diag, newTestFormat())
	require.NoError(t, err)
	defer s.Close()

	// rotateThrough=3 caps the suffix at N-1=2: .1 and .2 may exist, .3
	// must never appear no matter how many rotations occur.
	require.NoError(t, s.RotateAtSize(1, 3))

	for i := 0; i < 5; i++ {
		s.Handle([]Record{{Body: "xxxxxxxxxx"}})
	}

	_, err = os.Stat(path + ".1")
	assert.NoError(t, err)
	_, err = os.Stat(path + ".2")
	assert.NoError(t, err)
	_, err = os.Stat(path + ".3")
	assert.True(t, os.IsNotExist(err), "rotateThrough=3 must never create .3")
}

func TestFileSinkDailyFilenameUsesYesterdayBeforeTrigger(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	diag := newDiagnostics(false)

	s, err := NewFileSink(path, 100, diag, newTestFormat())
	require.NoError(t, err)
	defer s.Close()
	s.dailyH, s.dailyM, s.dailyS = 23, 59, 0

	now := time.Date(2024, 3, 15, 1, 0, 0, 0, time.UTC)
	name := s.dailyFilename(now)
	assert.Equal(t, path+".2024.3.14", name)
}

func TestFileSinkDailyFilenameUsesTodayAfterTrigger(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	diag := newDiagnostics(false)

	s, err := NewFileSink(path, 100, diag, newTestFormat())
	require.NoError(t, err)
	defer s.Close()
	s.dailyH, s.dailyM, s.dailyS = 0, 0, 0

	now := time.Date(2024, 3, 15, 1, 0, 0, 0, time.UTC)
	name := s.dailyFilename(now)
	assert.Equal(t, path+".2024.3.15", name)
}

func TestFileSinkSetDiskThresholdConvertsPercentToFraction(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	diag := newDiagnostics(false)

	s, err := NewFileSink(path, 100, diag, newTestFormat())
	require.NoError(t, err)
	defer s.Close()

	s.SetDiskThreshold(55)
	assert.InDelta(t, 0.55, s.diskThreshold, 0.0001)
}

func TestFileSinkCloseIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	diag := newDiagnostics(false)

	s, err := NewFileSink(path, 100, diag, newTestFormat())
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestFileSinkModeTransitionStopsPreviousDriver(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	diag := newDiagnostics(false)

	s, err := NewFileSink(path, 100, diag, newTestFormat())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.RotateAfterElapsed(time.Hour, 3))
	require.NoError(t, s.RotateAtTime(0, 0, 0))
	require.NoError(t, s.AppendOnly())
}
