package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelFilterAcceptsAtOrAboveThreshold(t *testing.T) {
	f := LevelFilterFor(LogWarn)
	assert.True(t, f([]string{LogFatal}))
	assert.True(t, f([]string{LogError}))
	assert.True(t, f([]string{LogWarn}))
	assert.False(t, f([]string{LogInfo}))
	assert.False(t, f([]string{LogDebug}))
}

func TestLevelFilterAllAcceptsEverythingIncludingUntagged(t *testing.T) {
	f := LevelFilterFor(LogAll)
	assert.True(t, f([]string{LogDebug}))
	assert.True(t, f(nil))
	assert.True(t, f([]string{"some-other-tag"}))
}

func TestLevelFilterUnknownValueDefaultsToAcceptAll(t *testing.T) {
	f := LevelFilterFor("not-a-real-level")
	assert.True(t, f([]string{LogDebug}))
}

func TestLevelFilterRecordWithNoLevelTagIsRejectedBelowAll(t *testing.T) {
	f := LevelFilterFor(LogError)
	assert.False(t, f([]string{"unrelated"}))
}
