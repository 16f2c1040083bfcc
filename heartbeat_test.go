package log

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHeartbeatEmitsProcDiskSysTriplet(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HeartbeatInterval = 10 * time.Millisecond
	cfg.Level = LogAll
	sys, err := New(cfg)
	require.NoError(t, err)
	defer sys.Shutdown()

	sink := newCountingSink()
	h := sys.registry.Register(sink)
	defer h.Close()

	require.Eventually(t, func() bool {
		return sink.count() >= 3
	}, time.Second, 5*time.Millisecond)
}

func TestStopHeartbeatIsSafeWithoutStart(t *testing.T) {
	cfg := DefaultConfig()
	sys, err := New(cfg)
	require.NoError(t, err)
	defer sys.Shutdown()

	sys.stopHeartbeat() // heartbeatQuit is nil; must not panic or block
}
