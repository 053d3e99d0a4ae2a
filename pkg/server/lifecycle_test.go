//go:build unix

package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitalvas/radiusd/pkg/log"
	"go.uber.org/goleak"
	"golang.org/x/sys/unix"
)

func TestShutdownFlag(t *testing.T) {
	var flag ShutdownFlag
	assert.False(t, flag.IsShuttingDown())

	flag.Shutdown()
	assert.True(t, flag.IsShuttingDown())

	flag.Shutdown()
	assert.True(t, flag.IsShuttingDown())
}

func TestNotifyShutdown(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	flag := &ShutdownFlag{}
	stop := NotifyShutdown(flag, log.NewDiscardLogger(), unix.SIGUSR1)
	defer stop()

	require.NoError(t, unix.Kill(unix.Getpid(), unix.SIGUSR1))

	require.Eventually(t, flag.IsShuttingDown, time.Second, 5*time.Millisecond)
}

func TestNotifyShutdownStop(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	flag := &ShutdownFlag{}
	stop := NotifyShutdown(flag, log.NewDiscardLogger())
	stop()
	stop()

	assert.False(t, flag.IsShuttingDown())
}
