package server

import (
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/vitalvas/radiusd/pkg/log"
)

// ShutdownSignal is polled by the dispatcher between waits and packets.
type ShutdownSignal interface {
	IsShuttingDown() bool
}

// ShutdownFlag is a ShutdownSignal set once by Shutdown.
type ShutdownFlag struct {
	set atomic.Bool
}

// Shutdown asks the dispatcher to stop.
func (f *ShutdownFlag) Shutdown() {
	f.set.Store(true)
}

// IsShuttingDown reports whether Shutdown was called.
func (f *ShutdownFlag) IsShuttingDown() bool {
	return f.set.Load()
}

// NotifyShutdown sets flag when one of signals arrives, SIGINT and SIGTERM
// by default. The returned func stops signal delivery.
func NotifyShutdown(flag *ShutdownFlag, logger log.Logger, signals ...os.Signal) (stop func()) {
	if len(signals) == 0 {
		signals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}

	ch := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(ch, signals...)

	go func() {
		select {
		case sig := <-ch:
			logger.Infof("Received signal %v, initiating graceful shutdown", sig)
			flag.Shutdown()
		case <-done:
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(ch)
			close(done)
		})
	}
}
