// Package shutdown coordinates graceful process termination. Components
// register named hooks that run, in reverse registration order, when a
// SIGINT/SIGTERM arrives or Trigger is called.
package shutdown

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

type hook struct {
	name string
	fn   func()
}

var (
	mut       sync.Mutex //nolint:gochecknoglobals
	hooks     []hook     //nolint:gochecknoglobals
	triggerCh chan os.Signal
)

// OnShutdown registers a function to run during shutdown. The root context
// is still alive while hooks run, so hooks may use it to flush work.
// Hooks run in reverse registration order (last registered, first run).
func OnShutdown(name string, fn func()) {
	mut.Lock()
	defer mut.Unlock()

	hooks = append(hooks, hook{name: name, fn: fn})
}

// Trigger starts the shutdown sequence programmatically. Shutdown is
// normally signal-driven; Trigger exists for fatal-error paths.
func Trigger() {
	mut.Lock()
	ch := triggerCh
	mut.Unlock()

	if ch != nil {
		select {
		case ch <- os.Interrupt:
		default:
		}
	}
}

// SetupHandler installs a SIGINT/SIGTERM handler and returns a context that
// is canceled after all shutdown hooks have completed.
func SetupHandler() context.Context {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)

	mut.Lock()
	triggerCh = ch
	mut.Unlock()

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		sig := <-ch
		slog.Warn("Received "+sig.String()+", shutting down", "signal", sig.String())

		signal.Stop(ch)
		runHooks()
		cancel()
	}()

	return ctx
}

func runHooks() {
	mut.Lock()
	pending := hooks
	hooks = nil
	triggerCh = nil
	mut.Unlock()

	for i := len(pending) - 1; i >= 0; i-- {
		slog.Debug("Running shutdown hook", "hook", pending[i].name)
		pending[i].fn()
	}
}
