//go:build !windows

package cmd

import (
	"os"
	"os/signal"
	"syscall"
)

// watchResize calls fn once now and again on every SIGWINCH until stop is
// called.
func watchResize(fn func()) (stop func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGWINCH)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ch:
				fn()
			case <-done:
				return
			}
		}
	}()
	fn()
	return func() {
		signal.Stop(ch)
		close(done)
	}
}
