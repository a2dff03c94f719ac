package cmd

import "time"

// watchResize polls for console size changes; Windows has no SIGWINCH.
func watchResize(fn func()) (stop func()) {
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(250 * time.Millisecond)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				fn()
			case <-done:
				return
			}
		}
	}()
	fn()
	return func() { close(done) }
}
