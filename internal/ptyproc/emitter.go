package ptyproc

import "sync"

// emitter holds the subscriber sets of one process. Output is produced by
// a single read pump that waits on dataReady before its first read; the
// exit event is latched so a late OnExit still observes it.
type emitter struct {
	mu     sync.Mutex
	seq    uint64
	data   map[uint64]func([]byte)
	exit   map[uint64]func(ExitEvent)
	exited bool
	last   ExitEvent

	// deliver serializes callbacks so an exit never interleaves with a
	// chunk still being handed out.
	deliver sync.Mutex

	dataReady chan struct{}
	dataOnce  sync.Once
}

func newEmitter() *emitter {
	return &emitter{
		data:      make(map[uint64]func([]byte)),
		exit:      make(map[uint64]func(ExitEvent)),
		dataReady: make(chan struct{}),
	}
}

func (e *emitter) onData(fn func([]byte)) Unsubscribe {
	e.mu.Lock()
	e.seq++
	key := e.seq
	e.data[key] = fn
	e.mu.Unlock()
	e.dataOnce.Do(func() { close(e.dataReady) })

	return func() {
		e.mu.Lock()
		delete(e.data, key)
		e.mu.Unlock()
	}
}

func (e *emitter) onExit(fn func(ExitEvent)) Unsubscribe {
	e.mu.Lock()
	if e.exited {
		ev := e.last
		e.mu.Unlock()
		// Never call back on the subscriber's own stack: callers register
		// while holding their own locks.
		go func() {
			e.deliver.Lock()
			defer e.deliver.Unlock()
			fn(ev)
		}()
		return func() {}
	}
	e.seq++
	key := e.seq
	e.exit[key] = fn
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.exit, key)
		e.mu.Unlock()
	}
}

func (e *emitter) emitData(chunk []byte) {
	e.deliver.Lock()
	defer e.deliver.Unlock()

	e.mu.Lock()
	subs := make([]func([]byte), 0, len(e.data))
	for _, fn := range e.data {
		subs = append(subs, fn)
	}
	e.mu.Unlock()

	for _, fn := range subs {
		fn(chunk)
	}
}

func (e *emitter) emitExit(ev ExitEvent) {
	e.deliver.Lock()
	defer e.deliver.Unlock()

	e.mu.Lock()
	if e.exited {
		e.mu.Unlock()
		return
	}
	e.exited = true
	e.last = ev
	subs := make([]func(ExitEvent), 0, len(e.exit))
	for _, fn := range e.exit {
		subs = append(subs, fn)
	}
	e.exit = make(map[uint64]func(ExitEvent))
	e.mu.Unlock()

	for _, fn := range subs {
		fn(ev)
	}
}
