// Package session keeps a pool of live PTY-backed shells and routes input,
// output, resize and exit notifications per session id.
package session

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/LittleBreak/work-box-sub001/internal/metrics"
	"github.com/LittleBreak/work-box-sub001/internal/ptyproc"
)

// DataFunc receives one chunk of terminal output.
type DataFunc func(data []byte)

// ExitFunc receives the exit code of a session's shell.
type ExitFunc func(exitCode int)

// Options configures a Manager.
type Options struct {
	// Spawner defaults to the platform PTY spawner.
	Spawner ptyproc.Spawner
	// Shell defaults to ptyproc.DefaultShell().
	Shell string
	// HomeDir is the working directory of sessions created without one.
	// Defaults to the user's home directory.
	HomeDir string
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// CreateOptions describes a new session. Zero values take defaults.
type CreateOptions struct {
	Cols uint16
	Rows uint16
	Cwd  string
	// Env is layered over the inherited environment.
	Env map[string]string
}

// Info describes a live session.
type Info struct {
	ID        string    `json:"id"`
	PID       int       `json:"pid"`
	Shell     string    `json:"shell"`
	Cwd       string    `json:"cwd"`
	Cols      uint16    `json:"cols"`
	Rows      uint16    `json:"rows"`
	StartedAt time.Time `json:"started_at"`
}

type session struct {
	id        string
	proc      ptyproc.Process
	shell     string
	cwd       string
	cols      uint16
	rows      uint16
	startedAt time.Time

	subSeq   uint64
	dataSubs map[uint64]DataFunc
	exitSubs map[uint64]ExitFunc

	detach []ptyproc.Unsubscribe
}

func (s *session) unsubscribeAll() {
	for _, unsub := range s.detach {
		unsub()
	}
}

// Manager owns the session pool. The zero value is not usable; call
// NewManager.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*session

	spawner ptyproc.Spawner
	shell   string
	homeDir string
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewManager creates an empty pool.
func NewManager(opts Options) *Manager {
	if opts.Spawner == nil {
		opts.Spawner = ptyproc.NewSpawner()
	}
	if opts.Shell == "" {
		opts.Shell = ptyproc.DefaultShell()
	}
	if opts.HomeDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			opts.HomeDir = home
		}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Manager{
		sessions: make(map[string]*session),
		spawner:  opts.Spawner,
		shell:    opts.Shell,
		homeDir:  opts.HomeDir,
		logger:   opts.Logger.Named("session"),
		metrics:  opts.Metrics,
	}
}

// Create spawns a shell and returns the id of its new session. The session
// is fully registered before Create returns; on spawn failure nothing is.
func (m *Manager) Create(opts CreateOptions) (string, error) {
	if opts.Cols == 0 {
		opts.Cols = ptyproc.DefaultCols
	}
	if opts.Rows == 0 {
		opts.Rows = ptyproc.DefaultRows
	}
	if opts.Cwd == "" {
		opts.Cwd = m.homeDir
	}

	id := uuid.NewString()

	// Held across the spawn so output routed from the new process waits
	// until the session is in the pool.
	m.mu.Lock()
	defer m.mu.Unlock()

	proc, err := m.spawner.Spawn(m.shell, nil, ptyproc.SpawnOptions{
		TermType: ptyproc.DefaultTermType,
		Cols:     opts.Cols,
		Rows:     opts.Rows,
		Cwd:      opts.Cwd,
		Env:      ptyproc.Environ(opts.Env, ptyproc.DefaultTermType),
	})
	if err != nil {
		return "", fmt.Errorf("spawn %s: %w", m.shell, err)
	}

	s := &session{
		id:        id,
		proc:      proc,
		shell:     m.shell,
		cwd:       opts.Cwd,
		cols:      opts.Cols,
		rows:      opts.Rows,
		startedAt: time.Now(),
		dataSubs:  make(map[uint64]DataFunc),
		exitSubs:  make(map[uint64]ExitFunc),
	}
	s.detach = []ptyproc.Unsubscribe{
		proc.OnData(func(data []byte) { m.routeData(id, data) }),
		proc.OnExit(func(ev ptyproc.ExitEvent) { m.routeExit(s, ev) }),
	}
	m.sessions[id] = s

	m.metrics.SessionOpened()
	m.logger.Info("session created",
		zap.String("id", id),
		zap.Int("pid", proc.Pid()),
		zap.String("shell", m.shell),
		zap.String("cwd", opts.Cwd),
		zap.Uint16("cols", opts.Cols),
		zap.Uint16("rows", opts.Rows),
	)
	return id, nil
}

// Write forwards data to the session's terminal input.
func (m *Manager) Write(id string, data []byte) error {
	s, err := m.lookup(id)
	if err != nil {
		return err
	}
	if err := s.proc.Write(data); err != nil {
		return fmt.Errorf("write session %s: %w", id, err)
	}
	return nil
}

// Resize changes the session's terminal dimensions.
func (m *Manager) Resize(id string, cols, rows uint16) error {
	s, err := m.lookup(id)
	if err != nil {
		return err
	}
	if err := s.proc.Resize(cols, rows); err != nil {
		return fmt.Errorf("resize session %s: %w", id, err)
	}

	m.mu.Lock()
	s.cols, s.rows = cols, rows
	m.mu.Unlock()
	return nil
}

// OnData registers fn for every output chunk of the session. Subscribers
// stay registered until the session leaves the pool.
func (m *Manager) OnData(id string, fn DataFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return notFound(id)
	}
	s.subSeq++
	s.dataSubs[s.subSeq] = fn
	return nil
}

// OnExit registers fn to receive the exit code when the shell terminates
// on its own. Sessions removed by Close or CloseAll do not notify.
func (m *Manager) OnExit(id string, fn ExitFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return notFound(id)
	}
	s.subSeq++
	s.exitSubs[s.subSeq] = fn
	return nil
}

// Close kills the session's process and removes it from the pool without
// waiting for the process to exit. Exit subscribers are not notified, and a
// chunk whose delivery had already started may still complete after Close
// returns.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return notFound(id)
	}
	delete(m.sessions, id)
	m.mu.Unlock()

	m.terminate(s, metrics.ReasonClose)
	return nil
}

// CloseAll kills every live session and empties the pool.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*session)
	m.mu.Unlock()

	for _, s := range sessions {
		m.terminate(s, metrics.ReasonCloseAll)
	}
}

// ListSessions returns the ids of all live sessions in no particular order.
func (m *Manager) ListSessions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Info describes a live session.
func (m *Manager) Info(id string) (Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return Info{}, notFound(id)
	}
	return Info{
		ID:        s.id,
		PID:       s.proc.Pid(),
		Shell:     s.shell,
		Cwd:       s.cwd,
		Cols:      s.cols,
		Rows:      s.rows,
		StartedAt: s.startedAt,
	}, nil
}

func (m *Manager) lookup(id string) (*session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, notFound(id)
	}
	return s, nil
}

// terminate releases a session already removed from the pool.
func (m *Manager) terminate(s *session, reason string) {
	s.unsubscribeAll()
	if err := s.proc.Kill(os.Kill); err != nil {
		m.logger.Warn("kill session", zap.String("id", s.id), zap.Error(err))
	}
	m.metrics.SessionClosed(reason)
	m.logger.Info("session closed", zap.String("id", s.id), zap.String("reason", reason))
}

// routeData looks the session up on every chunk: a process may keep
// emitting buffered output after its session left the pool.
func (m *Manager) routeData(id string, data []byte) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	subs := make([]DataFunc, 0, len(s.dataSubs))
	for _, fn := range s.dataSubs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(data)
	}
}

func (m *Manager) routeExit(s *session, ev ptyproc.ExitEvent) {
	m.mu.Lock()
	if cur, ok := m.sessions[s.id]; !ok || cur != s {
		m.mu.Unlock()
		return
	}
	delete(m.sessions, s.id)
	subs := make([]ExitFunc, 0, len(s.exitSubs))
	for _, fn := range s.exitSubs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	s.unsubscribeAll()
	m.metrics.SessionClosed(metrics.ReasonExit)
	m.logger.Info("session exited",
		zap.String("id", s.id),
		zap.Int("exit_code", ev.ExitCode),
		zap.Stringer("signal", signalName{ev.Signal}),
	)

	for _, fn := range subs {
		fn(ev.ExitCode)
	}
}

type signalName struct{ sig os.Signal }

func (s signalName) String() string {
	if s.sig == nil {
		return "none"
	}
	return s.sig.String()
}
