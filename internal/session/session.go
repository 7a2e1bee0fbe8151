// Package session owns ephemeral execution sessions: one spawned
// pseudo-terminal-backed process per connection, an output pump streaming
// its stdout to the owning client, and idempotent teardown of every process
// and filesystem resource a session holds.
package session

import (
	"os"
	"os/exec"
	"sync"
)

// State is the lifecycle state of one session.
type State int

const (
	// Starting: workspace prepared, spawn requested.
	Starting State = iota
	// Running: process spawned, pump active.
	Running
	// Ended: process exited normally, output drained.
	Ended
	// Killed: explicit disconnect or superseding start.
	Killed
	// Errored: spawn failed or the output stream failed unexpectedly.
	Errored
	// Cleaned: all resources released, session removed from the registry.
	Cleaned
)

func (s State) String() string {
	switch s {
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Ended:
		return "ended"
	case Killed:
		return "killed"
	case Errored:
		return "error"
	case Cleaned:
		return "cleaned"
	}
	return "unknown"
}

// Session is one connection's live execution. All sessions are owned by a
// Registry; a connection has at most one at a time.
type Session struct {
	connID   string
	language string
	workDir  string

	cmd  *exec.Cmd
	ptmx *os.File

	mu    sync.Mutex
	state State
	// sent holds artifact paths already delivered to the client. It only
	// grows for the lifetime of the session.
	sent map[string]bool

	// closing is the cancellation signal every teardown trigger funnels
	// through. The pump observes it each poll cycle.
	closing   chan struct{}
	closeOnce sync.Once
	// exited is closed once the process has been reaped. Closed by the wait
	// goroutine started at spawn.
	exited chan struct{}

	registry *Registry
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// isClosing reports whether teardown has been triggered.
func (s *Session) isClosing() bool {
	select {
	case <-s.closing:
		return true
	default:
		return false
	}
}

// alive reports whether the session's process is still running. A session
// whose process has exited but whose pump has not yet noticed is not alive.
func (s *Session) alive() bool {
	if s.cmd == nil || s.cmd.Process == nil {
		return false
	}
	select {
	case <-s.exited:
		return false
	default:
		return true
	}
}

// teardown releases everything the session holds: the process, the
// pseudo-terminal, the workspace directory, and the registry entry. Safe to
// call from any goroutine any number of times; exactly one caller runs the
// release body and concurrent callers block until it has finished. Every
// sub-step is best-effort and teardown never fails.
func (s *Session) teardown() {
	s.closeOnce.Do(func() {
		close(s.closing)

		if s.cmd != nil && s.cmd.Process != nil {
			s.cmd.Process.Kill()
			// The wait goroutine reaps; block until it has so the workspace
			// is not removed under a still-running process.
			<-s.exited
		}
		if s.ptmx != nil {
			s.ptmx.Close()
		}
		if s.workDir != "" {
			os.RemoveAll(s.workDir)
		}

		if s.registry != nil {
			s.registry.detach(s)
		}
		s.setState(Cleaned)
	})
}
