package session

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"

	"coderoom/internal/artifact"
	"coderoom/internal/event"
	"coderoom/internal/runspec"
)

// Options configures a Registry.
type Options struct {
	// WorkspaceRoot is where session workspaces are created. Empty means
	// the system temp directory.
	WorkspaceRoot string
	// SeedSQL is an optional script applied to each fresh SQL session
	// database. A missing file skips seeding.
	SeedSQL string
	// PollInterval bounds each pump read so the closing signal is observed
	// promptly. Defaults to 100ms.
	PollInterval time.Duration
}

// Registry is the process-wide mapping from connection id to its session.
// It enforces at-most-one-session-per-connection: starting a new session
// fully tears down the previous one before anything is spawned.
type Registry struct {
	emitter  event.Emitter
	resolver *runspec.Resolver
	scanner  *artifact.Scanner
	opts     Options

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates a registry. The emitter delivers session events to
// clients; the scanner handles post-exit image artifacts.
func NewRegistry(emitter event.Emitter, resolver *runspec.Resolver, scanner *artifact.Scanner, opts Options) *Registry {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 100 * time.Millisecond
	}
	return &Registry{
		emitter:  emitter,
		resolver: resolver,
		scanner:  scanner,
		opts:     opts,
		sessions: make(map[string]*Session),
	}
}

// Start begins a new execution session for connID, superseding any session
// the connection already has. The previous session is fully torn down
// (process killed, workspace removed) before the new one spawns.
func (r *Registry) Start(connID, language, source string) {
	source = strings.TrimSpace(source)
	language = strings.ToLower(strings.TrimSpace(language))
	if language == "" {
		language = "python"
	}

	if source == "" {
		r.emitter.Emit(connID, event.SessionError, event.ErrorData{Error: "No code provided"})
		return
	}
	if !r.resolver.Supported(language) {
		r.emitter.Emit(connID, event.SessionError,
			event.ErrorData{Error: fmt.Sprintf("Unsupported language: %s", language)})
		return
	}

	// Supersede: detach the old session first so no event can reach it,
	// then tear it down synchronously before any new resource exists.
	r.mu.Lock()
	old := r.sessions[connID]
	delete(r.sessions, connID)
	r.mu.Unlock()
	if old != nil {
		old.setState(Killed)
		old.teardown()
	}

	spec, err := r.resolver.Resolve(language, source)
	if err != nil {
		r.emitter.Emit(connID, event.SessionError, event.ErrorData{Error: err.Error()})
		return
	}

	s := &Session{
		connID:   connID,
		language: language,
		state:    Starting,
		sent:     make(map[string]bool),
		closing:  make(chan struct{}),
		exited:   make(chan struct{}),
		registry: r,
	}

	prefix := "user_session_"
	if spec.SQL {
		prefix = "sql_session_"
	}
	dir, err := os.MkdirTemp(r.opts.WorkspaceRoot, prefix)
	if err != nil {
		r.emitter.Emit(connID, event.SessionError, event.ErrorData{Error: err.Error()})
		return
	}
	s.workDir = dir

	if spec.SQL && r.opts.SeedSQL != "" {
		if _, statErr := os.Stat(r.opts.SeedSQL); statErr == nil {
			if seedErr := seedDatabase(filepath.Join(dir, "ephemeral.db"), r.opts.SeedSQL); seedErr != nil {
				log.Printf("session %s: seeding sql database: %v", connID, seedErr)
			}
		}
	}

	codePath := filepath.Join(dir, spec.FileName)
	if err := os.WriteFile(codePath, []byte(source), 0o644); err != nil {
		os.RemoveAll(dir)
		r.emitter.Emit(connID, event.SessionError, event.ErrorData{Error: err.Error()})
		return
	}

	if err := r.spawn(s, spec); err != nil {
		s.setState(Errored)
		os.RemoveAll(dir)
		r.emitter.Emit(connID, event.SessionError, event.ErrorData{Error: err.Error()})
		return
	}
	s.setState(Running)

	r.mu.Lock()
	r.sessions[connID] = s
	r.mu.Unlock()

	go r.pump(s)
	r.emitter.Emit(connID, event.SessionStarted, struct{}{})
}

// SendInput writes one line of input to the connection's process. A missing,
// closing, or dead session resyncs the client: an explanatory output line, a
// process_ended event, and teardown.
func (r *Registry) SendInput(connID, line string) {
	s := r.get(connID)
	if s == nil {
		r.emitter.Emit(connID, event.Output, event.OutputData{Data: "[No active session]\n"})
		r.emitter.Emit(connID, event.ProcessEnded, struct{}{})
		return
	}
	if s.isClosing() || !s.alive() {
		r.emitter.Emit(connID, event.Output, event.OutputData{Data: "[Session closed]\n"})
		r.emitter.Emit(connID, event.ProcessEnded, struct{}{})
		s.teardown()
		return
	}
	if _, err := s.ptmx.WriteString(line + "\n"); err != nil {
		r.emitter.Emit(connID, event.Output, event.OutputData{Data: "[No active session]\n"})
		r.emitter.Emit(connID, event.ProcessEnded, struct{}{})
		s.teardown()
	}
}

// Disconnect kills the connection's session, if any. Idempotent.
func (r *Registry) Disconnect(connID string) {
	s := r.get(connID)
	if s == nil || s.isClosing() {
		return
	}
	r.emitter.Emit(connID, event.Output, event.OutputData{Data: "[Session killed by user]\n"})
	s.setState(Killed)
	s.teardown()
	r.emitter.Emit(connID, event.ProcessEnded, struct{}{})
}

// CloseAll tears down every live session. Used at server shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, s)
	}
	r.mu.Unlock()

	for _, s := range all {
		s.setState(Killed)
		s.teardown()
	}
}

// Get returns the live session for connID, or nil.
func (r *Registry) get(connID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[connID]
}

// detach removes s from the map if it is still the registered session for
// its connection. Called from teardown only.
func (r *Registry) detach(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[s.connID] == s {
		delete(r.sessions, s.connID)
	}
}

// spawn starts the run command for s under a pseudo-terminal with echo
// disabled, so typed input is not duplicated in the output stream.
func (r *Registry) spawn(s *Session, spec runspec.Spec) error {
	shellCmd := fmt.Sprintf("cd %s && env TERM=dumb %s", shellQuote(s.workDir), spec.Command)
	cmd := exec.Command("/bin/bash", "-c", shellCmd)

	ptmx, err := pty.Start(cmd)
	if err != nil {
		return fmt.Errorf("spawning process: %w", err)
	}

	if err := disableEcho(ptmx); err != nil {
		log.Printf("session %s: disabling echo: %v", s.connID, err)
	}

	s.cmd = cmd
	s.ptmx = ptmx
	go func() {
		cmd.Wait()
		close(s.exited)
	}()
	return nil
}

// disableEcho clears the ECHO flag on the pty so the terminal does not
// repeat input back into the output stream.
func disableEcho(ptmx *os.File) error {
	tio, err := unix.IoctlGetTermios(int(ptmx.Fd()), unix.TCGETS)
	if err != nil {
		return err
	}
	tio.Lflag &^= unix.ECHO
	return unix.IoctlSetTermios(int(ptmx.Fd()), unix.TCSETS, tio)
}

// shellQuote single-quotes a path for use inside a bash -c command.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
