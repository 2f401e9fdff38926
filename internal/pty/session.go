package pty

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/creack/pty"
	"github.com/mattn/go-runewidth"

	"github.com/atlasagent/coreloop/internal/sandbox"
)

// Size is a session's terminal dimensions.
type Size struct {
	Rows int
	Cols int
}

// Session is a live pseudo-terminal with its associated child process and
// bounded scrollback. Reads from the master side happen on a dedicated
// goroutine for the session's lifetime.
type Session struct {
	ID         string
	Command    string
	WorkingDir string

	mu       sync.Mutex
	size     Size
	exited   bool
	exitCode int

	master *os.File
	cmd    *exec.Cmd
	buf    *scrollback
	done   chan struct{}
}

// Rows returns the session's current terminal row count.
func (s *Session) Rows() int { s.mu.Lock(); defer s.mu.Unlock(); return s.size.Rows }

// Cols returns the session's current terminal column count.
func (s *Session) Cols() int { s.mu.Lock(); defer s.mu.Unlock(); return s.size.Cols }

// IsExited reports whether the child process has exited.
func (s *Session) IsExited() bool { s.mu.Lock(); defer s.mu.Unlock(); return s.exited }

// ExitCode returns the child's exit code; only meaningful once IsExited().
func (s *Session) ExitCode() int { s.mu.Lock(); defer s.mu.Unlock(); return s.exitCode }

// Snapshot returns the session's current scrollback as a single valid
// UTF-8 string — the "read" operation's text payload.
func (s *Session) Snapshot() string { return s.buf.Snapshot() }

// SendInput writes text to the session's PTY master, as if typed at the
// terminal.
func (s *Session) SendInput(text string) error {
	s.mu.Lock()
	master := s.master
	s.mu.Unlock()
	if master == nil {
		return fmt.Errorf("pty session %s: no active master", s.ID)
	}
	_, err := master.Write([]byte(text))
	return err
}

// Resize changes the PTY's row/col dimensions.
func (s *Session) Resize(rows, cols int) error {
	s.mu.Lock()
	master := s.master
	s.size = Size{Rows: rows, Cols: cols}
	s.mu.Unlock()
	if master == nil {
		return nil
	}
	return pty.Setsize(master, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
}

// Close terminates the child process (if still running) and releases the
// PTY master.
func (s *Session) Close() error {
	s.mu.Lock()
	cmd := s.cmd
	master := s.master
	s.mu.Unlock()

	if cmd != nil && cmd.Process != nil && !s.IsExited() {
		_ = cmd.Process.Kill()
	}
	if master != nil {
		_ = master.Close()
	}
	<-s.done
	return nil
}

func (s *Session) markExited(code int) {
	s.mu.Lock()
	s.exited = true
	s.exitCode = code
	s.mu.Unlock()
	s.buf.Finalize()
}

// Manager tracks live PTY sessions by ID and enforces a global session cap
// alongside each session's own scrollback caps.
type Manager struct {
	mu           sync.Mutex
	sessions     map[string]*Session
	nextID       int
	maxSessions  int
	sandboxMgr   *sandbox.Manager
}

// NewManager creates a Manager allowing up to maxSessions concurrent PTY
// sessions (0 = unbounded). sandboxMgr may be nil to skip sandbox transform.
func NewManager(maxSessions int, sandboxMgr *sandbox.Manager) *Manager {
	return &Manager{
		sessions:    make(map[string]*Session),
		maxSessions: maxSessions,
		sandboxMgr:  sandboxMgr,
	}
}

// CreateOptions configures a new PTY session.
type CreateOptions struct {
	Command    string
	Args       []string
	WorkingDir string
	Env        []string
	Rows, Cols int
	Policy     sandbox.Policy
}

// Create spawns command in a new pseudo-terminal sized rows x cols and
// starts a background reader goroutine that feeds the session's scrollback.
func (m *Manager) Create(ctx context.Context, opts CreateOptions) (*Session, error) {
	m.mu.Lock()
	if m.maxSessions > 0 && len(m.sessions) >= m.maxSessions {
		m.mu.Unlock()
		return nil, fmt.Errorf("pty: session cap of %d reached", m.maxSessions)
	}
	m.nextID++
	id := fmt.Sprintf("pty_%d", m.nextID)
	m.mu.Unlock()

	rows, cols := opts.Rows, opts.Cols
	if rows <= 0 {
		rows = 24
	}
	if cols <= 0 {
		cols = 80
	}

	cmd := exec.CommandContext(ctx, "bash", append([]string{"-c", opts.Command}, opts.Args...)...)
	cmd.Dir = opts.WorkingDir
	cmd.Env = opts.Env

	var execEnv sandbox.ExecEnv
	if m.sandboxMgr != nil {
		spec := sandbox.CommandSpec{Program: "bash", Args: cmd.Args[1:], Cwd: opts.WorkingDir, Env: opts.Env}
		transformed, err := m.sandboxMgr.Transform(spec, opts.Policy, opts.WorkingDir)
		if err != nil {
			return nil, fmt.Errorf("pty: sandbox transform: %w", err)
		}
		execEnv = transformed
		cmd = exec.CommandContext(ctx, execEnv.Program, execEnv.Args...)
		cmd.Dir = execEnv.Cwd
		cmd.Env = execEnv.Env
	}

	master, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
	if err != nil {
		return nil, fmt.Errorf("pty: start: %w", err)
	}

	session := &Session{
		ID:         id,
		Command:    opts.Command,
		WorkingDir: opts.WorkingDir,
		size:       Size{Rows: rows, Cols: cols},
		master:     master,
		cmd:        cmd,
		buf:        newScrollback(DefaultMaxLines, DefaultMaxBytes),
		done:       make(chan struct{}),
	}

	go session.readLoop()
	go session.waitLoop()

	m.mu.Lock()
	m.sessions[id] = session
	m.mu.Unlock()
	return session, nil
}

func (s *Session) readLoop() {
	buf := make([]byte, 4096)
	for {
		n, err := s.master.Read(buf)
		if n > 0 {
			s.buf.Append(buf[:n])
		}
		if err != nil {
			return
		}
	}
}

func (s *Session) waitLoop() {
	err := s.cmd.Wait()
	code := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		} else {
			code = -1
		}
	}
	s.markExited(code)
	close(s.done)
}

// Get returns the session by ID, if present.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// List returns the IDs of all currently tracked sessions.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Close closes and forgets the session with id.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("pty: unknown session %s", id)
	}
	return s.Close()
}

// RunResult is the outcome of a one-shot Run call.
type RunResult struct {
	SessionID  string
	Command    string
	WorkingDir string
	Rows, Cols int
	ExitCode   int
	IsExited   bool
	Output     string // ANSI-stripped
}

// Run spawns command, waits for completion or timeout, and returns its
// cleaned output. Run reports success via RunResult.IsExited/ExitCode, not
// through an error: a non-zero exit is a normal, successfully-observed
// outcome, not a Go-level failure. Only infrastructure failures (spawn
// failure, context cancellation before the process could even start)
// return an error.
func (m *Manager) Run(ctx context.Context, opts CreateOptions, timeout time.Duration) (RunResult, error) {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	session, err := m.Create(runCtx, opts)
	if err != nil {
		return RunResult{}, err
	}
	defer m.Close(session.ID)

	<-session.done

	return RunResult{
		SessionID:  session.ID,
		Command:    opts.Command,
		WorkingDir: opts.WorkingDir,
		Rows:       session.Rows(),
		Cols:       session.Cols(),
		ExitCode:   session.ExitCode(),
		IsExited:   session.IsExited(),
		Output:     StripANSI(session.Snapshot()),
	}, nil
}

// ansiPattern matches CSI/OSC escape sequences commonly emitted by
// interactive shells and TUI programs running inside a PTY.
var ansiPattern = regexp.MustCompile(`\x1b(?:\[[0-9;?]*[a-zA-Z]|\][^\x07]*\x07|[=>])`)

// StripANSI removes terminal escape sequences from s, leaving plain text
// suitable for sending to the model.
func StripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

// shellOperators are characters whose presence disqualifies a command from
// the short-circuit direct-execution path in §4.10.
const shellOperators = "|><&;"

// ShortCircuitEligible reports whether rawInput and proposedCommand are
// token-for-token equal (after trimming one layer of matching quotes) and
// proposedCommand contains no shell operators — the condition under which
// a `run` call should execute directly rather than await further model
// reasoning.
func ShortCircuitEligible(rawInput, proposedCommand string) bool {
	if strings.ContainsAny(proposedCommand, shellOperators) {
		return false
	}
	return trimMatchingQuotes(strings.TrimSpace(rawInput)) == trimMatchingQuotes(strings.TrimSpace(proposedCommand))
}

func trimMatchingQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// DisplayWidth returns the terminal column width of s using the same
// East-Asian-width-aware rules a PTY consumer would use for wrapping,
// mirroring the teacher's TUI rendering conventions.
func DisplayWidth(s string) int {
	return runewidth.StringWidth(s)
}
