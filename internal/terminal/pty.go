package terminal

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
	"github.com/sirupsen/logrus"
)

const (
	// writeTimeout bounds how long an input write may block on a full
	// master buffer before the chunk is dropped.
	writeTimeout = 1 * time.Second

	// killGrace is how long Terminate waits after SIGHUP before
	// escalating to SIGKILL.
	killGrace = 3 * time.Second
)

// ErrSpawnFailed wraps any failure to allocate the PTY or start the child.
var ErrSpawnFailed = errors.New("spawn failed")

// PTY owns one child process attached to a pseudo-terminal master.
// Reads are driven by the session's output pump; writes come from any
// client's input path and are serialized by the master file's own write
// lock, one whole chunk at a time.
type PTY struct {
	cmd  *exec.Cmd
	ptmx *os.File

	mu       sync.Mutex
	exited   bool
	exitCode int

	done     chan struct{} // closed once the child has been reaped
	termOnce sync.Once
}

// Spawn allocates a PTY pair sized cols x rows and starts command under it.
// The window size is applied before exec so the child's first output is
// formatted for the real window.
func Spawn(command string, argv []string, env []string, cols, rows uint16) (*PTY, error) {
	cmd := exec.Command(command, argv...)
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")
	cmd.Env = append(cmd.Env, env...)

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: cols, Rows: rows})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSpawnFailed, command, err)
	}

	p := &PTY{
		cmd:  cmd,
		ptmx: ptmx,
		done: make(chan struct{}),
	}
	go p.reap()
	return p, nil
}

// reap waits for the child and records its exit status. Reaping here (rather
// than from a signal handler) keeps fd state and process state in one place.
func (p *PTY) reap() {
	err := p.cmd.Wait()

	code := 0
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			code = ee.ExitCode()
		} else {
			code = -1
		}
	}

	p.mu.Lock()
	p.exited = true
	p.exitCode = code
	p.mu.Unlock()
	close(p.done)
}

// Read reads whatever the child has produced. It blocks until output is
// available; once the child exits and the slave side closes, the master
// returns an error (EIO on Linux) which callers treat as EOF.
func (p *PTY) Read(buf []byte) (int, error) {
	return p.ptmx.Read(buf)
}

// Write delivers input to the child. Writes to a dead child are dropped
// silently. A write that stays blocked past writeTimeout (master buffer
// full, nobody draining) is abandoned and the remainder of the chunk
// dropped.
func (p *PTY) Write(data []byte) {
	if !p.Alive() {
		return
	}
	p.ptmx.SetWriteDeadline(time.Now().Add(writeTimeout))
	defer p.ptmx.SetWriteDeadline(time.Time{})
	if _, err := p.ptmx.Write(data); err != nil {
		logrus.WithField("pid", p.PID()).WithError(err).Debug("pty write dropped")
	}
}

// Resize issues the window-size ioctl on the master. No-op after the child
// has exited; ioctl failures are logged, never propagated.
func (p *PTY) Resize(cols, rows uint16) {
	if !p.Alive() {
		return
	}
	if err := pty.Setsize(p.ptmx, &pty.Winsize{Cols: cols, Rows: rows}); err != nil {
		logrus.WithField("pid", p.PID()).WithError(err).Warn("pty resize failed")
	}
}

// Terminate shuts the child down the way a closing terminal window would:
// SIGHUP, then SIGCONT so a stopped child wakes to receive it, then a
// bounded wait before SIGKILL. Closes the master. Idempotent.
func (p *PTY) Terminate() {
	p.termOnce.Do(func() {
		if proc := p.cmd.Process; proc != nil && p.Alive() {
			proc.Signal(syscall.SIGHUP)
			proc.Signal(syscall.SIGCONT)
		}

		select {
		case <-p.done:
		case <-time.After(killGrace):
			if proc := p.cmd.Process; proc != nil {
				proc.Kill()
			}
			<-p.done
		}

		p.ptmx.Close()
	})
}

// Alive reports whether the child has not yet been reaped.
func (p *PTY) Alive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.exited
}

// ExitStatus returns the child's exit code. Present only after reaping.
func (p *PTY) ExitStatus() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.exited {
		return 0, false
	}
	return p.exitCode, true
}

// Done is closed once the child has been reaped.
func (p *PTY) Done() <-chan struct{} {
	return p.done
}

// PID returns the child's process id.
func (p *PTY) PID() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}
