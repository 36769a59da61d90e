package terminal

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ScriptLogger records a session's output stream in the script(1)
// interchange format: a raw typescript file holding the byte-exact output,
// and a .timing file of "<delta-seconds> <bytes>" rows that scriptreplay(1)
// understands.
//
// Logging is best-effort: the first I/O error warns once and disables the
// logger for the rest of the session, never disturbing the data path.
// A nil *ScriptLogger is valid and does nothing.
type ScriptLogger struct {
	mu       sync.Mutex
	raw      *os.File
	timing   *os.File
	last     time.Time // carries the monotonic clock
	disabled bool
	closed   bool
}

// OpenScriptLog creates the typescript and timing files for one session
// under dir/YYYY/MM/DD/.
func OpenScriptLog(dir, sessionID string) (*ScriptLogger, error) {
	now := time.Now()
	day := filepath.Join(dir, now.Format("2006"), now.Format("01"), now.Format("02"))
	if err := os.MkdirAll(day, 0o755); err != nil {
		return nil, fmt.Errorf("create session log dir: %w", err)
	}

	base := filepath.Join(day, fmt.Sprintf("typescript-%s-%s", sessionID, now.Format("150405")))
	raw, err := os.OpenFile(base, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create typescript file: %w", err)
	}
	timing, err := os.OpenFile(base+".timing", os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		raw.Close()
		return nil, fmt.Errorf("create timing file: %w", err)
	}

	return &ScriptLogger{raw: raw, timing: timing, last: now}, nil
}

// Write appends one output chunk and its timing row. The timing row is
// written only when the raw write fully succeeded, keeping the invariant
// sum(timing bytes) == len(typescript).
func (l *ScriptLogger) Write(chunk []byte) {
	if l == nil || len(chunk) == 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.disabled || l.closed {
		return
	}

	now := time.Now()
	delta := now.Sub(l.last).Seconds()
	l.last = now

	if _, err := l.raw.Write(chunk); err != nil {
		l.disable(err)
		return
	}
	if _, err := fmt.Fprintf(l.timing, "%.6f %d\n", delta, len(chunk)); err != nil {
		l.disable(err)
	}
}

func (l *ScriptLogger) disable(err error) {
	l.disabled = true
	logrus.WithError(err).Warn("session logging disabled after write error")
}

// Path returns the typescript file path, for listing and tests.
func (l *ScriptLogger) Path() string {
	if l == nil {
		return ""
	}
	return l.raw.Name()
}

// Close flushes and closes both files. Idempotent.
func (l *ScriptLogger) Close() {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	l.raw.Close()
	l.timing.Close()
}
