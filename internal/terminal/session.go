package terminal

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultAttachmentBuffer is the per-attachment outbound queue, in chunks.
// An attachment whose queue is full is dropped: a slow client must never
// stall the output pump, which would block every other viewer and the
// child itself.
const DefaultAttachmentBuffer = 256

// State is a session's position in its one-way lifecycle.
type State int

const (
	StateStarting State = iota
	StateRunning
	StateExited  // child reaped, pump drained
	StateDrained // exited and no clients; registry may evict
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateDrained:
		return "drained"
	}
	return "unknown"
}

// Attachment is one client's subscription to a session's output stream.
type Attachment struct {
	id      int
	out     chan []byte
	sess    *Session
	closed  bool // guarded by sess.mu
	dropped bool // queue overflowed; guarded by sess.mu
}

// Out carries output chunks in PTY order. It is closed when the session
// exits, when the client detaches, or when the attachment is dropped for
// falling behind.
func (a *Attachment) Out() <-chan []byte {
	return a.out
}

// Dropped reports whether this attachment was removed for falling behind.
func (a *Attachment) Dropped() bool {
	a.sess.mu.Lock()
	defer a.sess.mu.Unlock()
	return a.dropped
}

// SpawnParams describes the child process for a new session.
type SpawnParams struct {
	Command string
	Argv    []string
	Env     []string
	Cols    uint16
	Rows    uint16
}

// Session bridges one PTY to a dynamic set of attached clients: history
// replay on attach, fan-out on output, input merge, last-writer-wins
// resize, and script logging.
type Session struct {
	id        string
	command   string
	createdAt time.Time
	pty       *PTY
	logger    *ScriptLogger // nil when session logging is off

	mu          sync.Mutex
	history     ringBuffer
	attachments map[int]*Attachment
	nextID      int
	state       State

	onDrained func(*Session)
}

// newSession spawns the child and starts the output pump. onDrained is
// invoked exactly once, after the child has exited and the last client
// has detached.
func newSession(id string, params SpawnParams, logger *ScriptLogger, historyBytes int, onDrained func(*Session)) (*Session, error) {
	s := &Session{
		id:          id,
		command:     params.Command,
		createdAt:   time.Now(),
		logger:      logger,
		history:     newRingBuffer(historyBytes),
		attachments: make(map[int]*Attachment),
		state:       StateStarting,
		onDrained:   onDrained,
	}

	p, err := Spawn(params.Command, params.Argv, params.Env, params.Cols, params.Rows)
	if err != nil {
		logger.Close()
		return nil, err
	}
	s.pty = p
	s.state = StateRunning

	logrus.WithFields(logrus.Fields{
		"session": id,
		"pid":     p.PID(),
		"command": params.Command,
	}).Info("session started")

	go s.pump()
	return s, nil
}

func (s *Session) ID() string           { return s.id }
func (s *Session) Command() string      { return s.command }
func (s *Session) CreatedAt() time.Time { return s.createdAt }
func (s *Session) IsAlive() bool        { return s.pty.Alive() }

// ExitStatus reports the child's exit code once reaped.
func (s *Session) ExitStatus() (int, bool) { return s.pty.ExitStatus() }

func (s *Session) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.attachments)
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Attach registers a client and returns its attachment, the history
// snapshot to replay, and whether the session has already exited. The
// snapshot and the registration happen under one critical section, so the
// replay is an exact prefix of what arrives on Out afterwards: no gap, no
// duplicate at the seam.
//
// After exit the attachment's channel is already closed; the caller
// replays history, signals exit, and detaches.
func (s *Session) Attach() (*Attachment, []byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.history.snapshot()

	a := &Attachment{
		id:   s.nextID,
		out:  make(chan []byte, DefaultAttachmentBuffer),
		sess: s,
	}
	s.nextID++

	if s.state >= StateExited {
		a.closed = true
		close(a.out)
		return a, snapshot, true
	}

	s.attachments[a.id] = a
	return a, snapshot, false
}

// Detach removes a client, dropping anything still queued for it.
// Idempotent. Detaching the last client of an exited session moves it to
// Drained and notifies the registry.
func (s *Session) Detach(a *Attachment) {
	s.mu.Lock()
	if cur, ok := s.attachments[a.id]; ok && cur == a {
		delete(s.attachments, a.id)
		if !a.closed {
			a.closed = true
			close(a.out)
		}
	}
	drained := s.state == StateExited && len(s.attachments) == 0
	if drained {
		s.state = StateDrained
	}
	s.mu.Unlock()

	if drained {
		logrus.WithField("session", s.id).Info("session drained")
		if s.onDrained != nil {
			s.onDrained(s)
		}
	}
}

// SendInput forwards client input to the PTY. Input from multiple clients
// is applied in arrival order; contention is the user's problem.
func (s *Session) SendInput(data []byte) {
	s.pty.Write(data)
}

// RequestResize applies a client's window size. Policy is last-writer-wins
// across clients, matching single-user multi-tab behavior.
func (s *Session) RequestResize(cols, rows uint16) {
	s.pty.Resize(cols, rows)
}

// Terminate kills the child; the pump then winds the session down.
func (s *Session) Terminate() {
	s.pty.Terminate()
}

// pump is the single reader of the PTY master: it appends output to
// history, to the script log, and to every attachment's queue. It never
// blocks on a client; a full queue drops that attachment instead.
func (s *Session) pump() {
	buf := make([]byte, 32*1024)
	for {
		n, err := s.pty.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			s.logger.Write(chunk)

			s.mu.Lock()
			s.history.append(chunk)
			for id, a := range s.attachments {
				select {
				case a.out <- chunk:
				default:
					delete(s.attachments, id)
					a.dropped = true
					a.closed = true
					close(a.out)
					logrus.WithFields(logrus.Fields{
						"session": s.id,
						"client":  id,
					}).Warn("dropping slow client")
				}
			}
			s.mu.Unlock()
		}
		if err != nil {
			// EOF, or EIO once the child closed its side.
			break
		}
	}

	s.pty.Terminate()
	s.logger.Close()

	if code, ok := s.pty.ExitStatus(); ok {
		logrus.WithFields(logrus.Fields{"session": s.id, "code": code}).Info("session exited")
	}

	s.mu.Lock()
	s.state = StateExited
	for _, a := range s.attachments {
		if !a.closed {
			a.closed = true
			close(a.out)
		}
	}
	drained := len(s.attachments) == 0
	if drained {
		s.state = StateDrained
	}
	s.mu.Unlock()

	if drained {
		logrus.WithField("session", s.id).Info("session drained")
		if s.onDrained != nil {
			s.onDrained(s)
		}
	}
}
