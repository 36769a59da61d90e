package terminal

import (
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// sessionIDPattern is what we accept as a client-supplied session id:
// at least 8 hex chars. Anything else gets a fresh id.
var sessionIDPattern = regexp.MustCompile(`^[0-9a-f]{8,}$`)

// SessionInfo is one row of Registry.List.
type SessionInfo struct {
	ID      string
	Created time.Time
	Clients int
	Alive   bool
}

// Registry is the process-wide name service and lifetime arbiter for
// sessions. A session leaves the map only once it is Drained: child dead
// and zero clients.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session

	historyBytes int
	logDir       string // empty disables session logging
}

// NewRegistry creates an empty registry. logDir of "" disables session
// logging; historyBytes of 0 uses the default.
func NewRegistry(logDir string, historyBytes int) *Registry {
	return &Registry{
		sessions:     make(map[string]*Session),
		historyBytes: historyBytes,
		logDir:       logDir,
	}
}

// ResolveOrCreate returns the session named by requestedID, or creates one
// when the id is empty or does not resolve. Params only apply at creation;
// attaching to an existing session ignores them (the command is fixed when
// the session is born).
func (r *Registry) ResolveOrCreate(requestedID string, params SpawnParams) (*Session, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := strings.ToLower(requestedID)
	if id != "" {
		if existing, ok := r.sessions[id]; ok {
			return existing, false, nil
		}
	}
	if !sessionIDPattern.MatchString(id) {
		id = newSessionID()
	}

	var logger *ScriptLogger
	if r.logDir != "" {
		var err error
		logger, err = OpenScriptLog(r.logDir, id)
		if err != nil {
			logrus.WithField("session", id).WithError(err).Warn("session logging unavailable")
			logger = nil
		}
	}

	sess, err := newSession(id, params, logger, r.historyBytes, r.onDrained)
	if err != nil {
		return nil, false, err
	}
	r.sessions[id] = sess
	return sess, true, nil
}

// Get returns the session for id, or nil.
func (r *Registry) Get(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[id]
}

// List returns a consistent snapshot of all sessions, ordered by creation
// time ascending.
func (r *Registry) List() []SessionInfo {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt().Before(sessions[j].CreatedAt())
	})

	infos := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, SessionInfo{
			ID:      s.ID(),
			Created: s.CreatedAt(),
			Clients: s.ClientCount(),
			Alive:   s.IsAlive(),
		})
	}
	return infos
}

// onDrained removes a session that has reached Drained.
func (r *Registry) onDrained(s *Session) {
	r.mu.Lock()
	if cur, ok := r.sessions[s.ID()]; ok && cur == s {
		delete(r.sessions, s.ID())
	}
	r.mu.Unlock()
}

// CloseAll terminates every session's child. Used at server shutdown;
// sessions evict themselves as their pumps wind down.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		s.Terminate()
	}
}

// newSessionID returns a fresh 128-bit id rendered as 32 hex chars.
func newSessionID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
