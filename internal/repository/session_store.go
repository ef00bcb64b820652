package repository

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/liliang-cn/shopbot/internal/domain"
)

// SessionStore holds conversation state keyed by session token
type SessionStore interface {
	Create() string
	Exists(token string) bool
	History(token string) []domain.Turn
	Append(token string, role domain.Role, text string)
	MarkShown(token string, ids ...string)
	ShownIDs(token string) map[string]struct{}
	Delete(token string) bool
	Sweep(maxAge time.Duration) int
	Stats() []domain.SessionSummary
}

type session struct {
	turns        []domain.Turn
	shown        map[string]struct{}
	createdAt    time.Time
	lastActivity time.Time
}

// MemorySessionStore keeps sessions in process memory only
type MemorySessionStore struct {
	mu          sync.RWMutex
	sessions    map[string]*session
	historySize int
	now         func() time.Time
}

// NewMemorySessionStore creates a store returning at most historySize turns
// per History call and retaining at most twice that many.
func NewMemorySessionStore(historySize int) *MemorySessionStore {
	if historySize <= 0 {
		historySize = 6
	}
	return &MemorySessionStore{
		sessions:    make(map[string]*session),
		historySize: historySize,
		now:         time.Now,
	}
}

// NewToken returns a fresh UUID v4 session token. Nothing is stored until
// the first Append.
func NewToken() string {
	return uuid.New().String()
}

// NormalizeToken accepts only the dashed 36-character UUID form and returns
// it in lower case, so one UUID always keys one session
func NormalizeToken(token string) (string, bool) {
	if len(token) != 36 {
		return "", false
	}
	u, err := uuid.Parse(token)
	if err != nil {
		return "", false
	}
	return u.String(), true
}

// ValidToken reports whether token has the UUID shape used for session ids
func ValidToken(token string) bool {
	_, ok := NormalizeToken(token)
	return ok
}

// Create inserts an empty session under a fresh UUID v4 token
func (s *MemorySessionStore) Create() string {
	token := NewToken()
	now := s.now()

	s.mu.Lock()
	s.sessions[token] = newSession(now)
	s.mu.Unlock()

	return token
}

func newSession(now time.Time) *session {
	return &session{
		shown:        make(map[string]struct{}),
		createdAt:    now,
		lastActivity: now,
	}
}

// Exists reports whether token names a live session
func (s *MemorySessionStore) Exists(token string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[token]
	return ok
}

// History returns the most recent turns, oldest first
func (s *MemorySessionStore) History(token string) []domain.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[token]
	if !ok {
		return []domain.Turn{}
	}

	turns := sess.turns
	if len(turns) > s.historySize {
		turns = turns[len(turns)-s.historySize:]
	}
	out := make([]domain.Turn, len(turns))
	copy(out, turns)
	return out
}

// Append records a turn, creating the session when the token is unknown
func (s *MemorySessionStore) Append(token string, role domain.Role, text string) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		sess = newSession(now)
		s.sessions[token] = sess
	}

	sess.turns = append(sess.turns, domain.Turn{Role: role, Text: text})
	if limit := 2 * s.historySize; len(sess.turns) > limit {
		trimmed := make([]domain.Turn, limit)
		copy(trimmed, sess.turns[len(sess.turns)-limit:])
		sess.turns = trimmed
	}
	sess.lastActivity = now
}

// MarkShown adds product ids to the session's shown set
func (s *MemorySessionStore) MarkShown(token string, ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return
	}
	for _, id := range ids {
		sess.shown[id] = struct{}{}
	}
}

// ShownIDs returns a copy of the shown set
func (s *MemorySessionStore) ShownIDs(token string) map[string]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]struct{})
	if sess, ok := s.sessions[token]; ok {
		for id := range sess.shown {
			out[id] = struct{}{}
		}
	}
	return out
}

// Delete removes a session. Malformed tokens are rejected without touching state.
func (s *MemorySessionStore) Delete(token string) bool {
	token, ok := NormalizeToken(token)
	if !ok {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[token]; !ok {
		return false
	}
	delete(s.sessions, token)
	return true
}

// Sweep removes sessions idle for longer than maxAge and returns how many
func (s *MemorySessionStore) Sweep(maxAge time.Duration) int {
	cutoff := s.now().Add(-maxAge)

	s.mu.RLock()
	var stale []string
	for token, sess := range s.sessions {
		if sess.lastActivity.Before(cutoff) {
			stale = append(stale, token)
		}
	}
	s.mu.RUnlock()

	removed := 0
	for _, token := range stale {
		s.mu.Lock()
		// re-check: the session may have been touched since the snapshot
		if sess, ok := s.sessions[token]; ok && sess.lastActivity.Before(cutoff) {
			delete(s.sessions, token)
			removed++
		}
		s.mu.Unlock()
	}
	return removed
}

// Stats summarizes live sessions, most recently active first
func (s *MemorySessionStore) Stats() []domain.SessionSummary {
	s.mu.RLock()
	out := make([]domain.SessionSummary, 0, len(s.sessions))
	for token, sess := range s.sessions {
		out = append(out, domain.SessionSummary{
			ID:           token,
			Turns:        len(sess.turns),
			ShownCount:   len(sess.shown),
			CreatedAt:    sess.createdAt,
			LastActivity: sess.lastActivity,
		})
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActivity.After(out[j].LastActivity)
	})
	return out
}
