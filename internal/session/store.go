package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

const (
	RoleUser  = "user"
	RoleModel = "model"
)

// ContextPrefix marks a user-role message as system-injected rather than
// caller speech, so the oracle can tell action outcomes from utterances.
const ContextPrefix = "[SYSTEM CONTEXT] "

var ErrNotFound = errors.New("call session not found")

// Message is one entry in a call's conversation history.
type Message struct {
	Role string
	Text string
}

// Session holds the conversation state for one phone call. Messages are
// strictly append-only; nothing is mutated or removed until the whole
// session is torn down.
type Session struct {
	CallID         string
	CallerPhone    string
	Messages       []Message
	StartedAt      time.Time
	LastActivityAt time.Time
}

// Store keeps per-call sessions keyed by call identifier.
type Store struct {
	mu                sync.RWMutex
	sessions          map[string]*Session
	inactivityTimeout time.Duration
	onExpire          func(callID string)
}

func NewStore(inactivityTimeout time.Duration) *Store {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 10 * time.Minute
	}
	return &Store{
		sessions:          make(map[string]*Session),
		inactivityTimeout: inactivityTimeout,
	}
}

// SetExpireHook installs a callback invoked for every janitor-expired call.
func (s *Store) SetExpireHook(hook func(callID string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onExpire = hook
}

// GetOrCreate returns the session for callID, creating it on first contact.
// Creation is idempotent; the caller phone is recorded only once.
func (s *Store) GetOrCreate(callID, callerPhone string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[callID]; ok {
		return snapshot(sess)
	}
	now := time.Now().UTC()
	sess := &Session{
		CallID:         callID,
		CallerPhone:    callerPhone,
		StartedAt:      now,
		LastActivityAt: now,
	}
	s.sessions[callID] = sess
	return snapshot(sess)
}

// AppendUser appends caller speech to the session history.
func (s *Store) AppendUser(callID, text string) error {
	return s.append(callID, Message{Role: RoleUser, Text: text})
}

// AppendModel appends a raw oracle reply to the session history.
func (s *Store) AppendModel(callID, text string) error {
	return s.append(callID, Message{Role: RoleModel, Text: text})
}

// AppendContext appends a system-injected fact, wrapped with ContextPrefix.
func (s *Store) AppendContext(callID, contextText string) error {
	return s.append(callID, Message{Role: RoleUser, Text: ContextPrefix + contextText})
}

func (s *Store) append(callID string, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[callID]
	if !ok {
		return ErrNotFound
	}
	sess.Messages = append(sess.Messages, msg)
	sess.LastActivityAt = time.Now().UTC()
	return nil
}

// History returns a copy of the ordered message history for callID.
func (s *Store) History(callID string) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[callID]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]Message, len(sess.Messages))
	copy(out, sess.Messages)
	return out, nil
}

// CallerPhone returns the verified caller number recorded at creation.
func (s *Store) CallerPhone(callID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[callID]
	if !ok {
		return "", ErrNotFound
	}
	return sess.CallerPhone, nil
}

// Remove tears down the session for callID. Removing an unknown call is a no-op.
func (s *Store) Remove(callID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, callID)
}

func (s *Store) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// StartJanitor sweeps inactive sessions so a missed hangup webhook cannot
// grow the session map without bound.
func (s *Store) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.expireInactive()
			}
		}
	}()
}

func (s *Store) expireInactive() {
	now := time.Now().UTC()
	var expired []string

	s.mu.Lock()
	for id, sess := range s.sessions {
		if now.Sub(sess.LastActivityAt) < s.inactivityTimeout {
			continue
		}
		delete(s.sessions, id)
		expired = append(expired, id)
	}
	hook := s.onExpire
	s.mu.Unlock()

	if hook != nil {
		for _, id := range expired {
			hook(id)
		}
	}
}

func snapshot(sess *Session) *Session {
	c := *sess
	c.Messages = make([]Message, len(sess.Messages))
	copy(c.Messages, sess.Messages)
	return &c
}
