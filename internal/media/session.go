package media

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/edgard/streambot/internal/tmdb"
)

var (
	// ErrNoSession is returned when a user has no request in progress.
	ErrNoSession = errors.New("no media request in progress")
	// ErrStaleSession is returned for buttons of a replaced or expired request.
	ErrStaleSession = errors.New("media request is no longer current")
)

// State is the phase of a media request conversation.
type State int

const (
	Idle State = iota
	AwaitingSelection
	AwaitingConfirmation
)

func (s State) String() string {
	switch s {
	case AwaitingSelection:
		return "awaiting_selection"
	case AwaitingConfirmation:
		return "awaiting_confirmation"
	default:
		return "idle"
	}
}

// Key identifies a conversation: one per user and chat.
type Key struct {
	ChatID int64
	UserID int64
}

// Descriptor is the item a user is asked to confirm.
type Descriptor struct {
	MediaType tmdb.MediaType
	TMDbID    int
	// ExternalID is the TVDB id for series and the TMDb id for movies.
	ExternalID int
	Title      string
	Year       string
}

// Session is the state of one conversation. Candidates is only set while
// awaiting a selection and Descriptor only while awaiting confirmation.
type Session struct {
	State      State
	Token      string
	Candidates []tmdb.SearchResult
	Descriptor *Descriptor
}

// maxSessions bounds the number of conversations kept at once; the least
// recently used one is evicted first.
const maxSessions = 1024

// SessionStore keeps conversations in memory with a fixed time to live.
type SessionStore struct {
	// mu makes lookup and removal in Take atomic.
	mu    sync.Mutex
	cache *expirable.LRU[Key, Session]
}

// NewSessionStore creates a store whose sessions expire after ttl.
func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{cache: expirable.NewLRU[Key, Session](maxSessions, nil, ttl)}
}

// Get returns the live session for key.
func (s *SessionStore) Get(key Key) (Session, bool) {
	return s.cache.Get(key)
}

// Pending reports whether key has a conversation awaiting input.
func (s *SessionStore) Pending(key Key) bool {
	session, ok := s.Get(key)
	return ok && session.State != Idle
}

// StartSelection moves key to AwaitingSelection, replacing any earlier
// conversation.
func (s *SessionStore) StartSelection(key Key, candidates []tmdb.SearchResult) Session {
	return s.put(key, Session{State: AwaitingSelection, Candidates: candidates})
}

// AwaitConfirmation moves key to AwaitingConfirmation for d.
func (s *SessionStore) AwaitConfirmation(key Key, d Descriptor) Session {
	return s.put(key, Session{State: AwaitingConfirmation, Descriptor: &d})
}

// Reset returns key to Idle.
func (s *SessionStore) Reset(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Remove(key)
}

// Peek returns the session for key if it is in state and its token
// matches. An empty token skips the token check. Button presses always carry
// a token, so their mismatches report ErrStaleSession.
func (s *SessionStore) Peek(key Key, state State, token string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookup(key, state, token)
}

// Take is Peek followed by removal of the session.
func (s *SessionStore) Take(key Key, state State, token string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.lookup(key, state, token)
	if err != nil {
		return Session{}, err
	}
	s.cache.Remove(key)
	return session, nil
}

func (s *SessionStore) lookup(key Key, state State, token string) (Session, error) {
	missing := ErrNoSession
	if token != "" {
		missing = ErrStaleSession
	}

	session, ok := s.cache.Get(key)
	if !ok || session.State != state || (token != "" && session.Token != token) {
		return Session{}, missing
	}
	return session, nil
}

// Len returns the number of stored sessions.
func (s *SessionStore) Len() int {
	return s.cache.Len()
}

func (s *SessionStore) put(key Key, session Session) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	session.Token = uuid.NewString()
	s.cache.Add(key, session)
	return session
}
