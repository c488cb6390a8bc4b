// Package membership tracks per-identity chat routing state: the active
// channel mode, the viewed group channel, reply links and social-spy
// subscriptions.
package membership

import (
	"sync"

	"github.com/google/uuid"
)

// ModeKind enumerates the channel modes an identity can have active.
type ModeKind int

const (
	ModeNone ModeKind = iota
	ModeMod
	ModeAdmin
	ModeGroup
	ModePrivate
)

// Mode is the tagged per-identity channel mode. Target is set only for
// ModePrivate and names the message recipient.
type Mode struct {
	Kind   ModeKind
	Target uuid.UUID
}

// None is the zero mode.
var None = Mode{Kind: ModeNone}

type state struct {
	mode        Mode
	viewedGroup string
	hasViewed   bool
	replyTarget uuid.UUID
	hasReply    bool
	spying      bool
}

// Store holds all membership state under one mutex so a mode change is
// all-or-nothing: at most one mode is ever observable per identity.
type Store struct {
	mu     sync.RWMutex
	states map[uuid.UUID]*state
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{states: map[uuid.UUID]*state{}}
}

func (s *Store) stateLocked(id uuid.UUID) *state {
	st, ok := s.states[id]
	if !ok {
		st = &state{}
		s.states[id] = st
	}
	return st
}

// SetMode installs mode for id, displacing whatever mode was active. It
// reports whether the installed mode equals the one that was already active,
// which callers use to implement toggle-off semantics.
func (s *Store) SetMode(id uuid.UUID, mode Mode) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.stateLocked(id)
	same := st.mode == mode
	st.mode = mode
	return same
}

// ClearMode resets id's mode to None.
func (s *Store) ClearMode(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.states[id]; ok {
		st.mode = None
	}
}

// ModeOf returns id's active mode.
func (s *Store) ModeOf(id uuid.UUID) Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if st, ok := s.states[id]; ok {
		return st.mode
	}
	return None
}

// SetViewedGroup records the group channel id has selected for group chat.
func (s *Store) SetViewedGroup(id uuid.UUID, channelName string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.stateLocked(id)
	st.viewedGroup = channelName
	st.hasViewed = true
}

// ViewedGroup returns the selected group channel name, if any.
func (s *Store) ViewedGroup(id uuid.UUID) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if st, ok := s.states[id]; ok && st.hasViewed {
		return st.viewedGroup, true
	}
	return "", false
}

// RecordReply links a and b as each other's most recent correspondent,
// overwriting any prior link on both sides.
func (s *Store) RecordReply(a, b uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sa := s.stateLocked(a)
	sa.replyTarget = b
	sa.hasReply = true

	sb := s.stateLocked(b)
	sb.replyTarget = a
	sb.hasReply = true
}

// ReplyTarget returns the identity that last exchanged a private message
// with id, if any.
func (s *Store) ReplyTarget(id uuid.UUID) (uuid.UUID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if st, ok := s.states[id]; ok && st.hasReply {
		return st.replyTarget, true
	}
	return uuid.Nil, false
}

// SubscribeSpy opts id into mirrored private-message viewing.
func (s *Store) SubscribeSpy(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stateLocked(id).spying = true
}

// UnsubscribeSpy opts id out of mirrored private-message viewing.
func (s *Store) UnsubscribeSpy(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.states[id]; ok {
		st.spying = false
	}
}

// IsSpying reports whether id is subscribed to social spy.
func (s *Store) IsSpying(id uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if st, ok := s.states[id]; ok {
		return st.spying
	}
	return false
}

// OnDisconnect clears transient state for id. The reply link and spy
// subscription survive reconnects.
func (s *Store) OnDisconnect(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.states[id]; ok {
		st.mode = None
		st.viewedGroup = ""
		st.hasViewed = false
	}
}
