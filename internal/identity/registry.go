// Package identity implements the registry mapping a stable identity to its
// username and optional nickname, with case-folded reverse lookup and a
// persisted snapshot.
package identity

import (
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/relaycore/chatrelay/internal/format"
)

var (
	ErrNicknameTaken   = errors.New("nickname already in use")
	ErrInvalidNickname = errors.New("nickname is empty after normalization")
	ErrUnknownIdentity = errors.New("identity not registered")
)

// Registry is the bidirectional identity store. All six index maps are
// guarded by one RWMutex so every mutation lands in the forward record, the
// reverse index and the display index within a single critical section.
type Registry struct {
	logger *slog.Logger
	path   string

	mu          sync.RWMutex
	idNick      map[uuid.UUID]string
	idName      map[uuid.UUID]string
	nickID      map[string]uuid.UUID
	nameID      map[string]uuid.UUID
	nickDisplay map[string]string
	nameDisplay map[string]string
	online      map[uuid.UUID]struct{}
}

// NewRegistry creates an empty registry that persists its snapshot at snapshotPath.
func NewRegistry(log *slog.Logger, snapshotPath string) *Registry {
	if log == nil {
		log = slog.Default()
	}
	r := &Registry{
		logger: log.With(slog.String("service", "identity")),
		path:   snapshotPath,
		online: map[uuid.UUID]struct{}{},
	}
	r.resetLocked()
	return r
}

// resetLocked replaces the six index maps with empty ones. Callers must hold
// the write lock (or own the registry exclusively, as in NewRegistry).
func (r *Registry) resetLocked() {
	r.idNick = map[uuid.UUID]string{}
	r.idName = map[uuid.UUID]string{}
	r.nickID = map[string]uuid.UUID{}
	r.nameID = map[string]uuid.UUID{}
	r.nickDisplay = map[string]string{}
	r.nameDisplay = map[string]string{}
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func normalizeNickname(raw string) string {
	return format.Strip(strings.ToLower(strings.TrimSpace(raw)))
}

// RegisterConnect records id as online under username. A first connection
// creates the record; a returning identity whose username changed has its old
// username keys purged and the new ones installed, nickname untouched.
func (r *Registry) RegisterConnect(id uuid.UUID, username string) {
	key := normalizeUsername(username)

	r.mu.Lock()
	if holder, ok := r.nameID[key]; ok && holder != id {
		// The name's previous holder must have renamed since their last
		// visit; release their claim so the reverse index stays unique.
		delete(r.idName, holder)
		r.logger.Warn("username claim released",
			slog.String("username", key),
			slog.String("previous", holder.String()))
	}
	if old, ok := r.idName[id]; ok && old != key {
		delete(r.nameID, old)
		delete(r.nameDisplay, old)
	}
	r.idName[id] = key
	r.nameID[key] = id
	r.nameDisplay[key] = strings.TrimSpace(username)
	r.online[id] = struct{}{}
	r.mu.Unlock()

	r.logger.Info("identity connected",
		slog.String("identity", id.String()),
		slog.String("username", key))
}

// RegisterDisconnect marks id offline. The record is kept.
func (r *Registry) RegisterDisconnect(id uuid.UUID) {
	r.mu.Lock()
	delete(r.online, id)
	r.mu.Unlock()

	r.logger.Info("identity disconnected", slog.String("identity", id.String()))
}

// SetNickname assigns raw as id's nickname. The normalized form must not be
// claimed by a different identity; re-assigning one's own nickname succeeds
// and refreshes the display form.
func (r *Registry) SetNickname(id uuid.UUID, raw string) error {
	key := normalizeNickname(raw)
	if key == "" {
		return ErrInvalidNickname
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.idName[id]; !ok {
		return ErrUnknownIdentity
	}
	if owner, ok := r.nickID[key]; ok && owner != id {
		return ErrNicknameTaken
	}
	if prev, ok := r.idNick[id]; ok && prev != key {
		delete(r.nickID, prev)
		delete(r.nickDisplay, prev)
	}
	r.idNick[id] = key
	r.nickID[key] = id
	r.nickDisplay[key] = strings.TrimSpace(raw)
	return nil
}

// ClearNickname removes id's nickname, if any.
func (r *Registry) ClearNickname(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.idNick[id]
	if !ok {
		return
	}
	delete(r.idNick, id)
	delete(r.nickID, prev)
	delete(r.nickDisplay, prev)
}

// CurrentDisplayName returns the display nickname when set, the display
// username otherwise, and "" for an unknown identity.
func (r *Registry) CurrentDisplayName(id uuid.UUID) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.currentDisplayNameLocked(id)
}

func (r *Registry) currentDisplayNameLocked(id uuid.UUID) string {
	if nick, ok := r.idNick[id]; ok {
		return r.nickDisplay[nick]
	}
	if name, ok := r.idName[id]; ok {
		return r.nameDisplay[name]
	}
	return ""
}

// DisplayUsername returns id's username in its original casing.
func (r *Registry) DisplayUsername(id uuid.UUID) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name, ok := r.idName[id]; ok {
		return r.nameDisplay[name]
	}
	return ""
}

// ResolveByUsername returns the identity owning the given username.
func (r *Registry) ResolveByUsername(username string) (uuid.UUID, bool) {
	key := normalizeUsername(username)

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.nameID[key]
	return id, ok
}

// ResolveByNickname returns the identity owning the given nickname. The input
// is normalized the same way stored nicknames are.
func (r *Registry) ResolveByNickname(raw string) (uuid.UUID, bool) {
	key := normalizeNickname(raw)

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.nickID[key]
	return id, ok
}

// ResolveCurrentNameByUsername returns the current display name (nickname or
// username) for the identity owning username.
func (r *Registry) ResolveCurrentNameByUsername(username string) (string, bool) {
	key := normalizeUsername(username)

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.nameID[key]
	if !ok {
		return "", false
	}
	return r.currentDisplayNameLocked(id), true
}

// Exists reports whether username has ever connected.
func (r *Registry) Exists(username string) bool {
	key := normalizeUsername(username)

	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.nameID[key]
	return ok
}

// ExistsNickname reports whether the nickname is currently claimed.
func (r *Registry) ExistsNickname(raw string) bool {
	key := normalizeNickname(raw)

	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.nickID[key]
	return ok
}

// IsOnline reports whether id is currently connected.
func (r *Registry) IsOnline(id uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.online[id]
	return ok
}
