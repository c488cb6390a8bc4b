// Package permission answers permission-key checks for identities. The
// static source is built from configuration; deployments with an external
// permission system supply their own implementation of the routing
// Permissions interface instead.
package permission

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Permission keys consumed by the routing core.
const (
	StaffMod        = "relay.staff.mod"
	StaffAdmin      = "relay.staff.admin"
	StaffSpy        = "relay.staff.spy"
	StaffSpyBypass  = "relay.staff.spy.bypass"
	StaffSilentJoin = "relay.staff.silentjoin"
	ChatAlways      = "relay.chat.always"
)

// StaticSource is a config-driven permission table: key → identity set.
type StaticSource struct {
	mu     sync.RWMutex
	grants map[string]map[uuid.UUID]struct{}
}

// NewStaticSource builds a StaticSource from the config's key → identity
// string lists. Entries that do not parse as uuids are skipped with a warning.
func NewStaticSource(log *slog.Logger, grants map[string][]string) *StaticSource {
	if log == nil {
		log = slog.Default()
	}
	s := &StaticSource{grants: map[string]map[uuid.UUID]struct{}{}}
	for key, raws := range grants {
		set := map[uuid.UUID]struct{}{}
		for _, raw := range raws {
			id, err := uuid.Parse(raw)
			if err != nil {
				log.Warn("ignoring malformed permission grant",
					slog.String("key", key), slog.String("identity", raw))
				continue
			}
			set[id] = struct{}{}
		}
		s.grants[key] = set
	}
	return s
}

// Has reports whether id holds the permission key.
func (s *StaticSource) Has(id uuid.UUID, key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set, ok := s.grants[key]
	if !ok {
		return false
	}
	_, ok = set[id]
	return ok
}

// Grant adds id to the permission key's set.
func (s *StaticSource) Grant(id uuid.UUID, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.grants[key]
	if !ok {
		set = map[uuid.UUID]struct{}{}
		s.grants[key] = set
	}
	set[id] = struct{}{}
}

// Revoke removes id from the permission key's set.
func (s *StaticSource) Revoke(id uuid.UUID, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if set, ok := s.grants[key]; ok {
		delete(set, id)
	}
}
