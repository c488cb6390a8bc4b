package identity

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
)

// snapshot is the on-disk form of the registry: six logical tables written
// and read as one unit. Identity keys/values are uuid strings.
type snapshot struct {
	IdentityNicknames map[string]string `toml:"identity_nicknames"`
	IdentityUsernames map[string]string `toml:"identity_usernames"`
	NicknameOwners    map[string]string `toml:"nickname_owners"`
	UsernameOwners    map[string]string `toml:"username_owners"`
	NicknameDisplay   map[string]string `toml:"nickname_display"`
	UsernameDisplay   map[string]string `toml:"username_display"`
}

// Persist writes the registry snapshot atomically (temp file + rename).
func (r *Registry) Persist() error {
	r.mu.RLock()
	snap := snapshot{
		IdentityNicknames: map[string]string{},
		IdentityUsernames: map[string]string{},
		NicknameOwners:    map[string]string{},
		UsernameOwners:    map[string]string{},
		NicknameDisplay:   map[string]string{},
		UsernameDisplay:   map[string]string{},
	}
	for id, nick := range r.idNick {
		snap.IdentityNicknames[id.String()] = nick
	}
	for id, name := range r.idName {
		snap.IdentityUsernames[id.String()] = name
	}
	for nick, id := range r.nickID {
		snap.NicknameOwners[nick] = id.String()
	}
	for name, id := range r.nameID {
		snap.UsernameOwners[name] = id.String()
	}
	for nick, display := range r.nickDisplay {
		snap.NicknameDisplay[nick] = display
	}
	for name, display := range r.nameDisplay {
		snap.UsernameDisplay[name] = display
	}
	r.mu.RUnlock()

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(snap); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "identities-*.toml")
	if err != nil {
		return fmt.Errorf("create snapshot temp file: %w", err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("install snapshot: %w", err)
	}

	r.logger.Info("identity snapshot persisted",
		slog.String("path", r.path),
		slog.Int("identities", len(snap.IdentityUsernames)))
	return nil
}

// Restore replaces the registry contents with the persisted snapshot. The
// snapshot is decoded and validated in full before any live state changes;
// a malformed snapshot resets the registry to empty and the error is
// returned. A missing file is reported via os.ErrNotExist without touching
// live state.
func (r *Registry) Restore() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("read snapshot: %w", err)
		}
		r.resetAll()
		return fmt.Errorf("read snapshot: %w", err)
	}

	var snap snapshot
	if err := toml.Unmarshal(data, &snap); err != nil {
		r.resetAll()
		return fmt.Errorf("decode snapshot: %w", err)
	}

	staging, err := buildStaging(snap)
	if err != nil {
		r.resetAll()
		return fmt.Errorf("validate snapshot: %w", err)
	}

	r.mu.Lock()
	r.idNick = staging.idNick
	r.idName = staging.idName
	r.nickID = staging.nickID
	r.nameID = staging.nameID
	r.nickDisplay = staging.nickDisplay
	r.nameDisplay = staging.nameDisplay
	r.mu.Unlock()

	r.logger.Info("identity snapshot restored",
		slog.String("path", r.path),
		slog.Int("identities", len(staging.idName)))
	return nil
}

func (r *Registry) resetAll() {
	r.mu.Lock()
	r.resetLocked()
	r.mu.Unlock()
}

type stagingMaps struct {
	idNick      map[uuid.UUID]string
	idName      map[uuid.UUID]string
	nickID      map[string]uuid.UUID
	nameID      map[string]uuid.UUID
	nickDisplay map[string]string
	nameDisplay map[string]string
}

func buildStaging(snap snapshot) (stagingMaps, error) {
	s := stagingMaps{
		idNick:      map[uuid.UUID]string{},
		idName:      map[uuid.UUID]string{},
		nickID:      map[string]uuid.UUID{},
		nameID:      map[string]uuid.UUID{},
		nickDisplay: map[string]string{},
		nameDisplay: map[string]string{},
	}

	for raw, nick := range snap.IdentityNicknames {
		id, err := uuid.Parse(raw)
		if err != nil {
			return stagingMaps{}, fmt.Errorf("identity_nicknames key %q: %w", raw, err)
		}
		s.idNick[id] = nick
	}
	for raw, name := range snap.IdentityUsernames {
		id, err := uuid.Parse(raw)
		if err != nil {
			return stagingMaps{}, fmt.Errorf("identity_usernames key %q: %w", raw, err)
		}
		s.idName[id] = name
	}
	for nick, raw := range snap.NicknameOwners {
		id, err := uuid.Parse(raw)
		if err != nil {
			return stagingMaps{}, fmt.Errorf("nickname_owners[%q]: %w", nick, err)
		}
		s.nickID[nick] = id
	}
	for name, raw := range snap.UsernameOwners {
		id, err := uuid.Parse(raw)
		if err != nil {
			return stagingMaps{}, fmt.Errorf("username_owners[%q]: %w", name, err)
		}
		s.nameID[name] = id
	}
	for nick, display := range snap.NicknameDisplay {
		s.nickDisplay[nick] = display
	}
	for name, display := range snap.UsernameDisplay {
		s.nameDisplay[name] = display
	}

	// The forward and reverse tables must agree before the swap.
	for id, name := range s.idName {
		if owner, ok := s.nameID[name]; !ok || owner != id {
			return stagingMaps{}, fmt.Errorf("username %q not reachable from reverse index", name)
		}
	}
	for id, nick := range s.idNick {
		if owner, ok := s.nickID[nick]; !ok || owner != id {
			return stagingMaps{}, fmt.Errorf("nickname %q not reachable from reverse index", nick)
		}
	}
	return s, nil
}
