// Package directory maintains the live table of named group channels: their
// members, admins and the formal flag.
package directory

import (
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrChannelExists   = errors.New("channel already exists")
	ErrChannelNotFound = errors.New("channel not found")
)

type channelInfo struct {
	display string
	formal  bool
	members map[uuid.UUID]struct{}
	admins  map[uuid.UUID]struct{}
}

// Directory is an in-memory, mutex-guarded group channel table. Channel
// names are case-insensitive; the casing of the creating call is kept for
// display.
type Directory struct {
	logger   *slog.Logger
	mu       sync.RWMutex
	channels map[string]*channelInfo
}

// NewDirectory creates an empty Directory.
func NewDirectory(log *slog.Logger) *Directory {
	if log == nil {
		log = slog.Default()
	}
	return &Directory{
		logger:   log.With(slog.String("service", "directory")),
		channels: map[string]*channelInfo{},
	}
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Create registers a new group channel.
func (d *Directory) Create(name string, formal bool) error {
	key := normalizeName(name)
	if key == "" {
		return ErrChannelNotFound
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.channels[key]; ok {
		return ErrChannelExists
	}
	d.channels[key] = &channelInfo{
		display: strings.TrimSpace(name),
		formal:  formal,
		members: map[uuid.UUID]struct{}{},
		admins:  map[uuid.UUID]struct{}{},
	}
	d.logger.Info("group channel created", slog.String("channel", key), slog.Bool("formal", formal))
	return nil
}

// Delete removes a group channel. Identities still viewing it discover the
// deletion lazily on their next group message.
func (d *Directory) Delete(name string) error {
	key := normalizeName(name)

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.channels[key]; !ok {
		return ErrChannelNotFound
	}
	delete(d.channels, key)
	d.logger.Info("group channel deleted", slog.String("channel", key))
	return nil
}

// Join adds id to the channel's member set.
func (d *Directory) Join(name string, id uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	info, ok := d.channels[normalizeName(name)]
	if !ok {
		return ErrChannelNotFound
	}
	info.members[id] = struct{}{}
	return nil
}

// Leave removes id from the channel's member and admin sets.
func (d *Directory) Leave(name string, id uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	info, ok := d.channels[normalizeName(name)]
	if !ok {
		return ErrChannelNotFound
	}
	delete(info.members, id)
	delete(info.admins, id)
	return nil
}

// Promote adds id to the channel's admin list (and member set).
func (d *Directory) Promote(name string, id uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	info, ok := d.channels[normalizeName(name)]
	if !ok {
		return ErrChannelNotFound
	}
	info.members[id] = struct{}{}
	info.admins[id] = struct{}{}
	return nil
}

// SetFormal updates the channel's formal flag.
func (d *Directory) SetFormal(name string, formal bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	info, ok := d.channels[normalizeName(name)]
	if !ok {
		return ErrChannelNotFound
	}
	info.formal = formal
	return nil
}

// ChannelExists reports whether the named channel is registered.
func (d *Directory) ChannelExists(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	_, ok := d.channels[normalizeName(name)]
	return ok
}

// ChannelMembers returns the member set of the named channel.
func (d *Directory) ChannelMembers(name string) []uuid.UUID {
	d.mu.RLock()
	defer d.mu.RUnlock()

	info, ok := d.channels[normalizeName(name)]
	if !ok {
		return nil
	}
	members := make([]uuid.UUID, 0, len(info.members))
	for id := range info.members {
		members = append(members, id)
	}
	return members
}

// ChannelIsFormal reports whether the named channel applies formal rendering.
func (d *Directory) ChannelIsFormal(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	info, ok := d.channels[normalizeName(name)]
	return ok && info.formal
}

// ChannelAdmin reports whether id is on the named channel's admin list.
func (d *Directory) ChannelAdmin(name string, id uuid.UUID) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	info, ok := d.channels[normalizeName(name)]
	if !ok {
		return false
	}
	_, ok = info.admins[id]
	return ok
}

// List returns the display names of all channels.
func (d *Directory) List() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.channels))
	for _, info := range d.channels {
		names = append(names, info.display)
	}
	return names
}
