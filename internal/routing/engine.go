// Package routing implements the channel routing engine: per-submission
// channel selection, fan-out delivery and the connect/disconnect lifecycle
// hooks that keep the identity registry and membership store current.
package routing

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/relaycore/chatrelay/internal/format"
	"github.com/relaycore/chatrelay/internal/identity"
	"github.com/relaycore/chatrelay/internal/membership"
	"github.com/relaycore/chatrelay/internal/permission"
)

// Presence exposes who is connected and where.
type Presence interface {
	Connected() []uuid.UUID
	ServerOf(id uuid.UUID) (string, bool)
}

// Deliverer sends rendered chat lines to recipients.
type Deliverer interface {
	Deliver(id uuid.UUID, line string)
	Broadcast(line string)
}

// Permissions answers permission-key checks.
type Permissions interface {
	Has(id uuid.UUID, key string) bool
}

// GroupDirectory is the engine's view of the group channel table.
type GroupDirectory interface {
	ChannelExists(name string) bool
	ChannelMembers(name string) []uuid.UUID
	ChannelIsFormal(name string) bool
	ChannelAdmin(name string, id uuid.UUID) bool
}

// Submission is one inbound chat line from a connected sender.
type Submission struct {
	Sender    uuid.UUID
	Server    string
	Text      string
	IsCommand bool
}

// Engine routes chat submissions. It owns no per-identity state; everything
// it reads and mutates goes through the registry and the membership store.
type Engine struct {
	logger    *slog.Logger
	registry  *identity.Registry
	store     *membership.Store
	directory GroupDirectory
	perms     Permissions
	out       Deliverer
	presence  Presence
	opts      *Options
}

// NewEngine wires the routing engine.
func NewEngine(
	log *slog.Logger,
	registry *identity.Registry,
	store *membership.Store,
	dir GroupDirectory,
	perms Permissions,
	out Deliverer,
	presence Presence,
	opts *Options,
) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		logger:    log.With(slog.String("service", "routing")),
		registry:  registry,
		store:     store,
		directory: dir,
		perms:     perms,
		out:       out,
		presence:  presence,
		opts:      opts,
	}
}

// HandleChat routes one submission and reports whether it consumed it.
// Structured commands are never touched; a false return tells the transport
// to fall through to command dispatch or its default delivery.
func (e *Engine) HandleChat(ctx context.Context, sub Submission) bool {
	if sub.IsCommand {
		return false
	}

	mode := e.store.ModeOf(sub.Sender)
	switch mode.Kind {
	case membership.ModeMod:
		e.sendStaff(sub, permission.StaffMod, e.opts.Templates().Mod)
		return true
	case membership.ModeAdmin:
		e.sendStaff(sub, permission.StaffAdmin, e.opts.Templates().Admin)
		return true
	case membership.ModeGroup:
		e.sendGroup(sub)
		return true
	case membership.ModePrivate:
		e.sendPrivate(sub, mode.Target)
		return true
	}

	return e.sendGlobal(sub)
}

// sendStaff fans a staff-channel line out to every connected identity
// holding the channel's visibility permission.
func (e *Engine) sendStaff(sub Submission, permKey, template string) {
	line := format.Substitute(template, format.Placeholders{
		Sender:  e.registry.CurrentDisplayName(sub.Sender),
		Message: sub.Text,
		Server:  sub.Server,
	})
	for _, id := range e.presence.Connected() {
		if e.perms.Has(id, permKey) {
			e.out.Deliver(id, line)
		}
	}
}

// sendGroup delivers to the sender's viewed group channel. A viewed channel
// that no longer exists is detected here, at send time, and reported back to
// the sender as a two-line notice.
func (e *Engine) sendGroup(sub Submission) {
	viewed, ok := e.store.ViewedGroup(sub.Sender)
	if !ok || !e.directory.ChannelExists(viewed) {
		e.out.Deliver(sub.Sender, noticeGroupGoneLine1)
		e.out.Deliver(sub.Sender, noticeGroupGoneLine2)
		return
	}

	name := e.registry.CurrentDisplayName(sub.Sender)
	if e.directory.ChannelIsFormal(viewed) && e.directory.ChannelAdmin(viewed, sub.Sender) {
		name = format.Oblique(name)
	}
	line := format.Substitute(e.opts.Templates().Group, format.Placeholders{
		Sender:  name,
		Message: sub.Text,
		Server:  sub.Server,
		Channel: viewed,
	})
	for _, member := range e.directory.ChannelMembers(viewed) {
		e.out.Deliver(member, line)
	}
}

// sendPrivate delivers the three renderings of a private message (outgoing,
// incoming, spy) and records the reply link.
func (e *Engine) sendPrivate(sub Submission, target uuid.UUID) {
	if !e.registry.IsOnline(target) {
		e.out.Deliver(sub.Sender, noticeNotOnline)
		return
	}
	if e.opts.NoPM(sub.Server) {
		e.out.Deliver(sub.Sender, noticePMDisabledSender)
		return
	}
	targetServer, _ := e.presence.ServerOf(target)
	if e.opts.NoPM(targetServer) {
		e.out.Deliver(sub.Sender, noticePMDisabledTarget)
		return
	}

	tpl := e.opts.Templates()
	p := format.Placeholders{
		Sender:  e.registry.CurrentDisplayName(sub.Sender),
		Target:  e.registry.CurrentDisplayName(target),
		Message: sub.Text,
		Server:  sub.Server,
	}
	e.out.Deliver(sub.Sender, format.Substitute(tpl.PMOut, p))
	e.out.Deliver(target, format.Substitute(tpl.PMIn, p))

	bypass := e.perms.Has(sub.Sender, permission.StaffSpyBypass) ||
		e.perms.Has(target, permission.StaffSpyBypass)
	if !bypass {
		spyLine := format.Substitute(tpl.PMSpy, p)
		for _, id := range e.presence.Connected() {
			if id == sub.Sender || id == target {
				continue
			}
			if e.perms.Has(id, permission.StaffSpy) && e.store.IsSpying(id) {
				e.out.Deliver(id, spyLine)
			}
		}
	}

	e.store.RecordReply(sub.Sender, target)
	e.logger.Info("socialspy",
		slog.String("from", sub.Sender.String()),
		slog.String("to", target.String()),
		slog.String("text", sub.Text))
}

// sendGlobal is the no-mode fallback. It reports whether the submission was
// consumed: a sender on a global-excluded server (or with global chat off)
// falls back to the transport's default, server-local delivery.
func (e *Engine) sendGlobal(sub Submission) bool {
	if !e.opts.GlobalEnabled() || e.opts.NoGlobal(sub.Server) {
		return false
	}

	if e.opts.Frozen() && !e.perms.Has(sub.Sender, permission.ChatAlways) {
		e.out.Deliver(sub.Sender, noticeChatFrozen)
		return true
	}

	line := format.Substitute(e.opts.Templates().Global, format.Placeholders{
		Sender:  e.registry.CurrentDisplayName(sub.Sender),
		Message: sub.Text,
		Server:  sub.Server,
	})
	e.out.Broadcast(line)
	return true
}
