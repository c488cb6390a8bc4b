package routing

import (
	"context"

	"github.com/google/uuid"

	"github.com/relaycore/chatrelay/internal/format"
	"github.com/relaycore/chatrelay/internal/permission"
)

// OnConnect initializes per-identity state for a fresh connection and emits
// the join broadcast. Staff holding the silent-join permission join quietly:
// only fellow silent-join staff see the notice.
func (e *Engine) OnConnect(ctx context.Context, id uuid.UUID, username, server string) {
	e.registry.RegisterConnect(id, username)
	e.store.ClearMode(id)

	if !e.opts.ShowJoinQuit() {
		return
	}
	tpl := e.opts.Templates()
	e.announce(id, tpl.Join, tpl.SilentJoin, server)
}

// OnDisconnect tears down transient state and emits the quit broadcast. The
// identity record and its reply/spy state survive for the next connection.
func (e *Engine) OnDisconnect(ctx context.Context, id uuid.UUID) {
	if e.opts.ShowJoinQuit() {
		tpl := e.opts.Templates()
		server, _ := e.presence.ServerOf(id)
		e.announce(id, tpl.Quit, tpl.SilentQuit, server)
	}

	e.registry.RegisterDisconnect(id)
	e.store.OnDisconnect(id)
}

// OnChatSubmission adapts HandleChat to the transport contract.
func (e *Engine) OnChatSubmission(ctx context.Context, id uuid.UUID, text string, isCommand bool, server string) bool {
	return e.HandleChat(ctx, Submission{
		Sender:    id,
		Server:    server,
		Text:      text,
		IsCommand: isCommand,
	})
}

func (e *Engine) announce(id uuid.UUID, template, silentTemplate, server string) {
	p := format.Placeholders{
		Sender: e.registry.CurrentDisplayName(id),
		Server: server,
	}
	if e.perms.Has(id, permission.StaffSilentJoin) {
		line := format.Substitute(silentTemplate, p)
		for _, other := range e.presence.Connected() {
			if e.perms.Has(other, permission.StaffSilentJoin) {
				e.out.Deliver(other, line)
			}
		}
		return
	}
	e.out.Broadcast(format.Substitute(template, p))
}
