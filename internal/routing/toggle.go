package routing

import (
	"github.com/google/uuid"

	"github.com/relaycore/chatrelay/internal/membership"
)

// Toggle semantics: selecting a mode activates it and displaces any other
// active mode; selecting the mode already active turns routing off. The
// return value reports whether the mode is active after the call.

// ToggleMod toggles moderator-channel routing for id.
func (e *Engine) ToggleMod(id uuid.UUID) bool {
	return e.toggle(id, membership.Mode{Kind: membership.ModeMod})
}

// ToggleAdmin toggles admin-channel routing for id.
func (e *Engine) ToggleAdmin(id uuid.UUID) bool {
	return e.toggle(id, membership.Mode{Kind: membership.ModeAdmin})
}

// ToggleGroup toggles group-channel routing for id. The channel actually
// written to is the identity's viewed group, resolved at send time.
func (e *Engine) ToggleGroup(id uuid.UUID) bool {
	return e.toggle(id, membership.Mode{Kind: membership.ModeGroup})
}

// TogglePrivate toggles private-message routing from id to target.
func (e *Engine) TogglePrivate(id, target uuid.UUID) bool {
	return e.toggle(id, membership.Mode{Kind: membership.ModePrivate, Target: target})
}

// ToggleReply toggles private-message routing toward id's most recent
// correspondent. ok is false when id has no reply link yet.
func (e *Engine) ToggleReply(id uuid.UUID) (active, ok bool) {
	target, ok := e.store.ReplyTarget(id)
	if !ok {
		return false, false
	}
	return e.TogglePrivate(id, target), true
}

func (e *Engine) toggle(id uuid.UUID, mode membership.Mode) bool {
	if e.store.SetMode(id, mode) {
		e.store.ClearMode(id)
		return false
	}
	return true
}
