package routing

import (
	"sync"

	"github.com/relaycore/chatrelay/internal/config"
)

// Templates holds the message templates the engine renders with.
type Templates struct {
	Global     string
	Mod        string
	Admin      string
	Group      string
	PMOut      string
	PMIn       string
	PMSpy      string
	Join       string
	Quit       string
	SilentJoin string
	SilentQuit string
}

// Options holds the routing switches and exclusion lists. The freeze and
// global switches are mutable at runtime through the admin API; everything
// else is fixed at construction.
type Options struct {
	mu            sync.RWMutex
	globalEnabled bool
	frozen        bool

	noGlobal     map[string]struct{}
	noPM         map[string]struct{}
	showJoinQuit bool
	templates    Templates
}

// NewOptions builds Options from the chat configuration.
func NewOptions(cfg config.ChatConfig) *Options {
	o := &Options{
		globalEnabled: cfg.GlobalEnabled,
		frozen:        cfg.Frozen,
		noGlobal:      map[string]struct{}{},
		noPM:          map[string]struct{}{},
		showJoinQuit:  cfg.ShowJoinQuit,
		templates: Templates{
			Global:     cfg.GlobalTemplate,
			Mod:        cfg.ModTemplate,
			Admin:      cfg.AdminTemplate,
			Group:      cfg.GroupTemplate,
			PMOut:      cfg.PMOutTemplate,
			PMIn:       cfg.PMInTemplate,
			PMSpy:      cfg.PMSpyTemplate,
			Join:       cfg.JoinTemplate,
			Quit:       cfg.QuitTemplate,
			SilentJoin: cfg.SilentJoinTemplate,
			SilentQuit: cfg.SilentQuitTemplate,
		},
	}
	for _, server := range cfg.NoGlobal {
		o.noGlobal[server] = struct{}{}
	}
	for _, server := range cfg.NoPM {
		o.noPM[server] = struct{}{}
	}
	return o
}

// GlobalEnabled reports whether global chat fan-out is on.
func (o *Options) GlobalEnabled() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.globalEnabled
}

// SetGlobalEnabled flips the global chat switch.
func (o *Options) SetGlobalEnabled(enabled bool) {
	o.mu.Lock()
	o.globalEnabled = enabled
	o.mu.Unlock()
}

// Frozen reports whether the network chat freeze is active.
func (o *Options) Frozen() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.frozen
}

// SetFrozen flips the chat freeze switch.
func (o *Options) SetFrozen(frozen bool) {
	o.mu.Lock()
	o.frozen = frozen
	o.mu.Unlock()
}

// NoGlobal reports whether the named server is excluded from global chat.
func (o *Options) NoGlobal(server string) bool {
	_, ok := o.noGlobal[server]
	return ok
}

// NoPM reports whether private messaging is disabled on the named server.
func (o *Options) NoPM(server string) bool {
	_, ok := o.noPM[server]
	return ok
}

// ShowJoinQuit reports whether join/quit broadcasts are enabled.
func (o *Options) ShowJoinQuit() bool {
	return o.showJoinQuit
}

// Templates returns the configured message templates.
func (o *Options) Templates() Templates {
	return o.templates
}
