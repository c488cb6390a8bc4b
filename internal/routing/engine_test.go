package routing

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/relaycore/chatrelay/internal/config"
	"github.com/relaycore/chatrelay/internal/directory"
	"github.com/relaycore/chatrelay/internal/identity"
	"github.com/relaycore/chatrelay/internal/membership"
	"github.com/relaycore/chatrelay/internal/permission"
)

type fakePerms struct {
	grants map[uuid.UUID]map[string]bool
}

func (f *fakePerms) Has(id uuid.UUID, key string) bool {
	return f.grants[id][key]
}

func (f *fakePerms) grant(id uuid.UUID, keys ...string) {
	if f.grants == nil {
		f.grants = map[uuid.UUID]map[string]bool{}
	}
	set, ok := f.grants[id]
	if !ok {
		set = map[string]bool{}
		f.grants[id] = set
	}
	for _, key := range keys {
		set[key] = true
	}
}

// fakeNet implements Deliverer and Presence, recording everything sent.
type fakeNet struct {
	mu        sync.Mutex
	connected []uuid.UUID
	servers   map[uuid.UUID]string
	delivered map[uuid.UUID][]string
	broadcast []string
}

func newFakeNet() *fakeNet {
	return &fakeNet{
		servers:   map[uuid.UUID]string{},
		delivered: map[uuid.UUID][]string{},
	}
}

func (f *fakeNet) connect(id uuid.UUID, server string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = append(f.connected, id)
	f.servers[id] = server
}

func (f *fakeNet) Deliver(id uuid.UUID, line string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered[id] = append(f.delivered[id], line)
}

func (f *fakeNet) Broadcast(line string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcast = append(f.broadcast, line)
}

func (f *fakeNet) Connected() []uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uuid.UUID(nil), f.connected...)
}

func (f *fakeNet) ServerOf(id uuid.UUID) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	server, ok := f.servers[id]
	return server, ok
}

func (f *fakeNet) lines(id uuid.UUID) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.delivered[id]...)
}

type testRig struct {
	engine   *Engine
	registry *identity.Registry
	store    *membership.Store
	dir      *directory.Directory
	perms    *fakePerms
	net      *fakeNet
	opts     *Options
}

func newTestRig(t *testing.T, chat config.ChatConfig) *testRig {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))

	if chat.PMOutTemplate == "" {
		chat.PMOutTemplate = "out|%SENDER%|%TARGET%|%MESSAGE%"
		chat.PMInTemplate = "in|%SENDER%|%TARGET%|%MESSAGE%"
		chat.PMSpyTemplate = "spy|%SENDER%|%TARGET%|%MESSAGE%"
		chat.GlobalTemplate = "global|%SERVER%|%SENDER%|%MESSAGE%"
		chat.ModTemplate = "mod|%SERVER%|%SENDER%|%MESSAGE%"
		chat.AdminTemplate = "admin|%SERVER%|%SENDER%|%MESSAGE%"
		chat.GroupTemplate = "group|%CHANNEL%|%SENDER%|%MESSAGE%"
		chat.JoinTemplate = "join|%SENDER%"
		chat.QuitTemplate = "quit|%SENDER%"
		chat.SilentJoinTemplate = "sjoin|%SENDER%"
		chat.SilentQuitTemplate = "squit|%SENDER%"
	}

	rig := &testRig{
		registry: identity.NewRegistry(log, filepath.Join(t.TempDir(), "identities.toml")),
		store:    membership.NewStore(),
		dir:      directory.NewDirectory(log),
		perms:    &fakePerms{},
		net:      newFakeNet(),
		opts:     NewOptions(chat),
	}
	rig.engine = NewEngine(log, rig.registry, rig.store, rig.dir, rig.perms, rig.net, rig.net, rig.opts)
	return rig
}

// join connects an identity without the join/quit broadcast noise.
func (rig *testRig) join(id uuid.UUID, username, server string) {
	rig.registry.RegisterConnect(id, username)
	rig.net.connect(id, server)
}

func defaultChat() config.ChatConfig {
	return config.ChatConfig{GlobalEnabled: true}
}

func TestCommandSubmissionUnhandled(t *testing.T) {
	rig := newTestRig(t, defaultChat())
	sender := uuid.New()
	rig.join(sender, "Alice", "hub")

	handled := rig.engine.HandleChat(context.Background(), Submission{
		Sender: sender, Server: "hub", Text: "/msg bob hi", IsCommand: true,
	})

	require.False(t, handled)
	require.Empty(t, rig.net.lines(sender))
	require.Empty(t, rig.net.broadcast)
}

func TestModChatReachesOnlyPermitted(t *testing.T) {
	rig := newTestRig(t, defaultChat())
	sender, mod, plain := uuid.New(), uuid.New(), uuid.New()
	rig.join(sender, "Alice", "hub")
	rig.join(mod, "Bob", "mines")
	rig.join(plain, "Carol", "hub")
	rig.perms.grant(sender, permission.StaffMod)
	rig.perms.grant(mod, permission.StaffMod)

	rig.store.SetMode(sender, membership.Mode{Kind: membership.ModeMod})

	handled := rig.engine.HandleChat(context.Background(), Submission{
		Sender: sender, Server: "hub", Text: "sweep incoming",
	})

	require.True(t, handled)
	require.Equal(t, []string{"mod|hub|Alice|sweep incoming"}, rig.net.lines(sender))
	require.Equal(t, []string{"mod|hub|Alice|sweep incoming"}, rig.net.lines(mod))
	require.Empty(t, rig.net.lines(plain))
	require.Empty(t, rig.net.broadcast)
}

func TestAdminChatUsesAdminPermissionAndTemplate(t *testing.T) {
	rig := newTestRig(t, defaultChat())
	sender, admin, mod := uuid.New(), uuid.New(), uuid.New()
	rig.join(sender, "Alice", "hub")
	rig.join(admin, "Bob", "hub")
	rig.join(mod, "Carol", "hub")
	rig.perms.grant(sender, permission.StaffAdmin)
	rig.perms.grant(admin, permission.StaffAdmin)
	rig.perms.grant(mod, permission.StaffMod)

	rig.store.SetMode(sender, membership.Mode{Kind: membership.ModeAdmin})

	require.True(t, rig.engine.HandleChat(context.Background(), Submission{
		Sender: sender, Server: "hub", Text: "restart soon",
	}))
	require.Equal(t, []string{"admin|hub|Alice|restart soon"}, rig.net.lines(admin))
	require.Empty(t, rig.net.lines(mod))
}

func TestGroupChatDeletedChannelTwoNotices(t *testing.T) {
	rig := newTestRig(t, defaultChat())
	sender := uuid.New()
	rig.join(sender, "Alice", "hub")

	rig.store.SetMode(sender, membership.Mode{Kind: membership.ModeGroup})
	rig.store.SetViewedGroup(sender, "vanished")

	handled := rig.engine.HandleChat(context.Background(), Submission{
		Sender: sender, Server: "hub", Text: "anyone here?",
	})

	require.True(t, handled)
	require.Len(t, rig.net.lines(sender), 2)
	require.Empty(t, rig.net.broadcast)

	// No viewed group selected at all behaves the same way.
	rig2 := newTestRig(t, defaultChat())
	rig2.join(sender, "Alice", "hub")
	rig2.store.SetMode(sender, membership.Mode{Kind: membership.ModeGroup})
	require.True(t, rig2.engine.HandleChat(context.Background(), Submission{
		Sender: sender, Server: "hub", Text: "anyone?",
	}))
	require.Len(t, rig2.net.lines(sender), 2)
}

func TestGroupChatDeliversToMembers(t *testing.T) {
	rig := newTestRig(t, defaultChat())
	sender, member, outsider := uuid.New(), uuid.New(), uuid.New()
	rig.join(sender, "Alice", "hub")
	rig.join(member, "Bob", "hub")
	rig.join(outsider, "Carol", "hub")

	require.NoError(t, rig.dir.Create("lounge", false))
	require.NoError(t, rig.dir.Join("lounge", sender))
	require.NoError(t, rig.dir.Join("lounge", member))

	rig.store.SetMode(sender, membership.Mode{Kind: membership.ModeGroup})
	rig.store.SetViewedGroup(sender, "lounge")

	require.True(t, rig.engine.HandleChat(context.Background(), Submission{
		Sender: sender, Server: "hub", Text: "hello",
	}))

	require.Equal(t, []string{"group|lounge|Alice|hello"}, rig.net.lines(member))
	require.Equal(t, []string{"group|lounge|Alice|hello"}, rig.net.lines(sender))
	require.Empty(t, rig.net.lines(outsider))
}

func TestGroupChatFormalAdminGetsObliqueMarker(t *testing.T) {
	rig := newTestRig(t, defaultChat())
	sender, member := uuid.New(), uuid.New()
	rig.join(sender, "Alice", "hub")
	rig.join(member, "Bob", "hub")

	require.NoError(t, rig.dir.Create("council", true))
	require.NoError(t, rig.dir.Promote("council", sender))
	require.NoError(t, rig.dir.Join("council", member))

	rig.store.SetMode(sender, membership.Mode{Kind: membership.ModeGroup})
	rig.store.SetViewedGroup(sender, "council")

	require.True(t, rig.engine.HandleChat(context.Background(), Submission{
		Sender: sender, Server: "hub", Text: "order",
	}))
	require.Equal(t, []string{"group|council|&oAlice|order"}, rig.net.lines(member))
}

func TestGroupChatUsesCurrentNickname(t *testing.T) {
	rig := newTestRig(t, defaultChat())
	sender, member := uuid.New(), uuid.New()
	rig.join(sender, "Alice", "hub")
	rig.join(member, "Bob", "hub")
	require.NoError(t, rig.dir.Create("lounge", false))
	require.NoError(t, rig.dir.Join("lounge", member))
	rig.store.SetMode(sender, membership.Mode{Kind: membership.ModeGroup})
	rig.store.SetViewedGroup(sender, "lounge")

	require.True(t, rig.engine.HandleChat(context.Background(), Submission{
		Sender: sender, Server: "hub", Text: "one",
	}))
	require.NoError(t, rig.registry.SetNickname(sender, "Spark"))
	require.True(t, rig.engine.HandleChat(context.Background(), Submission{
		Sender: sender, Server: "hub", Text: "two",
	}))

	lines := rig.net.lines(member)
	require.Equal(t, "group|lounge|Alice|one", lines[0])
	require.Equal(t, "group|lounge|Spark|two", lines[1])
}

func TestPrivateMessageDeliversThreeRenderings(t *testing.T) {
	rig := newTestRig(t, config.ChatConfig{GlobalEnabled: true})
	sender, target, spy, nosub, noperm := uuid.New(), uuid.New(), uuid.New(), uuid.New(), uuid.New()
	rig.join(sender, "Alice", "hub")
	rig.join(target, "Bob", "mines")
	rig.join(spy, "Carol", "hub")
	rig.join(nosub, "Dave", "hub")
	rig.join(noperm, "Eve", "hub")

	rig.perms.grant(spy, permission.StaffSpy)
	rig.perms.grant(nosub, permission.StaffSpy)
	rig.store.SubscribeSpy(spy)
	rig.store.SubscribeSpy(noperm)

	rig.store.SetMode(sender, membership.Mode{Kind: membership.ModePrivate, Target: target})

	handled := rig.engine.HandleChat(context.Background(), Submission{
		Sender: sender, Server: "hub", Text: "secret",
	})

	require.True(t, handled)
	require.Equal(t, []string{"out|Alice|Bob|secret"}, rig.net.lines(sender))
	require.Equal(t, []string{"in|Alice|Bob|secret"}, rig.net.lines(target))
	require.Equal(t, []string{"spy|Alice|Bob|secret"}, rig.net.lines(spy))
	require.Empty(t, rig.net.lines(nosub), "subscribed flag missing")
	require.Empty(t, rig.net.lines(noperm), "spy permission missing")

	// Reply link is symmetric.
	got, ok := rig.store.ReplyTarget(sender)
	require.True(t, ok)
	require.Equal(t, target, got)
	got, ok = rig.store.ReplyTarget(target)
	require.True(t, ok)
	require.Equal(t, sender, got)
}

func TestPrivateMessageSpyBypass(t *testing.T) {
	rig := newTestRig(t, defaultChat())
	sender, target, spy := uuid.New(), uuid.New(), uuid.New()
	rig.join(sender, "Alice", "hub")
	rig.join(target, "Bob", "hub")
	rig.join(spy, "Carol", "hub")
	rig.perms.grant(spy, permission.StaffSpy)
	rig.store.SubscribeSpy(spy)
	rig.perms.grant(target, permission.StaffSpyBypass)

	rig.store.SetMode(sender, membership.Mode{Kind: membership.ModePrivate, Target: target})
	require.True(t, rig.engine.HandleChat(context.Background(), Submission{
		Sender: sender, Server: "hub", Text: "quiet",
	}))

	require.Empty(t, rig.net.lines(spy))
	require.NotEmpty(t, rig.net.lines(target))
}

func TestPrivateMessageOfflineTarget(t *testing.T) {
	rig := newTestRig(t, defaultChat())
	sender, target := uuid.New(), uuid.New()
	rig.join(sender, "Alice", "hub")
	rig.registry.RegisterConnect(target, "Bob")
	rig.registry.RegisterDisconnect(target)

	rig.store.SetMode(sender, membership.Mode{Kind: membership.ModePrivate, Target: target})

	require.True(t, rig.engine.HandleChat(context.Background(), Submission{
		Sender: sender, Server: "hub", Text: "hello?",
	}))

	require.Len(t, rig.net.lines(sender), 1)
	require.Empty(t, rig.net.lines(target))
	_, ok := rig.store.ReplyTarget(sender)
	require.False(t, ok, "reply link must not change on failed delivery")
}

func TestPrivateMessageDisabledServers(t *testing.T) {
	chat := defaultChat()
	chat.NoPM = []string{"quarantine"}

	t.Run("sender server excluded", func(t *testing.T) {
		rig := newTestRig(t, chat)
		sender, target := uuid.New(), uuid.New()
		rig.join(sender, "Alice", "quarantine")
		rig.join(target, "Bob", "hub")
		rig.store.SetMode(sender, membership.Mode{Kind: membership.ModePrivate, Target: target})

		require.True(t, rig.engine.HandleChat(context.Background(), Submission{
			Sender: sender, Server: "quarantine", Text: "psst",
		}))
		require.Len(t, rig.net.lines(sender), 1)
		require.Empty(t, rig.net.lines(target))
	})

	t.Run("target server excluded", func(t *testing.T) {
		rig := newTestRig(t, chat)
		sender, target := uuid.New(), uuid.New()
		rig.join(sender, "Alice", "hub")
		rig.join(target, "Bob", "quarantine")
		rig.store.SetMode(sender, membership.Mode{Kind: membership.ModePrivate, Target: target})

		require.True(t, rig.engine.HandleChat(context.Background(), Submission{
			Sender: sender, Server: "hub", Text: "psst",
		}))
		require.Len(t, rig.net.lines(sender), 1)
		require.Empty(t, rig.net.lines(target))
		_, ok := rig.store.ReplyTarget(sender)
		require.False(t, ok)
	})
}

func TestGlobalFallbackBroadcast(t *testing.T) {
	rig := newTestRig(t, defaultChat())
	sender := uuid.New()
	rig.join(sender, "Alice", "hub")

	handled := rig.engine.HandleChat(context.Background(), Submission{
		Sender: sender, Server: "hub", Text: "hello world",
	})

	require.True(t, handled)
	require.Equal(t, []string{"global|hub|Alice|hello world"}, rig.net.broadcast)
}

func TestGlobalExcludedServerFallsThrough(t *testing.T) {
	chat := defaultChat()
	chat.NoGlobal = []string{"isolated"}
	rig := newTestRig(t, chat)
	sender := uuid.New()
	rig.join(sender, "Alice", "isolated")

	handled := rig.engine.HandleChat(context.Background(), Submission{
		Sender: sender, Server: "isolated", Text: "local only",
	})

	require.False(t, handled, "excluded server keeps transport default delivery")
	require.Empty(t, rig.net.broadcast)
}

func TestGlobalDisabledFallsThrough(t *testing.T) {
	rig := newTestRig(t, config.ChatConfig{GlobalEnabled: false})
	sender := uuid.New()
	rig.join(sender, "Alice", "hub")

	require.False(t, rig.engine.HandleChat(context.Background(), Submission{
		Sender: sender, Server: "hub", Text: "hi",
	}))
}

func TestFrozenChatGate(t *testing.T) {
	rig := newTestRig(t, defaultChat())
	rig.opts.SetFrozen(true)
	sender, staff := uuid.New(), uuid.New()
	rig.join(sender, "Alice", "hub")
	rig.join(staff, "Bob", "hub")
	rig.perms.grant(staff, permission.ChatAlways)

	require.True(t, rig.engine.HandleChat(context.Background(), Submission{
		Sender: sender, Server: "hub", Text: "hi",
	}))
	require.Len(t, rig.net.lines(sender), 1, "frozen notice")
	require.Empty(t, rig.net.broadcast)

	require.True(t, rig.engine.HandleChat(context.Background(), Submission{
		Sender: staff, Server: "hub", Text: "still here",
	}))
	require.Equal(t, []string{"global|hub|Bob|still here"}, rig.net.broadcast)
}

func TestToggleTwiceTurnsOff(t *testing.T) {
	rig := newTestRig(t, defaultChat())
	id := uuid.New()
	target := uuid.New()

	require.True(t, rig.engine.ToggleMod(id))
	require.False(t, rig.engine.ToggleMod(id))
	require.Equal(t, membership.None, rig.store.ModeOf(id))

	require.True(t, rig.engine.ToggleAdmin(id))
	require.False(t, rig.engine.ToggleAdmin(id))
	require.Equal(t, membership.None, rig.store.ModeOf(id))

	require.True(t, rig.engine.ToggleGroup(id))
	require.False(t, rig.engine.ToggleGroup(id))
	require.Equal(t, membership.None, rig.store.ModeOf(id))

	require.True(t, rig.engine.TogglePrivate(id, target))
	require.False(t, rig.engine.TogglePrivate(id, target))
	require.Equal(t, membership.None, rig.store.ModeOf(id))
}

func TestToggleReplyUsesLastCorrespondent(t *testing.T) {
	rig := newTestRig(t, defaultChat())
	id, peer := uuid.New(), uuid.New()

	if _, ok := rig.engine.ToggleReply(id); ok {
		t.Fatal("reply toggle without a link succeeded")
	}

	rig.store.RecordReply(id, peer)
	active, ok := rig.engine.ToggleReply(id)
	require.True(t, ok)
	require.True(t, active)
	mode := rig.store.ModeOf(id)
	require.Equal(t, membership.ModePrivate, mode.Kind)
	require.Equal(t, peer, mode.Target)
}

func TestToggleSwitchesModes(t *testing.T) {
	rig := newTestRig(t, defaultChat())
	id := uuid.New()

	require.True(t, rig.engine.ToggleMod(id))
	require.True(t, rig.engine.ToggleAdmin(id))
	require.Equal(t, membership.ModeAdmin, rig.store.ModeOf(id).Kind)
}
