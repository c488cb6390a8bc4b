// Package config loads and exposes application configuration (TOML).
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Default configuration values used when a field is missing in TOML.
const (
	DefaultConfigPath   = "config.toml"
	DefaultHTTPAddr     = ":8420"
	DefaultSnapshotPath = "data/identities.toml"

	DefaultGlobalTemplate = "&7[%SERVER%] &f%SENDER%&7: &f%MESSAGE%"
	DefaultModTemplate    = "&b[MOD] &f[%SERVER%] %SENDER%&b: %MESSAGE%"
	DefaultAdminTemplate  = "&c[ADMIN] &f[%SERVER%] %SENDER%&c: %MESSAGE%"
	DefaultGroupTemplate  = "&3[%CHANNEL%] &f%SENDER%&3: &f%MESSAGE%"
	DefaultPMOutTemplate  = "&6You -> %TARGET%&7: &f%MESSAGE%"
	DefaultPMInTemplate   = "&6%SENDER% -> You&7: &f%MESSAGE%"
	DefaultPMSpyTemplate  = "&8[SPY] %SENDER% -> %TARGET%: %MESSAGE%"

	DefaultJoinTemplate       = "&e%SENDER% joined the network"
	DefaultQuitTemplate       = "&e%SENDER% left the network"
	DefaultSilentJoinTemplate = "&7%SENDER% joined the network silently"
	DefaultSilentQuitTemplate = "&7%SENDER% left the network silently"
)

// Config is the root application configuration loaded from TOML.
type Config struct {
	Log         LogConfig           `toml:"log"`
	Server      ServerConfig        `toml:"server"`
	Chat        ChatConfig          `toml:"chat"`
	Persistence PersistenceConfig   `toml:"persistence"`
	Permissions map[string][]string `toml:"permissions"`
}

// LogConfig holds logging level and format (e.g. level=info, format=text).
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// ServerConfig holds the HTTP listen address and the admin API bearer token.
type ServerConfig struct {
	Addr       string `toml:"addr"`
	AdminToken string `toml:"admin_token"`
}

// ChatConfig holds routing options: global/freeze switches, per-server
// exclusion lists and the message templates.
type ChatConfig struct {
	GlobalEnabled bool     `toml:"global_enabled"`
	Frozen        bool     `toml:"frozen"`
	NoGlobal      []string `toml:"no_global"`
	NoPM          []string `toml:"no_pm"`

	GlobalTemplate string `toml:"global_template"`
	ModTemplate    string `toml:"mod_template"`
	AdminTemplate  string `toml:"admin_template"`
	GroupTemplate  string `toml:"group_template"`
	PMOutTemplate  string `toml:"pm_out_template"`
	PMInTemplate   string `toml:"pm_in_template"`
	PMSpyTemplate  string `toml:"pm_spy_template"`

	ShowJoinQuit       bool   `toml:"show_join_quit"`
	JoinTemplate       string `toml:"join_template"`
	QuitTemplate       string `toml:"quit_template"`
	SilentJoinTemplate string `toml:"silent_join_template"`
	SilentQuitTemplate string `toml:"silent_quit_template"`
}

// PersistenceConfig holds the identity registry snapshot location.
type PersistenceConfig struct {
	SnapshotPath string `toml:"snapshot_path"`
}

// Load reads the TOML config at path (DefaultConfigPath when empty) and
// applies defaults for missing fields. A missing file yields the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigPath
	}

	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)
	return cfg, nil
}

func defaults() Config {
	cfg := Config{}
	applyDefaults(&cfg)
	cfg.Chat.GlobalEnabled = true
	cfg.Chat.ShowJoinQuit = true
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultHTTPAddr
	}
	if cfg.Persistence.SnapshotPath == "" {
		cfg.Persistence.SnapshotPath = DefaultSnapshotPath
	}

	chat := &cfg.Chat
	if chat.GlobalTemplate == "" {
		chat.GlobalTemplate = DefaultGlobalTemplate
	}
	if chat.ModTemplate == "" {
		chat.ModTemplate = DefaultModTemplate
	}
	if chat.AdminTemplate == "" {
		chat.AdminTemplate = DefaultAdminTemplate
	}
	if chat.GroupTemplate == "" {
		chat.GroupTemplate = DefaultGroupTemplate
	}
	if chat.PMOutTemplate == "" {
		chat.PMOutTemplate = DefaultPMOutTemplate
	}
	if chat.PMInTemplate == "" {
		chat.PMInTemplate = DefaultPMInTemplate
	}
	if chat.PMSpyTemplate == "" {
		chat.PMSpyTemplate = DefaultPMSpyTemplate
	}
	if chat.JoinTemplate == "" {
		chat.JoinTemplate = DefaultJoinTemplate
	}
	if chat.QuitTemplate == "" {
		chat.QuitTemplate = DefaultQuitTemplate
	}
	if chat.SilentJoinTemplate == "" {
		chat.SilentJoinTemplate = DefaultSilentJoinTemplate
	}
	if chat.SilentQuitTemplate == "" {
		chat.SilentQuitTemplate = DefaultSilentQuitTemplate
	}
}
