// Package boot provides runtime configuration and environment overrides.
package boot

import (
	"os"
	"strings"

	"github.com/relaycore/chatrelay/internal/config"
)

// RuntimeConfig holds parsed runtime settings after environment overrides.
type RuntimeConfig struct {
	ServerAddr   string
	AdminToken   string
	SnapshotPath string
}

// ProvideRuntimeConfig builds RuntimeConfig from the given config and applies
// env overrides (RELAY_HTTP_ADDR, RELAY_ADMIN_TOKEN, RELAY_SNAPSHOT_PATH).
func ProvideRuntimeConfig(cfg config.Config) *RuntimeConfig {
	ret := &RuntimeConfig{
		ServerAddr:   cfg.Server.Addr,
		AdminToken:   strings.TrimSpace(cfg.Server.AdminToken),
		SnapshotPath: cfg.Persistence.SnapshotPath,
	}

	if value := os.Getenv("RELAY_HTTP_ADDR"); value != "" {
		ret.ServerAddr = value
	}
	if value := os.Getenv("RELAY_ADMIN_TOKEN"); value != "" {
		ret.AdminToken = strings.TrimSpace(value)
	}
	if value := os.Getenv("RELAY_SNAPSHOT_PATH"); value != "" {
		ret.SnapshotPath = value
	}
	return ret
}
