package config

import (
	"time"

	"github.com/bobmcallan/toolsmith/internal/common"
)

// NewDefaultConfig creates a configuration with default values.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         4250,
			Host:         "localhost",
			MaxBodyBytes: 1 << 20,
		},
		Remote: RemoteConfig{
			Timeout:            Duration{30 * time.Second},
			RequireCredentials: true,
			MaxResponseBytes:   50 << 20,
		},
		Discovery: DiscoveryConfig{
			Mode:        "static",
			Concurrency: 8,
			Timeout:     Duration{15 * time.Second},
			Static: StaticDiscoveryConfig{
				DefinitionsDir: "./definitions",
			},
		},
		Cache: CacheConfig{
			Enabled:    false,
			TTL:        Duration{30 * time.Second},
			MaxEntries: 1000,
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/toolsmith",
			},
		},
		MCP: MCPConfig{
			Enabled: true,
			Name:    "toolsmith",
		},
		Logging: common.LoggingConfig{
			Level:      "info",
			Outputs:    []string{"console"},
			FilePath:   "logs/toolsmith.log",
			MaxSizeMB:  100,
			MaxBackups: 3,
		},
	}
}
