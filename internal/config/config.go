package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bobmcallan/toolsmith/internal/common"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration.
type Config struct {
	Server    ServerConfig         `toml:"server"`
	Remote    RemoteConfig         `toml:"remote"`
	Discovery DiscoveryConfig      `toml:"discovery"`
	Cache     CacheConfig          `toml:"cache"`
	Storage   StorageConfig        `toml:"storage"`
	MCP       MCPConfig            `toml:"mcp"`
	Logging   common.LoggingConfig `toml:"logging"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
	// MaxBodyBytes caps request bodies on the JSON API.
	MaxBodyBytes int64 `toml:"max_body_bytes"`
}

// RemoteConfig points at the Frappe/ERPNext site.
type RemoteConfig struct {
	URL                string   `toml:"url"`
	APIKey             string   `toml:"api_key"`
	APISecret          string   `toml:"api_secret"`
	SessionToken       string   `toml:"session_token"`
	Timeout            Duration `toml:"timeout"`
	RequireCredentials bool     `toml:"require_credentials"`
	RateLimit          float64  `toml:"rate_limit"`
	RateBurst          int      `toml:"rate_burst"`
	MaxResponseBytes   int64    `toml:"max_response_bytes"`
}

// HasCredentials reports whether any default credentials are configured.
func (r RemoteConfig) HasCredentials() bool {
	return (r.APIKey != "" && r.APISecret != "") || r.SessionToken != ""
}

// DiscoveryConfig selects and tunes the discovery provider.
type DiscoveryConfig struct {
	Mode            string   `toml:"mode"`
	Concurrency     int      `toml:"concurrency"`
	Timeout         Duration `toml:"timeout"`
	RefreshInterval Duration `toml:"refresh_interval"`
	Watch           bool     `toml:"watch"`

	Static StaticDiscoveryConfig `toml:"static"`
	Live   LiveDiscoveryConfig   `toml:"live"`
	Cache  DiscoveryCacheConfig  `toml:"cache"`
}

// StaticDiscoveryConfig locates definition documents and procedure sources.
type StaticDiscoveryConfig struct {
	DefinitionsDir    string   `toml:"definitions_dir"`
	ProcedureManifest string   `toml:"procedure_manifest"`
	SourceDirs        []string `toml:"source_dirs"`
}

// LiveDiscoveryConfig tunes discovery against the remote metadata API.
type LiveDiscoveryConfig struct {
	ProceduresMethod   string   `toml:"procedures_method"`
	FallbackTypes      []string `toml:"fallback_types"`
	CallerRoles        []string `toml:"caller_roles"`
	RolesMethod        string   `toml:"roles_method"`
	IncludeChildTables bool     `toml:"include_child_tables"`
}

// DiscoveryCacheConfig enables persisting discovery results.
type DiscoveryCacheConfig struct {
	Enabled bool `toml:"enabled"`
}

// CacheConfig bounds the execution response cache.
type CacheConfig struct {
	Enabled    bool     `toml:"enabled"`
	TTL        Duration `toml:"ttl"`
	MaxEntries int      `toml:"max_entries"`
}

// StorageConfig contains storage layer settings.
type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig contains BadgerDB-specific settings.
type BadgerConfig struct {
	Path string `toml:"path"`
}

// MCPConfig contains MCP endpoint settings.
type MCPConfig struct {
	Enabled bool   `toml:"enabled"`
	Name    string `toml:"name"`
}

// Duration is a time.Duration written as a Go duration string ("30s").
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// MarshalText renders the duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// LoadFromFile loads configuration with priority: defaults -> file -> env.
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files with priority:
// defaults -> file1 -> file2 -> ... -> env.
// Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		err = toml.Unmarshal(data, config)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies TOOLSMITH_* environment variable overrides to config.
func applyEnvOverrides(config *Config) {
	if port := os.Getenv("TOOLSMITH_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("TOOLSMITH_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if url := os.Getenv("TOOLSMITH_REMOTE_URL"); url != "" {
		config.Remote.URL = url
	}
	if key := os.Getenv("TOOLSMITH_REMOTE_API_KEY"); key != "" {
		config.Remote.APIKey = key
	}
	if secret := os.Getenv("TOOLSMITH_REMOTE_API_SECRET"); secret != "" {
		config.Remote.APISecret = secret
	}
	if token := os.Getenv("TOOLSMITH_REMOTE_SESSION_TOKEN"); token != "" {
		config.Remote.SessionToken = token
	}
	if timeout := os.Getenv("TOOLSMITH_REMOTE_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Remote.Timeout.Duration = d
		}
	}
	if req := os.Getenv("TOOLSMITH_REMOTE_REQUIRE_CREDENTIALS"); req != "" {
		if b, err := strconv.ParseBool(req); err == nil {
			config.Remote.RequireCredentials = b
		}
	}
	if mode := os.Getenv("TOOLSMITH_DISCOVERY_MODE"); mode != "" {
		config.Discovery.Mode = mode
	}
	if dir := os.Getenv("TOOLSMITH_DISCOVERY_DEFINITIONS_DIR"); dir != "" {
		config.Discovery.Static.DefinitionsDir = dir
	}
	if interval := os.Getenv("TOOLSMITH_DISCOVERY_REFRESH_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			config.Discovery.RefreshInterval.Duration = d
		}
	}
	if badgerPath := os.Getenv("TOOLSMITH_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}
	if level := os.Getenv("TOOLSMITH_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config.
func ApplyFlagOverrides(config *Config, port int, host, remoteURL, logLevel string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
	if remoteURL != "" {
		config.Remote.URL = remoteURL
	}
	if logLevel != "" {
		config.Logging.Level = logLevel
	}
}

// Validate returns every configuration problem found.
func (c *Config) Validate() []string {
	var problems []string
	switch c.Discovery.Mode {
	case "static", "live":
	default:
		problems = append(problems, fmt.Sprintf("discovery.mode must be static or live, got %q", c.Discovery.Mode))
	}
	if c.Discovery.Mode == "live" && c.Remote.URL == "" {
		problems = append(problems, "discovery.mode live requires remote.url")
	}
	if c.Discovery.Mode == "static" && c.Discovery.Static.DefinitionsDir == "" {
		problems = append(problems, "discovery.mode static requires discovery.static.definitions_dir")
	}
	if c.Discovery.Concurrency < 1 {
		problems = append(problems, fmt.Sprintf("discovery.concurrency must be at least 1, got %d", c.Discovery.Concurrency))
	}
	if c.Discovery.Timeout.Duration <= 0 {
		problems = append(problems, "discovery.timeout must be positive")
	}
	if c.Discovery.RefreshInterval.Duration < 0 {
		problems = append(problems, "discovery.refresh_interval must not be negative")
	}
	if c.Remote.Timeout.Duration <= 0 {
		problems = append(problems, "remote.timeout must be positive")
	}
	if c.Remote.RateLimit < 0 {
		problems = append(problems, "remote.rate_limit must not be negative")
	}
	if c.Cache.Enabled && (c.Cache.TTL.Duration <= 0 || c.Cache.MaxEntries <= 0) {
		problems = append(problems, "cache.ttl and cache.max_entries must be positive when the cache is enabled")
	}
	if c.Discovery.Cache.Enabled && c.Storage.Badger.Path == "" {
		problems = append(problems, "discovery.cache requires storage.badger.path")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port out of range: %d", c.Server.Port))
	}
	return problems
}
