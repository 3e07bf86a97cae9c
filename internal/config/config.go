package config

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	HostNetwork      string        `envconfig:"PREMISES_LAUNCHER_HOST_NETWORK" default:"unix"`
	HostAddress      string        `envconfig:"PREMISES_LAUNCHER_HOST_ADDRESS"`
	DialTimeout      time.Duration `envconfig:"PREMISES_LAUNCHER_DIAL_TIMEOUT" default:"10s"`
	Verbose          bool          `envconfig:"PREMISES_LAUNCHER_VERBOSE"`
	DataDir          string        `envconfig:"PREMISES_LAUNCHER_DATA_DIR" default:"/tmp/premises-launcher"`
	ModpackURL       string        `envconfig:"PREMISES_LAUNCHER_MODPACK_URL"`
	ResolveVersions  bool          `envconfig:"PREMISES_LAUNCHER_RESOLVE_VERSIONS"`
	ManifestURL      string        `envconfig:"PREMISES_LAUNCHER_MANIFEST_URL"`
	RedisAddress     string        `envconfig:"PREMISES_LAUNCHER_REDIS_ADDRESS"`
	RedisPassword    string        `envconfig:"PREMISES_LAUNCHER_REDIS_PASSWORD"`
	DefaultProviders []string      `envconfig:"PREMISES_LAUNCHER_DEFAULT_PROVIDERS"`
	S3ForcePathStyle bool          `envconfig:"PREMISES_LAUNCHER_S3_FORCE_PATH_STYLE"`
}

// HostEndpoint returns where the host listens. A unix socket in DataDir is
// used unless an address is configured.
func (c *Config) HostEndpoint() (string, string) {
	if c.HostAddress != "" {
		return c.HostNetwork, c.HostAddress
	}
	return "unix", filepath.Join(c.DataDir, "host.sock")
}

func (c *Config) LogLevel() slog.Level {
	if c.Verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// LoadConfig reads the environment after applying a .env file in the working
// directory, if there is one.
func LoadConfig() (*Config, error) {
	godotenv.Load()

	var result Config
	if err := envconfig.Process("", &result); err != nil {
		return nil, err
	}
	return &result, nil
}
