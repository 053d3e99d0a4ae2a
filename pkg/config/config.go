package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/vitalvas/radiusd/pkg/dictionary"
	"github.com/vitalvas/radiusd/pkg/host"
	"github.com/vitalvas/radiusd/pkg/log"
	"github.com/vitalvas/radiusd/pkg/server"
)

// EnvPrefix prefixes every environment override, e.g. RADIUSD_AUTH_PORT.
const EnvPrefix = "RADIUSD"

var (
	// ErrUnsupportedFormat is returned for config files that are neither YAML nor TOML.
	ErrUnsupportedFormat = errors.New("unsupported config format")
	// ErrInvalidConfig wraps every validation failure.
	ErrInvalidConfig = errors.New("invalid config")
)

// Format selects the config file syntax.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// Config is the daemon configuration.
type Config struct {
	Listen       []string `yaml:"listen" toml:"listen" split_words:"true"`
	AuthPort     uint16   `yaml:"auth_port" toml:"auth_port" split_words:"true"`
	AcctPort     uint16   `yaml:"acct_port" toml:"acct_port" split_words:"true"`
	LogLevel     string   `yaml:"log_level" toml:"log_level" split_words:"true"`
	PollInterval Duration `yaml:"poll_interval" toml:"poll_interval" split_words:"true"`
	// Dictionary is an optional YAML dictionary merged over the standard attributes.
	Dictionary string `yaml:"dictionary" toml:"dictionary" split_words:"true"`

	Clients []Client `yaml:"clients" toml:"clients" ignored:"true"`
	Proxy   Proxy    `yaml:"proxy" toml:"proxy" split_words:"true"`

	// Users is the user/password table of the bundled handler.
	Users map[string]string `yaml:"users" toml:"users" ignored:"true"`
}

// Client is a trusted remote host.
type Client struct {
	Address  string `yaml:"address" toml:"address"`
	Secret   string `yaml:"secret" toml:"secret"`
	Name     string `yaml:"name" toml:"name"`
	AuthPort uint16 `yaml:"auth_port" toml:"auth_port"`
	AcctPort uint16 `yaml:"acct_port" toml:"acct_port"`
}

// Proxy configures request forwarding.
type Proxy struct {
	Enabled bool     `yaml:"enabled" toml:"enabled" split_words:"true"`
	Listen  string   `yaml:"listen" toml:"listen" split_words:"true"`
	Port    uint16   `yaml:"port" toml:"port" split_words:"true"`
	Timeout Duration `yaml:"timeout" toml:"timeout" split_words:"true"`
	Retries int      `yaml:"retries" toml:"retries" split_words:"true"`
	// Upstream is the address of the client entry requests are forwarded to.
	Upstream string `yaml:"upstream" toml:"upstream" split_words:"true"`
}

// Default returns the configuration used when a setting is absent.
func Default() *Config {
	return &Config{
		AuthPort:     host.DefaultAuthPort,
		AcctPort:     host.DefaultAcctPort,
		LogLevel:     "info",
		PollInterval: Duration(server.DefaultPollInterval),
		Proxy: Proxy{
			Timeout: Duration(server.DefaultProxyTimeout),
			Retries: server.DefaultProxyRetries,
		},
	}
}

// Load reads the file at path, picking the format from its extension, then
// applies environment overrides and validates the result. An empty path
// loads defaults and environment only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		format, err := formatOf(path)
		if err != nil {
			return nil, err
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := cfg.decode(data, format); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Parse decodes data over the defaults without environment overrides.
func Parse(data []byte, format Format) (*Config, error) {
	cfg := Default()
	if err := cfg.decode(data, format); err != nil {
		return nil, err
	}
	return cfg, nil
}

func formatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

func (c *Config) decode(data []byte, format Format) error {
	switch format {
	case FormatYAML:
		return yaml.Unmarshal(data, c)
	case FormatTOML:
		_, err := toml.Decode(string(data), c)
		return err
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poll_interval must be positive", ErrInvalidConfig)
	}

	if _, err := c.RemoteHosts(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if c.Proxy.Enabled {
		if c.Proxy.Timeout <= 0 {
			return fmt.Errorf("%w: proxy timeout must be positive", ErrInvalidConfig)
		}
		if c.Proxy.Retries < 0 {
			return fmt.Errorf("%w: proxy retries must not be negative", ErrInvalidConfig)
		}
		if _, err := c.UpstreamAddr(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}

	return nil
}

// RemoteHosts builds the remote host table from the client list.
func (c *Config) RemoteHosts() (*host.RemoteHostTable, error) {
	hosts := make([]*host.RemoteHost, 0, len(c.Clients))

	for i, client := range c.Clients {
		addr, err := netip.ParseAddr(client.Address)
		if err != nil {
			return nil, fmt.Errorf("client %d: %w", i, err)
		}

		hosts = append(hosts, &host.RemoteHost{
			Address:  addr,
			Secret:   []byte(client.Secret),
			Name:     client.Name,
			AuthPort: client.AuthPort,
			AcctPort: client.AcctPort,
		})
	}

	return host.NewRemoteHostTable(hosts...)
}

// UpstreamAddr returns the proxy upstream address, which must name a client.
func (c *Config) UpstreamAddr() (netip.Addr, error) {
	addr, err := netip.ParseAddr(c.Proxy.Upstream)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("proxy upstream: %w", err)
	}
	addr = addr.Unmap()

	for _, client := range c.Clients {
		if candidate, err := netip.ParseAddr(client.Address); err == nil && candidate.Unmap() == addr {
			return addr, nil
		}
	}

	return netip.Addr{}, fmt.Errorf("proxy upstream %s is not a configured client", addr)
}

// Host builds the local identity, loading the dictionary file if set.
func (c *Config) Host() (*host.Host, error) {
	opts := []host.Option{
		host.WithAuthPort(c.AuthPort),
		host.WithAcctPort(c.AcctPort),
	}

	if c.Dictionary != "" {
		dict, err := dictionary.LoadFile(c.Dictionary)
		if err != nil {
			return nil, err
		}
		opts = append(opts, host.WithDictionary(dict))
	}

	return host.New(opts...)
}

// Logger builds a logger at the configured level.
func (c *Config) Logger() log.Logger {
	return log.NewLoggerWithLevel(c.LogLevel)
}

// ServerConfig assembles the dispatcher configuration.
func (c *Config) ServerConfig(handler server.Handler, shutdown server.ShutdownSignal, logger log.Logger) (server.Config, error) {
	h, err := c.Host()
	if err != nil {
		return server.Config{}, err
	}

	hosts, err := c.RemoteHosts()
	if err != nil {
		return server.Config{}, err
	}

	cfg := server.Config{
		Host:         h,
		Hosts:        hosts,
		Addresses:    c.Listen,
		Handler:      handler,
		Shutdown:     shutdown,
		PollInterval: c.PollInterval.Std(),
		Logger:       logger,
	}

	if c.Proxy.Enabled {
		cfg.Proxy = &server.ProxyConfig{
			Address: c.Proxy.Listen,
			Port:    c.Proxy.Port,
			Timeout: c.Proxy.Timeout.Std(),
			Retries: c.Proxy.Retries,
		}
	}

	return cfg, nil
}

// Duration is a time.Duration written as "250ms" or "3s" in every config source.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}
