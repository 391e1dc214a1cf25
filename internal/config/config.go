// Package config loads the relay's configuration file: newline-separated
// key=value pairs, '#' and blank lines ignored. That grammar is exactly the
// Java properties format, so it's parsed via viper's "properties" backend
// rather than a hand-rolled tokenizer.
package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/relaycore/statsd-relay/internal/util"
	"github.com/relaycore/statsd-relay/pkg/relay"
)

const (
	keyDataPort                      = "data_port"
	keyDownstreamFlushInterval       = "downstream_flush_interval"
	keyLogLevel                      = "log_level"
	keyDNSRefreshInterval            = "dns_refresh_interval"
	keyDownstreamHealthCheckInterval = "downstream_health_check_interval"
	keyDownstream                    = "downstream"
)

// Config is the relay's parsed, validated configuration.
type Config struct {
	DataPort             int
	FlushInterval        time.Duration
	LogLevel             int
	DNSRefreshInterval   time.Duration
	HealthCheckInterval  time.Duration

	DownstreamHost       string
	DownstreamIsLiteral  bool // true if DownstreamHost is already a numeric address
	DownstreamDataPort   int
	DownstreamHealthPort int
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	v := viper.New()
	util.InitViper(v)
	v.SetConfigFile(path)
	v.SetConfigType("properties")
	v.SetDefault(keyDNSRefreshInterval, int(relay.DefaultDNSRefreshInterval/time.Second))
	v.SetDefault(keyDownstreamHealthCheckInterval, relay.DefaultHealthCheckInterval.Seconds())
	v.SetDefault(keyLogLevel, relay.DefaultLogLevel)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return FromViper(v)
}

// FromViper builds and validates a Config from an already-populated viper
// instance, applying environment overrides if util.InitViper was called on
// it.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		DataPort:            v.GetInt(keyDataPort),
		FlushInterval:       durationFromSeconds(v.GetFloat64(keyDownstreamFlushInterval)),
		LogLevel:            v.GetInt(keyLogLevel),
		DNSRefreshInterval:  time.Duration(v.GetInt(keyDNSRefreshInterval)) * time.Second,
		HealthCheckInterval: durationFromSeconds(v.GetFloat64(keyDownstreamHealthCheckInterval)),
	}

	if cfg.DataPort <= 0 {
		return nil, fmt.Errorf("%s: missing or invalid ingress port", keyDataPort)
	}
	if cfg.LogLevel < 0 || cfg.LogLevel > 4 {
		return nil, fmt.Errorf("%s: must be between 0 and 4", keyLogLevel)
	}

	downstream := v.GetString(keyDownstream)
	if downstream == "" {
		return nil, fmt.Errorf("%s: missing downstream specifier", keyDownstream)
	}
	if err := cfg.parseDownstream(downstream); err != nil {
		return nil, fmt.Errorf("%s: %w", keyDownstream, err)
	}

	return cfg, nil
}

func durationFromSeconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// parseDownstream splits the "host:dataPort:healthPort" specifier.
func (c *Config) parseDownstream(spec string) error {
	parts := strings.Split(spec, ":")
	if len(parts) != 3 {
		return fmt.Errorf("expected host:dataPort:healthPort, got %q", spec)
	}
	dataPort, err := strconv.Atoi(parts[1])
	if err != nil {
		return fmt.Errorf("invalid data port %q: %w", parts[1], err)
	}
	healthPort, err := strconv.Atoi(parts[2])
	if err != nil {
		return fmt.Errorf("invalid health port %q: %w", parts[2], err)
	}

	c.DownstreamHost = parts[0]
	c.DownstreamDataPort = dataPort
	c.DownstreamHealthPort = healthPort
	c.DownstreamIsLiteral = net.ParseIP(parts[0]) != nil
	return nil
}
