// Package config loads the server's YAML configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ruteri/metadata-governance-backend/interfaces"
	"github.com/ruteri/metadata-governance-backend/security"
	"gopkg.in/yaml.v3"
)

// DefaultMaxPageSize bounds every paged request unless configured otherwise.
const DefaultMaxPageSize = 500

// Config is the content of the configuration file.
//
//	server:
//	  maxPageSize: 200
//	zones:
//	  supportedZones: [data-lake, finance]
//	  defaultZones: [quarantine]
//	  publishZones: [data-lake]
//	security:
//	  administrators: [root]
//	  zoneWriters:
//	    finance: [alice]
//	  readOnlyUsers: [auditor]
//	audit:
//	  redisAddr: 127.0.0.1:6379
//	  redisStream: metadata-audit
type Config struct {
	Server   ServerConfig          `yaml:"server"`
	Zones    interfaces.ZoneConfig `yaml:"zones"`
	Security security.Policy       `yaml:"security"`
	Audit    AuditConfig           `yaml:"audit"`
}

type ServerConfig struct {
	MaxPageSize int `yaml:"maxPageSize"`
}

type AuditConfig struct {
	RedisAddr   string `yaml:"redisAddr"`
	RedisStream string `yaml:"redisStream"`
	MaxLen      int64  `yaml:"maxLen"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{MaxPageSize: DefaultMaxPageSize},
		Audit:  AuditConfig{RedisStream: "metadata-audit"},
	}
}

// Load reads the file at path on top of Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML on top of Default. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values are usable.
func (c *Config) Validate() error {
	if c.Server.MaxPageSize < 0 {
		return fmt.Errorf("server.maxPageSize must not be negative")
	}
	if c.Server.MaxPageSize == 0 {
		c.Server.MaxPageSize = DefaultMaxPageSize
	}
	for zone, writers := range c.Security.ZoneWriters {
		if zone == "" {
			return fmt.Errorf("security.zoneWriters has an empty zone name")
		}
		if len(writers) == 0 {
			return fmt.Errorf("security.zoneWriters.%s lists no users", zone)
		}
	}
	return nil
}
