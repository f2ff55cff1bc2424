package config

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/danmuck/streamcore/internal/logging"
	"github.com/danmuck/streamcore/internal/transport"
	"github.com/pelletier/go-toml/v2"
)

// NodeConfig is the on-disk shape of a streamcore node.
type NodeConfig struct {
	ID              string   `toml:"id"`
	ListenAddr      string   `toml:"listen_addr"`
	AdminAddr       string   `toml:"admin_addr"`
	AdminToken      string   `toml:"admin_token"`
	CorsOrigins     []string `toml:"cors_origins"`
	MaxFramePayload uint64   `toml:"max_frame_payload"`
	LogLevel        string   `toml:"log_level"`
	Security        Security `toml:"security"`
}

type Security struct {
	Mode               string `toml:"mode"`
	TLSEnabled         bool   `toml:"tls_enabled"`
	Mutual             bool   `toml:"mutual"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
	CertFile           string `toml:"cert_file"`
	KeyFile            string `toml:"key_file"`
	CAFile             string `toml:"ca_file"`
	ServerName         string `toml:"server_name"`
}

const (
	DefaultID         = "streamcore"
	DefaultListenAddr = "127.0.0.1:4433"
	DefaultAdminAddr  = "127.0.0.1:9400"
)

// Load reads path, fills defaults and validates the result.
func Load(path string) (NodeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return NodeConfig{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return NodeConfig{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return cfg, nil
}

// Parse decodes TOML bytes. Unknown keys are rejected.
func Parse(data []byte) (NodeConfig, error) {
	var cfg NodeConfig
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return NodeConfig{}, err
	}
	cfg = cfg.withDefaults()
	if err := Validate(cfg); err != nil {
		return NodeConfig{}, err
	}
	return cfg, nil
}

func (c NodeConfig) withDefaults() NodeConfig {
	if strings.TrimSpace(c.ID) == "" {
		c.ID = DefaultID
	}
	if strings.TrimSpace(c.ListenAddr) == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if strings.TrimSpace(c.AdminAddr) == "" {
		c.AdminAddr = DefaultAdminAddr
	}
	if strings.TrimSpace(c.Security.Mode) == "" {
		c.Security.Mode = "development"
	}
	return c
}

func Validate(cfg NodeConfig) error {
	if strings.TrimSpace(cfg.ID) == "" {
		return fmt.Errorf("node config missing id")
	}
	if err := validateAddr("listen_addr", cfg.ListenAddr); err != nil {
		return err
	}
	if err := validateAddr("admin_addr", cfg.AdminAddr); err != nil {
		return err
	}
	if cfg.ListenAddr == cfg.AdminAddr {
		return fmt.Errorf("listen_addr and admin_addr must differ: %s", cfg.ListenAddr)
	}
	if cfg.LogLevel != "" {
		if _, ok := logging.ParseLevel(cfg.LogLevel); !ok {
			return fmt.Errorf("log_level invalid: %q", cfg.LogLevel)
		}
	}
	if cfg.Security.Mutual && !cfg.Security.TLSEnabled {
		return fmt.Errorf("security.mutual requires security.tls_enabled")
	}
	if cfg.Security.TLSEnabled {
		if strings.TrimSpace(cfg.Security.CertFile) == "" || strings.TrimSpace(cfg.Security.KeyFile) == "" {
			return fmt.Errorf("security.tls_enabled requires cert_file and key_file")
		}
	}
	return nil
}

func validateAddr(key, addr string) error {
	if strings.TrimSpace(addr) == "" {
		return fmt.Errorf("%s is required", key)
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("%s invalid: %w", key, err)
	}
	return nil
}

// Transport maps the node's security and framing settings onto a transport
// config seeded from transport.DefaultConfig.
func (c NodeConfig) Transport() transport.Config {
	out := transport.DefaultConfig()
	if c.MaxFramePayload > 0 {
		out.MaxFramePayload = c.MaxFramePayload
	}
	out.SecurityMode = transport.SecurityMode(c.Security.Mode)
	out.TLS = transport.TLSConfig{
		Enabled:            c.Security.TLSEnabled,
		Mutual:             c.Security.Mutual,
		InsecureSkipVerify: c.Security.InsecureSkipVerify,
		CertFile:           c.Security.CertFile,
		KeyFile:            c.Security.KeyFile,
		CAFile:             c.Security.CAFile,
		ServerName:         c.Security.ServerName,
	}
	return out.WithDefaults()
}
