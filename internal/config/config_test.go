package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danmuck/streamcore/internal/testutil/testlog"
	"github.com/danmuck/streamcore/internal/transport"
)

func TestParseFillsDefaults(t *testing.T) {
	testlog.Start(t)
	cfg, err := Parse([]byte(`max_frame_payload = 512`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.ID != DefaultID || cfg.ListenAddr != DefaultListenAddr || cfg.AdminAddr != DefaultAdminAddr {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Security.Mode != "development" {
		t.Fatalf("unexpected security mode: %q", cfg.Security.Mode)
	}
	tc := cfg.Transport()
	if tc.MaxFramePayload != 512 {
		t.Fatalf("unexpected frame payload: %d", tc.MaxFramePayload)
	}
	if tc.SecurityMode != transport.SecurityModeDevelopment {
		t.Fatalf("unexpected transport mode: %q", tc.SecurityMode)
	}
}

func TestLoadFullConfig(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "node.toml")
	body := `
id = "edge-a"
listen_addr = "0.0.0.0:5000"
admin_addr = "127.0.0.1:5001"
cors_origins = ["http://localhost:5173"]
log_level = "debug"

[security]
mode = "production"
tls_enabled = true
cert_file = "server.crt"
key_file = "server.key"
ca_file = "ca.crt"
server_name = "edge-a.internal"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ID != "edge-a" || len(cfg.CorsOrigins) != 1 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	tc := cfg.Transport()
	if !tc.TLS.Enabled || tc.TLS.ServerName != "edge-a.internal" || tc.SecurityMode != transport.SecurityModeProduction {
		t.Fatalf("unexpected transport config: %+v", tc)
	}
	if err := tc.ValidateServerTransport(); err != nil {
		t.Fatalf("server transport invalid: %v", err)
	}
}

func TestParseRejectsInvalidConfigs(t *testing.T) {
	testlog.Start(t)
	cases := map[string]struct {
		body string
		want string
	}{
		"unknown key":   {body: `listen = "x"`, want: "strict mode"},
		"bad addr":      {body: `listen_addr = "nohost"`, want: "listen_addr invalid"},
		"same addrs":    {body: "listen_addr = \"127.0.0.1:1\"\nadmin_addr = \"127.0.0.1:1\"", want: "must differ"},
		"bad log level": {body: `log_level = "loud"`, want: "log_level invalid"},
		"mutual no tls": {body: "[security]\nmutual = true", want: "requires security.tls_enabled"},
		"tls no cert":   {body: "[security]\ntls_enabled = true", want: "requires cert_file"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(tc.body))
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	testlog.Start(t)
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil || !strings.Contains(err.Error(), "config load failed") {
		t.Fatalf("expected load failure, got %v", err)
	}
}
