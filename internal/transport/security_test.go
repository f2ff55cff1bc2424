package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/danmuck/streamcore/internal/testutil/testlog"
	"github.com/danmuck/streamcore/internal/testutil/tlstest"
)

func TestValidateClientTransport(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		name string
		mut  func(*Config)
		want error
	}{
		{name: "development plaintext", mut: func(*Config) {}},
		{name: "bad mode", mut: func(c *Config) { c.SecurityMode = "staging" }, want: ErrInvalidSecurityMode},
		{name: "production needs tls", mut: func(c *Config) { c.SecurityMode = SecurityModeProduction }, want: ErrTLSRequired},
		{
			name: "production forbids skip verify",
			mut: func(c *Config) {
				c.SecurityMode = SecurityModeProduction
				c.TLS.Enabled = true
				c.TLS.InsecureSkipVerify = true
			},
			want: ErrTLSInsecureSkipNotAllow,
		},
		{
			name: "mutual needs cert",
			mut: func(c *Config) {
				c.TLS.Enabled = true
				c.TLS.Mutual = true
			},
			want: ErrTLSCertFileRequired,
		},
		{
			name: "mutual needs key",
			mut: func(c *Config) {
				c.TLS.Enabled = true
				c.TLS.Mutual = true
				c.TLS.CertFile = "client.crt"
			},
			want: ErrTLSKeyFileRequired,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mut(&cfg)
			err := cfg.ValidateClientTransport()
			if tc.want == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestValidateServerTransport(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	cfg.SecurityMode = " PRODUCTION "
	if err := cfg.ValidateServerTransport(); !errors.Is(err, ErrTLSRequired) {
		t.Fatalf("expected ErrTLSRequired, got %v", err)
	}
	cfg.TLS.Enabled = true
	if err := cfg.ValidateServerTransport(); !errors.Is(err, ErrTLSCertFileRequired) {
		t.Fatalf("expected ErrTLSCertFileRequired, got %v", err)
	}
	cfg.TLS.CertFile = "server.crt"
	cfg.TLS.KeyFile = "server.key"
	cfg.TLS.Mutual = true
	if err := cfg.ValidateServerTransport(); !errors.Is(err, ErrTLSCAFileRequired) {
		t.Fatalf("expected ErrTLSCAFileRequired, got %v", err)
	}
	cfg.TLS.CAFile = "ca.crt"
	if err := cfg.ValidateServerTransport(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClientTLSConfigServerName(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	tlsCfg, err := cfg.clientTLSConfig("example.net:4433")
	if err != nil {
		t.Fatalf("client tls config: %v", err)
	}
	if tlsCfg.ServerName != "example.net" {
		t.Fatalf("server name from addr got=%q", tlsCfg.ServerName)
	}

	cfg.TLS.ServerName = "stream.internal"
	tlsCfg, err = cfg.clientTLSConfig("10.0.0.1:4433")
	if err != nil {
		t.Fatalf("client tls config: %v", err)
	}
	if tlsCfg.ServerName != "stream.internal" {
		t.Fatalf("configured server name got=%q", tlsCfg.ServerName)
	}
}

func tlsPair(t *testing.T, serverName string) (Config, Config) {
	t.Helper()
	ca := tlstest.NewAuthority(t, "streamcore-test-ca")
	certFile, keyFile := ca.IssueServer(t, "streamcore-server", []string{"stream.test"}, []net.IP{net.ParseIP("127.0.0.1")})

	server := DefaultConfig()
	server.TLS = TLSConfig{Enabled: true, CertFile: certFile, KeyFile: keyFile}

	client := DefaultConfig()
	client.MaxConnectAttempts = 1
	client.TLS = TLSConfig{Enabled: true, CAFile: ca.CAFile(), ServerName: serverName}
	return server, client
}

func acceptHandshake(ln net.Listener) <-chan error {
	done := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			done <- err
			return
		}
		defer conn.Close()
		if tc, ok := conn.(*tls.Conn); ok {
			if err := tc.Handshake(); err != nil {
				done <- err
				return
			}
		}
		_, err = io.Copy(conn, conn)
		done <- err
	}()
	return done
}

func TestDialTLSVerifiesServerName(t *testing.T) {
	testlog.Start(t)
	serverCfg, clientCfg := tlsPair(t, "stream.test")

	ln, err := Listen("127.0.0.1:0", serverCfg)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	done := acceptHandshake(ln)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := Dial(ctx, ln.Addr().String(), clientCfg)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if got := conn.(*tls.Conn).ConnectionState().ServerName; got != "stream.test" {
		t.Fatalf("negotiated server name got=%q", got)
	}
	if _, err := conn.Write([]byte("ping")); err != nil {
		t.Fatalf("write: %v", err)
	}
	buf := make([]byte, 4)
	if _, err := io.ReadFull(conn, buf); err != nil || string(buf) != "ping" {
		t.Fatalf("echo got=%q err=%v", buf, err)
	}
	_ = conn.Close()
	<-done
}

func TestDialTLSRejectsWrongServerName(t *testing.T) {
	testlog.Start(t)
	serverCfg, clientCfg := tlsPair(t, "other.test")

	ln, err := Listen("127.0.0.1:0", serverCfg)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	done := acceptHandshake(ln)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := Dial(ctx, ln.Addr().String(), clientCfg)
	if err == nil {
		_ = conn.Close()
		t.Fatalf("expected verification failure for mismatched server name")
	}
	var hostErr x509.HostnameError
	if !errors.As(err, &hostErr) {
		t.Fatalf("expected hostname error, got %v", err)
	}
	<-done
}
