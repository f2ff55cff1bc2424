package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type mode string

const (
	modeListen mode = "listen"
	modeDial   mode = "dial"
)

// runConfig holds per-invocation settings layered over the node config.
type runConfig struct {
	Mode     mode
	Addr     string
	Request  string
	Payload  string
	StreamID uint64
	Timeout  time.Duration
}

func defaultRunConfig() runConfig {
	return runConfig{
		Mode:     modeListen,
		Request:  "GET /",
		Payload:  "hello from streamctl",
		StreamID: 0,
		Timeout:  10 * time.Second,
	}
}

type fileConfig struct {
	Mode      string `toml:"mode"`
	Addr      string `toml:"addr"`
	Request   string `toml:"request"`
	Payload   string `toml:"payload"`
	StreamID  int64  `toml:"stream_id"`
	Timeout   string `toml:"timeout"`
	TimeoutMS int64  `toml:"timeout_ms"`
}

func loadRunConfig(path string) (runConfig, error) {
	cfg := defaultRunConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return runConfig{}, fmt.Errorf("load run config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return runConfig{}, fmt.Errorf("load run config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("mode") {
		m, err := parseMode(raw.Mode)
		if err != nil {
			return runConfig{}, err
		}
		cfg.Mode = m
	}

	if meta.IsDefined("addr") {
		cfg.Addr = strings.TrimSpace(raw.Addr)
	}

	if meta.IsDefined("request") {
		cfg.Request = raw.Request
	}

	if meta.IsDefined("payload") {
		cfg.Payload = raw.Payload
	}

	if meta.IsDefined("stream_id") {
		if raw.StreamID < 0 {
			return runConfig{}, fmt.Errorf("stream_id must be non-negative: %d", raw.StreamID)
		}
		if uint64(raw.StreamID) == requestStream {
			return runConfig{}, fmt.Errorf("stream_id %d is reserved for the request", raw.StreamID)
		}
		cfg.StreamID = uint64(raw.StreamID)
	}

	if meta.IsDefined("timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Timeout))
		if err != nil {
			return runConfig{}, fmt.Errorf("parse timeout: %w", err)
		}
		cfg.Timeout = d
	}

	if meta.IsDefined("timeout_ms") {
		cfg.Timeout = time.Duration(raw.TimeoutMS) * time.Millisecond
	}

	if cfg.Timeout <= 0 {
		return runConfig{}, fmt.Errorf("timeout must be positive: %s", cfg.Timeout)
	}

	return cfg, nil
}

func parseMode(raw string) (mode, error) {
	switch m := mode(strings.ToLower(strings.TrimSpace(raw))); m {
	case modeListen, modeDial:
		return m, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want listen or dial)", raw)
	}
}
