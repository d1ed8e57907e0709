package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lauda-server.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestApplyFileConfig_Basic(t *testing.T) {
	path := writeTempConfig(t, `
serial: /dev/ttyS7
baud: 19200
timeout: 3s
poll_interval: 250ms
log_format: json
hub_policy: kick
max_clients: 4
mdns_enable: true
`)
	cfg := validConfig()
	if err := applyFileConfig(cfg, path, map[string]struct{}{}); err != nil {
		t.Fatalf("applyFileConfig: %v", err)
	}
	if cfg.serialDev != "/dev/ttyS7" {
		t.Fatalf("serial = %s", cfg.serialDev)
	}
	if cfg.baud != 19200 {
		t.Fatalf("baud = %d", cfg.baud)
	}
	if cfg.exchangeTO != 3*time.Second {
		t.Fatalf("timeout = %v", cfg.exchangeTO)
	}
	if cfg.pollInterval != 250*time.Millisecond {
		t.Fatalf("poll_interval = %v", cfg.pollInterval)
	}
	if cfg.logFormat != "json" {
		t.Fatalf("log_format = %s", cfg.logFormat)
	}
	if cfg.hubPolicy != "kick" {
		t.Fatalf("hub_policy = %s", cfg.hubPolicy)
	}
	if cfg.maxClients != 4 {
		t.Fatalf("max_clients = %d", cfg.maxClients)
	}
	if !cfg.mdnsEnable {
		t.Fatalf("mdns_enable not applied")
	}
}

func TestApplyFileConfig_FlagWins(t *testing.T) {
	path := writeTempConfig(t, "serial: /dev/ttyS7\nbaud: 19200\n")
	cfg := validConfig()
	set := map[string]struct{}{"serial": {}, "baud": {}}
	if err := applyFileConfig(cfg, path, set); err != nil {
		t.Fatalf("applyFileConfig: %v", err)
	}
	if cfg.serialDev != "/dev/null" || cfg.baud != 9600 {
		t.Fatalf("flag-set fields overridden: %s %d", cfg.serialDev, cfg.baud)
	}
}

func TestApplyFileConfig_EnvWinsOverFile(t *testing.T) {
	path := writeTempConfig(t, "baud: 19200\n")
	cfg := validConfig()
	os.Setenv("LAUDA_SERVER_BAUD", "38400")
	t.Cleanup(func() { os.Unsetenv("LAUDA_SERVER_BAUD") })
	set := map[string]struct{}{}
	if err := applyFileConfig(cfg, path, set); err != nil {
		t.Fatalf("applyFileConfig: %v", err)
	}
	if err := applyEnvOverrides(cfg, set); err != nil {
		t.Fatalf("applyEnvOverrides: %v", err)
	}
	if cfg.baud != 38400 {
		t.Fatalf("env should win over file, baud = %d", cfg.baud)
	}
}

func TestApplyFileConfig_Errors(t *testing.T) {
	if err := applyFileConfig(validConfig(), filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Fatalf("expected error for missing file")
	}
	path := writeTempConfig(t, "timeout: soon\n")
	if err := applyFileConfig(validConfig(), path, map[string]struct{}{}); err == nil {
		t.Fatalf("expected error for bad duration")
	}
	path = writeTempConfig(t, "baud: [1,2]\n")
	if err := applyFileConfig(validConfig(), path, map[string]struct{}{}); err == nil {
		t.Fatalf("expected error for malformed yaml")
	}
}
