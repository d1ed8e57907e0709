package main

import (
	"os"
	"testing"
	"time"
)

func TestApplyEnvOverrides_Basic(t *testing.T) {
	base := validConfig()

	os.Setenv("LAUDA_SERVER_SERIAL", "/dev/ttyUSB3")
	os.Setenv("LAUDA_SERVER_BAUD", "19200")
	os.Setenv("LAUDA_SERVER_TIMEOUT", "2s")
	os.Setenv("LAUDA_SERVER_POLL_INTERVAL", "500ms")
	os.Setenv("LAUDA_SERVER_MDNS_ENABLE", "true")
	t.Cleanup(func() {
		os.Unsetenv("LAUDA_SERVER_SERIAL")
		os.Unsetenv("LAUDA_SERVER_BAUD")
		os.Unsetenv("LAUDA_SERVER_TIMEOUT")
		os.Unsetenv("LAUDA_SERVER_POLL_INTERVAL")
		os.Unsetenv("LAUDA_SERVER_MDNS_ENABLE")
	})
	if err := applyEnvOverrides(base, map[string]struct{}{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if base.serialDev != "/dev/ttyUSB3" {
		t.Fatalf("expected serial override, got %s", base.serialDev)
	}
	if base.baud != 19200 {
		t.Fatalf("expected baud override, got %d", base.baud)
	}
	if base.exchangeTO != 2*time.Second {
		t.Fatalf("expected timeout 2s got %v", base.exchangeTO)
	}
	if base.pollInterval != 500*time.Millisecond {
		t.Fatalf("expected poll interval 500ms got %v", base.pollInterval)
	}
	if !base.mdnsEnable {
		t.Fatalf("expected mdnsEnable true")
	}
}

func TestApplyEnvOverrides_FlagPrecedence(t *testing.T) {
	base := &appConfig{baud: 9600}
	os.Setenv("LAUDA_SERVER_BAUD", "19200")
	t.Cleanup(func() { os.Unsetenv("LAUDA_SERVER_BAUD") })
	// Simulate user passed -baud flag (so env should be ignored)
	if err := applyEnvOverrides(base, map[string]struct{}{"baud": {}}); err != nil {
		t.Fatalf("err: %v", err)
	}
	if base.baud != 9600 {
		t.Fatalf("expected baud unchanged 9600 got %d", base.baud)
	}
}

func TestApplyEnvOverrides_BadInt(t *testing.T) {
	base := &appConfig{hubBuffer: 64}
	os.Setenv("LAUDA_SERVER_HUB_BUFFER", "notint")
	t.Cleanup(func() { os.Unsetenv("LAUDA_SERVER_HUB_BUFFER") })
	if err := applyEnvOverrides(base, map[string]struct{}{}); err == nil {
		t.Fatalf("expected error for bad integer")
	}
}

func TestApplyEnvOverrides_BadDuration(t *testing.T) {
	base := &appConfig{exchangeTO: time.Second}
	os.Setenv("LAUDA_SERVER_TIMEOUT", "soon")
	t.Cleanup(func() { os.Unsetenv("LAUDA_SERVER_TIMEOUT") })
	if err := applyEnvOverrides(base, map[string]struct{}{}); err == nil {
		t.Fatalf("expected error for bad duration")
	}
}
