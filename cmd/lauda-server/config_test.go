package main

import (
	"testing"
	"time"
)

func validConfig() *appConfig {
	return &appConfig{
		instance:     "softimax/chiller/1",
		serialDev:    "/dev/null",
		baud:         9600,
		serialReadTO: 50 * time.Millisecond,
		exchangeTO:   time.Second,
		listenAddr:   ":21200",
		pollInterval: time.Second,
		logFormat:    "text",
		logLevel:     "info",
		hubBuffer:    8,
		hubPolicy:    "drop",
		maxClients:   0,
		handshakeTO:  time.Second,
		clientReadTO: time.Second,
	}
}

func TestConfigValidate_OK(t *testing.T) {
	if err := validConfig().validate(); err != nil {
		t.Fatalf("expected ok got %v", err)
	}
	// Poll interval zero is allowed (disables the poller).
	c := validConfig()
	c.pollInterval = 0
	if err := c.validate(); err != nil {
		t.Fatalf("expected ok with zero poll-interval, got %v", err)
	}
}

func TestConfigValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*appConfig)
	}{
		{"noInstance", func(c *appConfig) { c.instance = "" }},
		{"badFormat", func(c *appConfig) { c.logFormat = "xx" }},
		{"badLevel", func(c *appConfig) { c.logLevel = "nope" }},
		{"badPolicy", func(c *appConfig) { c.hubPolicy = "x" }},
		{"badHubBuf", func(c *appConfig) { c.hubBuffer = 0 }},
		{"badBaud", func(c *appConfig) { c.baud = 0 }},
		{"badSerialReadTO", func(c *appConfig) { c.serialReadTO = 0 }},
		{"badExchangeTO", func(c *appConfig) { c.exchangeTO = 0 }},
		{"badPollInterval", func(c *appConfig) { c.pollInterval = -time.Second }},
		{"badHandshakeTO", func(c *appConfig) { c.handshakeTO = 0 }},
		{"badClientReadTO", func(c *appConfig) { c.clientReadTO = 0 }},
		{"badMaxClients", func(c *appConfig) { c.maxClients = -1 }},
	}
	for _, tc := range tests {
		base := validConfig()
		tc.mod(base)
		if err := base.validate(); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}
