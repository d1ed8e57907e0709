package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type appConfig struct {
	instance        string
	serialDev       string
	baud            int
	serialReadTO    time.Duration // per-Read poll slice on the port
	exchangeTO      time.Duration // overall per-exchange response deadline
	listenAddr      string
	pollInterval    time.Duration
	logFormat       string
	logLevel        string
	metricsAddr     string
	logMetricsEvery time.Duration
	hubBuffer       int
	hubPolicy       string
	maxClients      int
	handshakeTO     time.Duration
	clientReadTO    time.Duration
	mdnsEnable      bool
	mdnsName        string
}

func parseFlags() (*appConfig, bool) {
	cfg := &appConfig{}
	serialDev := flag.String("serial", "/dev/ttyS2", "Serial device path")
	baud := flag.Int("baud", 9600, "Serial baud rate")
	serialReadTO := flag.Duration("serial-read-timeout", 50*time.Millisecond, "Serial per-read poll slice")
	exchangeTO := flag.Duration("timeout", time.Second, "Per-exchange response deadline")
	listen := flag.String("listen", ":21200", "TCP listen address")
	pollInterval := flag.Duration("poll-interval", time.Second, "Background attribute poll interval (0 disables)")
	logFormat := flag.String("log-format", "text", "Log format: text|json")
	logLevel := flag.String("log-level", "info", "Log level: debug|info|warn|error")
	metricsAddr := flag.String("metrics-addr", "", "Metrics HTTP listen address (e.g., :9100); empty disables")
	logMetricsEvery := flag.Duration("log-metrics-interval", 0, "If >0, periodically log metrics counters (for non-Prometheus setups)")
	hubBuf := flag.Int("hub-buffer", 64, "Per-subscriber update buffer")
	hubPolicy := flag.String("hub-policy", "drop", "Backpressure policy: drop|kick")
	maxClients := flag.Int("max-clients", 0, "Maximum simultaneous TCP clients (0 = unlimited)")
	handshakeTO := flag.Duration("handshake-timeout", 3*time.Second, "Client handshake timeout")
	clientReadTO := flag.Duration("client-read-timeout", 60*time.Second, "Per-connection read deadline")
	mdnsEnable := flag.Bool("mdns-enable", false, "Enable mDNS/Avahi advertisement")
	mdnsName := flag.String("mdns-name", "", "mDNS instance name (default lauda-server-<instance>)")
	configFile := flag.String("config", "", "Optional YAML config file")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Usage = usage
	flag.Parse()

	// Track which flags were explicitly set to give them precedence over
	// env and file values.
	setFlags := map[string]struct{}{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = struct{}{} })
	cfg.serialDev = *serialDev
	cfg.baud = *baud
	cfg.serialReadTO = *serialReadTO
	cfg.exchangeTO = *exchangeTO
	cfg.listenAddr = *listen
	cfg.pollInterval = *pollInterval
	cfg.logFormat = *logFormat
	cfg.logLevel = *logLevel
	cfg.metricsAddr = *metricsAddr
	cfg.logMetricsEvery = *logMetricsEvery
	cfg.hubBuffer = *hubBuf
	cfg.hubPolicy = *hubPolicy
	cfg.maxClients = *maxClients
	cfg.handshakeTO = *handshakeTO
	cfg.clientReadTO = *clientReadTO
	cfg.mdnsEnable = *mdnsEnable
	cfg.mdnsName = *mdnsName

	path := *configFile
	if path == "" {
		if v, ok := os.LookupEnv("LAUDA_SERVER_CONFIG"); ok {
			path = strings.TrimSpace(v)
		}
	}
	if path != "" {
		if err := applyFileConfig(cfg, path, setFlags); err != nil {
			fmt.Printf("config file error: %v\n", err)
			return nil, *showVersion
		}
	}
	if err := applyEnvOverrides(cfg, setFlags); err != nil {
		fmt.Printf("environment override error: %v\n", err)
		return nil, *showVersion
	}
	if *showVersion {
		return cfg, true
	}
	if flag.NArg() != 1 {
		usage()
		return nil, false
	}
	cfg.instance = flag.Arg(0)
	if err := cfg.validate(); err != nil {
		fmt.Printf("configuration error: %v\n", err)
		return nil, false
	}
	return cfg, false
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: lauda-server [flags] <instance>\n")
	flag.PrintDefaults()
}

// validate performs basic semantic validation of the parsed configuration.
// It does not attempt to open devices or listeners, only checks values and ranges.
func (c *appConfig) validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	if c.instance == "" {
		return errors.New("instance name required")
	}
	switch c.logFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format: %s", c.logFormat)
	}
	switch c.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log-level: %s", c.logLevel)
	}
	switch c.hubPolicy {
	case "drop", "kick":
	default:
		return fmt.Errorf("invalid hub-policy: %s", c.hubPolicy)
	}
	if c.hubBuffer <= 0 {
		return fmt.Errorf("hub-buffer must be > 0 (got %d)", c.hubBuffer)
	}
	if c.baud <= 0 {
		return fmt.Errorf("baud must be > 0 (got %d)", c.baud)
	}
	if c.serialReadTO <= 0 {
		return fmt.Errorf("serial-read-timeout must be > 0")
	}
	if c.exchangeTO <= 0 {
		return fmt.Errorf("timeout must be > 0")
	}
	if c.pollInterval < 0 {
		return fmt.Errorf("poll-interval must be >= 0")
	}
	if c.handshakeTO <= 0 {
		return fmt.Errorf("handshake-timeout must be > 0")
	}
	if c.clientReadTO <= 0 {
		return fmt.Errorf("client-read-timeout must be > 0")
	}
	if c.maxClients < 0 {
		return fmt.Errorf("max-clients must be >= 0")
	}
	return nil
}

// fileConfig is the YAML form of appConfig. Durations are Go duration
// strings ("1s", "50ms").
type fileConfig struct {
	Serial             string `yaml:"serial"`
	Baud               int    `yaml:"baud"`
	SerialReadTimeout  string `yaml:"serial_read_timeout"`
	Timeout            string `yaml:"timeout"`
	Listen             string `yaml:"listen"`
	PollInterval       string `yaml:"poll_interval"`
	LogFormat          string `yaml:"log_format"`
	LogLevel           string `yaml:"log_level"`
	MetricsAddr        string `yaml:"metrics_addr"`
	LogMetricsInterval string `yaml:"log_metrics_interval"`
	HubBuffer          int    `yaml:"hub_buffer"`
	HubPolicy          string `yaml:"hub_policy"`
	MaxClients         *int   `yaml:"max_clients"`
	HandshakeTimeout   string `yaml:"handshake_timeout"`
	ClientReadTimeout  string `yaml:"client_read_timeout"`
	MDNSEnable         *bool  `yaml:"mdns_enable"`
	MDNSName           string `yaml:"mdns_name"`
}

// applyFileConfig layers a YAML config file under flags: only fields whose
// flags were not explicitly set are taken from the file. Env overrides are
// applied afterwards and therefore win over file values.
func applyFileConfig(c *appConfig, path string, set map[string]struct{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	dur := func(flagName, key, v string, dst *time.Duration, allowZero bool) error {
		if v == "" {
			return nil
		}
		if _, ok := set[flagName]; ok {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 || (!allowZero && d == 0) {
			return fmt.Errorf("invalid %s: %q", key, v)
		}
		*dst = d
		return nil
	}
	if _, ok := set["serial"]; !ok && fc.Serial != "" {
		c.serialDev = fc.Serial
	}
	if _, ok := set["baud"]; !ok && fc.Baud > 0 {
		c.baud = fc.Baud
	}
	if err := dur("serial-read-timeout", "serial_read_timeout", fc.SerialReadTimeout, &c.serialReadTO, false); err != nil {
		return err
	}
	if err := dur("timeout", "timeout", fc.Timeout, &c.exchangeTO, false); err != nil {
		return err
	}
	if _, ok := set["listen"]; !ok && fc.Listen != "" {
		c.listenAddr = fc.Listen
	}
	if err := dur("poll-interval", "poll_interval", fc.PollInterval, &c.pollInterval, true); err != nil {
		return err
	}
	if _, ok := set["log-format"]; !ok && fc.LogFormat != "" {
		c.logFormat = fc.LogFormat
	}
	if _, ok := set["log-level"]; !ok && fc.LogLevel != "" {
		c.logLevel = fc.LogLevel
	}
	if _, ok := set["metrics-addr"]; !ok && fc.MetricsAddr != "" {
		c.metricsAddr = fc.MetricsAddr
	}
	if err := dur("log-metrics-interval", "log_metrics_interval", fc.LogMetricsInterval, &c.logMetricsEvery, true); err != nil {
		return err
	}
	if _, ok := set["hub-buffer"]; !ok && fc.HubBuffer > 0 {
		c.hubBuffer = fc.HubBuffer
	}
	if _, ok := set["hub-policy"]; !ok && fc.HubPolicy != "" {
		c.hubPolicy = fc.HubPolicy
	}
	if _, ok := set["max-clients"]; !ok && fc.MaxClients != nil && *fc.MaxClients >= 0 {
		c.maxClients = *fc.MaxClients
	}
	if err := dur("handshake-timeout", "handshake_timeout", fc.HandshakeTimeout, &c.handshakeTO, false); err != nil {
		return err
	}
	if err := dur("client-read-timeout", "client_read_timeout", fc.ClientReadTimeout, &c.clientReadTO, false); err != nil {
		return err
	}
	if _, ok := set["mdns-enable"]; !ok && fc.MDNSEnable != nil {
		c.mdnsEnable = *fc.MDNSEnable
	}
	if _, ok := set["mdns-name"]; !ok && fc.MDNSName != "" {
		c.mdnsName = fc.MDNSName
	}
	return nil
}

// applyEnvOverrides maps LAUDA_SERVER_* environment variables to config
// fields unless a corresponding flag was explicitly set. Empty values are
// ignored. Durations accept Go time.ParseDuration format.
func applyEnvOverrides(c *appConfig, set map[string]struct{}) error {
	var firstErr error
	get := func(k string) (string, bool) { v, ok := os.LookupEnv(k); return strings.TrimSpace(v), ok }
	if _, ok := set["serial"]; !ok {
		if v, ok := get("LAUDA_SERVER_SERIAL"); ok && v != "" {
			c.serialDev = v
		}
	}
	if _, ok := set["baud"]; !ok {
		if v, ok := get("LAUDA_SERVER_BAUD"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.baud = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid LAUDA_SERVER_BAUD: %w", err)
			}
		}
	}
	if _, ok := set["serial-read-timeout"]; !ok {
		if v, ok := get("LAUDA_SERVER_SERIAL_READ_TIMEOUT"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d > 0 {
				c.serialReadTO = d
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid LAUDA_SERVER_SERIAL_READ_TIMEOUT: %w", err)
			}
		}
	}
	if _, ok := set["timeout"]; !ok {
		if v, ok := get("LAUDA_SERVER_TIMEOUT"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d > 0 {
				c.exchangeTO = d
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid LAUDA_SERVER_TIMEOUT: %w", err)
			}
		}
	}
	if _, ok := set["listen"]; !ok {
		if v, ok := get("LAUDA_SERVER_LISTEN"); ok && v != "" {
			c.listenAddr = v
		}
	}
	if _, ok := set["poll-interval"]; !ok {
		if v, ok := get("LAUDA_SERVER_POLL_INTERVAL"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d >= 0 {
				c.pollInterval = d
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid LAUDA_SERVER_POLL_INTERVAL: %w", err)
			}
		}
	}
	if _, ok := set["log-format"]; !ok {
		if v, ok := get("LAUDA_SERVER_LOG_FORMAT"); ok && v != "" {
			c.logFormat = v
		}
	}
	if _, ok := set["log-level"]; !ok {
		if v, ok := get("LAUDA_SERVER_LOG_LEVEL"); ok && v != "" {
			c.logLevel = v
		}
	}
	if _, ok := set["metrics-addr"]; !ok {
		if v, ok := get("LAUDA_SERVER_METRICS"); ok {
			c.metricsAddr = v
		}
	}
	if _, ok := set["log-metrics-interval"]; !ok {
		if v, ok := get("LAUDA_SERVER_LOG_METRICS_INTERVAL"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d >= 0 {
				c.logMetricsEvery = d
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid LAUDA_SERVER_LOG_METRICS_INTERVAL: %w", err)
			}
		}
	}
	if _, ok := set["hub-buffer"]; !ok {
		if v, ok := get("LAUDA_SERVER_HUB_BUFFER"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.hubBuffer = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid LAUDA_SERVER_HUB_BUFFER: %w", err)
			}
		}
	}
	if _, ok := set["hub-policy"]; !ok {
		if v, ok := get("LAUDA_SERVER_HUB_POLICY"); ok && v != "" {
			c.hubPolicy = v
		}
	}
	if _, ok := set["max-clients"]; !ok {
		if v, ok := get("LAUDA_SERVER_MAX_CLIENTS"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				c.maxClients = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid LAUDA_SERVER_MAX_CLIENTS: %w", err)
			}
		}
	}
	if _, ok := set["handshake-timeout"]; !ok {
		if v, ok := get("LAUDA_SERVER_HANDSHAKE_TIMEOUT"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d > 0 {
				c.handshakeTO = d
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid LAUDA_SERVER_HANDSHAKE_TIMEOUT: %w", err)
			}
		}
	}
	if _, ok := set["client-read-timeout"]; !ok {
		if v, ok := get("LAUDA_SERVER_CLIENT_READ_TIMEOUT"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d > 0 {
				c.clientReadTO = d
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid LAUDA_SERVER_CLIENT_READ_TIMEOUT: %w", err)
			}
		}
	}
	if _, ok := set["mdns-enable"]; !ok {
		if v, ok := get("LAUDA_SERVER_MDNS_ENABLE"); ok && v != "" {
			switch strings.ToLower(v) {
			case "1", "true", "yes", "on":
				c.mdnsEnable = true
			case "0", "false", "no", "off":
				c.mdnsEnable = false
			}
		}
	}
	if _, ok := set["mdns-name"]; !ok {
		if v, ok := get("LAUDA_SERVER_MDNS_NAME"); ok && v != "" {
			c.mdnsName = v
		}
	}
	return firstErr
}
