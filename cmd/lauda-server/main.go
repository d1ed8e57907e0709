package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/igbemx/dev-softimax-lauda-t2200/internal/device"
	"github.com/igbemx/dev-softimax-lauda-t2200/internal/lauda"
	"github.com/igbemx/dev-softimax-lauda-t2200/internal/metrics"
	"github.com/igbemx/dev-softimax-lauda-t2200/internal/poller"
	"github.com/igbemx/dev-softimax-lauda-t2200/internal/serial"
	"github.com/igbemx/dev-softimax-lauda-t2200/internal/server"
)

func main() {
	cfg, showVersion := parseFlags()
	if showVersion {
		fmt.Printf("lauda-server %s (commit %s, built %s)\n", version, commit, date)
		return
	}
	if cfg == nil {
		os.Exit(2)
	}
	l := setupLogger(cfg.logFormat, cfg.logLevel, cfg.instance)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	startMetricsLogger(ctx, cfg.logMetricsEvery, l, &wg)

	sp, err := serial.Open(cfg.serialDev, cfg.baud, cfg.serialReadTO)
	if err != nil {
		l.Error("serial_open_error", "device", cfg.serialDev, "error", err)
		os.Exit(1)
	}
	l.Info("serial_open", "device", cfg.serialDev, "baud", cfg.baud, "timeout", cfg.exchangeTO)
	tr := serial.NewTransport(sp, cfg.exchangeTO)
	ad := lauda.NewAdapter(tr)
	// Startup STATUS probe; a failure leaves the device in FAULT but the
	// server still comes up so clients can observe the state.
	if err := ad.Probe(ctx); err != nil {
		l.Warn("probe_failed", "error", err)
	}
	l.Info("device_state", "state", ad.State().String())
	metrics.SetDeviceState(int(ad.State()))

	reg := device.Registry(ad)
	h := initHub(cfg, l)
	p := poller.New(reg, h, cfg.pollInterval, ad.State, l)
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.Run(ctx)
	}()

	srv := server.NewServer(
		server.WithHub(h),
		server.WithRegistry(reg),
		server.WithInstance(cfg.instance),
		server.WithStateFn(ad.State),
		server.WithLogger(l),
		server.WithMaxClients(cfg.maxClients),
		server.WithHandshakeTimeout(cfg.handshakeTO),
		server.WithReadDeadline(cfg.clientReadTO),
	)
	srv.SetListenAddr(cfg.listenAddr)
	go func() {
		if err := srv.Serve(ctx); err != nil {
			l.Error("tcp_server_error", "error", err)
			cancel()
		}
	}()

	// Start mDNS advertisement once listener is ready.
	go func() {
		if !cfg.mdnsEnable {
			return
		}
		select {
		case <-srv.Ready():
		case <-ctx.Done():
			return
		}
		// Extract port from bound address (host:port or :port)
		addr := srv.Addr()
		var portNum int
		if _, p, err := net.SplitHostPort(addr); err == nil {
			if pn, perr := strconv.Atoi(p); perr == nil {
				portNum = pn
			}
		}
		if portNum == 0 { // fallback attempt if format unexpected
			lastColon := strings.LastIndex(addr, ":")
			if lastColon >= 0 {
				if pn, perr := strconv.Atoi(addr[lastColon+1:]); perr == nil {
					portNum = pn
				}
			}
		}
		cleanupMDNS, err := startMDNS(ctx, cfg, portNum)
		if err != nil {
			l.Warn("mdns_start_failed", "error", err)
			return
		}
		l.Info("mdns_started", "service", mdnsServiceType, "name", cfg.mdnsName, "port", portNum)
		go func() { <-ctx.Done(); cleanupMDNS() }()
	}()

	// Ready when server listener is bound and context not cancelled.
	metrics.SetReadinessFunc(func() bool {
		select {
		case <-srv.Ready():
		default:
			return false
		}
		return ctx.Err() == nil
	})
	if cfg.metricsAddr != "" {
		metrics.InitBuildInfo(version, commit, date)
		srvHTTP := metrics.StartHTTP(cfg.metricsAddr)
		defer func() { _ = srvHTTP.Shutdown(context.Background()) }()
	}
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigCh
	l.Info("shutdown_signal", "signal", s.String())
	cancel()
	_ = tr.Close()
	wg.Wait()
}
