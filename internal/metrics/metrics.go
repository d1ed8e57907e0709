package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/igbemx/dev-softimax-lauda-t2200/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus collectors
var (
	SerialExchanges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "serial_exchanges_total",
		Help: "Total completed command/response exchanges with the chiller.",
	})
	SerialTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "serial_timeouts_total",
		Help: "Total exchanges that produced no response line within the deadline.",
	})
	ProtocolErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "protocol_errors_total",
		Help: "Total instrument responses rejected as malformed.",
	})
	AttrReads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attribute_reads_total",
		Help: "Total successful attribute reads by attribute.",
	}, []string{"attr"})
	AttrWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attribute_writes_total",
		Help: "Total acknowledged attribute writes by attribute.",
	}, []string{"attr"})
	PollCycles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "poll_cycles_total",
		Help: "Total completed background poll cycles.",
	})
	PollErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "poll_errors_total",
		Help: "Total attribute read failures during background polling.",
	})
	TCPCommands = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tcp_commands_total",
		Help: "Total commands received from TCP clients.",
	})
	UpdatesPushed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tcp_updates_pushed_total",
		Help: "Total attribute updates pushed to subscribed TCP clients.",
	})
	HubDroppedUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hub_dropped_updates_total",
		Help: "Total updates dropped by the hub due to slow subscribers.",
	})
	HubKickedClients = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hub_kicked_clients_total",
		Help: "Total subscribers disconnected by the backpressure kick policy.",
	})
	HubRejectedClients = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hub_rejected_clients_total",
		Help: "Total connection attempts rejected (e.g., max-clients).",
	})
	HubActiveClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hub_active_clients",
		Help: "Current number of subscribed clients.",
	})
	HubBroadcastFanout = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hub_broadcast_fanout",
		Help: "Number of subscribers targeted in the most recent broadcast.",
	})
	DeviceState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "device_state",
		Help: "Coarse device state (0=init, 1=on, 2=running, 3=fault).",
	})
	BathTemperature = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bath_temperature_celsius",
		Help: "Last bath temperature reading.",
	})
	SetpointGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "setpoint_celsius",
		Help: "Last temperature setpoint reading.",
	})
	PressureGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pressure_bar",
		Help: "Last pump pressure reading.",
	})
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "errors_total",
		Help: "Error counters by subsystem.",
	}, []string{"where"})
	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Error label constants (stable label values to bound cardinality)
const (
	ErrSerialWrite = "serial_write"
	ErrSerialRead  = "serial_read"
	ErrTCPRead     = "tcp_read"
	ErrTCPWrite    = "tcp_write"
	ErrHandshake   = "handshake"
)

// StartHTTP serves Prometheus metrics at /metrics plus a /ready probe.
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	})

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		logging.L().Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}

// Local mirrored counters for easy logging (avoid Prometheus scraping in-process)
var (
	localExchanges   uint64
	localTimeouts    uint64
	localProtoErrors uint64
	localAttrReads   uint64
	localAttrWrites  uint64
	localPollCycles  uint64
	localPollErrors  uint64
	localTCPCommands uint64
	localUpdates     uint64
	localHubDrop     uint64
	localHubKick     uint64
	localHubReject   uint64
	localErrors      uint64
	localHubClients  uint64
	localFanout      uint64
)

// Snapshot is a cheap copy of the local counters.
type Snapshot struct {
	SerialExchanges uint64
	SerialTimeouts  uint64
	ProtocolErrors  uint64
	AttrReads       uint64
	AttrWrites      uint64
	PollCycles      uint64
	PollErrors      uint64
	TCPCommands     uint64
	UpdatesPushed   uint64
	HubDrops        uint64
	HubKicks        uint64
	HubRejects      uint64
	Errors          uint64 // sum across error labels
	HubClients      uint64
	Fanout          uint64
}

func Snap() Snapshot {
	return Snapshot{
		SerialExchanges: atomic.LoadUint64(&localExchanges),
		SerialTimeouts:  atomic.LoadUint64(&localTimeouts),
		ProtocolErrors:  atomic.LoadUint64(&localProtoErrors),
		AttrReads:       atomic.LoadUint64(&localAttrReads),
		AttrWrites:      atomic.LoadUint64(&localAttrWrites),
		PollCycles:      atomic.LoadUint64(&localPollCycles),
		PollErrors:      atomic.LoadUint64(&localPollErrors),
		TCPCommands:     atomic.LoadUint64(&localTCPCommands),
		UpdatesPushed:   atomic.LoadUint64(&localUpdates),
		HubDrops:        atomic.LoadUint64(&localHubDrop),
		HubKicks:        atomic.LoadUint64(&localHubKick),
		HubRejects:      atomic.LoadUint64(&localHubReject),
		Errors:          atomic.LoadUint64(&localErrors),
		HubClients:      atomic.LoadUint64(&localHubClients),
		Fanout:          atomic.LoadUint64(&localFanout),
	}
}

// Wrapper helpers to keep call sites simple.
func IncSerialExchange() {
	SerialExchanges.Inc()
	atomic.AddUint64(&localExchanges, 1)
}

func IncSerialTimeout() {
	SerialTimeouts.Inc()
	atomic.AddUint64(&localTimeouts, 1)
}

func IncProtocolError() {
	ProtocolErrors.Inc()
	atomic.AddUint64(&localProtoErrors, 1)
}

func IncAttrRead(name string) {
	AttrReads.WithLabelValues(name).Inc()
	atomic.AddUint64(&localAttrReads, 1)
}

func IncAttrWrite(name string) {
	AttrWrites.WithLabelValues(name).Inc()
	atomic.AddUint64(&localAttrWrites, 1)
}

func IncPollCycle() {
	PollCycles.Inc()
	atomic.AddUint64(&localPollCycles, 1)
}

func IncPollError() {
	PollErrors.Inc()
	atomic.AddUint64(&localPollErrors, 1)
}

func IncTCPCommand() {
	TCPCommands.Inc()
	atomic.AddUint64(&localTCPCommands, 1)
}

func IncUpdatePushed() {
	UpdatesPushed.Inc()
	atomic.AddUint64(&localUpdates, 1)
}

func IncHubDrop() {
	HubDroppedUpdates.Inc()
	atomic.AddUint64(&localHubDrop, 1)
}

func IncHubKick() {
	HubKickedClients.Inc()
	atomic.AddUint64(&localHubKick, 1)
}

func IncHubReject() {
	HubRejectedClients.Inc()
	atomic.AddUint64(&localHubReject, 1)
}

func SetHubClients(n int) {
	HubActiveClients.Set(float64(n))
	atomic.StoreUint64(&localHubClients, uint64(n))
}

func SetBroadcastFanout(n int) {
	HubBroadcastFanout.Set(float64(n))
	atomic.StoreUint64(&localFanout, uint64(n))
}

func IncError(label string) {
	Errors.WithLabelValues(label).Inc()
	atomic.AddUint64(&localErrors, 1)
}

// Reading gauges mirrored from successful attribute reads.
func SetBathTemp(v float64) { BathTemperature.Set(v) }
func SetSetpoint(v float64) { SetpointGauge.Set(v) }
func SetPressure(v float64) { PressureGauge.Set(v) }

// SetDeviceState records the coarse device state ordinal.
func SetDeviceState(s int) { DeviceState.Set(float64(s)) }

// InitBuildInfo sets the build info gauge (call once at startup).
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
	// Pre-register error label series so the first error does not pay the
	// registration latency.
	for _, lbl := range []string{
		ErrSerialWrite, ErrSerialRead,
		ErrTCPRead, ErrTCPWrite, ErrHandshake,
	} {
		Errors.WithLabelValues(lbl).Add(0)
	}
}

// SetReadinessFunc registers the function used by /ready and IsReady.
func SetReadinessFunc(fn func() bool) { readinessMu.Lock(); readinessFn = fn; readinessMu.Unlock() }

// IsReady invokes the registered readiness function if present.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil { // if not set yet, treat as ready so the endpoint doesn't flap
		return true
	}
	return fn()
}
