package metrics

import (
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus counters
var (
	FramesDecoded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "avl_frames_decoded_total",
		Help: "Total Codec 8E frames decoded without error.",
	})
	RecordsDecoded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "avl_records_total",
		Help: "Total AVL records extracted from decoded frames.",
	})
	EventsDecoded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "avl_events_total",
		Help: "Total IO events emitted after dictionary and interest filtering.",
	})
	CrcFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crc_failures_total",
		Help: "Total frames rejected by the CRC-16 check.",
	})
	CodecMismatch = promauto.NewCounter(prometheus.CounterOpts{
		Name: "codec_mismatch_total",
		Help: "Total frames carrying a codec tag other than 0x8E.",
	})
	MalformedFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "malformed_frames_total",
		Help: "Total rejected malformed frames (protocol violations, invalid length, truncated).",
	})
	TCPRxFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tcp_rx_frames_total",
		Help: "Total raw frames received from connected devices.",
	})
	SerialRxFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "serial_rx_frames_total",
		Help: "Total frames recovered from the serial capture feed.",
	})
	AcksSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "acks_sent_total",
		Help: "Total record-count acknowledgements written to devices.",
	})
	CommandsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "commands_sent_total",
		Help: "Total Codec 12 commands written to devices.",
	})
	CommandResponses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "command_responses_total",
		Help: "Total Codec 12 responses decoded from devices.",
	})
	HubDroppedUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hub_dropped_updates_total",
		Help: "Total updates dropped by hub due to slow clients.",
	})
	HubKickedClients = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hub_kicked_clients_total",
		Help: "Total clients disconnected due to backpressure kick policy.",
	})
	HubRejectedClients = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hub_rejected_clients_total",
		Help: "Total client connection attempts rejected (e.g., max-clients).",
	})
	HubActiveClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hub_active_clients",
		Help: "Current number of active connected clients.",
	})
	HubBroadcastFanout = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hub_broadcast_fanout",
		Help: "Number of clients targeted in the most recent broadcast.",
	})
	HubQueueDepthMax = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hub_queue_depth_max",
		Help: "Observed max queued updates among clients since last sample window.",
	})
	HubQueueDepthAvg = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hub_queue_depth_avg",
		Help: "Approximate average queued updates per client in last sample.",
	})
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sessions_active",
		Help: "Current number of device sessions past the IMEI handshake.",
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
	ErrTCPRead    = "tcp_read"
	ErrTCPWrite   = "tcp_write"
	ErrHandshake  = "handshake"
	ErrDecode     = "decode"
	ErrTxOverflow = "tx_overflow"
	ErrSerialRead = "serial_read"
	ErrCommand    = "command"
)

// Local mirrored counters for easy logging (avoid Prometheus scraping in-process)
var (
	localFrames       uint64
	localRecords      uint64
	localEvents       uint64
	localCrcFail      uint64
	localCodecMism    uint64
	localMalformed    uint64
	localTCPRx        uint64
	localSerialRx     uint64
	localAcks         uint64
	localCmdSent      uint64
	localCmdResp      uint64
	localHubDrop      uint64
	localHubKick      uint64
	localHubReject    uint64
	localErrors       uint64
	localHubClients   uint64
	localFanout       uint64
	localQDMax        uint64
	localQDAvg        uint64
	localSessions     uint64
)

// Snapshot is a cheap copy of local counters.
type Snapshot struct {
	Frames        uint64
	Records       uint64
	Events        uint64
	CrcFailures   uint64
	CodecMismatch uint64
	Malformed     uint64
	TCPRx         uint64
	SerialRx      uint64
	Acks          uint64
	CmdSent       uint64
	CmdResp       uint64
	HubDrops      uint64
	HubKicks      uint64
	HubRejects    uint64
	Errors        uint64 // sum across error labels
	HubClients    uint64
	Fanout        uint64
	QueueDepthMax uint64
	QueueDepthAvg uint64
	Sessions      uint64
}

func Snap() Snapshot {
	return Snapshot{
		Frames:        atomic.LoadUint64(&localFrames),
		Records:       atomic.LoadUint64(&localRecords),
		Events:        atomic.LoadUint64(&localEvents),
		CrcFailures:   atomic.LoadUint64(&localCrcFail),
		CodecMismatch: atomic.LoadUint64(&localCodecMism),
		Malformed:     atomic.LoadUint64(&localMalformed),
		TCPRx:         atomic.LoadUint64(&localTCPRx),
		SerialRx:      atomic.LoadUint64(&localSerialRx),
		Acks:          atomic.LoadUint64(&localAcks),
		CmdSent:       atomic.LoadUint64(&localCmdSent),
		CmdResp:       atomic.LoadUint64(&localCmdResp),
		HubDrops:      atomic.LoadUint64(&localHubDrop),
		HubKicks:      atomic.LoadUint64(&localHubKick),
		HubRejects:    atomic.LoadUint64(&localHubReject),
		Errors:        atomic.LoadUint64(&localErrors),
		HubClients:    atomic.LoadUint64(&localHubClients),
		Fanout:        atomic.LoadUint64(&localFanout),
		QueueDepthMax: atomic.LoadUint64(&localQDMax),
		QueueDepthAvg: atomic.LoadUint64(&localQDAvg),
		Sessions:      atomic.LoadUint64(&localSessions),
	}
}

// Wrapper helpers to keep call sites simple.
func IncFrameDecoded() {
	FramesDecoded.Inc()
	atomic.AddUint64(&localFrames, 1)
}

func AddRecords(n int) {
	RecordsDecoded.Add(float64(n))
	atomic.AddUint64(&localRecords, uint64(n))
}

func AddEvents(n int) {
	EventsDecoded.Add(float64(n))
	atomic.AddUint64(&localEvents, uint64(n))
}

func IncCrcFailure() {
	CrcFailures.Inc()
	atomic.AddUint64(&localCrcFail, 1)
}

func IncCodecMismatch() {
	CodecMismatch.Inc()
	atomic.AddUint64(&localCodecMism, 1)
}

func IncMalformed() {
	MalformedFrames.Inc()
	atomic.AddUint64(&localMalformed, 1)
}

func IncTCPRx() {
	TCPRxFrames.Inc()
	atomic.AddUint64(&localTCPRx, 1)
}

func IncSerialRx() {
	SerialRxFrames.Inc()
	atomic.AddUint64(&localSerialRx, 1)
}

func IncAckSent() {
	AcksSent.Inc()
	atomic.AddUint64(&localAcks, 1)
}

func IncCommandSent() {
	CommandsSent.Inc()
	atomic.AddUint64(&localCmdSent, 1)
}

func IncCommandResponse() {
	CommandResponses.Inc()
	atomic.AddUint64(&localCmdResp, 1)
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

func SetSessions(n int) {
	SessionsActive.Set(float64(n))
	atomic.StoreUint64(&localSessions, uint64(n))
}

func IncError(label string) {
	Errors.WithLabelValues(label).Inc()
	atomic.AddUint64(&localErrors, 1)
}

// SetQueueDepth records a snapshot of max and avg queue depth.
func SetQueueDepth(max, avg int) {
	HubQueueDepthMax.Set(float64(max))
	HubQueueDepthAvg.Set(float64(avg))
	atomic.StoreUint64(&localQDMax, uint64(max))
	atomic.StoreUint64(&localQDAvg, uint64(avg))
}

// InitBuildInfo sets the build info gauge (should be called once at startup).
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
	// Pre-register common error label series so first error does not log a registration latency.
	for _, lbl := range []string{
		ErrTCPRead, ErrTCPWrite, ErrHandshake,
		ErrDecode, ErrTxOverflow, ErrSerialRead, ErrCommand,
	} {
		Errors.WithLabelValues(lbl).Add(0)
	}
}

// SetReadinessFunc registers a function used by /ready and IsReady.
func SetReadinessFunc(fn func() bool) { readinessMu.Lock(); readinessFn = fn; readinessMu.Unlock() }

// IsReady invokes the registered readiness function if present.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil { // if not set yet, treat as ready so metrics endpoint doesn't flap
		return true
	}
	return fn()
}

// Ready is a concise alias used at call sites.
func Ready() bool { return IsReady() }
