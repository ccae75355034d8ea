package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Sink is a Prometheus-backed implementation of texecom.MetricsSink. It is
// defined independently of the texecom package (rather than importing it)
// so that texecom has no Prometheus dependency of its own; Client only
// needs the small MetricsSink interface it already declares.
type Sink struct {
	commandsSent     prometheus.Counter
	commandRetries   prometheus.Counter
	commandTimeouts  prometheus.Counter
	reconnects       prometheus.Counter
	loginFailures    prometheus.Counter
	frameCRCErrors   prometheus.Counter
	heartbeats       prometheus.Counter
	zonesActive      prometheus.Gauge
	lastHeartbeatUnix prometheus.Gauge
}

// NewSink registers the texecom_* collectors against reg.
func NewSink(reg prometheus.Registerer) *Sink {
	factory := promauto.With(reg)
	return &Sink{
		commandsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "texecom_commands_sent_total",
			Help: "Total number of commands sent to the panel.",
		}),
		commandRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "texecom_command_retries_total",
			Help: "Total number of command retransmissions after a timeout.",
		}),
		commandTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "texecom_command_timeouts_total",
			Help: "Total number of commands that exhausted all retries.",
		}),
		reconnects: factory.NewCounter(prometheus.CounterOpts{
			Name: "texecom_reconnects_total",
			Help: "Total number of successful (re)connections to the panel.",
		}),
		loginFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "texecom_login_failures_total",
			Help: "Total number of rejected UDL password logins.",
		}),
		frameCRCErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "texecom_frame_crc_errors_total",
			Help: "Total number of frames discarded for a CRC mismatch.",
		}),
		heartbeats: factory.NewCounter(prometheus.CounterOpts{
			Name: "texecom_heartbeats_total",
			Help: "Total number of alive heartbeats fired.",
		}),
		zonesActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "texecom_zones_active",
			Help: "Number of zones currently reporting an active state.",
		}),
		lastHeartbeatUnix: factory.NewGauge(prometheus.GaugeOpts{
			Name: "texecom_last_heartbeat_unix",
			Help: "Unix timestamp of the last alive heartbeat.",
		}),
	}
}

func (s *Sink) CommandSent()     { s.commandsSent.Inc() }
func (s *Sink) CommandRetried()  { s.commandRetries.Inc() }
func (s *Sink) CommandTimedOut() { s.commandTimeouts.Inc() }
func (s *Sink) Reconnected()     { s.reconnects.Inc() }
func (s *Sink) LoginFailed()     { s.loginFailures.Inc() }
func (s *Sink) FrameCRCError()   { s.frameCRCErrors.Inc() }
func (s *Sink) ZonesActive(n int) { s.zonesActive.Set(float64(n)) }

func (s *Sink) Heartbeat() {
	s.heartbeats.Inc()
	s.lastHeartbeatUnix.SetToCurrentTime()
}

// Serve starts a blocking HTTP server exposing /metrics on addr, the
// optional metricsaddr configuration setting (TEXECOM_METRICSADDR).
func Serve(addr string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return http.ListenAndServe(addr, mux)
}
