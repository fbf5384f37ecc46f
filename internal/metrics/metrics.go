package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine's collectors on a private registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	snapshots        *prometheus.CounterVec
	subscriptionErrs *prometheus.CounterVec
	commands         *prometheus.CounterVec
	commandErrs      *prometheus.CounterVec
	liveEvents       *prometheus.CounterVec
	bridgeOnline     prometheus.Gauge
	timerRunning     prometheus.Gauge
	relayMessages    *prometheus.CounterVec
	homeStreams      prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rehab_snapshots_received_total",
			Help: "Store snapshots received, by subscription.",
		}, []string{"source"}),
		subscriptionErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rehab_subscription_errors_total",
			Help: "Transport errors reported by store subscriptions.",
		}, []string{"source"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rehab_commands_issued_total",
			Help: "Fire-and-forget writes issued to the store.",
		}, []string{"command"}),
		commandErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rehab_command_errors_total",
			Help: "Writes the store rejected.",
		}, []string{"command"}),
		liveEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rehab_live_events_total",
			Help: "Discrete events appended to the live window, by severity.",
		}, []string{"severity"}),
		bridgeOnline: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rehab_bridge_online",
			Help: "1 while the bridge heartbeat is fresh.",
		}),
		timerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rehab_session_timer_running",
			Help: "1 while the session timer is ticking.",
		}),
		relayMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rehab_relay_messages_total",
			Help: "MQTT messages relayed, by topic and direction.",
		}, []string{"topic", "direction"}),
		homeStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rehab_home_streams",
			Help: "Open /ws home streams.",
		}),
	}

	m.registry.MustRegister(
		m.snapshots, m.subscriptionErrs, m.commands, m.commandErrs,
		m.liveEvents, m.bridgeOnline, m.timerRunning, m.relayMessages, m.homeStreams,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) SnapshotReceived(source string) {
	if m == nil {
		return
	}
	m.snapshots.WithLabelValues(source).Inc()
}

func (m *Metrics) SubscriptionError(source string) {
	if m == nil {
		return
	}
	m.subscriptionErrs.WithLabelValues(source).Inc()
}

func (m *Metrics) CommandIssued(command string, err error) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(command).Inc()
	if err != nil {
		m.commandErrs.WithLabelValues(command).Inc()
	}
}

func (m *Metrics) LiveEventAppended(severity string) {
	if m == nil {
		return
	}
	m.liveEvents.WithLabelValues(severity).Inc()
}

func (m *Metrics) SetBridgeOnline(online bool) {
	if m == nil {
		return
	}
	m.bridgeOnline.Set(boolToFloat(online))
}

func (m *Metrics) SetTimerRunning(running bool) {
	if m == nil {
		return
	}
	m.timerRunning.Set(boolToFloat(running))
}

func (m *Metrics) RelayMessage(topic, direction string) {
	if m == nil {
		return
	}
	m.relayMessages.WithLabelValues(topic, direction).Inc()
}

// HomeStreamOpened counts a /ws client; the returned func undoes it.
func (m *Metrics) HomeStreamOpened() func() {
	if m == nil {
		return func() {}
	}
	m.homeStreams.Inc()
	return m.homeStreams.Dec
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
