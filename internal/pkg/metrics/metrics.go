package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds every relay metric and is served on /metrics.
var Registry = prometheus.NewRegistry()

var (
	// CommandsTotal counts write attempts.
	// result: accepted, duplicate, invalid, conflict, unauthorized, error
	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dockrelay_commands_total",
			Help: "Command writes received by the relay.",
		},
		[]string{"state", "result"},
	)

	// ReadsTotal counts command reads. client: controller (bare token) or json.
	ReadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dockrelay_reads_total",
			Help: "Command reads served by the relay.",
		},
		[]string{"client"},
	)

	AcksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dockrelay_acks_total",
			Help: "Controller acknowledgements received.",
		},
		[]string{"result"},
	)

	// StaleCommands is refreshed on every list.
	StaleCommands = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dockrelay_stale_commands",
			Help: "Docks whose command is older than the staleness window.",
		},
	)

	WebsocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dockrelay_websocket_clients",
			Help: "Connected websocket clients.",
		},
	)

	MQTTPublishTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dockrelay_mqtt_publish_total",
			Help: "Command publications to the MQTT broker.",
		},
		[]string{"result"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dockrelay_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		CommandsTotal,
		ReadsTotal,
		AcksTotal,
		StaleCommands,
		WebsocketClients,
		MQTTPublishTotal,
		RequestDuration,
	)
}
