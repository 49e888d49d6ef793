package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	defaultNamespace = "tftp"
	subsystemClient  = "client"
)

// Collector counts client side TFTP traffic. Each collector owns its
// registry so several sessions in one process do not collide.
type Collector struct {
	registry *prometheus.Registry

	packetsSent      *prometheus.CounterVec
	packetsReceived  *prometheus.CounterVec
	retransmissions  prometheus.Counter
	ignoredDatagrams prometheus.Counter
	bytesSent        prometheus.Counter
	transfers        *prometheus.CounterVec
	transferDuration prometheus.Histogram
}

func NewCollector(namespace string) *Collector {
	if strings.TrimSpace(namespace) == "" {
		namespace = defaultNamespace
	}

	c := &Collector{
		registry: prometheus.NewRegistry(),
		packetsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemClient,
			Name:      "packets_sent_total",
			Help:      "Packets sent, retransmissions included, by opcode.",
		}, []string{"opcode"}),
		packetsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemClient,
			Name:      "packets_received_total",
			Help:      "Accepted datagrams by opcode.",
		}, []string{"opcode"}),
		retransmissions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemClient,
			Name:      "retransmissions_total",
			Help:      "Packets resent after a receive timeout.",
		}),
		ignoredDatagrams: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemClient,
			Name:      "ignored_datagrams_total",
			Help:      "Datagrams dropped because they came from an unexpected source.",
		}),
		bytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemClient,
			Name:      "payload_bytes_sent_total",
			Help:      "Acknowledged DATA payload bytes.",
		}),
		transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemClient,
			Name:      "transfers_total",
			Help:      "Finished uploads by result.",
		}, []string{"result"}),
		transferDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemClient,
			Name:      "transfer_duration_seconds",
			Help:      "Wall time of finished uploads.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
	}

	c.registry.MustRegister(
		c.packetsSent,
		c.packetsReceived,
		c.retransmissions,
		c.ignoredDatagrams,
		c.bytesSent,
		c.transfers,
		c.transferDuration,
	)

	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) PacketSent(opcode string) {
	c.packetsSent.WithLabelValues(opcode).Inc()
}

func (c *Collector) PacketReceived(opcode string) {
	c.packetsReceived.WithLabelValues(opcode).Inc()
}

func (c *Collector) Retransmitted() {
	c.retransmissions.Inc()
}

func (c *Collector) Ignored() {
	c.ignoredDatagrams.Inc()
}

func (c *Collector) BytesSent(n int) {
	c.bytesSent.Add(float64(n))
}

// TransferFinished records the result ("ok" or "failed") and duration of one upload.
func (c *Collector) TransferFinished(result string, elapsed time.Duration) {
	c.transfers.WithLabelValues(result).Inc()
	c.transferDuration.Observe(elapsed.Seconds())
}

// Snapshot is a point-in-time copy of the counters, for CLI summaries.
type Snapshot struct {
	PacketsSent     float64
	Retransmissions float64
	Ignored         float64
	BytesSent       float64
}

func (c *Collector) Snapshot() Snapshot {
	var s Snapshot

	families, err := c.registry.Gather()
	if err != nil {
		return s
	}

	for _, mf := range families {
		var total float64
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}

		switch {
		case strings.HasSuffix(mf.GetName(), "_packets_sent_total"):
			s.PacketsSent = total
		case strings.HasSuffix(mf.GetName(), "_retransmissions_total"):
			s.Retransmissions = total
		case strings.HasSuffix(mf.GetName(), "_ignored_datagrams_total"):
			s.Ignored = total
		case strings.HasSuffix(mf.GetName(), "_payload_bytes_sent_total"):
			s.BytesSent = total
		}
	}

	return s
}
