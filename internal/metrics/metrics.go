// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DatagramsTotal counts TZSP datagrams read from a listener socket.
	DatagramsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tzspd_datagrams_total",
			Help: "Total number of TZSP datagrams received",
		},
		[]string{"profile"},
	)

	// ReceivedTotal counts dissected messages by transport protocol
	// (tcp, udp, sctp, other).
	ReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tzspd_received_total",
			Help: "Total number of encapsulated frames dissected",
		},
		[]string{"profile", "proto"},
	)

	// VerdictsTotal counts dissection outcomes (malformed, unparsed, parsed).
	VerdictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tzspd_verdicts_total",
			Help: "Total number of datagrams by dissection outcome",
		},
		[]string{"profile", "verdict"},
	)

	// DropsTotal counts datagrams dropped before reaching a capture plan.
	DropsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tzspd_drops_total",
			Help: "Total number of datagrams dropped",
		},
		[]string{"profile", "reason"},
	)

	// SentTotal counts messages delivered by a reporter action.
	SentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tzspd_sent_total",
			Help: "Total number of messages delivered by reporters",
		},
		[]string{"profile", "reporter"},
	)

	// ActionErrorsTotal counts capture plan action failures.
	ActionErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tzspd_action_errors_total",
			Help: "Total number of capture plan action errors",
		},
		[]string{"profile", "action"},
	)

	// PipelineLatencySeconds measures datagram handling time from receive to
	// the end of the capture plan.
	PipelineLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tzspd_pipeline_latency_seconds",
			Help:    "Latency of datagram handling in seconds",
			Buckets: prometheus.ExponentialBuckets(0.000001, 2, 20), // 1µs to ~1s
		},
		[]string{"profile"},
	)

	// SIPSessionsActive tracks SIP calls with a pending or answered SDP offer.
	SIPSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tzspd_sip_sessions_active",
			Help: "Number of SIP sessions tracked for SDP correlation",
		},
	)
)
