// Package metrics holds the Prometheus collectors of the host driver.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds every collector of this package. The CLI serves it with
// promhttp.
var Registry = prometheus.NewRegistry()

var (
	CimCyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cim_cycles_total",
			Help: "Number of compute cycles run, by result",
		},
		[]string{"result"},
	)

	CimTransactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cim_transactions_total",
			Help: "Number of indirect register transactions sent, by stage",
		},
		[]string{"stage"},
	)

	CimPollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cim_polls_total",
			Help: "Number of device polls, by stage",
		},
		[]string{"stage"},
	)

	CimTimeoutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cim_timeouts_total",
			Help: "Number of polls that exhausted their budget, by stage",
		},
		[]string{"stage"},
	)

	CimBytesSentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cim_bytes_sent_total",
			Help: "Number of bytes written into the outbound FIFO",
		},
	)

	CimBytesReceivedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cim_bytes_received_total",
			Help: "Number of bytes pulled from the return FIFO",
		},
	)

	CimCompareMaxDiff = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cim_compare_max_diff",
			Help: "Largest lane difference between device and reference in the last comparison",
		},
	)

	CimCompareFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cim_compare_failures_total",
			Help: "Number of cycles whose output fell outside the tolerance",
		},
	)
)

func init() {
	Registry.MustRegister(CimCyclesTotal)
	Registry.MustRegister(CimTransactionsTotal)
	Registry.MustRegister(CimPollsTotal)
	Registry.MustRegister(CimTimeoutsTotal)
	Registry.MustRegister(CimBytesSentTotal)
	Registry.MustRegister(CimBytesReceivedTotal)
	Registry.MustRegister(CimCompareMaxDiff)
	Registry.MustRegister(CimCompareFailuresTotal)
}
