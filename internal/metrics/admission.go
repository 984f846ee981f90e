// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

var (
	// AdmissionAdmitTotal counts admitted stream clients.
	AdmissionAdmitTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fbmirror_admission_admit_total",
		Help: "Total number of admitted stream client connections.",
	})

	// AdmissionRejectTotal counts rejected stream clients by reason.
	AdmissionRejectTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fbmirror_admission_reject_total",
		Help: "Total number of rejected stream client connections, by reason.",
	}, []string{"reason"})

	// ActiveClients tracks currently streaming clients.
	ActiveClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fbmirror_active_clients",
		Help: "Current number of connected stream clients.",
	})
)

// RecordAdmit increments the admission counter.
func RecordAdmit() {
	AdmissionAdmitTotal.Inc()
}

// RecordReject increments the rejection counter.
func RecordReject(reason string) {
	AdmissionRejectTotal.WithLabelValues(reason).Inc()
}

// SetActiveClients sets the active client gauge.
func SetActiveClients(count float64) {
	ActiveClients.Set(count)
}

// GetActiveClients returns the current gauge value (for testing).
func GetActiveClients() float64 {
	var m dto.Metric
	if err := ActiveClients.Write(&m); err != nil {
		return 0
	}
	return m.GetGauge().GetValue()
}
