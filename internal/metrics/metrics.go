// Package metrics registers the domain counters exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScansTotal counts processed scan payloads by outcome type and success.
	ScansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_scans_total",
		Help: "Scan payloads processed, by outcome type and success.",
	}, []string{"type", "success"})

	// SessionsStarted counts sessions opened by teachers.
	SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendance_sessions_started_total",
		Help: "Attendance sessions started.",
	})

	// SessionsStopped counts sessions finalized.
	SessionsStopped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendance_sessions_stopped_total",
		Help: "Attendance sessions stopped and finalized.",
	})

	// CodesRedeemed counts manual code redemptions by result.
	CodesRedeemed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_manual_codes_redeemed_total",
		Help: "Manual code redemptions, by result.",
	}, []string{"result"})
)
