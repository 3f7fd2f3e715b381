package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Namespace = "edr"

	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "monitor",
		Name:      "runs_total",
		Help:      "Counter of monitoring pipeline runs by result (completed, halted, failed)",
	}, []string{"result"})

	// StageSuccess is 1 when the last execution of a stage succeeded and 0 when it failed.
	StageSuccess = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: "monitor",
		Name:      "stage_success",
		Help:      "Whether the last execution of a pipeline stage succeeded",
	}, []string{"stage"})

	AlertsFetched = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "monitor",
		Name:      "alerts_fetched_total",
		Help:      "Counter of alert rows returned by the warehouse",
	})

	AlertsSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "monitor",
		Name:      "alerts_sent_total",
		Help:      "Counter of alerts delivered to the notification channel",
	})

	AlertDeliveryFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "monitor",
		Name:      "alert_delivery_failures_total",
		Help:      "Counter of alerts the notification channel rejected",
	})

	MarkSentChunks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "monitor",
		Name:      "mark_sent_chunks_total",
		Help:      "Counter of sent-state update chunks submitted to the warehouse by result",
	}, []string{"result"})

	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "monitor",
		Name:      "errors_total",
		Help:      "Counter of errors by kind",
	}, []string{"kind"})

	LastRunTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: "monitor",
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time the last pipeline run finished",
	})
)
