package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	persistedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "msgvault_records_persisted_total",
		Help: "Retained message records written to the store, by status.",
	}, []string{"status"})

	ignoredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "msgvault_events_ignored_total",
		Help: "Message events dropped by the retention policy.",
	})

	evictedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "msgvault_records_evicted_total",
		Help: "Records deleted to enforce the configured message limit.",
	})

	reconciledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "msgvault_messages_reconciled_total",
		Help: "Retained messages spliced back into loaded pages.",
	})

	handlerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "msgvault_handler_errors_total",
		Help: "Errors caught at the event-handler boundary.",
	}, []string{"handler"})
)
