package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const Namespace = "spiralbot"

var (
	Commands = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "commands_total",
		Help:      "Total number of dispatched commands",
	}, []string{"command"})

	Denials = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "denials_total",
		Help:      "Total number of updates dropped before the handler ran",
	}, []string{"middleware"})

	FloodActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "flood_actions_total",
		Help:      "Total number of antiflood punitive actions",
	}, []string{"mode"})

	Verifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "join_verifications_total",
		Help:      "Total number of join verification outcomes",
	}, []string{"outcome"})

	DeletedMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "deleted_messages_total",
		Help:      "Total number of deleted messages",
	}, []string{"reason"})

	UpdateProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "update_processing_duration_seconds",
		Help:      "Duration of update processing",
		Buckets:   prometheus.DefBuckets,
	}, []string{"type", "status"})

	ActiveRaids = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "active_raid_modes",
		Help:      "Number of chats with raid mode currently enabled",
	})

	PendingVerifications = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "pending_verifications",
		Help:      "Number of users currently awaiting join verification",
	})
)

func IncCommand(command string) {
	Commands.WithLabelValues(command).Inc()
}

func IncDenial(middleware string) {
	Denials.WithLabelValues(middleware).Inc()
}

func IncFloodAction(mode string) {
	FloodActions.WithLabelValues(mode).Inc()
}

func IncVerification(outcome string) {
	Verifications.WithLabelValues(outcome).Inc()
}

func IncDeletedMessages(reason string) {
	DeletedMessages.WithLabelValues(reason).Inc()
}

func SetActiveRaids(n float64) {
	ActiveRaids.Set(n)
}

func SetPendingVerifications(n float64) {
	PendingVerifications.Set(n)
}

func ObserveUpdateProcessing(updateType string, duration float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	UpdateProcessingDuration.WithLabelValues(updateType, status).Observe(duration)
}
