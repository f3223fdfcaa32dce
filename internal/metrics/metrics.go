package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики процесса; экспортируются через /metrics.
var (
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "council_active_sessions",
		Help: "Number of live game sessions in the registry",
	})

	ConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "council_ws_connected_clients",
		Help: "Number of open websocket connections",
	})

	VotesRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "council_votes_recorded_total",
		Help: "Total number of votes accepted",
	})

	GeneratorCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "council_generator_calls_total",
		Help: "Calls to the text generator by kind",
	}, []string{"kind"})

	GeneratorFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "council_generator_failures_total",
		Help: "Generator calls that fell back to the deterministic response",
	}, []string{"kind"})

	TimerExpirations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "council_timer_expirations_total",
		Help: "Voting timers that force-advanced the phase",
	})
)
