// Package metrics holds the client's Prometheus counters. Labels stay
// low-cardinality: no session or user identifiers.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SessionPollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "opennow",
		Name:      "session_polls_total",
		Help:      "Remote session polls, by result.",
	}, []string{"result"})

	SessionPhaseTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "opennow",
		Name:      "session_phase_transitions_total",
		Help:      "Observed session phase changes, by new phase.",
	}, []string{"phase"})

	ProbeResultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "opennow",
		Name:      "probe_results_total",
		Help:      "Server latency probes, by resulting status.",
	}, []string{"status"})

	ReconnectAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "opennow",
		Name:      "reconnect_attempts_total",
		Help:      "Automated re-attach attempts, by outcome.",
	}, []string{"outcome"})

	MailboxOverwritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "opennow",
		Name:      "mailbox_overwrites_total",
		Help:      "Mailbox writes that replaced an unread value, by slot.",
	}, []string{"slot"})

	TokenRefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "opennow",
		Name:      "token_refresh_total",
		Help:      "Credential refresh attempts, by result.",
	}, []string{"result"})

	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "opennow",
		Name:      "api_requests_total",
		Help:      "Remote API calls, by operation and result.",
	}, []string{"operation", "result"})
)

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

func Handler() http.Handler {
	return promhttp.Handler()
}
