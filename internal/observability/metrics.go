package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "zemljevid",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	PolicyDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zemljevid",
		Name:      "policy_decisions_total",
		Help:      "Mutation authorization decisions by path and outcome",
	}, []string{"path", "outcome"})

	ItemMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zemljevid",
		Name:      "item_mutations_total",
		Help:      "Successful item mutations",
	}, []string{"op"})

	GraphQLErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zemljevid",
		Name:      "graphql_errors_total",
		Help:      "GraphQL resolver errors by extension code",
	}, []string{"code"})

	IdentityUpstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "zemljevid",
		Name:      "identity_upstream_duration_seconds",
		Help:      "Remote identity service request duration",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"op", "status"})
)
