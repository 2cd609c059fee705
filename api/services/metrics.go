package services

import "github.com/prometheus/client_golang/prometheus"

const (
	opCreateToken = "create_token"
	opRevokeToken = "revoke_token"
	opCreateKey   = "create_key"
	opRevokeKey   = "revoke_key"

	outcomeSuccess = "success"
	outcomeInvalid = "invalid"
	outcomeFailure = "failure"
)

var (
	credentialOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dpc_portal",
		Name:      "credential_operations_total",
		Help:      "Credential lifecycle operations by outcome.",
	}, []string{"operation", "outcome"})

	directoryRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "dpc_portal",
		Name:      "directory_request_duration_seconds",
		Help:      "A histogram of the duration, in seconds, of organization directory requests.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
	}, []string{"method", "status"})
)

// RegisterMetrics adds the service collectors to reg.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(credentialOperations, directoryRequestDuration)
}

func recordOutcome(operation, outcome string) {
	credentialOperations.WithLabelValues(operation, outcome).Inc()
}
