package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	vaultOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vault_operations_total",
			Help: "Vault operations by operation name and outcome status.",
		},
		[]string{"operation", "status"},
	)

	auditWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vault_audit_write_failures_total",
			Help: "Audit log appends that failed; the primary operation is unaffected.",
		},
	)
)

// RecordOperation counts one vault operation outcome.
func RecordOperation(operation, status string) {
	vaultOperations.WithLabelValues(operation, status).Inc()
}

// RecordAuditWriteFailure counts one failed audit append.
func RecordAuditWriteFailure() {
	auditWriteFailures.Inc()
}
