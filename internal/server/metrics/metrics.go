// Package metrics defines the Prometheus collectors of the vault server.
// Collectors live on a Metrics value registered against a caller supplied
// registerer; nothing is registered globally.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Label values for ResetTokensRejected.
const (
	ReasonNotFound    = "not_found"
	ReasonExpired     = "expired"
	ReasonAlreadyUsed = "already_used"
)

type Metrics struct {
	ResetTokensIssued   prometheus.Counter
	ResetTokensConsumed prometheus.Counter
	ResetTokensRejected *prometheus.CounterVec
	TokensPruned        prometheus.Counter
	RecoveryKeysIssued  prometheus.Counter
	RecoveryKeyChecks   *prometheus.CounterVec
	DecryptFailures     prometheus.Counter
	KDFDuration         *prometheus.HistogramVec
}

// New builds the collectors and registers them with reg.
// It panics if any of them is already registered there.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ResetTokensIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vault_reset_tokens_issued_total",
			Help: "Total number of password reset tokens issued.",
		}),
		ResetTokensConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vault_reset_tokens_consumed_total",
			Help: "Total number of password reset tokens consumed.",
		}),
		ResetTokensRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_reset_tokens_rejected_total",
			Help: "Total number of reset token validations that failed.",
		}, []string{"reason"}),
		TokensPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vault_reset_tokens_pruned_total",
			Help: "Total number of expired reset tokens deleted.",
		}),
		RecoveryKeysIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vault_recovery_keys_issued_total",
			Help: "Total number of recovery keys issued.",
		}),
		RecoveryKeyChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_recovery_key_checks_total",
			Help: "Total number of recovery key verifications.",
		}, []string{"result"}),
		DecryptFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vault_credential_decrypt_failures_total",
			Help: "Total number of credential decryptions that failed.",
		}),
		KDFDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vault_kdf_duration_seconds",
			Help:    "Time spent in key derivation, including the wait for a worker.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"op"}),
	}

	reg.MustRegister(
		m.ResetTokensIssued,
		m.ResetTokensConsumed,
		m.ResetTokensRejected,
		m.TokensPruned,
		m.RecoveryKeysIssued,
		m.RecoveryKeyChecks,
		m.DecryptFailures,
		m.KDFDuration,
	)
	return m
}

// NewNop returns collectors attached to a throwaway registry.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

// ObserveKDF records the time since start under op.
func (m *Metrics) ObserveKDF(op string, start time.Time) {
	m.KDFDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// RecoveryCheck counts a recovery key verification outcome.
func (m *Metrics) RecoveryCheck(ok bool) {
	result := "mismatch"
	if ok {
		result = "match"
	}
	m.RecoveryKeyChecks.WithLabelValues(result).Inc()
}
