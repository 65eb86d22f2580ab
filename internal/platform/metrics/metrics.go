package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the authentication core.
type Metrics struct {
	LoginAttempts  *prometheus.CounterVec
	AccountsLocked prometheus.Counter
	TokensIssued   *prometheus.CounterVec
	TokensConsumed *prometheus.CounterVec
	MfaCodesSent   *prometheus.CounterVec
	MfaValidations *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		LoginAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "signon_login_attempts_total",
			Help: "Login attempts by outcome (success, invalid, locked, unavailable)",
		}, []string{"outcome"}),
		AccountsLocked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "signon_accounts_locked_total",
			Help: "Accounts locked after reaching the retry threshold",
		}),
		TokensIssued: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "signon_tokens_issued_total",
			Help: "Security tokens issued by type",
		}, []string{"type"}),
		TokensConsumed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "signon_tokens_consumed_total",
			Help: "Security tokens consumed by type",
		}, []string{"type"}),
		MfaCodesSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "signon_mfa_codes_sent_total",
			Help: "MFA codes sent by channel",
		}, []string{"channel"}),
		MfaValidations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "signon_mfa_validations_total",
			Help: "MFA code validations by outcome (success, incorrect, expired, locked)",
		}, []string{"outcome"}),
	}
}
