// Package metrics declares the service's Prometheus counters.  HTTP metrics
// come from echoprometheus; these cover token lifecycle events.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "maintenance_auth"

var (
	TokensIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tokens_issued_total",
		Help:      "Tokens recorded in the ledger, by type.",
	}, []string{"type"})

	TokensRevoked = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tokens_revoked_total",
		Help:      "Tokens revoked, by scope (single or identity).",
	}, []string{"scope"})

	ValidityChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_validity_checks_total",
		Help:      "Ledger validity checks, by outcome.",
	}, []string{"outcome"})

	TokensPruned = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tokens_pruned_total",
		Help:      "Expired ledger rows deleted.",
	})

	MailSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mail_sent_total",
		Help:      "Outbound mail attempts, by transport and result.",
	}, []string{"transport", "result"})
)
