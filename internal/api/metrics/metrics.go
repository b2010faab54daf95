// Package metrics defines all custom Prometheus metrics for the anonymous
// feedback API. It is the single source of truth for metric names, labels,
// and help strings.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "feedback"

// ── Registrar metrics ─────────────────────────────────────────────────────────

// RegistrationsTotal counts registration attempts.
// Label:
//   - result: "created", "refreshed", "username_taken", "email_taken",
//     "delivery_failed", "error"
var RegistrationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "registrations_total",
		Help:      "Total number of registration attempts, by result.",
	},
	[]string{"result"},
)

// VerificationsTotal counts verification-code submissions.
// Label:
//   - result: "verified", "already_verified", "invalid_code", "expired",
//     "not_found", "error"
var VerificationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "verifications_total",
		Help:      "Total number of account verification attempts, by result.",
	},
	[]string{"result"},
)

// ── Intake metrics ────────────────────────────────────────────────────────────

// MessagesReceivedTotal counts anonymous message submissions.
// Label:
//   - result: "accepted", "disabled", "not_found", "invalid", "error"
var MessagesReceivedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_received_total",
		Help:      "Total number of anonymous message submissions, by result.",
	},
	[]string{"result"},
)

// ── Delivery metrics ──────────────────────────────────────────────────────────

// EmailDeliveriesTotal counts verification-email dispatch outcomes.
// Labels:
//   - result: "sent" or "failed"
//   - attempt: "first" for the synchronous dispatch, "retry" for the
//     background resend worker
var EmailDeliveriesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "email_deliveries_total",
		Help:      "Total number of verification email dispatches, by result and attempt kind.",
	},
	[]string{"result", "attempt"},
)

// ResendQueueDepth tracks the number of delivery jobs waiting in each resend
// worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var ResendQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "resend_queue_depth",
		Help:      "Current number of delivery jobs pending in each resend worker channel.",
	},
	[]string{"worker_id"},
)
