package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics holds Prometheus metrics for business-level observability.
// All metrics include landlord_id label for per-landlord dashboard segmentation
// where the value is known at record time.
type BusinessMetrics struct {
	// Invoice generation
	InvoicesGenerated *prometheus.CounterVec
	TenanciesSkipped  *prometheus.CounterVec
	ScheduleConflicts *prometheus.CounterVec

	// Overdue sweep
	InvoicesMarkedOverdue prometheus.Counter

	// Reminders
	RemindersScheduled *prometheus.CounterVec
	RemindersSettled   prometheus.Counter

	// Checkout
	CheckoutSessions       *prometheus.CounterVec
	CheckoutSessionsFailed *prometheus.CounterVec

	// Webhooks
	WebhookReceived  *prometheus.CounterVec
	WebhookRejected  *prometheus.CounterVec
	WebhookProcessed *prometheus.CounterVec
	WebhookLatency   *prometheus.HistogramVec

	// Settlement
	SettlementsCompleted *prometheus.CounterVec
	SettlementsDuplicate *prometheus.CounterVec
	SettlementsFailed    *prometheus.CounterVec
	RevenueCollected     *prometheus.CounterVec

	// Tenancy lifecycle
	TenanciesClosed   prometheus.Counter
	InvoicesCancelled prometheus.Counter

	// Receipt enrichment
	ReceiptPDFRendered prometheus.Counter
	ReceiptPDFFailed   prometheus.Counter
	EmailSent          *prometheus.CounterVec
	EmailFailed        *prometheus.CounterVec

	// Background jobs
	JobRuns     *prometheus.CounterVec
	JobFailures *prometheus.CounterVec
	JobDuration *prometheus.HistogramVec
}

// NewBusinessMetrics creates and registers all business metrics
func NewBusinessMetrics(namespace string) *BusinessMetrics {
	if namespace == "" {
		namespace = "leasehold"
	}

	subsystem := "billing"

	m := &BusinessMetrics{
		InvoicesGenerated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "invoices_generated_total",
				Help:      "Total invoices created by the daily billing run",
			},
			[]string{"landlord_id", "billing_cycle"},
		),
		TenanciesSkipped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "tenancies_skipped_total",
				Help:      "Tenancies skipped by the billing run, by reason",
			},
			[]string{"reason"}, // reason: invalid, conflict, store_error
		),
		ScheduleConflicts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "schedule_conflicts_total",
				Help:      "Billing-run advances lost to a concurrent run",
			},
			[]string{"billing_cycle"},
		),
		InvoicesMarkedOverdue: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "invoices_marked_overdue_total",
				Help:      "Invoices transitioned to overdue by the sweep",
			},
		),
		RemindersScheduled: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "reminders_scheduled_total",
				Help:      "Rent reminders created, by lead time and recipient",
			},
			[]string{"days_before", "recipient_role"},
		),
		RemindersSettled: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "reminders_settled_total",
				Help:      "Reminders marked paid by the settlement pipeline",
			},
		),
		CheckoutSessions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "checkout_sessions_total",
				Help:      "Checkout sessions issued",
			},
			[]string{"gateway"},
		),
		CheckoutSessionsFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "checkout_sessions_failed_total",
				Help:      "Checkout session creation failures",
			},
			[]string{"gateway"},
		),
		WebhookReceived: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_received_total",
				Help:      "Webhook deliveries received",
			},
			[]string{"gateway"},
		),
		WebhookRejected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_rejected_total",
				Help:      "Webhook deliveries rejected before processing",
			},
			[]string{"gateway", "reason"}, // reason: bad_signature, bad_payload
		),
		WebhookProcessed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_processed_total",
				Help:      "Webhook deliveries fully processed",
			},
			[]string{"gateway", "event_type"},
		),
		WebhookLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_processing_seconds",
				Help:      "Webhook processing duration",
				Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"gateway"},
		),
		SettlementsCompleted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "settlements_completed_total",
				Help:      "Payment events settled end to end",
			},
			[]string{"gateway"},
		),
		SettlementsDuplicate: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "settlements_duplicate_total",
				Help:      "Payment events short-circuited as duplicate deliveries",
			},
			[]string{"gateway"},
		),
		SettlementsFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "settlements_failed_total",
				Help:      "Payment events that failed the durable payment write",
			},
			[]string{"gateway"},
		),
		RevenueCollected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "revenue_collected_total",
				Help:      "Rent collected in major currency units",
			},
			[]string{"landlord_id", "currency"},
		),
		TenanciesClosed: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "tenancies_closed_total",
				Help:      "Tenancies transitioned to closed",
			},
		),
		InvoicesCancelled: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "invoices_cancelled_total",
				Help:      "Invoices cancelled by tenancy close",
			},
		),
		ReceiptPDFRendered: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "receipt_pdf_rendered_total",
				Help:      "Receipt PDFs rendered and stored",
			},
		),
		ReceiptPDFFailed: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "receipt_pdf_failed_total",
				Help:      "Receipt PDF render or store failures (non-fatal)",
			},
		),
		EmailSent: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "emails_sent_total",
				Help:      "Total emails sent by type",
			},
			[]string{"email_type"}, // email_type: receipt
		),
		EmailFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "emails_failed_total",
				Help:      "Total email delivery failures",
			},
			[]string{"email_type"},
		),
		JobRuns: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "job_runs_total",
				Help:      "Scheduled job executions",
			},
			[]string{"job"},
		),
		JobFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "job_failures_total",
				Help:      "Scheduled job executions that returned an error",
			},
			[]string{"job"},
		),
		JobDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "job_duration_seconds",
				Help:      "Scheduled job execution duration",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"job"},
		),
	}

	return m
}

// Global instance for easy access from handlers
var Business *BusinessMetrics

// InitBusinessMetrics initializes the global business metrics instance
func InitBusinessMetrics(namespace string) *BusinessMetrics {
	Business = NewBusinessMetrics(namespace)
	return Business
}
