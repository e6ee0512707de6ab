package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	bookingsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bookings_created_total",
			Help: "Total bookings that entered the pending state",
		},
	)

	bookingsTransitioned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_transitions_total",
			Help: "Total booking state transitions",
		},
		[]string{"to_status"},
	)

	reservationsRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reservations_rejected_total",
			Help: "Total reservation attempts rejected for insufficient inventory",
		},
	)

	paymentsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Total payment terminal outcomes",
		},
		[]string{"status"},
	)

	refundsCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "refunds_completed_total",
			Help: "Total completed refunds",
		},
	)

	settlementsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "settlements_created_total",
			Help: "Total organizer settlements",
		},
	)

	ticketsIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tickets_issued_total",
			Help: "Total tickets materialized from paid bookings",
		},
	)

	ticketsCheckedIn = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tickets_checked_in_total",
			Help: "Total gate check-ins",
		},
	)

	waitlistNotified = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "waitlist_notifications_total",
			Help: "Total waitlist entries notified of freed capacity",
		},
	)

	sweepRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweep_runs_total",
			Help: "Total background sweep executions",
		},
		[]string{"sweep", "status"},
	)

	checkoutDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "checkout_duration_seconds",
			Help:    "Duration of booking checkout requests",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)
)

func RecordBookingCreated() {
	bookingsCreated.Inc()
}

func RecordBookingTransition(toStatus string) {
	bookingsTransitioned.WithLabelValues(toStatus).Inc()
}

func RecordReservationRejected() {
	reservationsRejected.Inc()
}

func RecordPaymentOutcome(status string) {
	paymentsCompleted.WithLabelValues(status).Inc()
}

func RecordRefundCompleted() {
	refundsCompleted.Inc()
}

func RecordSettlementCreated() {
	settlementsCreated.Inc()
}

func RecordTicketsIssued(count int) {
	ticketsIssued.Add(float64(count))
}

func RecordTicketCheckedIn() {
	ticketsCheckedIn.Inc()
}

func RecordWaitlistNotified(count int) {
	waitlistNotified.Add(float64(count))
}

func RecordSweepRun(sweep string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	sweepRuns.WithLabelValues(sweep, status).Inc()
}

func ObserveCheckoutDuration(d time.Duration) {
	checkoutDuration.Observe(d.Seconds())
}
