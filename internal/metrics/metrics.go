// Package metrics provides optional Prometheus instrumentation for the
// transfer engine: counts of submitted/completed/cancelled/timed-out
// transfers and the current scheduler depth. A nil *Recorder is valid
// and records nothing, so the engine can always call through it without
// checking whether the embedder opted in.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Recorder records engine-level counters. The zero value is not usable;
// construct with New. A nil *Recorder is usable and is a no-op.
type Recorder struct {
	submitted      prometheus.Counter
	completed      prometheus.Counter
	cancelled      prometheus.Counter
	timedOut       prometheus.Counter
	errored        prometheus.Counter
	schedulerDepth prometheus.Gauge
}

// New creates a Recorder. If reg is non-nil, every metric is registered
// against it; a registration failure panics, matching
// prometheus.MustRegister's own contract.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "usbgo",
			Name:      "transfers_submitted_total",
			Help:      "Transfers submitted to the backend.",
		}),
		completed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "usbgo",
			Name:      "transfers_completed_total",
			Help:      "Transfers that completed successfully.",
		}),
		cancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "usbgo",
			Name:      "transfers_cancelled_total",
			Help:      "Transfers that finished with status CANCELLED.",
		}),
		timedOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "usbgo",
			Name:      "transfers_timed_out_total",
			Help:      "Transfers that finished with status TIMED_OUT.",
		}),
		errored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "usbgo",
			Name:      "transfers_errored_total",
			Help:      "Transfers that finished with status ERROR, STALL, NO_DEVICE, or OVERFLOW.",
		}),
		schedulerDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "usbgo",
			Name:      "scheduler_depth",
			Help:      "Number of transfers currently in the in-flight scheduler.",
		}),
	}
	if reg != nil {
		reg.MustRegister(r.submitted, r.completed, r.cancelled, r.timedOut, r.errored, r.schedulerDepth)
	}
	return r
}

// TransferSubmitted records a successful submission.
func (r *Recorder) TransferSubmitted() {
	if r == nil {
		return
	}
	r.submitted.Inc()
}

// TransferCompleted records a COMPLETED completion.
func (r *Recorder) TransferCompleted() {
	if r == nil {
		return
	}
	r.completed.Inc()
}

// TransferCancelled records a CANCELLED completion.
func (r *Recorder) TransferCancelled() {
	if r == nil {
		return
	}
	r.cancelled.Inc()
}

// TransferTimedOut records a TIMED_OUT completion.
func (r *Recorder) TransferTimedOut() {
	if r == nil {
		return
	}
	r.timedOut.Inc()
}

// TransferErrored records an ERROR/STALL/NO_DEVICE/OVERFLOW completion.
func (r *Recorder) TransferErrored() {
	if r == nil {
		return
	}
	r.errored.Inc()
}

// SchedulerDepth sets the current in-flight scheduler size.
func (r *Recorder) SchedulerDepth(n int) {
	if r == nil {
		return
	}
	r.schedulerDepth.Set(float64(n))
}
