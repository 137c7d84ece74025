// Package clock wraps a monotonic time source and the absolute-deadline
// arithmetic the scheduler and event loop are built on.
package clock
