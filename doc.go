// Package usbgo is a portable, asynchronous USB host engine. A Context
// owns exactly one backend.Backend, a device registry, a handle table,
// and an in-flight transfer scheduler; callers drive I/O by running the
// event loop (Poll / PollTimeout) on a thread of their choosing.
//
// The engine does not start any goroutines of its own. GetDeviceList
// passes its context.Context on to the backend; Poll, PollTimeout and
// CancelTransferSync take no context. The event loop itself is driven
// by repeated, short calls rather than an internal loop goroutine, so
// embedding it into an existing event-driven program (its own
// select/epoll loop, a GUI main loop, whatever) is a matter of adding
// its pollfds to that loop and calling PollTimeout(0) when they fire.
package usbgo
