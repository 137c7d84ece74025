// Package cgolibusb implements backend.Backend on top of
// github.com/gotmc/libusb/v2, a cgo binding over the native libusb
// library. Unlike backend/linux it runs on every platform libusb
// itself supports, at the cost of a cgo dependency.
//
// libusb/v2 only exposes synchronous transfer calls, not libusb's
// async submit/handle_events pair, so each Transfer runs on its own
// goroutine and reports completion through an eventfd-backed queue the
// core's event loop wakes for, the same bridge pattern the test
// harness in the usbgo root package uses against a fake backend. Build
// with the cgolibusb tag; it is inert otherwise.
package cgolibusb
