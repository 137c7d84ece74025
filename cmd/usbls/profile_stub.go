//go:build !profile

package main

// startCPUProfile is a no-op when usbls is built without the "profile" tag,
// so -cpuprofile is accepted but silently ignored rather than requiring a
// special build just to parse flags.
func startCPUProfile(_ string) (stop func(), err error) {
	return func() {}, nil
}
