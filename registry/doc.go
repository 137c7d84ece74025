// Package registry is the process-wide, reference-counted set of known
// USB devices, keyed by the backend-assigned session ID (spec §4.1).
package registry
