// Package backend declares the capability set the core engine requires
// from an OS-specific USB transport. Exactly one Backend implementation
// is selected at build time; the core is polymorphic over the interface,
// never over a concrete type.
package backend
