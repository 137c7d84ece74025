// Package obs carries the module's structured logging. It mirrors the
// component-tagged slog wrapper the rest of the stack uses so every
// package logs the same way.
package obs
