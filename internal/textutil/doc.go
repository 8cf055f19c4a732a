// Package textutil provides the small text helpers shared by the overlay
// renderer, the context analyzer and file naming: word wrapping, rune-safe
// truncation and filesystem-safe tokens.
package textutil
