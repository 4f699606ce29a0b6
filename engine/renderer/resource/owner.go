// Package resource implements GPU buffers and images owned by a rendering Context.
package resource

import (
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/state"
)

// Owner is the part of a rendering Context that resources depend on.
type Owner interface {
	// Backend returns the driver the resource lives on.
	Backend() backend.Backend

	// State returns the Context's state-diff cache.
	State() *state.Cache

	// Framebuffer returns the cached framebuffer for exactly these attachments, creating it on
	// first use.
	Framebuffer(attachments []backend.Handle) (backend.Handle, error)

	// MapChanged is told whenever a buffer becomes mapped (+1) or unmapped (-1).
	MapChanged(delta int)

	// Released is told after a resource's backend object was freed.
	Released(h backend.Handle)
}
