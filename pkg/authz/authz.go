// Package authz decides whether a reader may act on a resource.
package authz

import (
	"github.com/marginalia-app/marginalia/pkg/models"
)

// Decision is the outcome of a check.
type Decision int

const (
	Forbidden Decision = iota
	Allow
)

func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "forbidden"
}

// Allowed reports whether d is Allow.
func (d Decision) Allowed() bool { return d == Allow }

// Check allows the actor to act on a resource only when it owns it.
// A zero identifier on either side never matches.
func Check(actor, owner models.ReaderID) Decision {
	if actor.IsZero() || owner.IsZero() || actor != owner {
		return Forbidden
	}
	return Allow
}
