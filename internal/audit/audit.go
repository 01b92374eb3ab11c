// Package audit writes BLOCKED/ALLOWED/GUARD/RATE_LIMITED records to a
// single destination Sink without ever failing the decision path that
// produced them. No Sink here writes to more than one destination.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Kind classifies an AuditRecord as one of the four log line shapes named
// in policy.md §6.
type Kind int

const (
	KindBlocked Kind = iota
	KindAllowed
	KindGuard
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindBlocked:
		return "BLOCKED"
	case KindAllowed:
		return "ALLOWED"
	case KindGuard:
		return "GUARD"
	case KindRateLimited:
		return "RATE_LIMITED"
	default:
		return "UNKNOWN"
	}
}

// Record is a single audit event, carrying the union of fields every log
// line format in policy.md §6 names. Fields that don't apply to a given
// Kind are left zero.
type Record struct {
	ID        string
	Kind      Kind
	Timestamp time.Time
	Tool      string
	Command   string
	Peer      string
	Channel   string
	Role      string
	Reason    string
}

// NewID generates the opaque identifier callers should stamp onto a Record
// before calling Write, so every audit line can be correlated to the
// decision that produced it.
func NewID() string {
	return uuid.New().String()
}

// Sink is a destination for Records. Write must never block or panic
// regardless of Record content — audit is always best-effort, per
// policy.md §7's LogSinkFailure: it never fails or delays a tool-call or
// command decision.
type Sink interface {
	Write(rec Record)
	Close()
}
