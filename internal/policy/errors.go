package policy

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ErrKind is a machine-usable classification of a ConfigInvalid failure,
// carried alongside the human message so a host can render precise UI
// without string-matching the message.
type ErrKind int

const (
	// ErrKindType means a value was present but of the wrong shape.
	ErrKindType ErrKind = iota
	// ErrKindMissing means a required value was absent.
	ErrKindMissing
	// ErrKindOrdering means roles.* violates first-match shadowing rules.
	ErrKindOrdering
	// ErrKindReference means an "@group" reference names an undefined group.
	ErrKindReference
	// ErrKindEnum means a value was not one of a fixed set of literals.
	ErrKindEnum
	// ErrKindRange means a numeric value fell outside its allowed range.
	ErrKindRange
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindType:
		return "type"
	case ErrKindMissing:
		return "missing"
	case ErrKindOrdering:
		return "ordering"
	case ErrKindReference:
		return "reference"
	case ErrKindEnum:
		return "enum"
	case ErrKindRange:
		return "range"
	default:
		return "unknown"
	}
}

// ConfigInvalid is the load-time structural failure described in policy.md
// §7. Path is a dotted JSON path naming the offending field; Kind is the
// machine-usable enum; the error's message is the human-readable text.
type ConfigInvalid struct {
	Path    string
	Kind    ErrKind
	Message string
	cause   error
}

func (e *ConfigInvalid) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

func (e *ConfigInvalid) Unwrap() error {
	return e.cause
}

// invalid constructs a *ConfigInvalid, wrapped with cockroachdb/errors so a
// development build can print a stack-annotated diagnostic while a
// production log only ever sees the plain Error() string.
func invalid(path string, kind ErrKind, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	err := &ConfigInvalid{Path: path, Kind: kind, Message: msg}
	return errors.WithStack(err)
}

// AsConfigInvalid unwraps err to its *ConfigInvalid, if any.
func AsConfigInvalid(err error) (*ConfigInvalid, bool) {
	var ci *ConfigInvalid
	if errors.As(err, &ci) {
		return ci, true
	}
	return nil, false
}
