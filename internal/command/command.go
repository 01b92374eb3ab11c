// Package command implements the two-phase slash-command guard: ingress
// detection of a blocked command and egress substitution of the reply.
package command

import (
	"strings"
	"sync"
	"time"

	"github.com/triage-ai/rbacgate/internal/policy"
)

const pendingBlockStaleAfter = 10 * time.Second

// MatchBlockedCommand inspects a freshly received message body and returns
// the normalized command head if it should be intercepted, or ("", false)
// if the message is not an intercepted command.
func MatchBlockedCommand(content string, spec *policy.SystemCommandsSpec) (string, bool) {
	if spec == nil {
		return "", false
	}

	trimmed := strings.ToLower(strings.TrimSpace(content))
	if !strings.HasPrefix(trimmed, "/") {
		return "", false
	}

	head := trimmed
	if idx := strings.IndexAny(trimmed, " \t\n"); idx >= 0 {
		head = trimmed[:idx]
	}

	if spec.GuestHelp != nil && head == "/help" {
		return head, true
	}

	switch spec.Mode {
	case policy.ModeAllowlist:
		if contains(spec.Allowed, head) {
			return "", false
		}
		return head, true
	default: // ModeBlocklist
		if contains(spec.Blocked, head) {
			return head, true
		}
		return "", false
	}
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// GetBlockResponse returns the substitute body for an intercepted command:
// spec.GuestHelp when command is "/help" and GuestHelp is set, otherwise
// spec.BlockResponse.
func GetBlockResponse(command string, spec *policy.SystemCommandsSpec) string {
	if command == "/help" && spec.GuestHelp != nil {
		return *spec.GuestHelp
	}
	return spec.BlockResponse
}

// IsAdminByTools reports whether roleName exists in pol and its tools field
// is the wildcard — the decision used to bypass command guarding entirely
// for administrators.
func IsAdminByTools(pol *policy.Policy, roleName string) bool {
	role, ok := pol.Role(roleName)
	return ok && role.IsAdmin()
}

type pendingBlock struct {
	command string
	setAt   time.Time
}

// PendingBlockSlot is the single process-wide armed/empty slot described in
// policy.md §3: armed by SetPendingBlock on message-received, consumed by
// ConsumePendingBlock on message-sending. This relies on the host
// serializing message-received and message-sending for a given
// conversation, which is what makes one slot sufficient instead of a map
// keyed by conversation.
type PendingBlockSlot struct {
	mu      sync.Mutex
	pending *pendingBlock
	now     func() time.Time
}

// NewPendingBlockSlot constructs an empty slot.
func NewPendingBlockSlot() *PendingBlockSlot {
	return &PendingBlockSlot{now: time.Now}
}

// SetPendingBlock arms the slot with command.
func (s *PendingBlockSlot) SetPendingBlock(command string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = &pendingBlock{command: command, setAt: s.now()}
}

// ConsumePendingBlock atomically empties the slot and returns the armed
// command, or ("", false) if the slot was empty or the armed entry is
// stale (older than 10s — a safety net against a dropped message-sending
// event, not normal control flow).
func (s *PendingBlockSlot) ConsumePendingBlock() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.pending
	s.pending = nil
	if p == nil {
		return "", false
	}
	if s.now().Sub(p.setAt) > pendingBlockStaleAfter {
		return "", false
	}
	return p.command, true
}
