package rbac

import (
	"fmt"
	"strings"

	"github.com/triage-ai/rbacgate/internal/policy"
)

// Decision is the result of a tool-access check.
type Decision struct {
	Allowed bool
	Role    string
	Reason  string // empty when Allowed
}

// CheckToolAccess decides whether roleName may invoke toolName under pol.
// Exact names (including every name an "@group" reference expands to) win
// over "_*" wildcard patterns; a wildcard pattern's prefix must be strictly
// shorter than the candidate tool name, so "exec_*" matches "exec_shell"
// but not "exec" itself.
func CheckToolAccess(pol *policy.Policy, toolName, roleName string) Decision {
	role, ok := pol.Role(roleName)
	if !ok {
		return Decision{Role: roleName, Reason: fmt.Sprintf("Unknown role %q", roleName)}
	}
	if role.Tools.Wildcard {
		return Decision{Allowed: true, Role: roleName}
	}

	exact, wildcards := expandTools(pol, role.Tools.List)

	for _, name := range exact {
		if name == toolName {
			return Decision{Allowed: true, Role: roleName}
		}
	}
	for _, pattern := range wildcards {
		prefix := strings.TrimSuffix(pattern, "*")
		if strings.HasPrefix(toolName, prefix) && len(toolName) > len(prefix) {
			return Decision{Allowed: true, Role: roleName}
		}
	}

	return Decision{
		Role:   roleName,
		Reason: fmt.Sprintf("Role %q does not have access to tool %q", roleName, toolName),
	}
}

// expandTools splits a role's tool list into exact names (plain names plus
// every "@group" reference expanded in place) and "_*" wildcard patterns.
func expandTools(pol *policy.Policy, list []string) (exact, wildcards []string) {
	for _, entry := range list {
		switch {
		case strings.HasPrefix(entry, "@"):
			if names, ok := pol.ExpandGroup(strings.TrimPrefix(entry, "@")); ok {
				exact = append(exact, names...)
			}
		case strings.HasSuffix(entry, "_*"):
			wildcards = append(wildcards, entry)
		default:
			exact = append(exact, entry)
		}
	}
	return exact, wildcards
}
