// Package policy parses, normalizes, and validates the RBAC policy
// document and exposes the frozen Policy the rest of the engine consumes.
package policy

// StringSet models the "wildcard vs explicit list" shape that recurs
// throughout the policy document (users, tools, channels). The wildcard
// marker from the document boundary ("*") never survives past Load — from
// here on it is the Wildcard field.
type StringSet struct {
	Wildcard bool
	List     []string
}

// AllStrings is the wildcard StringSet.
func AllStrings() StringSet {
	return StringSet{Wildcard: true}
}

// Strings wraps an explicit list as a StringSet.
func Strings(list []string) StringSet {
	return StringSet{List: list}
}

// Contains reports whether v is matched by the set: true unconditionally
// for a wildcard set, otherwise true iff v appears verbatim in List.
func (s StringSet) Contains(v string) bool {
	if s.Wildcard {
		return true
	}
	for _, item := range s.List {
		if item == v {
			return true
		}
	}
	return false
}

// Empty reports whether the set is an explicit, non-wildcard empty list —
// the shape that makes a role block everything or never match.
func (s StringSet) Empty() bool {
	return !s.Wildcard && len(s.List) == 0
}

// FailSafeMode is the policy for handling an unparseable session key.
type FailSafeMode int

const (
	// FailSafeDeny blocks tool calls whose session key could not be parsed.
	FailSafeDeny FailSafeMode = iota
	// FailSafeAllow allows tool calls whose session key could not be parsed.
	FailSafeAllow
)

// String returns the document-facing literal for the mode.
func (m FailSafeMode) String() string {
	if m == FailSafeAllow {
		return "allow"
	}
	return "deny"
}

// CommandMode selects between blocklist and allowlist semantics for
// SystemCommandsSpec.
type CommandMode int

const (
	// ModeBlocklist blocks only the commands named in Blocked.
	ModeBlocklist CommandMode = iota
	// ModeAllowlist blocks every command except those named in Allowed.
	ModeAllowlist
)

// String returns the document-facing literal for the mode.
func (m CommandMode) String() string {
	if m == ModeAllowlist {
		return "allowlist"
	}
	return "blocklist"
}

// RoleSpec is the access bundle selected by matching peer id and channel.
type RoleSpec struct {
	Users    StringSet
	Tools    StringSet
	Channels StringSet
}

// IsAdmin reports whether this role's Tools field is the wildcard — the
// decision used to bypass command guarding entirely for administrators.
func (r RoleSpec) IsAdmin() bool {
	return r.Tools.Wildcard
}

// RoleEntry is a single (name, RoleSpec) pair. Iteration order over a
// slice of RoleEntry is the contractually significant first-match order;
// a map would silently discard it.
type RoleEntry struct {
	Name string
	Spec RoleSpec
}

// RateLimitSpec configures the audit rate limiter.
type RateLimitSpec struct {
	MaxBlockedPerMinute int
}

// SystemCommandsSpec governs slash-command interception.
type SystemCommandsSpec struct {
	Mode          CommandMode
	Blocked       []string
	Allowed       []string
	GuestHelp     *string // nil means unset; a set empty string is distinct from unset
	BlockResponse string
}

// Policy is the immutable, validated result of Load. Every Policy value
// returned from Load satisfies the invariants in policy.md §3; there is no
// way to observe a partially-valid Policy.
type Policy struct {
	Roles          []RoleEntry
	DefaultRole    string
	LogBlocked     bool
	LogAllowed     bool
	FailSafe       FailSafeMode
	ToolGroups     map[string][]string
	RateLimit      *RateLimitSpec
	SystemCommands *SystemCommandsSpec
	Warnings       []string
}

// Role looks up a role by name, returning ok=false if absent.
func (p *Policy) Role(name string) (RoleSpec, bool) {
	for _, r := range p.Roles {
		if r.Name == name {
			return r.Spec, true
		}
	}
	return RoleSpec{}, false
}

// ExpandGroup resolves a single "@group" tool-list entry against
// ToolGroups, returning (names, ok).
func (p *Policy) ExpandGroup(ref string) ([]string, bool) {
	names, ok := p.ToolGroups[ref]
	return names, ok
}
