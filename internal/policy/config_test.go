package policy

import (
	"strings"
	"testing"
)

func buildDoc(entries ...OrderedEntry) OrderedMap {
	return OrderedMap(entries)
}

func rolesDoc(entries ...OrderedEntry) OrderedEntry {
	return OrderedEntry{Key: "roles", Value: OrderedMap(entries)}
}

func roleDoc(name string, entries ...OrderedEntry) OrderedEntry {
	return OrderedEntry{Key: name, Value: OrderedMap(entries)}
}

func TestLoadMinimalPolicy(t *testing.T) {
	doc := buildDoc(
		rolesDoc(
			roleDoc("admin",
				OrderedEntry{Key: "users", Value: []any{"alice"}},
				OrderedEntry{Key: "tools", Value: "*"},
			),
			roleDoc("guest",
				OrderedEntry{Key: "users", Value: "*"},
				OrderedEntry{Key: "tools", Value: []any{"search"}},
			),
		),
		OrderedEntry{Key: "defaultRole", Value: "guest"},
	)

	pol, err := Load(doc)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if pol.DefaultRole != "guest" {
		t.Fatalf("DefaultRole = %q, want guest", pol.DefaultRole)
	}
	if len(pol.Roles) != 2 {
		t.Fatalf("len(Roles) = %d, want 2", len(pol.Roles))
	}
	admin, ok := pol.Role("admin")
	if !ok || !admin.IsAdmin() {
		t.Fatalf("admin role not resolved as admin: %+v ok=%v", admin, ok)
	}
}

// I1: resolveRole always returns either a matched role or the default role,
// never "no role" — proven here at the Load/Role layer: a Policy's
// DefaultRole is always present among its Roles.
func TestDefaultRoleMustBeDeclared(t *testing.T) {
	doc := buildDoc(
		rolesDoc(
			roleDoc("guest",
				OrderedEntry{Key: "users", Value: "*"},
				OrderedEntry{Key: "tools", Value: []any{"search"}},
			),
		),
		OrderedEntry{Key: "defaultRole", Value: "member"},
	)
	_, err := Load(doc)
	ci, ok := AsConfigInvalid(err)
	if !ok {
		t.Fatalf("expected *ConfigInvalid, got %v", err)
	}
	if ci.Kind != ErrKindMissing || ci.Path != "defaultRole" {
		t.Fatalf("got %+v", ci)
	}
}

// Boundary case: a wildcard-user role declared before a specific-user role
// permanently shadows it under first-match resolution; Load must reject the
// document rather than silently produce an unreachable role.
func TestWildcardRoleBeforeSpecificIsRejected(t *testing.T) {
	doc := buildDoc(
		rolesDoc(
			roleDoc("guest",
				OrderedEntry{Key: "users", Value: "*"},
				OrderedEntry{Key: "tools", Value: []any{"search"}},
			),
			roleDoc("admin",
				OrderedEntry{Key: "users", Value: []any{"alice"}},
				OrderedEntry{Key: "tools", Value: "*"},
			),
		),
		OrderedEntry{Key: "defaultRole", Value: "guest"},
	)
	_, err := Load(doc)
	ci, ok := AsConfigInvalid(err)
	if !ok {
		t.Fatalf("expected *ConfigInvalid, got %v", err)
	}
	if ci.Kind != ErrKindOrdering {
		t.Fatalf("Kind = %v, want ErrKindOrdering", ci.Kind)
	}
}

// Boundary case: an "@group" tool reference that names an undeclared group
// must fail validation rather than silently matching nothing.
func TestUndefinedToolGroupReferenceIsRejected(t *testing.T) {
	doc := buildDoc(
		rolesDoc(
			roleDoc("ops",
				OrderedEntry{Key: "users", Value: "*"},
				OrderedEntry{Key: "tools", Value: []any{"@missing"}},
			),
		),
		OrderedEntry{Key: "defaultRole", Value: "ops"},
	)
	_, err := Load(doc)
	ci, ok := AsConfigInvalid(err)
	if !ok {
		t.Fatalf("expected *ConfigInvalid, got %v", err)
	}
	if ci.Kind != ErrKindReference {
		t.Fatalf("Kind = %v, want ErrKindReference", ci.Kind)
	}
}

// Boundary case: an empty, non-wildcard tools list is legal (it blocks every
// tool for the role) but must surface a warning rather than fail the load.
func TestEmptyToolsListWarnsButLoads(t *testing.T) {
	doc := buildDoc(
		rolesDoc(
			roleDoc("locked",
				OrderedEntry{Key: "users", Value: "*"},
				OrderedEntry{Key: "tools", Value: []any{}},
			),
		),
		OrderedEntry{Key: "defaultRole", Value: "locked"},
	)
	pol, err := Load(doc)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	found := false
	for _, w := range pol.Warnings {
		if strings.Contains(w, "empty tools list") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected empty-tools warning, got %v", pol.Warnings)
	}
	role, _ := pol.Role("locked")
	if !role.Tools.Empty() {
		t.Fatalf("expected empty non-wildcard tools")
	}
	if role.Tools.Contains("anything") {
		t.Fatalf("empty tools set must not contain anything")
	}
}

// I4: normalized slash commands always start with "/" and are lowercased,
// regardless of how they were spelled in the document.
func TestSystemCommandsAreNormalized(t *testing.T) {
	doc := buildDoc(
		rolesDoc(
			roleDoc("guest",
				OrderedEntry{Key: "users", Value: "*"},
				OrderedEntry{Key: "tools", Value: []any{"search"}},
			),
		),
		OrderedEntry{Key: "defaultRole", Value: "guest"},
		OrderedEntry{Key: "systemCommands", Value: OrderedMap{
			{Key: "mode", Value: "blocklist"},
			{Key: "blocked", Value: []any{"Shutdown", " /Restart ", "reset"}},
		}},
	)
	pol, err := Load(doc)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []string{"/shutdown", "/restart", "/reset"}
	got := pol.SystemCommands.Blocked
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

// Boundary case: allowlist mode with an empty "allowed" list blocks every
// command — this is legal and distinct from omitting "allowed" entirely,
// which is a missing-field error.
func TestAllowlistWithEmptyAllowedBlocksEverything(t *testing.T) {
	doc := buildDoc(
		rolesDoc(
			roleDoc("guest",
				OrderedEntry{Key: "users", Value: "*"},
				OrderedEntry{Key: "tools", Value: []any{"search"}},
			),
		),
		OrderedEntry{Key: "defaultRole", Value: "guest"},
		OrderedEntry{Key: "systemCommands", Value: OrderedMap{
			{Key: "mode", Value: "allowlist"},
			{Key: "allowed", Value: []any{}},
		}},
	)
	pol, err := Load(doc)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(pol.SystemCommands.Allowed) != 0 {
		t.Fatalf("expected empty allowed, got %v", pol.SystemCommands.Allowed)
	}
	if pol.SystemCommands.Mode != ModeAllowlist {
		t.Fatalf("Mode = %v, want ModeAllowlist", pol.SystemCommands.Mode)
	}
}

func TestAllowlistMissingAllowedIsRejected(t *testing.T) {
	doc := buildDoc(
		rolesDoc(
			roleDoc("guest",
				OrderedEntry{Key: "users", Value: "*"},
				OrderedEntry{Key: "tools", Value: []any{"search"}},
			),
		),
		OrderedEntry{Key: "defaultRole", Value: "guest"},
		OrderedEntry{Key: "systemCommands", Value: OrderedMap{
			{Key: "mode", Value: "allowlist"},
		}},
	)
	_, err := Load(doc)
	ci, ok := AsConfigInvalid(err)
	if !ok {
		t.Fatalf("expected *ConfigInvalid, got %v", err)
	}
	if ci.Kind != ErrKindMissing || ci.Path != "systemCommands.allowed" {
		t.Fatalf("got %+v", ci)
	}
}

func TestRateLimitRejectsSubOneValue(t *testing.T) {
	doc := buildDoc(
		rolesDoc(
			roleDoc("guest",
				OrderedEntry{Key: "users", Value: "*"},
				OrderedEntry{Key: "tools", Value: []any{"search"}},
			),
		),
		OrderedEntry{Key: "defaultRole", Value: "guest"},
		OrderedEntry{Key: "rateLimit", Value: OrderedMap{
			{Key: "maxBlockedPerMinute", Value: float64(0)},
		}},
	)
	_, err := Load(doc)
	ci, ok := AsConfigInvalid(err)
	if !ok {
		t.Fatalf("expected *ConfigInvalid, got %v", err)
	}
	if ci.Kind != ErrKindRange {
		t.Fatalf("Kind = %v, want ErrKindRange", ci.Kind)
	}
}

func TestLoadJSONRoundTrip(t *testing.T) {
	const doc = `{
		"roles": {
			"admin": {"users": ["alice"], "tools": "*"},
			"guest": {"users": "*", "tools": ["search", "@readonly"]}
		},
		"toolGroups": {"readonly": ["list", "get"]},
		"defaultRole": "guest",
		"failSafe": "allow"
	}`
	pol, err := LoadJSON(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	if pol.FailSafe != FailSafeAllow {
		t.Fatalf("FailSafe = %v, want FailSafeAllow", pol.FailSafe)
	}
	guest, ok := pol.Role("guest")
	if !ok {
		t.Fatalf("guest role missing")
	}
	if !guest.Tools.Contains("search") {
		t.Fatalf("guest should be able to use search")
	}
}

func TestLoadYAMLPreservesRoleOrder(t *testing.T) {
	const doc = `
roles:
  owner:
    users: [bob]
    tools: "*"
  guest:
    users: "*"
    tools: [search]
defaultRole: guest
`
	pol, err := LoadYAML(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("LoadYAML: %v", err)
	}
	if pol.Roles[0].Name != "owner" || pol.Roles[1].Name != "guest" {
		t.Fatalf("role order not preserved: %+v", pol.Roles)
	}
}

func TestValidateSchemaRejectsWrongTopLevelShape(t *testing.T) {
	bad := []byte(`{"roles": "not-an-object"}`)
	err := ValidateSchema([]byte(DocumentSchema), bad)
	if err == nil {
		t.Fatalf("expected schema validation error")
	}
}

func TestValidateSchemaAcceptsWellShapedDocument(t *testing.T) {
	good := []byte(`{"roles": {"guest": {"users": "*", "tools": ["search"]}}, "defaultRole": "guest"}`)
	if err := ValidateSchema([]byte(DocumentSchema), good); err != nil {
		t.Fatalf("ValidateSchema: %v", err)
	}
}
