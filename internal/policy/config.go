package policy

import (
	"fmt"
	"io"
	"strings"
)

const (
	defaultDefaultRole = "guest"
)

// LoadJSON decodes a JSON policy document and validates it.
func LoadJSON(r io.Reader) (*Policy, error) {
	doc, err := DecodeJSON(r)
	if err != nil {
		return nil, err
	}
	return Load(doc)
}

// LoadYAML decodes a YAML policy document and validates it.
func LoadYAML(r io.Reader) (*Policy, error) {
	doc, err := DecodeYAML(r)
	if err != nil {
		return nil, err
	}
	return Load(doc)
}

// Load validates an already-decoded policy document (typically the result
// of DecodeJSON or DecodeYAML) and returns a frozen Policy, or a
// *ConfigInvalid describing the first structural failure. Unknown
// top-level keys are ignored for forward compatibility. Warnings are
// non-fatal and accumulate onto the returned Policy rather than aborting
// the load.
func Load(doc any) (*Policy, error) {
	root, ok := asOrdered(doc)
	if !ok {
		return nil, invalid("", ErrKindType, "root must be an object")
	}

	rolesRaw, ok := root.Get("roles")
	if !ok {
		return nil, invalid("roles", ErrKindMissing, "roles is required")
	}
	rolesDoc, ok := asOrdered(rolesRaw)
	if !ok {
		return nil, invalid("roles", ErrKindType, "roles must be a non-empty object")
	}
	if len(rolesDoc) == 0 {
		return nil, invalid("roles", ErrKindMissing, "roles must be a non-empty object")
	}

	var warnings []string
	var roles []RoleEntry
	firstWildcardRole := ""

	for _, entry := range rolesDoc {
		roleName := entry.Key
		path := fmt.Sprintf("roles.%s", roleName)
		roleDoc, ok := asOrdered(entry.Value)
		if !ok {
			return nil, invalid(path, ErrKindType, "role must be an object")
		}

		spec, err := parseRoleSpec(path, roleDoc, &warnings)
		if err != nil {
			return nil, err
		}

		if spec.Users.Wildcard {
			if firstWildcardRole == "" {
				firstWildcardRole = roleName
			}
		} else if firstWildcardRole != "" {
			return nil, invalid(path+".users", ErrKindOrdering,
				"role %q has specific users but is preceded by wildcard role %q; "+
					"first-match resolution would shadow it permanently — "+
					"move %q before %q", roleName, firstWildcardRole, roleName, firstWildcardRole)
		}

		roles = append(roles, RoleEntry{Name: roleName, Spec: spec})
	}

	defaultRole := defaultDefaultRole
	if raw, ok := root.Get("defaultRole"); ok {
		s, ok := asString(raw)
		if !ok {
			return nil, invalid("defaultRole", ErrKindType, "defaultRole must be a string")
		}
		defaultRole = s
	}
	if !rolesContain(roles, defaultRole) {
		return nil, invalid("defaultRole", ErrKindMissing, "defaultRole %q is not a declared role", defaultRole)
	}

	toolGroups := map[string][]string{}
	if raw, ok := root.Get("toolGroups"); ok {
		tgDoc, ok := asOrdered(raw)
		if !ok {
			return nil, invalid("toolGroups", ErrKindType, "toolGroups must be an object")
		}
		for _, entry := range tgDoc {
			path := fmt.Sprintf("toolGroups.%s", entry.Key)
			list, ok := asStringList(entry.Value)
			if !ok {
				return nil, invalid(path, ErrKindType, "%s must be a string[]", path)
			}
			toolGroups[entry.Key] = list
		}
	}

	for _, r := range roles {
		if r.Spec.Tools.Wildcard {
			continue
		}
		for _, tool := range r.Spec.Tools.List {
			if !strings.HasPrefix(tool, "@") {
				continue
			}
			group := strings.TrimPrefix(tool, "@")
			if _, ok := toolGroups[group]; !ok {
				return nil, invalid(fmt.Sprintf("roles.%s.tools", r.Name), ErrKindReference,
					"references undefined tool group %q", group)
			}
		}
	}

	failSafe := FailSafeDeny
	if raw, ok := root.Get("failSafe"); ok {
		s, ok := asString(raw)
		if !ok {
			return nil, invalid("failSafe", ErrKindType, "failSafe must be a string")
		}
		switch s {
		case "deny":
			failSafe = FailSafeDeny
		case "allow":
			failSafe = FailSafeAllow
		default:
			return nil, invalid("failSafe", ErrKindEnum, `failSafe must be "deny" or "allow", got %q`, s)
		}
	}

	logBlocked := true
	if raw, ok := root.Get("logBlocked"); ok {
		b, ok := asBool(raw)
		if !ok {
			return nil, invalid("logBlocked", ErrKindType, "logBlocked must be a boolean")
		}
		logBlocked = b
	}

	logAllowed := false
	if raw, ok := root.Get("logAllowed"); ok {
		b, ok := asBool(raw)
		if !ok {
			return nil, invalid("logAllowed", ErrKindType, "logAllowed must be a boolean")
		}
		logAllowed = b
	}

	var rateLimit *RateLimitSpec
	if raw, ok := root.Get("rateLimit"); ok && raw != nil {
		rlDoc, ok := asOrdered(raw)
		if !ok {
			return nil, invalid("rateLimit", ErrKindType, "rateLimit must be an object")
		}
		maxRaw, ok := rlDoc.Get("maxBlockedPerMinute")
		if !ok {
			return nil, invalid("rateLimit.maxBlockedPerMinute", ErrKindMissing, "maxBlockedPerMinute is required")
		}
		n, ok := asNumber(maxRaw)
		if !ok || n < 1 {
			return nil, invalid("rateLimit.maxBlockedPerMinute", ErrKindRange, "maxBlockedPerMinute must be a number >= 1")
		}
		rateLimit = &RateLimitSpec{MaxBlockedPerMinute: int(n)}
	}

	var systemCommands *SystemCommandsSpec
	if raw, ok := root.Get("systemCommands"); ok && raw != nil {
		scDoc, ok := asOrdered(raw)
		if !ok {
			return nil, invalid("systemCommands", ErrKindType, "systemCommands must be an object")
		}
		sc, err := parseSystemCommands(scDoc)
		if err != nil {
			return nil, err
		}
		systemCommands = sc
	}

	return &Policy{
		Roles:          roles,
		DefaultRole:    defaultRole,
		LogBlocked:     logBlocked,
		LogAllowed:     logAllowed,
		FailSafe:       failSafe,
		ToolGroups:     toolGroups,
		RateLimit:      rateLimit,
		SystemCommands: systemCommands,
		Warnings:       warnings,
	}, nil
}

func parseRoleSpec(path string, roleDoc OrderedMap, warnings *[]string) (RoleSpec, error) {
	usersRaw, ok := roleDoc.Get("users")
	if !ok {
		return RoleSpec{}, invalid(path+".users", ErrKindMissing, "users is required")
	}
	users, err := parseStringSet(path+".users", usersRaw)
	if err != nil {
		return RoleSpec{}, err
	}

	toolsRaw, ok := roleDoc.Get("tools")
	if !ok {
		return RoleSpec{}, invalid(path+".tools", ErrKindMissing, "tools is required")
	}
	tools, err := parseStringSet(path+".tools", toolsRaw)
	if err != nil {
		return RoleSpec{}, err
	}
	if tools.Empty() {
		*warnings = append(*warnings, fmt.Sprintf("%s: empty tools list blocks every tool for this role", path))
	}

	channels := AllStrings()
	if channelsRaw, ok := roleDoc.Get("channels"); ok {
		channels, err = parseStringSet(path+".channels", channelsRaw)
		if err != nil {
			return RoleSpec{}, err
		}
		if channels.Empty() {
			*warnings = append(*warnings, fmt.Sprintf("%s: empty channels list means this role can never match", path))
		}
	}

	return RoleSpec{Users: users, Tools: tools, Channels: channels}, nil
}

func parseStringSet(path string, raw any) (StringSet, error) {
	if s, ok := asString(raw); ok {
		if s == "*" {
			return AllStrings(), nil
		}
		return StringSet{}, invalid(path, ErrKindType, `%s must be "*" or string[]`, path)
	}
	if list, ok := asStringList(raw); ok {
		return Strings(list), nil
	}
	return StringSet{}, invalid(path, ErrKindType, `%s must be "*" or string[]`, path)
}

func parseSystemCommands(doc OrderedMap) (*SystemCommandsSpec, error) {
	mode := ModeBlocklist
	if raw, ok := doc.Get("mode"); ok {
		s, ok := asString(raw)
		if !ok {
			return nil, invalid("systemCommands.mode", ErrKindType, "mode must be a string")
		}
		switch s {
		case "blocklist":
			mode = ModeBlocklist
		case "allowlist":
			mode = ModeAllowlist
		default:
			return nil, invalid("systemCommands.mode", ErrKindEnum, `mode must be "blocklist" or "allowlist", got %q`, s)
		}
	}

	var blocked, allowed []string
	if raw, ok := doc.Get("blocked"); ok {
		list, ok := asStringList(raw)
		if !ok {
			return nil, invalid("systemCommands.blocked", ErrKindType, "blocked must be a string[]")
		}
		blocked = normalizeCommands(list)
	}
	if raw, ok := doc.Get("allowed"); ok {
		list, ok := asStringList(raw)
		if !ok {
			return nil, invalid("systemCommands.allowed", ErrKindType, "allowed must be a string[]")
		}
		allowed = normalizeCommands(list)
	}

	if mode == ModeBlocklist && len(blocked) == 0 {
		return nil, invalid("systemCommands.blocked", ErrKindMissing, "blocked must be non-empty in blocklist mode")
	}
	if mode == ModeAllowlist {
		if _, ok := doc.Get("allowed"); !ok {
			return nil, invalid("systemCommands.allowed", ErrKindMissing, "allowed is required in allowlist mode")
		}
	}

	blockResponse := ""
	if raw, ok := doc.Get("blockResponse"); ok {
		s, ok := asString(raw)
		if !ok {
			return nil, invalid("systemCommands.blockResponse", ErrKindType, "blockResponse must be a string")
		}
		blockResponse = s
	}

	var guestHelp *string
	if raw, ok := doc.Get("guestHelp"); ok && raw != nil {
		s, ok := asString(raw)
		if !ok {
			return nil, invalid("systemCommands.guestHelp", ErrKindType, "guestHelp must be a string or null")
		}
		guestHelp = &s
	}

	return &SystemCommandsSpec{
		Mode:          mode,
		Blocked:       blocked,
		Allowed:       allowed,
		GuestHelp:     guestHelp,
		BlockResponse: blockResponse,
	}, nil
}

// normalizeCommands lowercases, trims, and "/"-prefixes every entry.
func normalizeCommands(list []string) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = normalizeCommand(s)
	}
	return out
}

func normalizeCommand(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if !strings.HasPrefix(s, "/") {
		s = "/" + s
	}
	return s
}

func rolesContain(roles []RoleEntry, name string) bool {
	for _, r := range roles {
		if r.Name == name {
			return true
		}
	}
	return false
}
