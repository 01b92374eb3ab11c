// Package menu prepares plugin-declared command specs for registration
// against an external chat-platform menu API. The adapter that actually
// calls that API is outside this package's scope.
package menu

import (
	"fmt"
	"strings"
)

const maxCommandNameLength = 32

// CommandSpec is a plugin-declared slash command awaiting registration.
type CommandSpec struct {
	Name        string
	Description string
}

// MenuCommand is a validated, normalized command ready for registration.
type MenuCommand struct {
	Command     string
	Description string
}

// BuildResult bundles the accepted commands with any rejections.
type BuildResult struct {
	Commands []MenuCommand
	Issues   []string
}

// BuildPluginTelegramMenuCommands normalizes and validates specs against
// the platform's naming rules (letters, digits, underscore; <= 32 chars),
// rejecting empty names/descriptions, conflicts with existingCommands, and
// duplicates within this pass. existingCommands is mutated in place to
// include every accepted name, mirroring the "claim as you go" semantics
// a real registration pass needs.
func BuildPluginTelegramMenuCommands(specs []CommandSpec, existingCommands map[string]bool) BuildResult {
	var result BuildResult
	addedThisPass := make(map[string]bool)

	for _, spec := range specs {
		name := normalizeCommandName(spec.Name)
		if name == "" {
			result.Issues = append(result.Issues, fmt.Sprintf("command %q: empty name after normalization", spec.Name))
			continue
		}
		if !isValidCommandName(name) {
			result.Issues = append(result.Issues, fmt.Sprintf("command %q: invalid name (letters, digits, underscore only, <= %d chars)", spec.Name, maxCommandNameLength))
			continue
		}

		description := strings.TrimSpace(spec.Description)
		if description == "" {
			result.Issues = append(result.Issues, fmt.Sprintf("command %q: empty description", name))
			continue
		}

		if existingCommands[name] {
			result.Issues = append(result.Issues, fmt.Sprintf("command %q: conflicts with an existing command", name))
			continue
		}
		if addedThisPass[name] {
			result.Issues = append(result.Issues, fmt.Sprintf("command %q: duplicate within this batch", name))
			continue
		}

		existingCommands[name] = true
		addedThisPass[name] = true
		result.Commands = append(result.Commands, MenuCommand{Command: name, Description: description})
	}

	return result
}

func normalizeCommandName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.TrimPrefix(name, "/")
	return name
}

func isValidCommandName(name string) bool {
	if len(name) == 0 || len(name) > maxCommandNameLength {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '_':
		default:
			return false
		}
	}
	return true
}

// CapResult bundles the truncated command list with bookkeeping about how
// much was dropped.
type CapResult struct {
	Commands []MenuCommand
	Total    int
	Cap      int
	Overflow int
}

// BuildCappedTelegramMenuCommands returns the first maxCommands entries of
// allCommands (order preserved), the original total, the cap applied, and
// the overflow count. maxCommands <= 0 defaults to 100, the platform's
// registration limit.
func BuildCappedTelegramMenuCommands(allCommands []MenuCommand, maxCommands int) CapResult {
	if maxCommands <= 0 {
		maxCommands = 100
	}
	total := len(allCommands)
	if total <= maxCommands {
		return CapResult{Commands: allCommands, Total: total, Cap: maxCommands, Overflow: 0}
	}
	return CapResult{
		Commands: allCommands[:maxCommands],
		Total:    total,
		Cap:      maxCommands,
		Overflow: total - maxCommands,
	}
}
