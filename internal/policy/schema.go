package policy

import (
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ValidateSchema runs raw (a JSON document, typically the same bytes handed
// to LoadJSON) through a compiled JSON Schema before the field-by-field
// validation in Load runs. It exists to turn a grossly malformed document
// into a single clear diagnostic instead of the first structural check
// that happens to trip over it; it is never required for correctness —
// Load alone fully enforces every invariant in policy.md §3.
func ValidateSchema(schemaJSON, raw []byte) error {
	var schemaDoc any
	if err := json.Unmarshal(schemaJSON, &schemaDoc); err != nil {
		return err
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("policy-schema.json", schemaDoc); err != nil {
		return err
	}
	sch, err := c.Compile("policy-schema.json")
	if err != nil {
		return err
	}

	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return err
	}
	return sch.Validate(instance)
}

// DocumentSchema is the JSON Schema for the policy document shape described
// in policy.md §6. It is intentionally permissive on nested object shapes
// (those are Load's job) and only pins down the top-level types.
const DocumentSchema = `{
  "type": "object",
  "properties": {
    "roles": {"type": "object", "minProperties": 1},
    "defaultRole": {"type": "string"},
    "logBlocked": {"type": "boolean"},
    "logAllowed": {"type": "boolean"},
    "failSafe": {"type": "string", "enum": ["deny", "allow"]},
    "toolGroups": {"type": "object"},
    "rateLimit": {"type": ["object", "null"]},
    "systemCommands": {"type": ["object", "null"]}
  },
  "required": ["roles"]
}`
