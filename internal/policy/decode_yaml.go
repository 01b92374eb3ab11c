package policy

import (
	"fmt"
	"io"
	"strconv"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// DecodeYAML reads a YAML document into the same order-preserving
// representation as DecodeJSON. yaml.Node's MappingNode content alternates
// key/value nodes in document order, so walking the node tree by hand
// (rather than unmarshaling into map[string]any) is what lets role
// resolution order survive the YAML round trip.
func DecodeYAML(r io.Reader) (any, error) {
	var doc yaml.Node
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "policy: decode yaml")
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	return decodeYAMLNode(doc.Content[0])
}

func decodeYAMLNode(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return decodeYAMLNode(n.Content[0])
	case yaml.MappingNode:
		return decodeYAMLMapping(n)
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, item := range n.Content {
			v, err := decodeYAMLNode(item)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.ScalarNode:
		return decodeYAMLScalar(n)
	case yaml.AliasNode:
		return decodeYAMLNode(n.Alias)
	default:
		return nil, fmt.Errorf("unsupported yaml node kind %v", n.Kind)
	}
}

func decodeYAMLMapping(n *yaml.Node) (OrderedMap, error) {
	out := make(OrderedMap, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		keyNode := n.Content[i]
		valNode := n.Content[i+1]
		key, err := decodeYAMLScalar(keyNode)
		if err != nil {
			return nil, err
		}
		keyStr, ok := key.(string)
		if !ok {
			return nil, fmt.Errorf("yaml object key must be a string, got %T", key)
		}
		val, err := decodeYAMLNode(valNode)
		if err != nil {
			return nil, err
		}
		out = append(out, OrderedEntry{Key: keyStr, Value: val})
	}
	return out, nil
}

func decodeYAMLScalar(n *yaml.Node) (any, error) {
	if n.Tag == "!!null" {
		return nil, nil
	}
	switch n.Tag {
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, err
		}
		return b, nil
	case "!!int", "!!float":
		// Preserve the literal text; callers that need numbers parse it
		// with strconv, mirroring how DecodeJSON hands out json.Number.
		if _, err := strconv.ParseFloat(n.Value, 64); err != nil {
			return nil, err
		}
		return yamlNumber(n.Value), nil
	default:
		var s string
		if err := n.Decode(&s); err != nil {
			return nil, err
		}
		return s, nil
	}
}

// yamlNumber mirrors json.Number so the validator's numeric coercion
// (asNumber in coerce.go) handles both decoders uniformly.
type yamlNumber string

func (n yamlNumber) Float64() (float64, error) {
	return strconv.ParseFloat(string(n), 64)
}
