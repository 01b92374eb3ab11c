package policysource

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/triage-ai/rbacgate/internal/policy"
)

// FileSource reads a policy document from a local file, dispatching to
// DecodeYAML or DecodeJSON by extension.
type FileSource struct {
	path string
}

// NewFileSource constructs a Source reading path. Extensions ".yaml" and
// ".yml" decode as YAML; anything else (including ".json") decodes as
// JSON.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Load(_ context.Context) (any, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, errors.Wrapf(err, "policysource: open %s", s.path)
	}
	defer f.Close()

	switch ext := strings.ToLower(filepath.Ext(s.path)); ext {
	case ".yaml", ".yml":
		return policy.DecodeYAML(f)
	default:
		return policy.DecodeJSON(f)
	}
}
