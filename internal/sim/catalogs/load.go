package catalogs

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// FileName is the catalog file inside the config directory.
const FileName = "node-types.json"

//go:embed node_types.schema.json
var schemaText string

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString("node_types.schema.json", schemaText)
	})
	return schema, schemaErr
}

// Load reads, schema-checks and parses <configDir>/node-types.json.
func Load(configDir string) (*Catalog, error) {
	raw, err := os.ReadFile(filepath.Join(configDir, FileName))
	if err != nil {
		return nil, err
	}
	c, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", FileName, err)
	}
	return c, nil
}

// Parse decodes a catalog document. The document is either an array of node
// types or an object with a "dominos" array.
func Parse(raw []byte) (*Catalog, error) {
	raw = unwrapDocument(raw)

	s, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if err := s.Validate(doc); err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}

	var defs []RawNodeType
	if err := json.Unmarshal(raw, &defs); err != nil {
		return nil, err
	}
	c, err := ParseCatalog(defs)
	if err != nil {
		return nil, err
	}
	c.Digest = sha256Hex(raw)
	return c, nil
}

func unwrapDocument(raw []byte) []byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return raw
	}
	var wrapped struct {
		Dominos json.RawMessage `json:"dominos"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil || len(wrapped.Dominos) == 0 {
		return raw
	}
	return wrapped.Dominos
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
