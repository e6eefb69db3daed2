package strategyconfig

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the strategy YAML and returns the document with its raw
// bytes. KnownFields makes a typo in any key an immediate error instead of
// a silently ignored override.
func Load(path string) (*Document, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	doc := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(doc); err != nil {
		return nil, nil, err
	}

	if err := Validate(doc); err != nil {
		return nil, data, err
	}

	return doc, data, nil
}

// ParseJSON reads a strategy document from JSON, the format the analyzer
// persists its configuration in. Unknown keys are ignored here; the strict
// path is the YAML loader.
func ParseJSON(data []byte) (*Document, error) {
	doc := Default()
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, err
	}
	if err := Validate(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// MarshalJSON serializes the document for persistence.
func MarshalJSON(doc *Document) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}

// Hash returns the canonical SHA256 of the document. Struct-ordered JSON
// keeps the hash reproducible across loads.
func Hash(doc *Document) (string, error) {
	jsonBytes, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}
