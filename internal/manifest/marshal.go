package manifest

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Marshal encodes doc as block-style YAML with two-space indentation.
func Marshal(doc interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	return buf.Bytes(), nil
}

// MarshalString is Marshal for callers that store the document as text.
func MarshalString(doc interface{}) (string, error) {
	b, err := Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// JoinDocuments concatenates YAML documents into one multi-document stream.
// Empty documents are dropped.
func JoinDocuments(docs ...string) string {
	var parts []string
	for _, d := range docs {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		parts = append(parts, d+"\n")
	}
	return strings.Join(parts, "---\n")
}

func b64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}
