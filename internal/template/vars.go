package template

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Vars maps placeholder keys to values.
type Vars map[string]string

// SetPair parses "key=value" and stores it. Only the first '=' separates key
// from value.
func (v Vars) SetPair(pair string) error {
	key, value, ok := strings.Cut(pair, "=")
	if !ok {
		return fmt.Errorf("invalid variable %q: use key=value", pair)
	}
	v[key] = value
	return nil
}

// MergeJSON merges a JSON object into v. Non-string values are formatted
// with their JSON text, except strings which are taken verbatim.
func (v Vars) MergeJSON(data []byte) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("invalid JSON variables: %w", err)
	}
	for key, raw := range obj {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			v[key] = s
			continue
		}
		v[key] = string(raw)
	}
	return nil
}

// MergeFile merges the JSON object stored at path into v.
func (v Vars) MergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read variables file: %w", err)
	}
	return v.MergeJSON(data)
}
