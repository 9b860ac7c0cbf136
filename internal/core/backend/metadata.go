package backend

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Field is one entry of a metadata record.
type Field struct {
	Name  string
	Value string
}

// Metadata is an ordered metadata record. The field set is whatever the
// backend returned; duration, resolution, codec, bitrate and frameRate are
// the commonly seen keys but nothing depends on them.
type Metadata []Field

// Get returns the value of the named field.
func (m Metadata) Get(name string) (string, bool) {
	for _, f := range m {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Names returns field names in record order.
func (m Metadata) Names() []string {
	names := make([]string, 0, len(m))
	for _, f := range m {
		names = append(names, f.Name)
	}
	return names
}

// DecodeMetadata parses a JSON object into an ordered record.
//
// String values are kept verbatim. Other scalars keep their JSON text, null
// becomes the empty string and nested values are kept as compact JSON. A key
// that appears twice keeps its first position and its last value.
func DecodeMetadata(data []byte) (Metadata, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("decode metadata: expected JSON object")
	}

	md := Metadata{}
	index := make(map[string]int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decode metadata key: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("decode metadata: unexpected key token %v", tok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode metadata value for %q: %w", key, err)
		}
		value, err := displayValue(raw)
		if err != nil {
			return nil, fmt.Errorf("decode metadata value for %q: %w", key, err)
		}

		if i, seen := index[key]; seen {
			md[i].Value = value
			continue
		}
		index[key] = len(md)
		md = append(md, Field{Name: key, Value: value})
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("decode metadata: trailing data after object")
	}

	return md, nil
}

func displayValue(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	switch {
	case len(trimmed) == 0:
		return "", nil
	case trimmed[0] == '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", err
		}
		return s, nil
	case bytes.Equal(trimmed, []byte("null")):
		return "", nil
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return "", err
	}
	return buf.String(), nil
}
