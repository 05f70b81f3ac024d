// Package canonical produces a deterministic byte encoding of arbitrary JSON
// values: object keys sorted lexicographically, no insignificant whitespace,
// UTF-8 throughout. It is the single canonicalizer used to build the
// signing base for envelope signatures (internal/envelope), to verify them,
// and to hash a ticket's inner payload before sealing it (internal/ticket).
//
// This mirrors, at the JSON-value level, the deterministic signing-base
// construction the teacher's RFC 9421 message builder performs over HTTP
// covered components (core/rfc9421/message_builder.go): both exist so that
// two independent implementations signing the same logical content produce
// byte-identical input to the signature.
package canonical

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Marshal encodes v as canonical JSON: any struct or map is first round
// tripped through encoding/json (respecting `json:` tags), then re-emitted
// with object keys sorted and no extraneous whitespace.
func Marshal(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical: marshal: %w", err)
	}

	var generic any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("canonical: decode: %w", err)
	}

	var buf bytes.Buffer
	if err := encode(&buf, generic); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalString is Marshal with a string return for callers that hash or log
// the canonical form directly.
func MarshalString(v any) (string, error) {
	b, err := Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func encode(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := encode(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil

	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encode(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil

	default:
		// json.Number, string, bool, nil all re-marshal deterministically
		// via encoding/json on their own.
		b, err := json.Marshal(val)
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	}
}
