package rpc

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

// EncodeResult marshals a handler result into its structured wire form.
// A nil result becomes JSON null (void commands).
func EncodeResult(v interface{}) (json.RawMessage, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "encode result")
	}
	return raw, nil
}

// EncodeConsole renders a structured result in the canonical human-readable
// form: strings bare (unquoted), numbers and booleans as their literals,
// null empty, arrays and objects as two-space-indented JSON. The layout is
// fixed so scripted console consumers can rely on it byte-for-byte across
// commands.
func EncodeConsole(result json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(result)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", errors.Wrap(err, "decode string result")
		}
		return s, nil
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Indent(&buf, trimmed, "", "  "); err != nil {
			return "", errors.Wrap(err, "indent result")
		}
		return buf.String(), nil
	default:
		return string(trimmed), nil
	}
}
