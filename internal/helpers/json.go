package helpers

import (
	"bytes"
	"encoding/json"
)

// MarshalJSON encodes v without escaping HTML characters, so paths and selectors reach
// the browser as written.
func MarshalJSON(v any) ([]byte, error) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
