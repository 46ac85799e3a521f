package executors

import (
	"bytes"
	"encoding/json"
)

// decodeParams fills out from task parameters. Parameters arrive either as
// raw JSON (HTTP) or as decoded Go values (catalog, library callers), so both
// go through a JSON round trip.
func decodeParams(params any, out any) error {
	var raw []byte
	switch p := params.(type) {
	case nil:
		raw = []byte("{}")
	case json.RawMessage:
		raw = p
	case []byte:
		raw = p
	default:
		b, err := json.Marshal(p)
		if err != nil {
			return err
		}
		raw = b
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		raw = []byte("{}")
	}
	return json.Unmarshal(raw, out)
}
