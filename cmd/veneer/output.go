package main

import (
	"encoding/json"
	"io"
)

func writeJSON(w io.Writer, v any, pretty bool) error {
	encoder := json.NewEncoder(w)
	if pretty {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(v)
}
