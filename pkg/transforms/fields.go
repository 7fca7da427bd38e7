package transforms

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/veneer/pkg/core"
)

// fieldCodec seals and opens single field values. Sealed values are strings
// starting with prefix.
type fieldCodec struct {
	prefix string
	seal   func(field string, plain []byte) ([]byte, error)
	open   func(field string, sealed []byte) ([]byte, error)
}

// targets returns the fields of doc a transform applies to: the listed ones
// that are present, or every user field when none is listed.
func targets(doc core.Document, fields []string) []string {
	if len(fields) == 0 {
		out := make([]string, 0, len(doc))
		for k := range doc {
			if !core.IsReservedKey(k) {
				out = append(out, k)
			}
		}
		sort.Strings(out)
		return out
	}
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, ok := doc[f]; ok && !core.IsReservedKey(f) {
			out = append(out, f)
		}
	}
	return out
}

// sealDoc seals exactly the named fields of a copy of doc.
func (c fieldCodec) sealDoc(doc core.Document, fields []string) (core.Document, error) {
	out := doc.Clone()
	for _, f := range fields {
		if _, ok := out[f]; !ok || c.isSealed(out[f]) {
			continue
		}
		plain, err := json.Marshal(out[f])
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f, err)
		}
		sealed, err := c.seal(f, plain)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f, err)
		}
		out[f] = c.prefix + base64.RawStdEncoding.EncodeToString(sealed)
	}
	return out, nil
}

func (c fieldCodec) openDoc(doc core.Document) (core.Document, error) {
	var out core.Document
	for k, v := range doc {
		if core.IsReservedKey(k) || !c.isSealed(v) {
			continue
		}
		if out == nil {
			out = doc.Clone()
		}
		raw, err := base64.RawStdEncoding.DecodeString(strings.TrimPrefix(v.(string), c.prefix))
		if err != nil {
			return nil, fmt.Errorf("field %s: malformed value: %w", k, err)
		}
		plain, err := c.open(k, raw)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		var value any
		if err := json.Unmarshal(plain, &value); err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		out[k] = value
	}
	if out == nil {
		return doc, nil
	}
	return out, nil
}

// encodedSize returns the JSON length of v, or 0 when it can not be encoded.
func encodedSize(v any) int {
	data, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return len(data)
}

func (c fieldCodec) isSealed(v any) bool {
	s, ok := v.(string)
	return ok && strings.HasPrefix(s, c.prefix)
}
