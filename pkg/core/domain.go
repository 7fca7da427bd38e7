// Package core holds the document model and the contract a database backend
// must satisfy to be intercepted.
package core

import (
	"fmt"
	"strings"
)

// ReservedPrefix marks document fields owned by the database (e.g. _id, _rev).
const ReservedPrefix = "_"

// LocalPrefix marks documents that are never replicated nor listed.
const LocalPrefix = "_local"

// Reserved field names.
const (
	FieldID        = "_id"
	FieldRev       = "_rev"
	FieldDeleted   = "_deleted"
	FieldRevisions = "_revisions"
	FieldRevsInfo  = "_revs_info"
	FieldConflicts = "_conflicts"
)

// Document is the central entity of the domain.
// It is a free-form JSON object identified by its _id field.
type Document map[string]any

// ID returns the document identifier, or "" when missing or not a string.
func (d Document) ID() string {
	id, _ := d[FieldID].(string)
	return id
}

// Rev returns the current revision token, or "".
func (d Document) Rev() string {
	rev, _ := d[FieldRev].(string)
	return rev
}

// Deleted reports whether the document carries a truthy deletion marker.
// Unlike options, the strings "false" and "0" count as set.
func (d Document) Deleted() bool {
	return truthyValue(d[FieldDeleted])
}

// IsReservedKey reports whether key belongs to the database rather than the user.
func IsReservedKey(key string) bool {
	return strings.HasPrefix(key, ReservedPrefix)
}

// UserFields returns the number of non-reserved fields.
func (d Document) UserFields() int {
	n := 0
	for k := range d {
		if !IsReservedKey(k) {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the document.
// Nested maps and slices decoded from JSON are copied too.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Document:
		return t.Clone()
	case map[string]any:
		return map[string]any(Document(t).Clone())
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}

// Options carries per-call options, using the database's query parameter names.
type Options map[string]any

// Option names understood by the reference backends and the transform layer.
const (
	OptRev         = "rev"
	OptRevs        = "revs"
	OptRevsInfo    = "revs_info"
	OptOpenRevs    = "open_revs"
	OptIncludeDocs = "include_docs"
	OptNewEdits    = "new_edits"
	OptSince       = "since"
	OptLimit       = "limit"
	OptLive        = "live"
	OptDocIDs      = "doc_ids"
	OptKeys        = "keys"
	OptStartKey    = "startkey"
	OptEndKey      = "endkey"
	OptDescending  = "descending"
	OptFilterGlob  = "filter_glob"
	OptConflicts   = "conflicts"
	OptKey         = "key"
	OptSkip        = "skip"
)

// Has reports whether the option is present and truthy.
func (o Options) Has(name string) bool {
	if o == nil {
		return false
	}
	return Truthy(o[name])
}

// Bool returns the option as a bool, falling back to def when absent.
func (o Options) Bool(name string, def bool) bool {
	if o == nil {
		return def
	}
	v, ok := o[name]
	if !ok || v == nil {
		return def
	}
	return Truthy(v)
}

// String returns the option as a string.
func (o Options) String(name string) string {
	if o == nil {
		return ""
	}
	switch v := o[name].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Int returns the option as an int, falling back to def when absent or invalid.
func (o Options) Int(name string, def int) int {
	if o == nil {
		return def
	}
	switch v := o[name].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return def
}

// Strings returns the option as a string list (e.g. doc_ids, keys, open_revs).
func (o Options) Strings(name string) []string {
	if o == nil {
		return nil
	}
	switch v := o[name].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Clone returns a shallow copy of the options.
func (o Options) Clone() Options {
	out := make(Options, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// truthyValue is the truthiness of a document field: only null, false,
// zero and the empty string are falsy.
func truthyValue(v any) bool {
	switch t := v.(type) {
	case string:
		return t != ""
	default:
		return Truthy(v)
	}
}

// Truthy mirrors the loose truthiness of option values, which may arrive as
// query parameters: the strings "false" and "0" are falsy.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != "" && t != "false" && t != "0"
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	default:
		return true
	}
}
