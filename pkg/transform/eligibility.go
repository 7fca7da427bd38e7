package transform

import (
	"strings"

	"github.com/aretw0/veneer/pkg/core"
)

// IsLocalID reports whether id names a local document.
func IsLocalID(id string) bool {
	return strings.HasPrefix(id, core.LocalPrefix)
}

// IsUntransformable reports whether doc must bypass Incoming and Outgoing.
//
// Local documents always bypass. A deleted document bypasses only when it is
// a bare tombstone: one user field attached makes it transformable again.
// The verdict depends on the current state of doc and must not be cached.
func IsUntransformable(doc core.Document) bool {
	if id, ok := doc[core.FieldID].(string); ok && IsLocalID(id) {
		return true
	}
	if doc.Deleted() {
		return doc.UserFields() == 0
	}
	return false
}
