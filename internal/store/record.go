package store

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/aretw0/veneer/pkg/core"
)

// Revision is one node of a document's revision tree.
// Body holds the user fields only; a nil Body on a non-deleted revision means
// the content was never received (a replicated ancestor) or was compacted.
type Revision struct {
	Rev     string        `json:"rev"`
	Parent  string        `json:"parent,omitempty"`
	Deleted bool          `json:"deleted,omitempty"`
	Body    core.Document `json:"body"`
}

// Available reports whether the revision content can be served.
func (r *Revision) Available() bool {
	return r.Body != nil || r.Deleted
}

// Record is the revision tree of one document.
type Record struct {
	ID     string               `json:"id"`
	Revs   map[string]*Revision `json:"revs"`
	Leaves []string             `json:"leaves"`
	Seq    int64                `json:"seq"`
}

func newRecord(id string) *Record {
	return &Record{ID: id, Revs: make(map[string]*Revision)}
}

// clone copies the tree structure. Revisions are immutable once added and
// are shared.
func (r *Record) clone() *Record {
	out := &Record{
		ID:     r.ID,
		Revs:   make(map[string]*Revision, len(r.Revs)),
		Leaves: append([]string(nil), r.Leaves...),
		Seq:    r.Seq,
	}
	for k, v := range r.Revs {
		out.Revs[k] = v
	}
	return out
}

// add inserts rev as a new leaf, replacing its parent among the leaves.
func (r *Record) add(rev *Revision) {
	r.Revs[rev.Rev] = rev
	leaves := make([]string, 0, len(r.Leaves)+1)
	for _, l := range r.Leaves {
		if l != rev.Parent && l != rev.Rev {
			leaves = append(leaves, l)
		}
	}
	r.Leaves = append(leaves, rev.Rev)
	sortRevs(r.Leaves)
}

// isLeaf reports whether rev is a current leaf.
func (r *Record) isLeaf(rev string) bool {
	for _, l := range r.Leaves {
		if l == rev {
			return true
		}
	}
	return false
}

// Winner returns the winning leaf: live leaves beat deleted ones, then the
// highest generation wins, then the highest hash.
func (r *Record) Winner() *Revision {
	var best *Revision
	for _, l := range r.Leaves {
		rev := r.Revs[l]
		if rev == nil {
			continue
		}
		if best == nil || beats(rev, best) {
			best = rev
		}
	}
	return best
}

func beats(a, b *Revision) bool {
	if a.Deleted != b.Deleted {
		return !a.Deleted
	}
	return compareRevs(a.Rev, b.Rev) > 0
}

// Conflicts lists the live leaves that lost against the winner.
func (r *Record) Conflicts() []string {
	w := r.Winner()
	var out []string
	for _, l := range r.Leaves {
		rev := r.Revs[l]
		if rev == nil || rev == w || rev.Deleted {
			continue
		}
		out = append(out, l)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out
}

// Path returns rev followed by its known ancestors, newest first.
func (r *Record) Path(rev string) []string {
	var out []string
	seen := make(map[string]bool)
	for rev != "" && !seen[rev] {
		seen[rev] = true
		out = append(out, rev)
		node, ok := r.Revs[rev]
		if !ok {
			break
		}
		rev = node.Parent
	}
	return out
}

// Doc materializes rev as a document. Options select the revision metadata
// to attach (revs, revs_info, conflicts).
func (r *Record) Doc(rev *Revision, opts core.Options) core.Document {
	doc := rev.Body.Clone()
	if doc == nil {
		doc = core.Document{}
	}
	doc[core.FieldID] = r.ID
	doc[core.FieldRev] = rev.Rev
	if rev.Deleted {
		doc[core.FieldDeleted] = true
	}

	if opts.Has(core.OptRevs) {
		path := r.Path(rev.Rev)
		ids := make([]any, len(path))
		for i, p := range path {
			_, hash, _ := ParseRev(p)
			ids[i] = hash
		}
		gen, _, _ := ParseRev(rev.Rev)
		doc[core.FieldRevisions] = map[string]any{"start": gen, "ids": ids}
	}
	if opts.Has(core.OptRevsInfo) {
		var info []any
		for _, p := range r.Path(rev.Rev) {
			status := "missing"
			if node, ok := r.Revs[p]; ok {
				switch {
				case node.Deleted:
					status = "deleted"
				case node.Body != nil:
					status = "available"
				}
			}
			info = append(info, map[string]any{"rev": p, "status": status})
		}
		doc[core.FieldRevsInfo] = info
	}
	if opts.Has(core.OptConflicts) {
		if c := r.Conflicts(); len(c) > 0 {
			conflicts := make([]any, len(c))
			for i, v := range c {
				conflicts[i] = v
			}
			doc[core.FieldConflicts] = conflicts
		}
	}
	return doc
}

// ParseRev splits a revision token "N-hash" into generation and hash.
func ParseRev(rev string) (int, string, error) {
	gen, hash, ok := strings.Cut(rev, "-")
	if !ok || hash == "" {
		return 0, "", fmt.Errorf("invalid rev format %q", rev)
	}
	n, err := strconv.Atoi(gen)
	if err != nil || n < 0 {
		return 0, "", fmt.Errorf("invalid rev generation %q", rev)
	}
	return n, hash, nil
}

// NewRev derives the revision following parent for the given content.
// The hash is deterministic, so replaying the same edit yields the same rev.
func NewRev(parent string, body core.Document, deleted bool) string {
	gen := 0
	if parent != "" {
		gen, _, _ = ParseRev(parent)
	}
	payload, _ := json.Marshal(struct {
		Parent  string        `json:"parent"`
		Deleted bool          `json:"deleted"`
		Body    core.Document `json:"body"`
	}{parent, deleted, body})
	sum := md5.Sum(payload)
	return fmt.Sprintf("%d-%s", gen+1, hex.EncodeToString(sum[:]))
}

func compareRevs(a, b string) int {
	ga, ha, _ := ParseRev(a)
	gb, hb, _ := ParseRev(b)
	switch {
	case ga != gb:
		if ga < gb {
			return -1
		}
		return 1
	default:
		return strings.Compare(ha, hb)
	}
}

func sortRevs(revs []string) {
	sort.Slice(revs, func(i, j int) bool {
		return compareRevs(revs[i], revs[j]) < 0
	})
}

// Body strips the reserved fields from a document.
func Body(doc core.Document) core.Document {
	body := make(core.Document, len(doc))
	for k, v := range doc {
		if core.IsReservedKey(k) {
			continue
		}
		body[k] = v
	}
	return body.Clone()
}
