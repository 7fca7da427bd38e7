package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/veneer/pkg/core"
)

// MapFunc indexes a document by calling emit for every row it produces.
type MapFunc func(doc core.Document, emit func(key, value any))

// DefineView registers a view under "ddoc/view".
func (s *Store) DefineView(name string, fn MapFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.views[name] = fn
}

// Query implements core.Database. Rows are ordered by key, then by id.
func (s *Store) Query(ctx context.Context, fun string, opts core.Options) (core.QueryResponse, error) {
	if err := ctx.Err(); err != nil {
		return core.QueryResponse{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return core.QueryResponse{}, core.ErrClosed
	}

	fn, ok := s.views[strings.TrimPrefix(fun, "_design/")]
	if !ok {
		return core.QueryResponse{}, core.NotFound("missing_named_view")
	}

	var rows []core.Row
	for _, id := range s.liveIDs() {
		rec := s.records[id]
		w := rec.Winner()
		doc := rec.Doc(w, nil)
		if err := mapDoc(fn, doc, func(key, value any) {
			rows = append(rows, core.Row{ID: id, Key: key, Value: value})
		}); err != nil {
			return core.QueryResponse{}, err
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if c := Collate(rows[i].Key, rows[j].Key); c != 0 {
			return c < 0
		}
		return rows[i].ID < rows[j].ID
	})

	total := len(rows)
	rows = filterRows(rows, opts)
	rows, offset := page(rows, opts)
	if rows == nil {
		rows = []core.Row{}
	}

	if opts.Has(core.OptIncludeDocs) {
		for i := range rows {
			rec := s.records[rows[i].ID]
			rows[i].Doc = rec.Doc(rec.Winner(), opts)
		}
	}
	return core.QueryResponse{TotalRows: total, Offset: offset, Rows: rows}, nil
}

func mapDoc(fn MapFunc, doc core.Document, emit func(key, value any)) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("map function failed on %s: %v", doc.ID(), r)
		}
	}()
	fn(doc, emit)
	return nil
}

// filterRows applies key, keys, startkey, endkey and descending.
func filterRows(rows []core.Row, opts core.Options) []core.Row {
	if key, ok := opts[core.OptKey]; ok {
		out := rows[:0:0]
		for _, r := range rows {
			if Collate(r.Key, key) == 0 {
				out = append(out, r)
			}
		}
		return out
	}
	if keys := toSlice(opts[core.OptKeys]); keys != nil {
		var out []core.Row
		for _, k := range keys {
			for _, r := range rows {
				if Collate(r.Key, k) == 0 {
					out = append(out, r)
				}
			}
		}
		return out
	}

	desc := opts.Has(core.OptDescending)
	start, hasStart := opts[core.OptStartKey]
	end, hasEnd := opts[core.OptEndKey]
	if desc {
		start, end = end, start
		hasStart, hasEnd = hasEnd, hasStart
	}

	out := rows[:0:0]
	for _, r := range rows {
		if hasStart && Collate(r.Key, start) < 0 {
			continue
		}
		if hasEnd && Collate(r.Key, end) > 0 {
			continue
		}
		out = append(out, r)
	}
	if desc {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

// Collate compares view keys: null < false < true < numbers < strings <
// arrays < objects.
func Collate(a, b any) int {
	ra, rb := collationRank(a), collationRank(b)
	if ra != rb {
		return cmpInt(ra, rb)
	}
	switch ra {
	case rankBool:
		return cmpBool(a.(bool), b.(bool))
	case rankNumber:
		fa, fb := toFloat(a), toFloat(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	case rankString:
		return strings.Compare(a.(string), b.(string))
	case rankArray:
		la, lb := toSlice(a), toSlice(b)
		for i := 0; i < len(la) && i < len(lb); i++ {
			if c := Collate(la[i], lb[i]); c != 0 {
				return c
			}
		}
		return cmpInt(len(la), len(lb))
	case rankObject:
		ma, mb := toMap(a), toMap(b)
		ka, kb := sortedKeys(ma), sortedKeys(mb)
		for i := 0; i < len(ka) && i < len(kb); i++ {
			if c := strings.Compare(ka[i], kb[i]); c != 0 {
				return c
			}
			if c := Collate(ma[ka[i]], mb[kb[i]]); c != 0 {
				return c
			}
		}
		return cmpInt(len(ka), len(kb))
	}
	return 0
}

const (
	rankNull = iota
	rankBool
	rankNumber
	rankString
	rankArray
	rankObject
)

func collationRank(v any) int {
	switch v.(type) {
	case nil:
		return rankNull
	case bool:
		return rankBool
	case int, int32, int64, float32, float64:
		return rankNumber
	case string:
		return rankString
	case []any, []string:
		return rankArray
	default:
		return rankObject
	}
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	case float64:
		return n
	}
	return 0
}

func toSlice(v any) []any {
	switch s := v.(type) {
	case []any:
		return s
	case []string:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out
	}
	return nil
}

func toMap(v any) map[string]any {
	switch m := v.(type) {
	case map[string]any:
		return m
	case core.Document:
		return m
	}
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	}
	return 1
}
