// Package transform rewrites documents as they cross the read/write boundary
// of a core.Database.
//
// A Config declares up to four hooks:
//
//   - Incoming: rewrites a document before it is written (put, bulkDocs).
//   - AfterIncoming: observes a written document merged with its write result.
//   - BeforeOutgoing: may answer a get without touching the database.
//   - Outgoing: rewrites a document after it is read (get, allDocs, bulkGet,
//     query, changes).
//
// Local documents (ids starting with "_local") and bare deletion tombstones
// are never shown to Incoming or Outgoing.
//
// Usage:
//
//	db := memory.New("notes")
//	tdb := transform.New(transform.Config{
//		Incoming: func(ctx context.Context, doc core.Document, args *core.Args, op transform.Op) (*transform.IncomingResult, error) {
//			doc["title"] = strings.ToLower(doc["title"].(string))
//			return &transform.IncomingResult{Doc: doc}, nil
//		},
//	}).Install(db)
//
// The returned database has the same API and result shapes as db; only the
// document content differs.
package transform
