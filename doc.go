// Package veneer is the Composition Root for the veneer library.
//
// It connects the transform layer with the reference database backends
// (memory, filesystem, remote HTTP) using functional options.
//
// Philosophy:
//
// A transform is a set of hooks that rewrites documents as they cross the
// read/write boundary of a database. Callers keep using the plain database
// API; only document content changes, never the shape of results.
//
// Features:
//
//   - **Four hooks**: incoming, afterIncoming, beforeOutgoing and outgoing over
//     get, put, bulkDocs, allDocs, bulkGet, query and changes.
//   - **Stock transforms**: field encryption, compression, id scoping and
//     chaining in `pkg/transforms`.
//   - **Typed Retrieval**: generic wrapper (`NewTypedRepository[T]`) over a
//     transformed database.
//   - **Default Adapter (FS)**: documents mirrored as plain JSON or YAML files,
//     with external edits picked up by a filesystem watcher.
//
// Usage:
//
//	cfg, err := transforms.Encrypt(key, "secret")
//
//	db, err := veneer.Open("./data",
//		veneer.WithTransform(cfg),
//		veneer.WithLogger(logger),
//	)
//
//	_, err = db.Put(ctx, veneer.Document{"_id": "a", "secret": "..."}, nil)
package veneer
