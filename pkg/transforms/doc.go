// Package transforms holds ready-made hook sets for the transform layer:
// field encryption, field compression, scoping by document id and chaining
// of several configurations.
//
// Every stock transform leaves reserved fields alone and works on a copy of
// the document, so callers keep their own values untouched.
package transforms
