// Package changelog captures changes to a document table in a SQLite log
// table. Triggers record each insert, update and delete together with the
// affected document rendered as relaxed Extended JSON, so the log stays
// readable with plain SQL and the document can be rebuilt from it.
package changelog
