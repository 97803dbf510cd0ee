// Package engine binds the BSON document engine to the modernc.org/sqlite
// driver: opening connections, registering the bson_* SQL scalar functions
// and the bson_each virtual table. Documents are stored as plain BLOB
// columns; every function opens (and validates) its BLOB argument on each
// call and never keeps state between calls.
package engine
