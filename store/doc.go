// Package store keeps BSON documents in a SQLite table. It includes:
//   - Document model and Store interface
//   - SQLiteStore: durable storage keyed by id, with path and identity lookups
//   - Schema helpers to create the docs table
package store
