// Package journal records conversion runs and the episodes they flushed in a
// SQLite database so operators can see what was produced, when, and from
// which dataset.
//
// The schema is embedded and versioned; a database written by a different
// schema version is rejected with ErrSchemaMismatch rather than migrated.
// Writes retry briefly on SQLITE_BUSY so two CLI invocations sharing a journal
// do not fail each other.
package journal
