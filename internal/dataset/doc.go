// Package dataset is the dataset collaborator: table listing, read-only
// statement execution and schema introspection over per-database SQLite
// files.
//
// # Read-only access
//
// Store opens every database with mode=ro and query_only, and checks each
// statement with querysql.Guard before it reaches the driver. Only SELECT
// and introspection PRAGMA statements run.
//
// # Reply shapes
//
// Execute returns decoded records. Reply.Render formats them the way the
// stdio server sends them: one tuple literal per line, or NoDataText for
// an empty result.
//
// # Database Configuration
//
//   - mode=ro: files are never created or written
//   - _query_only: the connection refuses writes
//   - _busy_timeout=5000: wait for locks up to 5 seconds
//
// Writer builds database files from registry tables for fixtures and CSV
// loads; it is never used on the question path.
package dataset
