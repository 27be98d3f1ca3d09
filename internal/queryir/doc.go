// Package queryir provides the query intermediate representation that sits
// between predicate building and SQL rendering.
//
// ARCHITECTURE:
//
//	[resolved entities] → [predicate.Set] → [Query IR] → [querysql]
//
// The IR is deliberately small. It covers exactly what a question can ask
// of a fixed tabular dataset:
//   - Select(database, from, columns, filter, order, limit) - row access
//   - Pragma(database, name, arg) - metadata introspection
//   - Predicates: Compare, In, And
//   - SUM and DISTINCT projections for group totals and enumeration
//
// It EXCLUDES joins, OR predicates, subqueries, GROUP BY and anything that
// writes. There is no way to express a write statement in this package.
//
// SEALED INTERFACES:
//
// Query and Predicate are sealed interfaces using the marker method pattern.
// Only types in this package can implement them, so the SQL backend can
// switch exhaustively:
//
//	switch q := query.(type) {
//	case Select:
//	    // row access
//	case Pragma:
//	    // introspection
//	}
//
// TRUST BOUNDARY:
//
// Database, table and column names in the IR always come from the
// vocabulary registry. Only literal values (ir.Value) originate from user
// text, and backends must quote or bind them.
package queryir
