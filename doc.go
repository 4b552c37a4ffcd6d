// Package sqlitell is a low-level interface to SQLite.
//
// It exposes the engine's own model with as little in between as possible:
// a Conn is one database handle, a Stmt is one compiled statement, and a
// Value is one dynamically typed cell.
//
// STATEMENT LIFECYCLE:
//
//	Prepare --> Ready --Step--> Row --Step--> ... --Step--> Done
//	              ^               |                          |
//	              +----Reset------+-----------Reset----------+
//
// Parameters are bound only in Ready. Columns are read only in Row, and a
// value read is a copy owned by the caller. Finalize is accepted in every
// state.
//
// LIFETIMES:
//
// Prepare does not tie a Stmt to its Conn. This is what allows a long-lived
// statement cache (see package stmtcache) to sit next to the connection,
// and it means the caller must finalize every statement before closing the
// connection. Conn.WithStmt is the scoped alternative for statements that
// live for one call.
//
// ERRORS:
//
// Every failure is an *Error carrying the failed Op, a Kind and, for engine
// failures, the extended result code and message. Kinds are errors
// themselves, so
//
//	errors.Is(err, sqlitell.KindConstraint)
//
// matches through any wrapping. Busy and locked errors are returned to the
// caller; nothing is retried.
//
// CONCURRENCY:
//
// A Conn and its statements must be used from one goroutine at a time.
// Different connections are independent.
package sqlitell
