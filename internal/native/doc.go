// Package native is the only place that touches the SQLite C API.
//
// The engine is the pure-Go translation in modernc.org/sqlite/lib. Every
// method here maps to exactly one sqlite3_* entry point (or a tiny fixed
// sequence of them) and keeps raw pointers, C strings and the per-handle
// libc.TLS out of the public package.
//
// # Handle lifetime
//
// A DB owns one libc.TLS. Statements prepared from a DB share it. Close uses
// sqlite3_close_v2, so a DB closed while statements are still alive becomes a
// zombie inside the engine; the TLS is kept until the last Stmt is finalized
// and then released.
//
// # Errors
//
// Failures are reported as *Error carrying the extended result code and the
// message from sqlite3_errmsg, read immediately after the failing call.
//
// Nothing in this package is safe for concurrent use.
package native
