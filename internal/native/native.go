package native

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"unsafe"

	"modernc.org/libc"
	"modernc.org/libc/sys/types"
	lib "modernc.org/sqlite/lib"
)

// Version is the engine version in the format "X.Y.Z".
const Version = lib.SQLITE_VERSION

// VersionNumber is X*1000000 + Y*1000 + Z.
const VersionNumber = lib.SQLITE_VERSION_NUMBER

// Result codes used by callers of this package.
const (
	OK       int32 = lib.SQLITE_OK
	Misuse   int32 = lib.SQLITE_MISUSE
	Range    int32 = lib.SQLITE_RANGE
	NoMem    int32 = lib.SQLITE_NOMEM
	Row      int32 = lib.SQLITE_ROW
	Done     int32 = lib.SQLITE_DONE
	Mismatch int32 = lib.SQLITE_MISMATCH
	TooBig   int32 = lib.SQLITE_TOOBIG
)

// Open flags, https://www.sqlite.org/c3ref/c_open_autoproxy.html
const (
	OpenReadOnly     int32 = lib.SQLITE_OPEN_READONLY
	OpenReadWrite    int32 = lib.SQLITE_OPEN_READWRITE
	OpenCreate       int32 = lib.SQLITE_OPEN_CREATE
	OpenMemory       int32 = lib.SQLITE_OPEN_MEMORY
	OpenNoMutex      int32 = lib.SQLITE_OPEN_NOMUTEX
	OpenFullMutex    int32 = lib.SQLITE_OPEN_FULLMUTEX
	OpenSharedCache  int32 = lib.SQLITE_OPEN_SHAREDCACHE
	OpenPrivateCache int32 = lib.SQLITE_OPEN_PRIVATECACHE
)

// Fundamental datatypes, https://www.sqlite.org/c3ref/c_blob.html
const (
	TypeInteger int32 = lib.SQLITE_INTEGER
	TypeFloat   int32 = lib.SQLITE_FLOAT
	TypeText    int32 = lib.SQLITE_TEXT
	TypeBlob    int32 = lib.SQLITE_BLOB
	TypeNull    int32 = lib.SQLITE_NULL
)

const ptrSize = types.Size_t(unsafe.Sizeof(uintptr(0)))

// Error is a non-success result code together with the engine's message.
type Error struct {
	Code int32
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%d)", e.Msg, e.Code)
}

// C strings end at the first NUL; anything after it would be dropped.
func checkNUL(what, s string) error {
	if strings.IndexByte(s, 0) >= 0 {
		return &Error{Code: Misuse, Msg: what + " contains a NUL byte"}
	}
	return nil
}

func checkSize(n int) error {
	if n > math.MaxInt32 {
		return &Error{Code: TooBig, Msg: "string or blob too big"}
	}
	return nil
}

// DB is an sqlite3* database connection object.
// https://sqlite.org/c3ref/sqlite3.html
type DB struct {
	tls    *libc.TLS
	handle uintptr
	closed bool
	live   int // statements prepared and not yet finalized
}

// Open is sqlite3_open_v2 followed by sqlite3_extended_result_codes.
//
// An error opening the database can still produce a handle; it is closed
// here before the error is returned.
//
// https://sqlite.org/c3ref/open.html
func Open(path string, flags int32) (_ *DB, err error) {
	if err := checkNUL("path", path); err != nil {
		return nil, err
	}
	tls := libc.NewTLS()
	defer func() {
		if err != nil {
			tls.Close()
		}
	}()

	cpath, err := libc.CString(path)
	if err != nil {
		return nil, err
	}
	defer libc.Xfree(tls, cpath)
	pdb, err := malloc(tls, ptrSize)
	if err != nil {
		return nil, err
	}
	defer libc.Xfree(tls, pdb)

	rc := lib.Xsqlite3_open_v2(tls, cpath, pdb, flags, 0)
	handle := *(*uintptr)(unsafe.Pointer(pdb))
	if handle == 0 {
		// Not enough memory to allocate the sqlite3 object.
		return nil, &Error{Code: rc, Msg: libc.GoString(lib.Xsqlite3_errstr(tls, rc))}
	}
	if rc != OK {
		e := &Error{
			Code: lib.Xsqlite3_extended_errcode(tls, handle),
			Msg:  libc.GoString(lib.Xsqlite3_errmsg(tls, handle)),
		}
		if e.Code == OK {
			e.Code = rc
		}
		lib.Xsqlite3_close_v2(tls, handle)
		return nil, e
	}
	lib.Xsqlite3_extended_result_codes(tls, handle, 1)
	return &DB{tls: tls, handle: handle}, nil
}

// Close is sqlite3_close_v2. Calling it twice is a misuse error.
// https://sqlite.org/c3ref/close.html
func (db *DB) Close() error {
	if db.closed {
		return &Error{Code: Misuse, Msg: "database handle already closed"}
	}
	db.closed = true
	busyHandlers.Delete(db.handle)
	rc := lib.Xsqlite3_close_v2(db.tls, db.handle)
	var err error
	if rc != OK {
		err = &Error{Code: rc, Msg: libc.GoString(lib.Xsqlite3_errstr(db.tls, rc))}
	}
	db.release()
	return err
}

// Closed reports whether Close has been called.
func (db *DB) Closed() bool { return db.closed }

// Live reports the number of statements not yet finalized.
func (db *DB) Live() int { return db.live }

func (db *DB) release() {
	if db.closed && db.live == 0 && db.tls != nil {
		db.tls.Close()
		db.tls = nil
	}
}

// errorf captures the extended code and message for a failed call. It must
// run before any other call on the handle.
func (db *DB) errorf(rc int32) error {
	if rc == OK {
		return nil
	}
	return &Error{Code: rc, Msg: libc.GoString(lib.Xsqlite3_errmsg(db.tls, db.handle))}
}

// Changes is sqlite3_changes.
// https://sqlite.org/c3ref/changes.html
func (db *DB) Changes() int {
	return int(lib.Xsqlite3_changes(db.tls, db.handle))
}

// TotalChanges is sqlite3_total_changes.
// https://sqlite.org/c3ref/total_changes.html
func (db *DB) TotalChanges() int {
	return int(lib.Xsqlite3_total_changes(db.tls, db.handle))
}

// LastInsertRowID is sqlite3_last_insert_rowid.
// https://sqlite.org/c3ref/last_insert_rowid.html
func (db *DB) LastInsertRowID() int64 {
	return lib.Xsqlite3_last_insert_rowid(db.tls, db.handle)
}

// Autocommit is sqlite3_get_autocommit.
// https://sqlite.org/c3ref/get_autocommit.html
func (db *DB) Autocommit() bool {
	return lib.Xsqlite3_get_autocommit(db.tls, db.handle) != 0
}

// BusyTimeout is sqlite3_busy_timeout. It replaces any busy handler.
// https://www.sqlite.org/c3ref/busy_timeout.html
func (db *DB) BusyTimeout(ms int32) {
	busyHandlers.Delete(db.handle)
	lib.Xsqlite3_busy_timeout(db.tls, db.handle, ms)
}

var busyHandlers sync.Map // sqlite3* -> func(int) bool

// SetBusyHandler is sqlite3_busy_handler. A nil handler removes it.
// https://www.sqlite.org/c3ref/busy_handler.html
func (db *DB) SetBusyHandler(handler func(attempt int) bool) {
	if handler == nil {
		lib.Xsqlite3_busy_handler(db.tls, db.handle, 0, 0)
		busyHandlers.Delete(db.handle)
		return
	}
	busyHandlers.Store(db.handle, handler)
	lib.Xsqlite3_busy_handler(db.tls, db.handle, cFuncPointer(busyHandlerCallback), db.handle)
}

func busyHandlerCallback(tls *libc.TLS, pArg uintptr, count int32) int32 {
	val, _ := busyHandlers.Load(pArg)
	if val == nil {
		return 0
	}
	if !val.(func(int) bool)(int(count)) {
		return 0
	}
	return 1
}

// Prepare is sqlite3_prepare_v2. It compiles the first statement in query
// and returns the unconsumed remainder.
//
// A query holding only whitespace or comments yields a nil Stmt and no error.
// A query containing a NUL byte is a misuse error and nothing is compiled.
//
// https://www.sqlite.org/c3ref/prepare.html
func (db *DB) Prepare(query string) (*Stmt, string, error) {
	if err := checkNUL("SQL", query); err != nil {
		return nil, "", err
	}
	cquery, err := libc.CString(query)
	if err != nil {
		return nil, "", err
	}
	defer libc.Xfree(db.tls, cquery)
	pstmt, err := malloc(db.tls, ptrSize)
	if err != nil {
		return nil, "", err
	}
	defer libc.Xfree(db.tls, pstmt)
	ptail, err := malloc(db.tls, ptrSize)
	if err != nil {
		return nil, "", err
	}
	defer libc.Xfree(db.tls, ptail)

	rc := lib.Xsqlite3_prepare_v2(db.tls, db.handle, cquery, -1, pstmt, ptail)
	if rc != OK {
		return nil, "", db.errorf(rc)
	}

	var rest string
	if tail := *(*uintptr)(unsafe.Pointer(ptail)); tail != 0 {
		if off := int(tail - cquery); off >= 0 && off < len(query) {
			rest = query[off:]
		}
	}
	handle := *(*uintptr)(unsafe.Pointer(pstmt))
	if handle == 0 {
		return nil, rest, nil
	}
	db.live++
	return &Stmt{db: db, handle: handle}, rest, nil
}

// Stmt is an sqlite3_stmt* prepared statement object.
// https://sqlite.org/c3ref/stmt.html
type Stmt struct {
	db     *DB
	handle uintptr
}

// DB returns the database the statement was prepared on.
func (s *Stmt) DB() *DB { return s.db }

// Finalized reports whether Finalize has been called.
func (s *Stmt) Finalized() bool { return s.handle == 0 }

// Finalize is sqlite3_finalize. The handle is released whatever the result.
// https://sqlite.org/c3ref/finalize.html
func (s *Stmt) Finalize() error {
	if s.handle == 0 {
		return nil
	}
	db := s.db
	rc := lib.Xsqlite3_finalize(db.tls, s.handle)
	s.handle = 0
	var err error
	if rc != OK {
		if db.closed {
			// The connection may have been freed by this very call.
			err = &Error{Code: rc, Msg: libc.GoString(lib.Xsqlite3_errstr(db.tls, rc))}
		} else {
			err = db.errorf(rc)
		}
	}
	db.live--
	db.release()
	return err
}

// Reset is sqlite3_reset.
// https://www.sqlite.org/c3ref/reset.html
func (s *Stmt) Reset() error {
	return s.db.errorf(lib.Xsqlite3_reset(s.db.tls, s.handle))
}

// ClearBindings is sqlite3_clear_bindings.
// https://www.sqlite.org/c3ref/clear_bindings.html
func (s *Stmt) ClearBindings() error {
	return s.db.errorf(lib.Xsqlite3_clear_bindings(s.db.tls, s.handle))
}

// Step is sqlite3_step.
// For SQLITE_ROW it returns (true, nil), for SQLITE_DONE (false, nil).
// https://www.sqlite.org/c3ref/step.html
func (s *Stmt) Step() (bool, error) {
	switch rc := lib.Xsqlite3_step(s.db.tls, s.handle); rc {
	case Row:
		return true, nil
	case Done:
		return false, nil
	default:
		return false, s.db.errorf(rc)
	}
}

// SQL is sqlite3_sql.
// https://www.sqlite.org/c3ref/expanded_sql.html
func (s *Stmt) SQL() string {
	return libc.GoString(lib.Xsqlite3_sql(s.db.tls, s.handle))
}

// ReadOnly is sqlite3_stmt_readonly.
// https://www.sqlite.org/c3ref/stmt_readonly.html
func (s *Stmt) ReadOnly() bool {
	return lib.Xsqlite3_stmt_readonly(s.db.tls, s.handle) != 0
}

// BindInt64 is sqlite3_bind_int64.
// https://sqlite.org/c3ref/bind_blob.html
func (s *Stmt) BindInt64(param int, v int64) error {
	return s.db.errorf(lib.Xsqlite3_bind_int64(s.db.tls, s.handle, int32(param), v))
}

// BindDouble is sqlite3_bind_double.
func (s *Stmt) BindDouble(param int, v float64) error {
	return s.db.errorf(lib.Xsqlite3_bind_double(s.db.tls, s.handle, int32(param), v))
}

// BindNull is sqlite3_bind_null.
func (s *Stmt) BindNull(param int) error {
	return s.db.errorf(lib.Xsqlite3_bind_null(s.db.tls, s.handle, int32(param)))
}

// BindZeroBlob is sqlite3_bind_zeroblob.
func (s *Stmt) BindZeroBlob(param int, n int) error {
	if err := checkSize(n); err != nil {
		return err
	}
	return s.db.errorf(lib.Xsqlite3_bind_zeroblob(s.db.tls, s.handle, int32(param), int32(n)))
}

var (
	emptyCString = mustCString("")
	freeFuncPtr  = cFuncPointer(libc.Xfree)
)

const sqliteStatic uintptr = 0

// BindText is sqlite3_bind_text. The engine receives its own copy of v.
func (s *Stmt) BindText(param int, v string) error {
	if err := checkSize(len(v)); err != nil {
		return err
	}
	size := len(v)
	if size == 0 {
		size = 1
	}
	p, err := malloc(s.db.tls, types.Size_t(size))
	if err != nil {
		return err
	}
	copy(unsafe.Slice((*byte)(unsafe.Pointer(p)), size), v)
	return s.db.errorf(lib.Xsqlite3_bind_text(s.db.tls, s.handle, int32(param), p, int32(len(v)), freeFuncPtr))
}

// BindBlob is sqlite3_bind_blob. An empty v binds a zero-length blob, not NULL.
func (s *Stmt) BindBlob(param int, v []byte) error {
	if err := checkSize(len(v)); err != nil {
		return err
	}
	if len(v) == 0 {
		return s.db.errorf(lib.Xsqlite3_bind_blob(s.db.tls, s.handle, int32(param), emptyCString, 0, sqliteStatic))
	}
	p, err := malloc(s.db.tls, types.Size_t(len(v)))
	if err != nil {
		return err
	}
	copy(unsafe.Slice((*byte)(unsafe.Pointer(p)), len(v)), v)
	return s.db.errorf(lib.Xsqlite3_bind_blob(s.db.tls, s.handle, int32(param), p, int32(len(v)), freeFuncPtr))
}

// BindParameterCount is sqlite3_bind_parameter_count.
// https://sqlite.org/c3ref/bind_parameter_count.html
func (s *Stmt) BindParameterCount() int {
	return int(lib.Xsqlite3_bind_parameter_count(s.db.tls, s.handle))
}

// BindParameterName is sqlite3_bind_parameter_name. Nameless parameters
// report "".
func (s *Stmt) BindParameterName(param int) string {
	p := lib.Xsqlite3_bind_parameter_name(s.db.tls, s.handle, int32(param))
	if p == 0 {
		return ""
	}
	return libc.GoString(p)
}

// BindParameterIndex is sqlite3_bind_parameter_index. Zero means no match.
// https://sqlite.org/c3ref/bind_parameter_index.html
func (s *Stmt) BindParameterIndex(name string) (int, error) {
	if strings.IndexByte(name, 0) >= 0 {
		return 0, nil
	}
	cname, err := libc.CString(name)
	if err != nil {
		return 0, err
	}
	defer libc.Xfree(s.db.tls, cname)
	return int(lib.Xsqlite3_bind_parameter_index(s.db.tls, s.handle, cname)), nil
}

// ColumnCount is sqlite3_column_count.
// https://sqlite.org/c3ref/column_count.html
func (s *Stmt) ColumnCount() int {
	return int(lib.Xsqlite3_column_count(s.db.tls, s.handle))
}

// ColumnName is sqlite3_column_name. ok is false if the engine could not
// allocate the name.
// https://sqlite.org/c3ref/column_name.html
func (s *Stmt) ColumnName(col int) (string, bool) {
	p := lib.Xsqlite3_column_name(s.db.tls, s.handle, int32(col))
	if p == 0 {
		return "", false
	}
	return libc.GoString(p), true
}

// ColumnDeclType is sqlite3_column_decltype.
// https://sqlite.org/c3ref/column_decltype.html
func (s *Stmt) ColumnDeclType(col int) string {
	p := lib.Xsqlite3_column_decltype(s.db.tls, s.handle, int32(col))
	if p == 0 {
		return ""
	}
	return libc.GoString(p)
}

// ColumnType is sqlite3_column_type.
// https://www.sqlite.org/c3ref/column_blob.html
func (s *Stmt) ColumnType(col int) int32 {
	return lib.Xsqlite3_column_type(s.db.tls, s.handle, int32(col))
}

// ColumnInt64 is sqlite3_column_int64.
func (s *Stmt) ColumnInt64(col int) int64 {
	return lib.Xsqlite3_column_int64(s.db.tls, s.handle, int32(col))
}

// ColumnDouble is sqlite3_column_double.
func (s *Stmt) ColumnDouble(col int) float64 {
	return lib.Xsqlite3_column_double(s.db.tls, s.handle, int32(col))
}

// ColumnText is sqlite3_column_text followed by sqlite3_column_bytes. The
// bytes are copied out of engine memory. ok is false when the engine
// returned a NULL pointer.
func (s *Stmt) ColumnText(col int) (b []byte, ok bool) {
	p := lib.Xsqlite3_column_text(s.db.tls, s.handle, int32(col))
	if p == 0 {
		return nil, false
	}
	n := int(lib.Xsqlite3_column_bytes(s.db.tls, s.handle, int32(col)))
	return copyOut(p, n), true
}

// ColumnBlob is sqlite3_column_blob followed by sqlite3_column_bytes. The
// length comes from the engine, never from a terminator.
func (s *Stmt) ColumnBlob(col int) []byte {
	p := lib.Xsqlite3_column_blob(s.db.tls, s.handle, int32(col))
	if p == 0 {
		return nil
	}
	n := int(lib.Xsqlite3_column_bytes(s.db.tls, s.handle, int32(col)))
	return copyOut(p, n)
}

// ColumnBytes is sqlite3_column_bytes.
func (s *Stmt) ColumnBytes(col int) int {
	return int(lib.Xsqlite3_column_bytes(s.db.tls, s.handle, int32(col)))
}

// ColumnBlobInto copies at most len(buf) bytes of the column into buf and
// reports how many were copied. Nothing is allocated.
func (s *Stmt) ColumnBlobInto(col int, buf []byte) int {
	p := lib.Xsqlite3_column_blob(s.db.tls, s.handle, int32(col))
	if p == 0 {
		return 0
	}
	n := int(lib.Xsqlite3_column_bytes(s.db.tls, s.handle, int32(col)))
	return copy(buf, unsafe.Slice((*byte)(unsafe.Pointer(p)), n))
}

func copyOut(p uintptr, n int) []byte {
	b := make([]byte, n)
	if n > 0 {
		copy(b, unsafe.Slice((*byte)(unsafe.Pointer(p)), n))
	}
	return b
}

func malloc(tls *libc.TLS, n types.Size_t) (uintptr, error) {
	p := libc.Xmalloc(tls, n)
	if p == 0 {
		return 0, fmt.Errorf("out of memory")
	}
	return p, nil
}

func mustCString(s string) uintptr {
	p, err := libc.CString(s)
	if err != nil {
		panic(err)
	}
	return p
}

// cFuncPointer converts a function defined by a function declaration to a C
// pointer. The result of using cFuncPointer on closures is undefined.
func cFuncPointer[T any](f T) uintptr {
	return *(*uintptr)(unsafe.Pointer(&struct{ f T }{f}))
}
