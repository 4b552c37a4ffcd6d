package sqlitell

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/sqlitell/internal/native"
)

// Memory is the path of a private, temporary in-memory database.
const Memory = ":memory:"

// OpenFlags is a bitmask of open options.
// https://www.sqlite.org/c3ref/c_open_autoproxy.html
type OpenFlags int32

const (
	OpenReadOnly     = OpenFlags(native.OpenReadOnly)
	OpenReadWrite    = OpenFlags(native.OpenReadWrite)
	OpenCreate       = OpenFlags(native.OpenCreate)
	OpenMemory       = OpenFlags(native.OpenMemory)
	OpenNoMutex      = OpenFlags(native.OpenNoMutex)
	OpenFullMutex    = OpenFlags(native.OpenFullMutex)
	OpenSharedCache  = OpenFlags(native.OpenSharedCache)
	OpenPrivateCache = OpenFlags(native.OpenPrivateCache)
)

// DefaultFlags is what Open uses: read/write, creating the file if needed.
const DefaultFlags = OpenReadWrite | OpenCreate

var flagNames = []struct {
	flag OpenFlags
	name string
}{
	{OpenReadOnly, "readonly"},
	{OpenReadWrite, "readwrite"},
	{OpenCreate, "create"},
	{OpenMemory, "memory"},
	{OpenNoMutex, "nomutex"},
	{OpenFullMutex, "fullmutex"},
	{OpenSharedCache, "sharedcache"},
	{OpenPrivateCache, "privatecache"},
}

func (f OpenFlags) String() string {
	var parts []string
	rest := f
	for _, fn := range flagNames {
		if f&fn.flag != 0 {
			parts = append(parts, fn.name)
			rest &^= fn.flag
		}
	}
	if rest != 0 {
		parts = append(parts, fmt.Sprintf("%#x", int32(rest)))
	}
	if len(parts) == 0 {
		return "0"
	}
	return strings.Join(parts, "|")
}

// ParseOpenFlag returns the flag with the given name as printed by
// OpenFlags.String.
func ParseOpenFlag(name string) (OpenFlags, error) {
	for _, fn := range flagNames {
		if fn.name == strings.ToLower(name) {
			return fn.flag, nil
		}
	}
	return 0, fmt.Errorf("unknown open flag %q", name)
}

// OpenOptions configures how a connection is opened.
// The zero value behaves like Open.
type OpenOptions struct {
	// Flags passed to the engine. Zero means DefaultFlags.
	Flags OpenFlags

	// BusyTimeout installs a sleeping busy handler when positive.
	BusyTimeout time.Duration

	// Pragmas run in order right after the handle is opened, each as
	// "PRAGMA <pragma>", e.g. "foreign_keys = ON".
	Pragmas []string

	// Logger receives diagnostics. Nil means slog.Default().
	Logger *slog.Logger
}

// ReadOnly returns a copy of o that opens the database read-only.
func (o OpenOptions) ReadOnly() OpenOptions {
	f := o.flags() &^ (OpenReadWrite | OpenCreate)
	o.Flags = f | OpenReadOnly
	return o
}

func (o OpenOptions) flags() OpenFlags {
	if o.Flags == 0 {
		return DefaultFlags
	}
	return o.Flags
}

func (o OpenOptions) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// Open opens the database at path with these options.
//
// If any pragma fails the handle is closed before the error is returned.
func (o OpenOptions) Open(path string) (*Conn, error) {
	log := o.logger()
	flags := o.flags()

	db, err := native.Open(path, int32(flags))
	if err != nil {
		e := fromNative(OpOpen, err, "")
		e.Message = fmt.Sprintf("%s: %s", path, e.Message)
		log.Debug("open failed", "path", path, "flags", flags.String(), "error", e)
		return nil, e
	}
	c := &Conn{db: db, path: path, logger: log}

	if o.BusyTimeout > 0 {
		c.SetBusyTimeout(o.BusyTimeout)
	}
	if err := c.applyPragmas(o.Pragmas); err != nil {
		if cerr := db.Close(); cerr != nil {
			log.Debug("close after failed pragma", "path", path, "error", cerr)
		}
		return nil, err
	}

	log.Debug("opened database", "path", path, "flags", flags.String())
	return c, nil
}

func (c *Conn) applyPragmas(pragmas []string) error {
	for _, p := range pragmas {
		stmt := "PRAGMA " + strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(p), "PRAGMA "))
		if err := c.Execute(stmt); err != nil {
			var e *Error
			if errors.As(err, &e) {
				e.Op = OpOpen
			}
			return err
		}
	}
	return nil
}
