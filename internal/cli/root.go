package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/sqlitell"
	"github.com/roach88/sqlitell/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  string // path to a YAML or CUE connection config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the sqlitell CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "sqlitell",
		Short: "sqlitell - low-level SQLite access",
		Long: `Run SQL against SQLite databases through the sqlitell statement API.

Connection settings (open mode, busy timeout, pragmas, default path) can be
read from a YAML or CUE file given with --config.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "connection config file (.yaml, .yml or .cue)")

	cmd.AddCommand(NewExecCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// Logger returns a text logger writing to w. Verbose mode lowers the
// level to debug.
func (o *RootOptions) Logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadConfig reads --config, or returns an empty configuration.
func (o *RootOptions) loadConfig() (*config.Config, error) {
	if o.Config == "" {
		return &config.Config{}, nil
	}
	return config.Load(o.Config)
}

// openDB opens path with the configured settings. An empty path falls
// back to the config file's path.
func (o *RootOptions) openDB(path string, logger *slog.Logger) (*sqlitell.Conn, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, ErrCodeConfig, err)
	}
	conn, err := cfg.Open(path, logger)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, ErrCodeOpen, err)
	}
	logger.Debug("database opened", "path", conn.Path())
	return conn, nil
}

// dbAndSQL splits "[db] <sql>" arguments.
func dbAndSQL(args []string) (db, sql string) {
	if len(args) == 1 {
		return "", args[0]
	}
	return args[0], args[1]
}
