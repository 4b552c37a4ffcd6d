package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/sqlitell"
)

// ExecOptions holds flags for the exec command.
type ExecOptions struct {
	*RootOptions
}

// ExecColumn is one column of a row produced by exec.
type ExecColumn struct {
	Column string  `json:"column"`
	Value  *string `json:"value"`
}

// ExecResult is the outcome of an exec command.
type ExecResult struct {
	Rows            [][]ExecColumn `json:"rows"`
	Changes         int            `json:"changes"`
	TotalChanges    int            `json:"total_changes"`
	LastInsertRowID int64          `json:"last_insert_rowid"`
}

// String renders rows in "column = value" blocks followed by a summary.
func (r *ExecResult) String() string {
	var b strings.Builder
	for _, row := range r.Rows {
		width := 0
		for _, c := range row {
			width = max(width, len(c.Column))
		}
		for _, c := range row {
			v := "NULL"
			if c.Value != nil {
				v = *c.Value
			}
			fmt.Fprintf(&b, "%*s = %s\n", width, c.Column, v)
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "OK: %d change(s), %d total", r.Changes, r.TotalChanges)
	return b.String()
}

// NewExecCommand creates the exec command.
func NewExecCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExecOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "exec [db] <sql>",
		Short: "Execute one or more SQL statements",
		Long: `Execute one or more SQL statements, separated by semicolons.

Rows produced by any statement are printed as text. Execution stops at the
first failing statement. The database path may be omitted when --config
names one.

Exit codes:
  0 - All statements succeeded
  1 - A statement failed
  2 - Command error (bad config, database cannot be opened)

Examples:
  sqlitell exec app.db "CREATE TABLE t (x); INSERT INTO t VALUES (1);"
  sqlitell exec --config app.yaml "PRAGMA integrity_check"`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, sql := dbAndSQL(args)
			return runExec(opts, db, sql, cmd)
		},
	}

	return cmd
}

func runExec(opts *ExecOptions, db, sql string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	logger := opts.Logger(cmd.ErrOrStderr())

	conn, err := opts.openDB(db, logger)
	if err != nil {
		return formatter.Report(err)
	}
	defer conn.Close()

	result := &ExecResult{Rows: [][]ExecColumn{}}
	err = conn.Iterate(sql, func(row []sqlitell.Pair) bool {
		cols := make([]ExecColumn, len(row))
		for i, p := range row {
			cols[i] = ExecColumn{Column: p.Column, Value: p.Value}
		}
		result.Rows = append(result.Rows, cols)
		return true
	})
	if err != nil {
		logger.Debug("exec failed", "error", err)
		return formatter.Report(err)
	}

	result.Changes = conn.Changes()
	result.TotalChanges = conn.TotalChanges()
	result.LastInsertRowID = conn.LastInsertRowID()
	return formatter.Success(result)
}
