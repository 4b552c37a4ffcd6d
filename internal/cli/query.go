package cli

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/sqlitell"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Args []string // parameter values, in order or as :name=value
}

// QueryResult is the outcome of a query command.
type QueryResult struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
	Changes int      `json:"changes"`
}

// String renders the result as an aligned table.
func (r *QueryResult) String() string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	if len(r.Columns) > 0 {
		fmt.Fprintln(w, strings.Join(r.Columns, "\t"))
	}
	for _, row := range r.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = textCell(v)
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	_ = w.Flush()
	fmt.Fprintf(&b, "(%d row(s))", len(r.Rows))
	return b.String()
}

func textCell(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprint(v)
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query [db] <sql>",
		Short: "Run a single prepared statement and print its rows",
		Long: `Prepare a single SQL statement, bind --arg values and print every row.

Argument values are typed by their text: NULL, integers, floats, X'hex'
blobs and 'quoted' text; anything else binds as text. A value written as
:name=value (or @name=value, $name=value) binds the named parameter.

Blobs are printed as X'hex' in both text and JSON output.

Examples:
  sqlitell query app.db "SELECT * FROM users WHERE id = ?" --arg 42
  sqlitell query app.db "SELECT * FROM users WHERE name = :name" --arg :name=Alice
  sqlitell query app.db "SELECT x'00ff'" --format json`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, sql := dbAndSQL(args)
			return runQuery(opts, db, sql, cmd)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Args, "arg", "a", nil, "parameter value (repeatable)")

	return cmd
}

func runQuery(opts *QueryOptions, db, sql string, cmd *cobra.Command) error {
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

	result := &QueryResult{Rows: [][]any{}}
	err = conn.WithStmt(sql, func(stmt *sqlitell.Stmt) error {
		if err := bindArgs(stmt, opts.Args); err != nil {
			return err
		}
		logger.Debug("statement prepared", "sql", stmt.SQL(), "params", stmt.ParameterCount(), "columns", stmt.ColumnCount())

		names, err := stmt.ColumnNames()
		if err != nil {
			return err
		}
		result.Columns = names
		for {
			state, err := stmt.Step()
			if err != nil {
				return err
			}
			if state == sqlitell.StateDone {
				return nil
			}
			row := make([]any, len(names))
			for i := range row {
				v, err := stmt.ReadValue(i)
				if err != nil {
					return err
				}
				row[i] = cellValue(v)
			}
			result.Rows = append(result.Rows, row)
		}
	})
	if err != nil {
		return formatter.Report(err)
	}

	result.Changes = conn.Changes()
	return formatter.Success(result)
}

// bindArgs binds positional and :name=value arguments.
func bindArgs(stmt *sqlitell.Stmt, args []string) error {
	pos := 1
	for _, arg := range args {
		if name, value, ok := namedArg(arg); ok {
			if err := stmt.BindByName(name, parseArg(value)); err != nil {
				return err
			}
			continue
		}
		if err := stmt.Bind(pos, parseArg(arg)); err != nil {
			return err
		}
		pos++
	}
	return nil
}

func namedArg(arg string) (name, value string, ok bool) {
	if arg == "" || !strings.ContainsRune(":@$", rune(arg[0])) {
		return "", "", false
	}
	return strings.Cut(arg, "=")
}

// parseArg types a command-line value.
func parseArg(s string) any {
	switch {
	case strings.EqualFold(s, "null"):
		return nil
	case len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'':
		return strings.ReplaceAll(s[1:len(s)-1], "''", "'")
	case len(s) >= 3 && (s[0] == 'x' || s[0] == 'X') && s[1] == '\'' && s[len(s)-1] == '\'':
		if b, err := hex.DecodeString(s[2 : len(s)-1]); err == nil {
			return b
		}
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	// ParseFloat also accepts words such as "inf" and "nan".
	if strings.ContainsAny(s, "0123456789") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return s
}

// cellValue converts a column value for output. Blobs become X'hex' text.
func cellValue(v sqlitell.Value) any {
	switch v.Type() {
	case sqlitell.TypeInteger:
		i, _ := v.AsInt64()
		return i
	case sqlitell.TypeFloat:
		f, _ := v.AsFloat64()
		return f
	case sqlitell.TypeText:
		s, _ := v.AsText()
		return s
	case sqlitell.TypeBlob:
		return v.String()
	default:
		return nil
	}
}
