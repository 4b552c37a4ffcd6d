package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/sqlitell"
)

// Version is the CLI version, set at build time with
// -ldflags "-X github.com/roach88/sqlitell/internal/cli.Version=...".
var Version = "dev"

// VersionInfo is the output of the version command.
type VersionInfo struct {
	Version       string `json:"version"`
	SQLite        string `json:"sqlite"`
	SQLiteVersion int    `json:"sqlite_version_number"`
}

func (v VersionInfo) String() string {
	return fmt.Sprintf("sqlitell %s (SQLite %s)", v.Version, v.SQLite)
}

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "version",
		Short:        "Print the sqlitell and SQLite versions",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := &OutputFormatter{
				Format: rootOpts.Format,
				Writer: cmd.OutOrStdout(),
			}
			return formatter.Success(VersionInfo{
				Version:       Version,
				SQLite:        sqlitell.Version(),
				SQLiteVersion: sqlitell.VersionNumber(),
			})
		},
	}
}
