package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stvaults/vaulthub/version"
)

var verbose bool

// VersionCmd prints the software version.
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version info",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !verbose {
			fmt.Fprintln(cmd.OutOrStdout(), version.Version)
			return nil
		}
		values, err := json.MarshalIndent(struct {
			VaultHub     string `json:"vaulthub"`
			GitCommit    string `json:"git_commit"`
			ReportFormat string `json:"report_format"`
		}{
			VaultHub:     version.VaultHubSemVer,
			GitCommit:    version.GitCommit,
			ReportFormat: version.ReportFormat,
		}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(values))
		return nil
	},
}

func init() {
	VersionCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show the report format and commit")
}
