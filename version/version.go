//nolint
package version

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// GitCommit is the current HEAD set using ldflags.
	GitCommit string

	Version string
)

const NodeVersion = "0.1.0"

func init() {
	Version = fmt.Sprintf("Cairn Chain Release: %s;", NodeVersion)
	if GitCommit != "" {
		Version += fmt.Sprintf(" Cairn Chain Commit: %s;", GitCommit)
	}
}

// Cmd prints the assembled version string.
var Cmd = &cobra.Command{
	Use:   "version",
	Short: "Print the node version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(Version)
	},
}
