package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lumenkind/sona/cmd/sona/internal/build"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(build.String())
	},
}
