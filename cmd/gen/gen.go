package gen

import (
	"github.com/spf13/cobra"
)

var RootCmd = &cobra.Command{
	Use:   "gen",
	Short: "Generators for the squeeze documentation",
	Long:  `Generators for the squeeze documentation`,
}

func init() {
	RootCmd.AddCommand(ManPagesCmd)
}
