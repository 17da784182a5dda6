package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tanq16/partdl/internal/output"
	"github.com/tanq16/partdl/internal/utils"
)

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean [OUTPUT_PATH...]",
		Short: "Remove leftover part files for the given destinations",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			total := 0
			for _, path := range args {
				removed, err := utils.CleanParts(utils.LocalFS(), utils.AbsPath(path))
				if err != nil {
					return fmt.Errorf("error cleaning up temporary files for %s: %w", path, err)
				}
				total += removed
			}
			if total == 0 {
				output.PrintInfo("No temporary files found")
				return nil
			}
			output.PrintSuccess(fmt.Sprintf("Removed %d temporary file(s)", total))
			return nil
		},
	}
}
