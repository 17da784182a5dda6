package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tanq16/partdl/internal/inputs"
	"github.com/tanq16/partdl/internal/utils"
)

func newBatchCmd() *cobra.Command {
	var storageDir string

	cmd := &cobra.Command{
		Use:   "batch [LIST_FILE] [--dir STORAGE_DIR]",
		Short: "Download every URL listed in a text, JSON or YAML file",
		Long: `Download every URL listed in a file. The format follows the extension:

  .txt   one URL per line, saved under --dir
  .json  {"storage/dir": ["url", ...], ...}
  .yaml  [{link: url, op: output/path}, ...]

Lines starting with # are comments. Prefix a URL with ep__ to name the file
from the server's Content-Disposition header.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, err := inputs.Load(utils.LocalFS(), utils.AbsPath(args[0]), utils.AbsPath(storageDir))
			if err != nil {
				return err
			}
			if len(tasks) == 0 {
				return fmt.Errorf("no valid URLs found in %s", args[0])
			}
			log.Info().Str("op", "cmd/batch").Str("file", args[0]).Int("tasks", len(tasks)).Msg("Loaded download list")
			return runTasks(cmd.Context(), tasks)
		},
	}

	cmd.Flags().StringVarP(&storageDir, "dir", "d", "", "Storage directory (required for text lists, base for relative YAML paths)")
	return cmd
}
