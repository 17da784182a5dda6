package cmd

import (
	"strings"

	"github.com/spf13/cobra"
)

func newS3Cmd() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "s3 [BUCKET/KEY or s3://BUCKET/KEY]",
		Short: "Download files from AWS S3",
		Long: `Download files or folders from AWS S3.

Examples:
  partdl s3 mybucket/path/to/file.zip
  partdl s3 s3://mybucket/path/to/folder/ -o mirror/
  partdl s3 mybucket/file.zip --s3-profile myprofile`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			link := args[0]
			if !strings.HasPrefix(link, "s3://") {
				link = "s3://" + link
			}
			tasks, err := tasksForURLs([]string{link}, outputPath)
			if err != nil {
				return err
			}
			return runTasks(cmd.Context(), tasks)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output path")
	return cmd
}
