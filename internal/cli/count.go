package cli

import (
	"github.com/spf13/cobra"

	"github.com/mikey/email-verifier/internal/di"
	"github.com/mikey/email-verifier/internal/upload"
)

func countCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "count <file>",
		Short: "Estimate the number of addresses in a file (lines containing @)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return di.Run(&opts.flags, cmd.OutOrStdout(), func(deps di.Deps) error {
				deps.Reporter.Status(upload.ReadingMessage)
				file, err := deps.Loader.LoadFile(args[0])
				if err != nil {
					return err
				}
				deps.Reporter.Status(file.ReadyMessage())
				return nil
			})
		},
	}
}
