package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mikey/email-verifier/internal/adapters/store"
	"github.com/mikey/email-verifier/internal/core"
	"github.com/mikey/email-verifier/internal/di"
)

func historyCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "history <email>",
		Short: "Show the last recorded verdict for an address",
		Long: `Show the last recorded verdict for an address.

Verdicts are kept in the configured history store, SQLite under the user cache
directory by default. A memory store only lasts for one process, so history
lookups against it never find verdicts from earlier runs.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return di.Run(&opts.flags, cmd.OutOrStdout(), func(deps di.Deps) error {
				rec, err := deps.Session.Lookup(cmd.Context(), args[0])
				if errors.Is(err, store.ErrNotFound) {
					deps.Reporter.Status(fmt.Sprintf("No recorded verdict for %s", args[0]))
					return nil
				}
				if err != nil {
					return err
				}
				deps.Reporter.Status(formatRecord(rec))
				return nil
			})
		},
	}
}

func formatRecord(rec *core.ResultRecord) string {
	return fmt.Sprintf("%s (%s, verified %s via %s)",
		core.FormatLogLine(rec.Email, rec.Status),
		rec.Bucket,
		rec.VerifiedAt.Format(time.RFC3339),
		rec.Endpoint)
}
