package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mikey/email-verifier/internal/core"
	"github.com/mikey/email-verifier/internal/di"
	"github.com/mikey/email-verifier/internal/upload"
)

func verifyCmd(opts *options) *cobra.Command {
	var unknownStatus string
	var exportDir string
	var noExport bool

	c := &cobra.Command{
		Use:   "verify <file>",
		Short: "Upload a list of addresses and stream the verdicts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := opts.flags
			flags.UnknownStatus = unknownStatus
			flags.ExportDir = exportDir

			return di.Run(&flags, cmd.OutOrStdout(), func(deps di.Deps) error {
				proxies, err := opts.proxyPool()
				if err != nil {
					return err
				}

				deps.Reporter.Status(upload.ReadingMessage)
				file, err := deps.Loader.LoadFile(args[0])
				if err != nil {
					return err
				}
				deps.Reporter.Status(file.ReadyMessage())

				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
				defer stop()

				job, verifyErr := deps.Session.Verify(ctx, core.VerifyRequest{
					FileName: file.Name,
					Content:  file.Content,
					Proxies:  proxies,
				})

				snap := deps.Session.Snapshot()
				var written []string
				if !noExport {
					written, err = writeExports(deps.Config.GetExport().Dir, snap)
					if err != nil {
						deps.Logger.Error("Failed to write exports", zap.Error(err))
						if verifyErr == nil {
							verifyErr = err
						}
					}
				}
				deps.Reporter.Summary(snap, written)

				if verifyErr != nil {
					deps.Logger.Debug("Job ended", zap.String("job_id", job.ID), zap.String("state", string(job.State)))
				}
				return verifyErr
			})
		},
	}

	c.Flags().StringVar(&unknownStatus, "unknown-status", "", "Treat statuses without Valid/Invalid prefix as: invalid|unknown|reject")
	c.Flags().StringVarP(&exportDir, "export-dir", "o", "", "Directory for valid/invalid/unknown-emails.csv")
	c.Flags().BoolVar(&noExport, "no-export", false, "Do not write result files")
	return c
}

// writeExports writes one file per non-empty bucket and returns their paths
func writeExports(dir string, snap core.ResultSnapshot) ([]string, error) {
	artifacts := core.ExportAll(snap)
	if len(artifacts) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}

	written := make([]string, 0, len(artifacts))
	for _, art := range artifacts {
		path := filepath.Join(dir, art.Filename)
		if err := os.WriteFile(path, art.Content, 0o644); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", art.Filename, err)
		}
		written = append(written, path)
	}
	return written, nil
}
