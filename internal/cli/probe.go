package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mikey/email-verifier/internal/core"
	"github.com/mikey/email-verifier/internal/di"
)

func probeCmd(opts *options) *cobra.Command {
	var all bool

	c := &cobra.Command{
		Use:   "probe [proxy...]",
		Short: "Check proxies through the verification service",
		RunE: func(cmd *cobra.Command, args []string) error {
			local := *opts
			local.proxies = append(append([]string(nil), opts.proxies...), args...)
			proxies, err := local.proxyPool()
			if err != nil {
				return err
			}
			if len(proxies) == 0 {
				return fmt.Errorf("no proxy given: pass one as an argument, --proxy or --proxy-file")
			}

			return di.Run(&opts.flags, cmd.OutOrStdout(), func(deps di.Deps) error {
				if !all {
					deps.Reporter.Probe(proxies[0], deps.Session.ProbeProxy(cmd.Context(), proxies[0]))
					return nil
				}

				failed := 0
				for _, res := range deps.Session.ProbeAll(cmd.Context(), proxies) {
					deps.Reporter.Probe(res.Proxy, res.Status)
					if res.Status == core.ProbeFailedMessage {
						failed++
					}
				}
				if failed == len(proxies) {
					return fmt.Errorf("all %d proxy probes failed", failed)
				}
				return nil
			})
		},
	}

	c.Flags().BoolVar(&all, "all", false, "Probe every proxy instead of only the first")
	return c
}
