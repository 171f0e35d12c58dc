package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mikey/email-verifier/internal/core"
	"github.com/mikey/email-verifier/internal/di"
)

// Execute runs the root command and exits non-zero on failure
func Execute() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// options holds the persistent flags shared by every subcommand
type options struct {
	flags     di.CLIFlags
	proxies   []string
	proxyFile string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:          "email-verifier",
		Short:        "Bulk email verification client for a streaming verification service",
		SilenceUsage: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.flags.ConfigFile, "config", "", "Path to config file (default: search standard locations)")
	pf.BoolVarP(&opts.flags.Verbose, "verbose", "v", false, "Enable debug logging")
	pf.BoolVar(&opts.flags.JSONLog, "json-log", false, "Output logs and results as JSON log entries")
	pf.StringArrayVar(&opts.flags.Endpoints, "endpoint", nil, "Verification service base URL (repeatable)")
	pf.StringArrayVar(&opts.proxies, "proxy", nil, "Proxy as host:port[:user:pass] (repeatable)")
	pf.StringVar(&opts.proxyFile, "proxy-file", "", "File with one proxy per line")
	pf.BoolVar(&opts.flags.SendCredentials, "send-credentials", false, "Send proxy credentials as separate fields")
	pf.StringVar(&opts.flags.HistoryType, "history-type", "", "Result history store: memory|sqlite|mysql|postgres")
	pf.BoolVar(&opts.flags.NoHistory, "no-history", false, "Do not record results")

	cmd.AddCommand(
		verifyCmd(opts),
		probeCmd(opts),
		countCmd(opts),
		historyCmd(opts),
	)
	return cmd
}

// proxyPool merges --proxy values and --proxy-file lines into one pool, in that order
func (o *options) proxyPool() ([]core.ProxySpec, error) {
	lines := append([]string(nil), o.proxies...)
	if o.proxyFile != "" {
		b, err := os.ReadFile(o.proxyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read proxy file: %w", err)
		}
		lines = append(lines, string(b))
	}
	return core.ParseProxyPool(strings.Join(lines, "\n")), nil
}
