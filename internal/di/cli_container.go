package di

import (
	"github.com/mikey/email-verifier/internal/config"
)

// CLIFlags contains the command line flags that override configuration values.
// Zero values leave the configured value untouched.
type CLIFlags struct {
	ConfigFile string
	Verbose    bool
	JSONLog    bool

	Endpoints       []string
	SendCredentials bool
	UnknownStatus   string
	ExportDir       string
	NoHistory       bool
	HistoryType     string
}

// applyFlags overrides configuration values with the flags that were set
func applyFlags(cfg *config.Config, flags *CLIFlags) {
	cfg.Set("cli.verbose", flags.Verbose)

	if flags.Verbose {
		cfg.Set("logging.level", "debug")
	}
	if flags.JSONLog {
		cfg.Set("logging.format", "json")
		cfg.Set("output.sink", "log")
	}
	if len(flags.Endpoints) > 0 {
		cfg.Set("gateway.endpoints", flags.Endpoints)
	}
	if flags.SendCredentials {
		cfg.Set("proxy.send_credentials", true)
	}
	if flags.UnknownStatus != "" {
		cfg.Set("classify.unknown_status", flags.UnknownStatus)
	}
	if flags.ExportDir != "" {
		cfg.Set("export.dir", flags.ExportDir)
	}
	if flags.NoHistory {
		cfg.Set("history.enabled", false)
	}
	if flags.HistoryType != "" {
		cfg.Set("history.type", flags.HistoryType)
	}
}
