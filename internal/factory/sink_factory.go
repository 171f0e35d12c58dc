package factory

import (
	"fmt"
	"io"

	"github.com/mikey/email-verifier/internal/adapters/sink"
	"github.com/mikey/email-verifier/internal/config"
	"github.com/mikey/email-verifier/internal/utils"
	"go.uber.org/zap"
)

// SinkFactory creates the reporter that presents session output
type SinkFactory struct {
	cfg    *config.Config
	logger *zap.Logger
	tp     *utils.TextProcessor
}

// NewSinkFactory creates a new sink factory
func NewSinkFactory(cfg *config.Config, logger *zap.Logger, tp *utils.TextProcessor) *SinkFactory {
	return &SinkFactory{
		cfg:    cfg,
		logger: logger,
		tp:     tp,
	}
}

// CreateReporter creates a reporter based on the configuration
func (f *SinkFactory) CreateReporter(out io.Writer) (sink.Reporter, error) {
	sinkType := f.cfg.GetString("output.sink")

	switch sinkType {
	case "console", "":
		return sink.NewConsoleSink(out, f.tp, f.cfg.GetBool("cli.verbose")), nil
	case "log":
		return sink.NewLogSink(f.logger), nil
	default:
		return nil, fmt.Errorf("unsupported output sink: %s", sinkType)
	}
}
