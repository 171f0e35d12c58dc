package sink

import (
	"github.com/mikey/email-verifier/internal/core"
	"go.uber.org/zap"
)

// LogSink reports session progress as structured log entries
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a new log sink
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// OnEvent logs one classified event
func (l *LogSink) OnEvent(event core.ClassifiedEvent) {
	switch event.Kind {
	case core.EventInfo:
		l.logger.Info("Service status", zap.String("message", event.Message))
	case core.EventResult:
		l.logger.Info("Verification result",
			zap.String("email", event.Email),
			zap.String("status", event.Status),
			zap.String("bucket", string(event.Bucket)))
	}
}

// OnStateChange logs job transitions
func (l *LogSink) OnStateChange(state core.JobState) {
	l.logger.Info("Job state changed", zap.String("state", string(state)))
}

// OnFrameError logs skipped frames
func (l *LogSink) OnFrameError(err error) {
	l.logger.Warn("Frame skipped", zap.Error(err))
}

// Status logs a narration line
func (l *LogSink) Status(message string) {
	l.logger.Info("Status", zap.String("message", message))
}

// Probe logs the outcome of one proxy probe
func (l *LogSink) Probe(proxy core.ProxySpec, status string) {
	l.logger.Info("Proxy probed",
		zap.String("proxy", proxy.Address),
		zap.String("status", status))
}

// Summary logs the bucket totals and written exports
func (l *LogSink) Summary(snap core.ResultSnapshot, written []string) {
	l.logger.Info("Verification summary",
		zap.Int("valid", len(snap.Valid)),
		zap.Int("invalid", len(snap.Invalid)),
		zap.Int("unknown", len(snap.Unknown)),
		zap.Strings("exports", written))
}
