package sink

import "github.com/mikey/email-verifier/internal/core"

// Reporter is a sink that also presents command output
type Reporter interface {
	core.EventSink
	core.FrameErrorSink
	Status(message string)
	Probe(proxy core.ProxySpec, status string)
	Summary(snap core.ResultSnapshot, written []string)
}

var (
	_ Reporter = (*ConsoleSink)(nil)
	_ Reporter = (*LogSink)(nil)
)
