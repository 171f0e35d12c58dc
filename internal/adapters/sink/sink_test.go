package sink

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/mikey/email-verifier/internal/core"
	"github.com/mikey/email-verifier/internal/utils"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var (
	_ core.EventSink      = (*ConsoleSink)(nil)
	_ core.FrameErrorSink = (*ConsoleSink)(nil)
	_ core.EventSink      = (*LogSink)(nil)
	_ core.FrameErrorSink = (*LogSink)(nil)
)

func TestConsoleSinkPrintsEvents(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleSink(&buf, utils.NewTextProcessor(zap.NewNop()), false)

	c.OnStateChange(core.JobUploading)
	c.OnEvent(core.InfoEvent("Checking MX records"))
	c.OnEvent(core.ResultEvent("a@x.com", "Valid", core.BucketValid))
	c.OnFrameError(errors.New("bad frame"))
	c.OnStateChange(core.JobComplete)

	out := buf.String()
	for _, want := range []string{
		core.StatusUploading,
		"Checking MX records",
		core.FormatLogLine("a@x.com", "Valid"),
		core.StatusComplete,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
	if strings.Contains(out, "bad frame") {
		t.Fatalf("frame errors must only be shown in verbose mode")
	}
}

func TestConsoleSinkFailureAndVerbose(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleSink(&buf, utils.NewTextProcessor(zap.NewNop()), true)

	c.OnFrameError(errors.New("bad frame"))
	c.OnStateChange(core.JobFailed)
	c.Probe(core.ProxySpec{Address: "1.1.1.1:1080"}, core.ProbeFailedMessage)

	out := buf.String()
	if !strings.Contains(out, "bad frame") || !strings.Contains(out, core.VerificationFailedMessage) {
		t.Fatalf("unexpected output:\n%s", out)
	}
	if !strings.Contains(out, "1.1.1.1:1080") || !strings.Contains(out, core.ProbeFailedMessage) {
		t.Fatalf("missing probe line:\n%s", out)
	}
}

func TestConsoleSinkSummary(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleSink(&buf, utils.NewTextProcessor(zap.NewNop()), false)

	c.Summary(core.ResultSnapshot{Valid: []string{"a", "b"}, Invalid: []string{"c"}}, []string{"out/valid-emails.csv"})

	out := buf.String()
	for _, want := range []string{"valid 2", "invalid 1", "unknown 0", "out/valid-emails.csv"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in summary:\n%s", want, out)
		}
	}
}

func TestLogSink(t *testing.T) {
	zc, logs := observer.New(zap.DebugLevel)
	l := NewLogSink(zap.New(zc))

	l.OnEvent(core.ResultEvent("a@x.com", "Invalid", core.BucketInvalid))
	l.OnStateChange(core.JobComplete)
	l.OnFrameError(errors.New("bad"))

	if logs.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", logs.Len())
	}
	entry := logs.All()[0]
	if entry.Message != "Verification result" || entry.ContextMap()["bucket"] != "invalid" {
		t.Fatalf("unexpected entry %+v", entry)
	}
}
