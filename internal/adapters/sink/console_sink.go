package sink

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mikey/email-verifier/internal/core"
	"github.com/mikey/email-verifier/internal/utils"
)

const maxMessageRunes = 200

type theme struct {
	valid   lipgloss.Style
	invalid lipgloss.Style
	unknown lipgloss.Style
	info    lipgloss.Style
	status  lipgloss.Style
	failure lipgloss.Style
	summary lipgloss.Style
}

func newTheme(r *lipgloss.Renderer) theme {
	return theme{
		valid:   r.NewStyle().Foreground(lipgloss.Color("42")),
		invalid: r.NewStyle().Foreground(lipgloss.Color("196")),
		unknown: r.NewStyle().Foreground(lipgloss.Color("214")),
		info:    r.NewStyle().Faint(true),
		status:  r.NewStyle().Bold(true),
		failure: r.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		summary: r.NewStyle().
			Padding(0, 1).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")),
	}
}

// ConsoleSink prints session progress to a terminal
type ConsoleSink struct {
	out     io.Writer
	tp      *utils.TextProcessor
	theme   theme
	verbose bool

	mu sync.Mutex
}

// NewConsoleSink creates a console sink writing to out. Colours are used only when out
// is a terminal.
func NewConsoleSink(out io.Writer, tp *utils.TextProcessor, verbose bool) *ConsoleSink {
	return &ConsoleSink{
		out:     out,
		tp:      tp,
		theme:   newTheme(lipgloss.NewRenderer(out)),
		verbose: verbose,
	}
}

// Status prints a narration line
func (c *ConsoleSink) Status(message string) {
	c.println(c.theme.status.Render(c.tp.Truncate(message, maxMessageRunes)))
}

// OnEvent prints one classified event
func (c *ConsoleSink) OnEvent(event core.ClassifiedEvent) {
	switch event.Kind {
	case core.EventInfo:
		c.println(c.theme.info.Render(c.tp.Truncate(event.Message, maxMessageRunes)))
	case core.EventResult:
		line := core.FormatLogLine(event.Email, c.tp.Truncate(event.Status, maxMessageRunes))
		c.println(c.bucketStyle(event.Bucket).Render(line))
	}
}

// OnStateChange prints the narration for job transitions
func (c *ConsoleSink) OnStateChange(state core.JobState) {
	switch state {
	case core.JobUploading:
		c.Status(core.StatusUploading)
	case core.JobComplete:
		c.Status(core.StatusComplete)
	case core.JobFailed:
		c.println(c.theme.failure.Render(core.VerificationFailedMessage))
	}
}

// OnFrameError prints skipped frames in verbose mode
func (c *ConsoleSink) OnFrameError(err error) {
	if !c.verbose {
		return
	}
	c.println(c.theme.unknown.Render("skipped frame: " + c.tp.Truncate(err.Error(), maxMessageRunes)))
}

// Probe prints the outcome of one proxy probe
func (c *ConsoleSink) Probe(proxy core.ProxySpec, status string) {
	style := c.theme.status
	if status == core.ProbeFailedMessage {
		style = c.theme.failure
	}
	c.println(fmt.Sprintf("%s  %s", proxy.Address, style.Render(c.tp.Truncate(status, maxMessageRunes))))
}

// Summary prints the bucket totals and written exports
func (c *ConsoleSink) Summary(snap core.ResultSnapshot, written []string) {
	body := fmt.Sprintf("%s  %s  %s",
		c.theme.valid.Render(fmt.Sprintf("valid %d", len(snap.Valid))),
		c.theme.invalid.Render(fmt.Sprintf("invalid %d", len(snap.Invalid))),
		c.theme.unknown.Render(fmt.Sprintf("unknown %d", len(snap.Unknown))))
	for _, path := range written {
		body += "\n" + path
	}
	c.println(c.theme.summary.Render(body))
}

func (c *ConsoleSink) bucketStyle(bucket core.Bucket) lipgloss.Style {
	switch bucket {
	case core.BucketValid:
		return c.theme.valid
	case core.BucketInvalid:
		return c.theme.invalid
	default:
		return c.theme.unknown
	}
}

func (c *ConsoleSink) println(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, line)
}
