package upload

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mikey/email-verifier/internal/utils"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Status lines shown while an upload is prepared
const (
	ReadingMessage = "Reading file..."
	readyFormat    = "File ready. %d emails."
)

// DefaultMaxBytes bounds how much of an upload is read
const DefaultMaxBytes = 64 << 20

// File is an upload ready to submit. Content keeps the uploaded bytes, minus any byte
// order mark, and UTF-16 input is transcoded to UTF-8.
type File struct {
	Name       string
	Content    []byte
	Candidates int
}

// ReadyMessage is the status line shown once the file is loaded
func (f *File) ReadyMessage() string {
	return fmt.Sprintf(readyFormat, f.Candidates)
}

// Loader reads upload files
type Loader struct {
	tp       *utils.TextProcessor
	logger   *zap.Logger
	maxBytes int64
}

// NewLoader creates a new loader. maxBytes <= 0 uses DefaultMaxBytes.
func NewLoader(tp *utils.TextProcessor, logger *zap.Logger, maxBytes int64) *Loader {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Loader{
		tp:       tp,
		logger:   logger,
		maxBytes: maxBytes,
	}
}

// LoadFile reads the upload at path. "-" reads standard input.
func (l *Loader) LoadFile(path string) (*File, error) {
	if path == "-" {
		return l.Load("stdin.csv", os.Stdin)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	return l.Load(filepath.Base(path), f)
}

// Load decodes r as the upload named name. A UTF-8 or UTF-16 byte order mark selects the
// encoding; without one the bytes pass through untouched. Invalid UTF-8 only affects the
// candidate count, never the submitted content.
func (l *Loader) Load(name string, r io.Reader) (*File, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(transform.Nop))

	raw, err := io.ReadAll(io.LimitReader(decoded, l.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(raw)) > l.maxBytes {
		return nil, fmt.Errorf("upload %s exceeds %d bytes", name, l.maxBytes)
	}

	file := &File{
		Name:       name,
		Content:    raw,
		Candidates: l.tp.CountCandidates(l.tp.SanitizeUTF8(string(raw))),
	}

	l.logger.Debug("Loaded upload",
		zap.String("name", name),
		zap.Int("size", len(file.Content)),
		zap.Int("candidates", file.Candidates))

	return file, nil
}
