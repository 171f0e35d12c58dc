package factory

import (
	"github.com/mikey/email-verifier/internal/upload"
	"github.com/mikey/email-verifier/internal/utils"
	"go.uber.org/zap"
)

// TextProcessorFactory creates text processors and the upload loader built on them
type TextProcessorFactory struct {
	logger *zap.Logger
}

// NewTextProcessorFactory creates a new TextProcessorFactory
func NewTextProcessorFactory(logger *zap.Logger) *TextProcessorFactory {
	return &TextProcessorFactory{
		logger: logger,
	}
}

// CreateTextProcessor creates a new TextProcessor
func (f *TextProcessorFactory) CreateTextProcessor() *utils.TextProcessor {
	return utils.NewTextProcessor(f.logger)
}

// CreateLoader creates an upload loader with the default size limit
func (f *TextProcessorFactory) CreateLoader(tp *utils.TextProcessor) *upload.Loader {
	return upload.NewLoader(tp, f.logger, 0)
}
