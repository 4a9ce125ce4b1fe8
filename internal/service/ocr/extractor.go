// Package ocr adapts text recognition engines to the day-cell extractor.
package ocr

import (
	"context"
	"fmt"
	"strings"

	"calendarcam/internal/config"
	"calendarcam/internal/logger"
)

// LayoutHint tells the engine what kind of text region it is looking at.
type LayoutHint int

const (
	// SingleBlock is one uniform block of text, as in a calendar day box.
	SingleBlock LayoutHint = iota
	// FullPage lets the engine segment the image itself.
	FullPage
)

// TextExtractor recognizes text in an encoded image (JPEG or PNG).
type TextExtractor interface {
	ExtractText(ctx context.Context, image []byte, hint LayoutHint) (string, error)
	Close() error
}

// New builds the engine selected by TEXT_ENGINE.
func New(ctx context.Context, config *config.Config, logger *logger.Logger) (TextExtractor, error) {
	switch strings.ToLower(config.TextEngine) {
	case "", "tesseract":
		return NewTesseract(config, logger)
	case "gemini":
		return NewGemini(ctx, config, logger)
	}
	return nil, fmt.Errorf("unknown text engine %q", config.TextEngine)
}
