package ocr

import (
	"context"
	"fmt"

	"calendarcam/internal/config"
	"calendarcam/internal/logger"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract keeps one client per OCR worker; a client is not safe for
// concurrent use, so calls borrow one from the pool.
type Tesseract struct {
	clients chan *gosseract.Client
	all     []*gosseract.Client
	logger  *logger.Logger
}

func NewTesseract(config *config.Config, logger *logger.Logger) (*Tesseract, error) {
	workers := max(config.OCRWorkers, 1)
	t := &Tesseract{
		clients: make(chan *gosseract.Client, workers),
		logger:  logger,
	}
	for i := 0; i < workers; i++ {
		client := gosseract.NewClient()
		if err := client.SetLanguage(config.TesseractLanguage); err != nil {
			client.Close()
			t.Close()
			return nil, fmt.Errorf("failed to set OCR language %q: %w", config.TesseractLanguage, err)
		}
		t.all = append(t.all, client)
		t.clients <- client
	}
	logger.Info("Tesseract initialized with %d client(s), language %s", workers, config.TesseractLanguage)
	return t, nil
}

func pageSegMode(hint LayoutHint) gosseract.PageSegMode {
	if hint == FullPage {
		return gosseract.PSM_AUTO
	}
	return gosseract.PSM_SINGLE_BLOCK
}

func (t *Tesseract) ExtractText(ctx context.Context, image []byte, hint LayoutHint) (string, error) {
	var client *gosseract.Client
	select {
	case client = <-t.clients:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { t.clients <- client }()

	if err := client.SetPageSegMode(pageSegMode(hint)); err != nil {
		return "", fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("failed to load image into tesseract: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract recognition failed: %w", err)
	}
	return text, nil
}

func (t *Tesseract) Close() error {
	var firstErr error
	for _, client := range t.all {
		if err := client.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	t.all = nil
	return firstErr
}
