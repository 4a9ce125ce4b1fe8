package ocr

import (
	"context"
	"image"
	"image/color"
	"os"
	"strings"
	"testing"

	"calendarcam/internal/config"
	"calendarcam/internal/frame"
	"calendarcam/internal/logger"

	"github.com/otiai10/gosseract/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestNew_UnknownEngine(t *testing.T) {
	_, err := New(context.Background(), &config.Config{TextEngine: "abacus"}, logger.Discard())
	assert.Error(t, err)
}

func TestNewGemini_RequiresProject(t *testing.T) {
	_, err := New(context.Background(), &config.Config{TextEngine: "Gemini"}, logger.Discard())
	assert.ErrorContains(t, err, "GEMINI_PROJECT")
}

func TestPageSegMode(t *testing.T) {
	assert.Equal(t, gosseract.PSM_SINGLE_BLOCK, pageSegMode(SingleBlock))
	assert.Equal(t, gosseract.PSM_AUTO, pageSegMode(FullPage))
}

func renderText(t *testing.T, text string) []byte {
	t.Helper()
	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), 120, 480, gocv.MatTypeCV8UC3)
	defer mat.Close()
	require.NoError(t, gocv.PutText(&mat, text, image.Pt(20, 75), gocv.FontHersheySimplex, 1.5, color.RGBA{A: 255}, 3))
	data, err := frame.EncodeMat(gocv.PNGFileExt, mat)
	require.NoError(t, err)
	return data
}

func TestTesseract_SingleBlock(t *testing.T) {
	engine, err := NewTesseract(&config.Config{TesseractLanguage: "eng", OCRWorkers: 2}, logger.Discard())
	require.NoError(t, err)
	defer engine.Close()

	text, err := engine.ExtractText(context.Background(), renderText(t, "DENTIST 9AM"), SingleBlock)
	require.NoError(t, err)
	assert.Contains(t, strings.ToUpper(text), "DENTIST")
}

func TestTesseract_CancelledWhileWaiting(t *testing.T) {
	engine, err := NewTesseract(&config.Config{TesseractLanguage: "eng", OCRWorkers: 1}, logger.Discard())
	require.NoError(t, err)
	defer engine.Close()

	busy := <-engine.clients
	defer func() { engine.clients <- busy }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = engine.ExtractText(ctx, renderText(t, "X"), SingleBlock)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGemini_Integration(t *testing.T) {
	project := os.Getenv("GEMINI_PROJECT")
	if project == "" {
		t.Skip("GEMINI_PROJECT not set, skipping integration test")
	}
	ctx := context.Background()
	engine, err := NewGemini(ctx, &config.Config{
		GeminiProject: project,
		GeminiRegion:  "europe-west1",
		GeminiModel:   "gemini-2.5-flash",
	}, logger.Discard())
	require.NoError(t, err)
	defer engine.Close()

	text, err := engine.ExtractText(ctx, renderText(t, "DENTIST 9AM"), SingleBlock)
	require.NoError(t, err)
	assert.Contains(t, strings.ToUpper(text), "DENTIST")
}
