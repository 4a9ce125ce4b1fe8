package ocr

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"calendarcam/internal/config"
	"calendarcam/internal/logger"

	"google.golang.org/genai"
)

const transcribePrompt = `This image is a single day box cut from a paper wall calendar.
Transcribe the handwritten or printed event text exactly as written, one event per line.
Do not include the day number printed in the corner.
If the box holds no events, answer with an empty response.
Answer with the text only, no commentary and no markdown.`

const pagePrompt = `Transcribe all text in this image, preserving line breaks.
Answer with the text only, no commentary and no markdown.`

// Gemini sends cell crops to a Gemini vision model on Vertex AI.
type Gemini struct {
	client    *genai.Client
	modelName string
	logger    *logger.Logger
}

// NewGemini creates a client using Application Default Credentials.
func NewGemini(ctx context.Context, config *config.Config, logger *logger.Logger) (*Gemini, error) {
	if config.GeminiProject == "" {
		return nil, errors.New("GEMINI_PROJECT is required for the gemini text engine")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  config.GeminiProject,
		Location: config.GeminiRegion,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	logger.Info("Gemini text engine ready: model %s in %s", config.GeminiModel, config.GeminiRegion)
	return &Gemini{client: client, modelName: config.GeminiModel, logger: logger}, nil
}

func (g *Gemini) ExtractText(ctx context.Context, image []byte, hint LayoutHint) (string, error) {
	prompt := transcribePrompt
	if hint == FullPage {
		prompt = pagePrompt
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.modelName,
		[]*genai.Content{{
			Role: "user",
			Parts: []*genai.Part{
				{Text: prompt},
				{InlineData: &genai.Blob{MIMEType: http.DetectContentType(image), Data: image}},
			},
		}},
		&genai.GenerateContentConfig{
			Temperature: genai.Ptr(float32(0.1)),
			TopP:        genai.Ptr(float32(1)),
		},
	)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return resp.Text(), nil
}

func (g *Gemini) Close() error {
	return nil
}
