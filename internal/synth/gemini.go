package synth

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/sagekb/sage/internal/apperr"
)

const maxOutputTokens = 2048

// Gemini implements Completer on the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini-backed completer.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, apperr.ErrMissingCredential
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("synth: create gemini client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

// Complete issues one generation request with the given system instruction.
func (g *Gemini) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(user),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
			MaxOutputTokens:   maxOutputTokens,
		})
	if err != nil {
		return "", fmt.Errorf("synth: generate content: %w", err)
	}
	return resp.Text(), nil
}
