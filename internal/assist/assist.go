// Package assist talks to the generative AI service that summarizes page
// text and proposes tags.
package assist

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/starford/edrak/internal/apperr"
)

// Assistant is the contract the page service depends on. Both calls are
// stateless and may run concurrently.
type Assistant interface {
	Summarize(ctx context.Context, text string) (string, error)
	SuggestTags(ctx context.Context, text string) ([]string, error)
}

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-3-flash-preview"

// Config holds the settings of the Gemini assistant.
type Config struct {
	APIKey   string
	Model    string
	Language string
	Timeout  time.Duration
}

// generator is the part of the genai client used here.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini implements Assistant over the Gemini API.
type Gemini struct {
	gen      generator
	model    string
	language string
	timeout  time.Duration
	logger   *slog.Logger
}

var _ Assistant = (*Gemini)(nil)

// NewGemini builds the assistant. An empty API key is not an error: the
// returned assistant answers every call with apperr.ErrMissingCredential
// without contacting the service.
func NewGemini(ctx context.Context, cfg Config, logger *slog.Logger) (*Gemini, error) {
	g := newGemini(nil, cfg, logger)
	if cfg.APIKey == "" {
		g.logger.Info("assist: no API key configured, AI features disabled")
		return g, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("assist: create client: %w", err)
	}
	g.gen = client.Models
	return g, nil
}

func newGemini(gen generator, cfg Config, logger *slog.Logger) *Gemini {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gemini{
		gen:      gen,
		model:    cfg.Model,
		language: cfg.Language,
		timeout:  cfg.Timeout,
		logger:   logger,
	}
	if g.model == "" {
		g.model = DefaultModel
	}
	if g.language == "" {
		g.language = "English"
	}
	return g
}

// Summarize asks the model for a short structured summary of text. An empty
// answer is returned as "" with a nil error.
func (g *Gemini) Summarize(ctx context.Context, text string) (string, error) {
	prompt := fmt.Sprintf("Summarize the following text concisely and in an organized way, in %s:\n\n%s", g.language, text)
	resp, err := g.generate(ctx, prompt, nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text()), nil
}

// SuggestTags asks the model for keywords describing text. The response is
// constrained to a JSON array of strings.
func (g *Gemini) SuggestTags(ctx context.Context, text string) ([]string, error) {
	prompt := fmt.Sprintf("Extract the keywords (tags) of the following content as a JSON list, in %s:\n\n%s", g.language, text)
	resp, err := g.generate(ctx, prompt, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type:  genai.TypeArray,
			Items: &genai.Schema{Type: genai.TypeString},
		},
	})
	if err != nil {
		return nil, err
	}
	return decodeTags(resp.Text())
}

func (g *Gemini) generate(ctx context.Context, prompt string, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	if g.gen == nil {
		return nil, apperr.ErrMissingCredential
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	resp, err := g.gen.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: generate: %w", apperr.ErrAssist, err)
	}
	return resp, nil
}

// decodeTags parses the model's JSON answer. Blank entries are dropped.
func decodeTags(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []string{}, nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil, fmt.Errorf("%w: decode tags: %w", apperr.ErrAssist, err)
	}
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out, nil
}
