package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

var ErrNoCandidates = errors.New("gemini returned no candidates")

type ModelConfig struct {
	ContentModel string
	TextModel    string
	AdModel      string
	// Topics, when set, restricts the ministries the models may choose from.
	Topics []string
}

func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		ContentModel: "gemini-2.5-flash",
		TextModel:    "gemini-2.0-flash",
		AdModel:      "gemini-2.0-flash",
	}
}

// Classifier serves the content, digital text and text ad-check models from
// one client bound to a single credential.
type Classifier struct {
	client  *genai.Client
	content *genai.GenerativeModel
	text    *genai.GenerativeModel
	ad      *genai.GenerativeModel
}

func NewClassifier(ctx context.Context, apiKey string, cfg ModelConfig, opts ...option.ClientOption) (*Classifier, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key not configured")
	}
	defaults := DefaultModelConfig()
	if cfg.ContentModel == "" {
		cfg.ContentModel = defaults.ContentModel
	}
	if cfg.TextModel == "" {
		cfg.TextModel = defaults.TextModel
	}
	if cfg.AdModel == "" {
		cfg.AdModel = defaults.AdModel
	}

	client, err := genai.NewClient(ctx, append(opts, option.WithAPIKey(apiKey))...)
	if err != nil {
		return nil, err
	}

	content := client.GenerativeModel(cfg.ContentModel)
	content.SetCandidateCount(1)
	content.SetMaxOutputTokens(4096)
	content.SystemInstruction = genai.NewUserContent(genai.Text(withTopics(contentInstruction, cfg.Topics)))

	text := client.GenerativeModel(cfg.TextModel)
	text.SetCandidateCount(1)
	text.SystemInstruction = genai.NewUserContent(genai.Text(withTopics(textInstruction, cfg.Topics)))

	ad := client.GenerativeModel(cfg.AdModel)
	ad.SetCandidateCount(1)
	ad.SetMaxOutputTokens(256)
	ad.SystemInstruction = genai.NewUserContent(genai.Text(textAdInstruction))

	return &Classifier{client: client, content: content, text: text, ad: ad}, nil
}

func (c *Classifier) Close() error {
	return c.client.Close()
}

func (c *Classifier) AnalyzeImage(ctx context.Context, jpeg []byte, language string) (string, error) {
	parts := []genai.Part{genai.ImageData("jpeg", jpeg)}
	if language != "" {
		parts = append(parts, genai.Text("Newspaper language: "+language))
	}
	return generate(ctx, c.content, parts...)
}

func (c *Classifier) AnalyzeText(ctx context.Context, prompt string) (string, error) {
	return generate(ctx, c.text, genai.Text(prompt))
}

func (c *Classifier) CheckTextAd(ctx context.Context, text string) (string, error) {
	return generate(ctx, c.ad, genai.Text(text))
}

func generate(ctx context.Context, model *genai.GenerativeModel, parts ...genai.Part) (string, error) {
	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		slog.ErrorContext(ctx, "generate content failed", "error", err)
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrNoCandidates
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String(), nil
}

func withTopics(instruction string, topics []string) string {
	if len(topics) == 0 {
		return instruction
	}
	return instruction + "\n\nChoose ministries ONLY from this list:\n- " + strings.Join(topics, "\n- ")
}
