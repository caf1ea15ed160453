package review

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/rotisserie/eris"
	"google.golang.org/api/option"

	"github.com/claimsmart/claimsmart-backend/internal/core"
	"github.com/claimsmart/claimsmart-backend/internal/models"
)

const reviewSystemPrompt = `You are an insurance claim reviewer. Given the extracted fields of a claim,
classify it and respond with JSON only, in the shape
{"label": "Approved" | "Rejected" | "Flagged", "explanation": ["reason", ...]}.
Use "Flagged" whenever the claim needs human judgement.`

// GeminiReview classifies claims with a Gemini model instead of the hosted
// review API. It is selected with REVIEW_PROVIDER=gemini.
type GeminiReview struct {
	client    *genai.Client
	modelName string
}

func NewGeminiReview(ctx context.Context, apiKey, modelName string) (*GeminiReview, error) {
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, eris.Wrap(err, "review: create gemini client")
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	return &GeminiReview{client: cl, modelName: modelName}, nil
}

func (g *GeminiReview) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func (g *GeminiReview) Review(ctx context.Context, data models.OCRData) (*models.ReviewResult, error) {
	fields, err := json.Marshal(data)
	if err != nil {
		return nil, eris.Wrap(err, "review: marshal fields")
	}

	m := g.client.GenerativeModel(g.modelName)
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(reviewSystemPrompt)},
	}

	resp, err := m.GenerateContent(ctx, genai.Text(string(fields)))
	if err != nil {
		return nil, eris.Wrap(err, "review: gemini generate")
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, eris.New("review: empty gemini response")
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}

	return parseVerdict(b.String())
}

// parseVerdict decodes the model output, tolerating a markdown code fence
// around the JSON.
func parseVerdict(raw string) (*models.ReviewResult, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	var result models.ReviewResult
	if err := json.Unmarshal([]byte(s), &result); err != nil {
		return nil, eris.Wrapf(err, "review: parse gemini verdict %q", raw)
	}
	if result.Label == "" {
		return nil, eris.New("review: gemini verdict missing label")
	}
	return &result, nil
}

var _ core.ReviewProvider = (*GeminiReview)(nil)
