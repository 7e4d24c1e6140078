package reasoning

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/genai"
)

// DefaultModelName is the Gemini model used for matching and interlinking.
const DefaultModelName = "gemini-2.0-flash"

// GeminiService implements Service against the Gemini API.
type GeminiService struct {
	client *genai.Client
	model  string
}

// NewGeminiService creates the Gemini-backed reasoning service. An empty
// apiKey defers to the GEMINI_API_KEY environment variable; an empty model
// selects DefaultModelName.
func NewGeminiService(ctx context.Context, apiKey, model string) (*GeminiService, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	if model == "" {
		model = DefaultModelName
	}
	return &GeminiService{client: client, model: model}, nil
}

// MatchTransactions asks the model to align statement descriptions with the
// candidate entity lists. Any schema violation fails the whole call.
func (s *GeminiService) MatchTransactions(ctx context.Context, req *MatchRequest) (*MatchResponse, error) {
	prompt, err := buildMatchPrompt(req)
	if err != nil {
		return nil, err
	}

	raw, err := s.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var resp MatchResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, &Error{Code: ErrInvalidResponse, Message: "match response is not valid JSON", Cause: err}
	}
	if err := resp.Validate(len(req.Transactions)); err != nil {
		return nil, err
	}
	return &resp, nil
}

// InterlinkAccounts asks the model to link entity default-account text to
// chart of accounts rows.
func (s *GeminiService) InterlinkAccounts(ctx context.Context, req *InterlinkRequest) (*InterlinkResponse, error) {
	prompt, err := buildInterlinkPrompt(req)
	if err != nil {
		return nil, err
	}

	raw, err := s.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var resp InterlinkResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, &Error{Code: ErrInvalidResponse, Message: "interlink response is not valid JSON", Cause: err}
	}
	if err := resp.Validate(); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GenerateChartOfAccounts asks the model for a starting chart of accounts
// tailored to an industry.
func (s *GeminiService) GenerateChartOfAccounts(ctx context.Context, req *GenerateCOARequest) (*GenerateCOAResponse, error) {
	raw, err := s.generate(ctx, buildGenerateCOAPrompt(req))
	if err != nil {
		return nil, err
	}

	var resp GenerateCOAResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, &Error{Code: ErrInvalidResponse, Message: "account generation response is not valid JSON", Cause: err}
	}
	if err := resp.Validate(); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *GeminiService) generate(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0.1),
		ResponseMIMEType: "application/json",
	}

	resp, err := s.client.Models.GenerateContent(ctx, s.model, contents, config)
	if err != nil {
		return "", &Error{Code: ErrUnavailable, Message: "generate content", Cause: err}
	}

	text := resp.Text()
	if text == "" {
		return "", &Error{Code: ErrEmptyResponse, Message: "model returned no text"}
	}
	return cleanModelJSON(text), nil
}
