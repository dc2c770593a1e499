package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/sashabaranov/go-openai"
	"google.golang.org/api/option"

	"github.com/punkyapp/diabetes-cockpit/internal/domain"
)

// Provider selects the model backend for analysis runs.
type Provider string

const (
	ProviderGemini Provider = "gemini"
	ProviderOpenAI Provider = "openai"
)

// AdviceService analyzes a glucose history with a generative model and
// extracts therapy recommendations. It implements domain.AdviceService.
type AdviceService struct {
	geminiClient *genai.Client
	openaiClient *openai.Client
	provider     Provider
}

// NewAdviceService creates the service. Only the key of the selected
// provider has to be set.
func NewAdviceService(geminiAPIKey, openaiAPIKey string, provider Provider) (*AdviceService, error) {
	s := &AdviceService{provider: provider}

	if geminiAPIKey != "" {
		client, err := genai.NewClient(context.Background(), option.WithAPIKey(geminiAPIKey))
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		s.geminiClient = client
	}
	if openaiAPIKey != "" {
		s.openaiClient = openai.NewClient(openaiAPIKey)
	}

	switch provider {
	case ProviderGemini:
		if s.geminiClient == nil {
			return nil, fmt.Errorf("gemini selected but no API key configured")
		}
	case ProviderOpenAI:
		if s.openaiClient == nil {
			return nil, fmt.Errorf("openai selected but no API key configured")
		}
	default:
		return nil, fmt.Errorf("unknown advice provider %q", provider)
	}

	return s, nil
}

// adviceResponse is the strict JSON shape the model is asked to return.
type adviceResponse struct {
	Suggestion      string                      `json:"suggestion"`
	Recommendations []domain.RecommendationItem `json:"recommendations"`
}

// Analyze sends the glucose history to the configured model. A nil
// result with nil error means the model had no advice to give.
func (s *AdviceService) Analyze(ctx context.Context, history []domain.GlucoseEntry) (*domain.Advice, error) {
	if len(history) == 0 {
		return nil, nil
	}

	prompt := buildAnalysisPrompt(history)

	var raw string
	var err error
	switch s.provider {
	case ProviderOpenAI:
		raw, err = s.analyzeWithOpenAI(ctx, prompt)
	default:
		raw, err = s.analyzeWithGemini(ctx, prompt)
	}
	if err != nil {
		return nil, err
	}

	jsonStr := extractJSON(raw)
	if jsonStr == "" {
		return nil, fmt.Errorf("no valid JSON found in response")
	}

	var resp adviceResponse
	if err := json.Unmarshal([]byte(jsonStr), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if resp.Suggestion == "" && len(resp.Recommendations) == 0 {
		return nil, nil
	}

	return &domain.Advice{
		Suggestion:      resp.Suggestion,
		Recommendations: resp.Recommendations,
	}, nil
}

func (s *AdviceService) analyzeWithGemini(ctx context.Context, prompt string) (string, error) {
	model := s.geminiClient.GenerativeModel("gemini-1.5-flash")

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty model response")
	}

	text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return "", fmt.Errorf("unexpected response part type")
	}
	return string(text), nil
}

func (s *AdviceService) analyzeWithOpenAI(ctx context.Context, prompt string) (string, error) {
	resp, err := s.openaiClient.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: openai.GPT4o,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
		},
	)
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty model response")
	}
	return resp.Choices[0].Message.Content, nil
}

// buildAnalysisPrompt renders the history as compact "time value"
// lines and asks for a strict JSON answer. Valueless readings are
// rendered as gaps so the model sees sensor dropouts.
func buildAnalysisPrompt(history []domain.GlucoseEntry) string {
	var sb strings.Builder
	for _, e := range history {
		ts := e.Timestamp.Format(time.RFC3339)
		if e.HasValue() {
			fmt.Fprintf(&sb, "%s %.0f\n", ts, *e.SGV)
		} else {
			fmt.Fprintf(&sb, "%s -\n", ts)
		}
	}

	return fmt.Sprintf(`You are a pediatric diabetes educator reviewing a CGM history for a caregiver.
Each line below is one sensor reading: RFC3339 timestamp followed by the glucose value in mg/dL ("-" marks a sensor gap).

TASK:
1. Summarize the glucose pattern in one short caregiver-friendly suggestion (German, max 3 sentences)
2. Derive concrete therapy profile changes if the pattern warrants them, otherwise return an empty list
3. Each change carries the profile keys to update as a flat JSON object

CRITICAL JSON FORMAT REQUIREMENTS:
- Your response MUST be a valid JSON object
- Do not include any markdown formatting or explanatory text before or after the JSON
- The JSON must have these exact fields:
  {
    "suggestion": "Kurze Einschätzung auf Deutsch",
    "recommendations": [
      {"change": "what to change", "reason": "why", "profile_patch": {"basal_22_02": 0.45}}
    ]
  }

CGM HISTORY:
%s`, sb.String())
}

// extractJSON attempts to extract a valid JSON object from the given
// string, handling code blocks or surrounding text.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	if start == -1 {
		return ""
	}
	end := strings.LastIndex(s, "}")
	if end == -1 || end <= start {
		return ""
	}
	return s[start : end+1]
}
