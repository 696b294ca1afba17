package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiComposer implements InviteComposer using Google's Gemini models.
type GeminiComposer struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGeminiComposer initializes a new Gemini client.
// apiKey should be provided from environment variables.
func NewGeminiComposer(ctx context.Context, apiKey string) (*GeminiComposer, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	// Gemini 2.0 Flash for low latency and cost efficiency.
	model := client.GenerativeModel("gemini-2.0-flash")

	// Force JSON response for structured parsing.
	model.ResponseMIMEType = "application/json"
	model.SetTemperature(0.6)

	return &GeminiComposer{client: client, model: model}, nil
}

// Close cleans up the Gemini client resources.
func (c *GeminiComposer) Close() {
	c.client.Close()
}

type inviteResult struct {
	Message string `json:"message"`
}

// ComposeInvite produces a single friendly invite line. The caller supplies
// the game, the proposed time (may be empty), and the recipient's name.
func (c *GeminiComposer) ComposeInvite(ctx context.Context, game, proposedTime, toName string) (string, error) {
	prompt := buildInvitePrompt(game, proposedTime, toName)

	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generation error: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no response candidates from Gemini")
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			responseText.WriteString(string(txt))
		}
	}

	cleanJSON := cleanJSONString(responseText.String())

	var result inviteResult
	if err := json.Unmarshal([]byte(cleanJSON), &result); err != nil {
		return "", fmt.Errorf("failed to parse JSON response: %w. Raw: %s", err, cleanJSON)
	}
	if strings.TrimSpace(result.Message) == "" {
		return "", fmt.Errorf("empty invite from Gemini")
	}
	return strings.TrimSpace(result.Message), nil
}

func buildInvitePrompt(game, proposedTime, toName string) string {
	timePart := proposedTime
	if timePart == "" {
		timePart = "UNSPECIFIED"
	}
	return fmt.Sprintf(`Role: You write one-line friendly invitations for a sports meetup app.
Write a single casual sentence inviting %s to play %s. Proposed time: %s.
Rules:
- One sentence, under 120 characters.
- No emojis, no hashtags, no exclamation chains.
- If the time is UNSPECIFIED do not mention a time.
Respond with JSON: {"message": "<the sentence>"}`, toName, game, timePart)
}

// cleanJSONString strips markdown code fences the model sometimes adds even
// in JSON mode.
func cleanJSONString(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
