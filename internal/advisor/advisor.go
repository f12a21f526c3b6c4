// Package advisor is the optional LLM-backed rule-suggestion collaborator
// (spec.md §9 "Compiled-query optimization" sibling design note, SPEC_FULL
// §3.7). It repurposes the teacher's internal/llm + internal/testdata/
// generator/llm_client.go OpenAI analysis calls: instead of generating
// request bodies from a database schema, Suggest looks at a batch of
// completed RequestReports and asks the model to draft business-rule
// candidates for a human to turn into a real property.Builder rule.
//
// The advisor never registers a CustomProperty itself; it only returns
// data.
package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"apiconform/internal/config"
	"apiconform/internal/model"
)

// Suggestion is a draft business rule a human can turn into a
// property.CustomProperty via property.NewBuilder.
type Suggestion struct {
	Name            string `json:"name"`
	Reason          string `json:"reason"`
	AssertionSketch string `json:"assertionSketch"`
}

// Advisor wraps an OpenAI chat-completion client configured per
// config.AdvisorConfig.
type Advisor struct {
	client *openai.Client
	model  string
}

// New builds an Advisor. It returns an error if cfg.Enabled is false or
// the API key is missing, mirroring the teacher's factory.NewClient
// provider-switch shape (narrowed here to the one provider SPEC_FULL
// wires, since no other example repo in the pack contributes a second
// LLM SDK).
func New(cfg config.AdvisorConfig) (*Advisor, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("apiconform/advisor: advisor.enabled is false")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("apiconform/advisor: advisor.api_key is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	return &Advisor{client: openai.NewClientWithConfig(clientCfg), model: model}, nil
}

// Suggest asks the model to draft business-rule candidates from a batch of
// completed RequestReports, looking for recurring response shapes or
// status-code patterns the built-in properties don't already check.
func (a *Advisor) Suggest(ctx context.Context, reports []model.RequestReport) ([]Suggestion, error) {
	if len(reports) == 0 {
		return nil, nil
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.model,
		Temperature: 0.2,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are an API conformance assistant. You suggest candidate business rules from observed request/response reports. Always respond with a JSON array of objects with fields name, reason, assertionSketch. Never invent fields not visible in the input. Respond with the array only.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildPrompt(reports),
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("apiconform/advisor: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("apiconform/advisor: empty response from model")
	}

	var suggestions []Suggestion
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &suggestions); err != nil {
		return nil, fmt.Errorf("apiconform/advisor: parse suggestions: %w", err)
	}
	return suggestions, nil
}

// buildPrompt summarizes a bounded sample of reports so the prompt stays a
// reasonable size regardless of run size.
func buildPrompt(reports []model.RequestReport) string {
	const maxSample = 25
	sample := reports
	if len(sample) > maxSample {
		sample = sample[:maxSample]
	}

	type line struct {
		Method   string `json:"method"`
		Path     string `json:"path"`
		Status   int    `json:"status"`
		Passed   bool   `json:"overallPassed"`
		FailedOn string `json:"failedOn,omitempty"`
	}
	lines := make([]line, 0, len(sample))
	for _, r := range sample {
		l := line{Method: r.RequestMethod, Path: r.RequestPath, Status: r.ResponseStatusCode, Passed: r.OverallPassed()}
		for _, o := range r.PropertyOutcomes {
			if !o.Result.Passed {
				l.FailedOn = o.Name
				break
			}
		}
		lines = append(lines, l)
	}
	data, _ := json.Marshal(lines)
	return fmt.Sprintf("Observed request/response reports (%d of %d total):\n%s", len(sample), len(reports), string(data))
}
