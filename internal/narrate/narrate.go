// Package narrate is the optional LLM narration pass: it rewrites a
// verdict's deterministic reasoning text into prose for human readers.
// It never changes a score, the decision, or the violations list, and the
// pipeline works identically with narration disabled.
package narrate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/sentinel-governance/sentinel/internal/model"
)

const systemPrompt = "You are the narration layer of an infrastructure " +
	"governance engine. Rewrite the verdict summary you are given as one " +
	"short paragraph of plain prose for an operations engineer. Keep every " +
	"number, decision, policy id, and resource id exactly as given. Do not " +
	"add recommendations, headings, or markdown. Respond with the paragraph " +
	"only."

const maxTokens = 1024

// Narrator rewrites verdict reasoning via the Anthropic Messages API.
type Narrator struct {
	client anthropic.Client
	model  string
}

// New creates a Narrator for the given API key and model. Extra request
// options (base URL, HTTP client) are passed through to the SDK, which
// tests use to point the client at a stub server.
func New(apiKey, modelName string, opts ...option.RequestOption) *Narrator {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Narrator{
		client: anthropic.NewClient(opts...),
		model:  modelName,
	}
}

// Narrate replaces verdict.Reason with a prose rendering of the same facts.
// On any error, or an empty model response, the deterministic text is kept
// and the error (if any) is returned for the caller to log.
func (n *Narrator) Narrate(ctx context.Context, verdict *model.GovernanceVerdict) error {
	prompt, err := verdictPrompt(verdict)
	if err != nil {
		return fmt.Errorf("building narration prompt: %w", err)
	}

	resp, err := n.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(n.model),
		MaxTokens: maxTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return fmt.Errorf("anthropic API error: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	prose := strings.TrimSpace(text.String())
	if prose == "" {
		return nil
	}
	verdict.Reason = prose
	return nil
}

// verdictPrompt renders the facts the model is allowed to restate. Scores
// and sub-result reasoning go in as data; the model only ever produces
// replacement prose, never a new judgment.
func verdictPrompt(verdict *model.GovernanceVerdict) (string, error) {
	facts := map[string]any{
		"decision":           verdict.Decision,
		"sri":                verdict.SRI,
		"violations":         verdict.Violations,
		"deterministic_text": verdict.Reason,
	}
	if r := verdict.SubResults.BlastRadius; r != nil {
		facts["blast_radius"] = r.Reasoning
	}
	if r := verdict.SubResults.Policy; r != nil {
		facts["policy"] = r.Reasoning
	}
	if r := verdict.SubResults.Historical; r != nil {
		facts["historical"] = r.Reasoning
	}
	if r := verdict.SubResults.Financial; r != nil {
		facts["financial"] = r.Reasoning
	}
	raw, err := json.Marshal(facts)
	if err != nil {
		return "", err
	}
	return "Verdict facts:\n" + string(raw), nil
}
