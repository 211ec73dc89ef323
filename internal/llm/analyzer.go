// Package llm implements the on-demand root-cause analyzer: a
// stateless call out to a generative model for a single anomalous log
// record, never invoked from the pipeline's own tick.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/moolen/spectre/internal/logging"
	"github.com/moolen/spectre/internal/model"
)

var analyzerLog = logging.GetLogger("llm.analyzer")

const defaultMaxTokens = 1024

// Analysis is the fixed JSON schema the model is asked to return.
type Analysis struct {
	AnomalyDetection  string   `json:"anomaly_detection"`
	RootCauseAnalysis string   `json:"root_cause_analysis"`
	Recommendations   []string `json:"recommendations"`
}

// Analyzer wraps a single Anthropic client, built once and reused for
// every analysis request.
type Analyzer struct {
	client anthropic.Client
	model  string
}

// NewAnalyzer builds an Analyzer. If apiKey is empty the SDK falls
// back to the ANTHROPIC_API_KEY environment variable.
func NewAnalyzer(apiKey, modelName string) *Analyzer {
	var client anthropic.Client
	if apiKey != "" {
		client = anthropic.NewClient(option.WithAPIKey(apiKey))
	} else {
		client = anthropic.NewClient()
	}
	return &Analyzer{client: client, model: modelName}
}

// Analyze asks the model for a root-cause explanation of record, given
// a window of surrounding records for context. It is a pure
// request/response call: no caching, no retries beyond the SDK's own
// transport layer, and it must never be called from the scheduler tick.
func (a *Analyzer) Analyze(ctx context.Context, record model.LogRecord, surrounding []model.LogRecord) (Analysis, error) {
	prompt := buildPrompt(record, surrounding)

	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: defaultMaxTokens,
		System: []anthropic.TextBlockParam{
			{Text: "You are a log analysis assistant. Respond with a single JSON object matching the requested schema and nothing else."},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return Analysis{}, fmt.Errorf("anthropic API call failed: %w", err)
	}

	var text strings.Builder
	for i := range resp.Content {
		if resp.Content[i].Type == "text" {
			text.WriteString(resp.Content[i].Text)
		}
	}

	var analysis Analysis
	if err := json.Unmarshal([]byte(text.String()), &analysis); err != nil {
		analyzerLog.ErrorWithErr("failed to parse model response as JSON", err)
		return Analysis{}, fmt.Errorf("parsing model response: %w", err)
	}
	return analysis, nil
}

func buildPrompt(record model.LogRecord, surrounding []model.LogRecord) string {
	var b strings.Builder
	b.WriteString("Analyze this anomalous log record and respond with JSON matching this schema: ")
	b.WriteString(`{"anomaly_detection": string, "root_cause_analysis": string, "recommendations": [string]}`)
	b.WriteString("\n\nAnomalous record:\n")
	fmt.Fprintf(&b, "[%s] %s: %s\n", record.Level, record.Component, record.Content)
	if len(surrounding) > 0 {
		b.WriteString("\nSurrounding records:\n")
		for _, rec := range surrounding {
			fmt.Fprintf(&b, "[%s] %s: %s\n", rec.Level, rec.Component, rec.Content)
		}
	}
	return b.String()
}
