package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"google.golang.org/genai"

	"github.com/strrl/meetscope/internal/analysis"
	"github.com/strrl/meetscope/internal/cache"
	"github.com/strrl/meetscope/internal/logging"
)

type Analyzer struct {
	client   *Client
	uploader *Uploader
}

func NewAnalyzer(client *Client, uploads cache.Store) *Analyzer {
	return &Analyzer{
		client:   client,
		uploader: NewUploader(client, uploads),
	}
}

// Analyze uploads the recordings in req, asks the model for the structured
// report and returns it validated and normalized.
func (a *Analyzer) Analyze(ctx context.Context, req analysis.Request) (*analysis.Result, error) {
	if strings.TrimSpace(req.Audio.Path) == "" {
		return nil, analysis.ErrNoAudio
	}

	opts := req.Options.WithDefaults(a.client.cfg.DefaultOptions())
	log := a.client.log.With(logging.F("model", opts.Model))

	mainFile, participants, err := a.uploader.UploadAll(ctx, req.Audio, req.Participants)
	if err != nil {
		return nil, err
	}

	schema := ResponseSchema(opts)
	resolved, err := JSONSchema(schema).Resolve(&jsonschema.ResolveOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve response schema: %w", err)
	}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	}
	if opts.Temperature != nil {
		config.Temperature = genai.Ptr(float32(*opts.Temperature))
	}

	contents := []*genai.Content{
		genai.NewContentFromParts(BuildPrompt(mainFile, participants, opts), genai.RoleUser),
	}

	log.Info("requesting analysis", logging.F("participants", len(participants)))

	resp, err := a.client.Generate(ctx, opts.Model, contents, config)
	if err != nil {
		return nil, err
	}

	text, err := responseText(resp)
	if err != nil {
		return nil, err
	}

	report, err := parseReport(text, resolved)
	if err != nil {
		return nil, err
	}

	warnings := report.Normalize()
	for _, w := range warnings {
		log.Warn("analysis warning", logging.F("detail", w))
	}

	usage := usageOf(resp)
	a.client.metrics.Tokens(usage.PromptTokens, usage.OutputTokens)

	return &analysis.Result{
		Model:    opts.Model,
		Report:   report,
		Usage:    usage,
		Warnings: warnings,
	}, nil
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: prompt blocked (%s)", ErrEmptyResponse, resp.PromptFeedback.BlockReason)
	}

	text := strings.TrimSpace(resp.Text())
	if text != "" {
		return text, nil
	}

	if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != "" {
		return "", fmt.Errorf("%w: finish reason %s", ErrEmptyResponse, resp.Candidates[0].FinishReason)
	}
	return "", ErrEmptyResponse
}

func parseReport(content string, schema *jsonschema.Resolved) (*analysis.Report, error) {
	payload := extractJSON(content)
	if payload == "" {
		return nil, fmt.Errorf("%w: no JSON object found", ErrInvalidOutput)
	}

	var raw any
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	if schema != nil {
		if err := schema.Validate(raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
		}
	}

	var report analysis.Report
	if err := json.Unmarshal([]byte(payload), &report); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}

	return &report, nil
}

// extractJSON cuts the outermost object out of the model text, which may be
// wrapped in a code fence or prose.
func extractJSON(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || end <= start {
		return ""
	}
	return strings.TrimSpace(content[start : end+1])
}

func usageOf(resp *genai.GenerateContentResponse) analysis.Usage {
	if resp.UsageMetadata == nil {
		return analysis.Usage{}
	}
	u := resp.UsageMetadata
	usage := analysis.Usage{
		PromptTokens: int(u.PromptTokenCount),
		OutputTokens: int(u.CandidatesTokenCount),
		TotalTokens:  int(u.TotalTokenCount),
	}
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.PromptTokens + usage.OutputTokens
	}
	return usage
}
