package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/amansir99/trustscan-ai-sub001/internal/score"
	"github.com/amansir99/trustscan-ai-sub001/internal/types"
)

// AnalyzerConfig configures the LLM analyzer.
type AnalyzerConfig struct {
	Provider    string // "openai" (default) or "ollama"
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float64
	MaxContent  int // max characters of page text sent to the model
}

// DefaultAnalyzerConfig returns sensible analyzer defaults.
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		Provider:   "openai",
		Model:      "gpt-4o-mini",
		MaxContent: 12000,
	}
}

// LLMAnalyzer implements Analyzer by asking an LLM to score the extracted
// content on the five trust dimensions and to list red flags and positive
// indicators. The model answers in JSON; the response is parsed into the
// calculator's input type.
type LLMAnalyzer struct {
	model llms.Model
	cfg   AnalyzerConfig
}

// NewLLMAnalyzer creates an LLMAnalyzer for the configured provider:
// "openai" (the default, covering any OpenAI-compatible endpoint) or
// "ollama" for locally served models.
func NewLLMAnalyzer(cfg AnalyzerConfig) (*LLMAnalyzer, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultAnalyzerConfig().Model
	}
	if cfg.MaxContent <= 0 {
		cfg.MaxContent = DefaultAnalyzerConfig().MaxContent
	}

	model, err := newProviderModel(cfg)
	if err != nil {
		return nil, err
	}

	return &LLMAnalyzer{model: model, cfg: cfg}, nil
}

// newProviderModel builds the langchaingo client for the configured
// provider.
func newProviderModel(cfg AnalyzerConfig) (llms.Model, error) {
	switch cfg.Provider {
	case "", "openai":
		opts := []openai.Option{openai.WithModel(cfg.Model)}
		if cfg.APIKey != "" {
			opts = append(opts, openai.WithToken(cfg.APIKey))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		client, err := openai.New(opts...)
		if err != nil {
			return nil, types.WrapError(types.AI_ANALYSIS_ERROR, "initializing analysis model failed", err)
		}
		return client, nil

	case "ollama":
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		client, err := ollama.New(opts...)
		if err != nil {
			return nil, types.WrapError(types.AI_ANALYSIS_ERROR, "initializing analysis model failed", err)
		}
		return client, nil

	default:
		return nil, types.NewError(types.VALIDATION_ERROR,
			fmt.Sprintf("unsupported llm provider: %q", cfg.Provider))
	}
}

// NewLLMAnalyzerWithModel creates an LLMAnalyzer on top of an existing
// model, which tests use to substitute a stub.
func NewLLMAnalyzerWithModel(model llms.Model, cfg AnalyzerConfig) *LLMAnalyzer {
	if cfg.MaxContent <= 0 {
		cfg.MaxContent = DefaultAnalyzerConfig().MaxContent
	}
	return &LLMAnalyzer{model: model, cfg: cfg}
}

// analysisResponse is the JSON shape the model is instructed to return.
type analysisResponse struct {
	Documentation      float64  `json:"documentation_quality"`
	Transparency       float64  `json:"transparency"`
	Security           float64  `json:"security_documentation"`
	Community          float64  `json:"community_engagement"`
	Technical          float64  `json:"technical_implementation"`
	RedFlags           []string `json:"red_flags"`
	PositiveIndicators []string `json:"positive_indicators"`
}

// Analyze scores the content with the LLM. All transport and parse
// failures come back as retryable AI_ANALYSIS_ERROR values so the
// orchestrator's retry policy applies.
func (a *LLMAnalyzer) Analyze(ctx context.Context, content *Content, detailed bool) (*score.AnalysisInput, error) {
	if content == nil {
		return nil, types.NewError(types.VALIDATION_ERROR, "no content to analyze")
	}

	prompt := buildAnalysisPrompt(content, detailed, a.cfg.MaxContent)

	callOpts := []llms.CallOption{llms.WithJSONMode()}
	if a.cfg.Temperature > 0 {
		callOpts = append(callOpts, llms.WithTemperature(a.cfg.Temperature))
	}

	raw, err := llms.GenerateFromSinglePrompt(ctx, a.model, prompt, callOpts...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, types.WrapRetryableError(types.TIMEOUT_ERROR, "analysis model call timed out", err)
		}
		return nil, types.WrapRetryableError(types.AI_ANALYSIS_ERROR, "analysis model call failed", err)
	}

	var parsed analysisResponse
	if err := json.Unmarshal([]byte(extractJSON(raw)), &parsed); err != nil {
		return nil, types.WrapRetryableError(types.AI_ANALYSIS_ERROR, "analysis response was not valid JSON", err)
	}

	input := &score.AnalysisInput{
		Factors: map[score.Factor]float64{
			score.FactorDocumentation: parsed.Documentation,
			score.FactorTransparency:  parsed.Transparency,
			score.FactorSecurity:      parsed.Security,
			score.FactorCommunity:     parsed.Community,
			score.FactorTechnical:     parsed.Technical,
		},
		ContentCompleteness: content.Completeness(),
	}

	for _, flag := range parsed.RedFlags {
		input.RedFlags = append(input.RedFlags, score.RedFlag(strings.ToLower(strings.TrimSpace(flag))))
	}
	for _, indicator := range parsed.PositiveIndicators {
		input.PositiveIndicators = append(input.PositiveIndicators, score.PositiveIndicator(strings.ToLower(strings.TrimSpace(indicator))))
	}

	return input, nil
}

// buildAnalysisPrompt renders the scoring instructions plus the truncated
// page content.
func buildAnalysisPrompt(content *Content, detailed bool, maxContent int) string {
	text := content.Text
	if len(text) > maxContent {
		text = text[:maxContent]
	}

	var b strings.Builder
	b.WriteString("You are a website trust auditor. Score the website below on five dimensions, ")
	b.WriteString("each 0-100: documentation_quality, transparency, security_documentation, ")
	b.WriteString("community_engagement, technical_implementation.\n")
	b.WriteString("Also list red_flags (from: active_exploit, fake_team, plagiarized_docs, anonymous_team, ")
	b.WriteString("no_contact_info, misleading_claims, broken_links, no_https) and positive_indicators ")
	b.WriteString("(from: security_audit, bug_bounty, open_source, established_history, clear_policies).\n")
	b.WriteString("Respond with a single JSON object containing exactly those keys.\n")
	if detailed {
		b.WriteString("Weigh every heading and policy page individually before scoring.\n")
	}

	fmt.Fprintf(&b, "\nURL: %s\nTitle: %s\nDescription: %s\nServed over HTTPS: %t\n",
		content.URL, content.Title, content.Description, content.HTTPS)
	if len(content.Headings) > 0 {
		fmt.Fprintf(&b, "Headings: %s\n", strings.Join(content.Headings, " | "))
	}
	fmt.Fprintf(&b, "\nContent:\n%s\n", text)

	return b.String()
}

// extractJSON returns the first top-level JSON object in a model response,
// tolerating prose or code fences around it.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}
