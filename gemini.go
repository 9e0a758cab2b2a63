package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/vertexai/genai"
)

// GeminiCapabilities implements Capabilities on Vertex AI Gemini models.
// Models are configured per call from the stage settings, so retry
// attempts run in a fresh invocation context.
type GeminiCapabilities struct {
	client *genai.Client
	config *Config
}

// NewGeminiCapabilities creates the Gemini capability backend.
func NewGeminiCapabilities(ctx context.Context, config *Config) (*GeminiCapabilities, error) {
	projectID := config.Settings.Gemini.ProjectID
	if projectID == "" {
		projectID = os.Getenv("GOOGLE_CLOUD_PROJECT")
	}
	if projectID == "" {
		return nil, fmt.Errorf("gemini provider requires gemini.project_id in settings or GOOGLE_CLOUD_PROJECT")
	}

	client, err := genai.NewClient(ctx, projectID, config.Settings.Gemini.Region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	return &GeminiCapabilities{client: client, config: config}, nil
}

// Close releases the underlying client.
func (g *GeminiCapabilities) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// SynthesizeOverview feeds every rendered slide to the overviewer in one call.
func (g *GeminiCapabilities) SynthesizeOverview(ctx context.Context, visuals []VisualRef) (string, error) {
	systemPrompt, err := g.config.GetOverviewerPrompt()
	if err != nil {
		return "", err
	}
	model := g.model(g.config.Settings.Agents.Overviewer, systemPrompt, false)

	parts := make([]genai.Part, 0, len(visuals)+1)
	for _, visual := range visuals {
		part, err := imagePart(visual)
		if err != nil {
			return "", err
		}
		parts = append(parts, part)
	}
	parts = append(parts, genai.Text(fmt.Sprintf(
		"Here are the rendered slides for the entire presentation, in order (%d slides). Analyze them.",
		len(visuals))))

	return g.generate(ctx, model, parts...)
}

// AuditNotes runs the quality gate with JSON output forced.
func (g *GeminiCapabilities) AuditNotes(ctx context.Context, text, language, position string) (GateVerdict, error) {
	systemPrompt, err := g.config.GetAuditorPrompt()
	if err != nil {
		return "", err
	}
	model := g.model(g.config.Settings.Agents.Auditor, systemPrompt, true)

	prompt := fmt.Sprintf(
		"Target language: %s\nSlide position: %s\n\nSpeaker notes:\n%s",
		languageName(language), position, text)
	out, err := g.generate(ctx, model, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("auditor: %w", err)
	}
	return parseVerdict(out)
}

// AnalyzeSlide extracts a structured description from one rendered slide.
func (g *GeminiCapabilities) AnalyzeSlide(ctx context.Context, visual VisualRef) (string, error) {
	systemPrompt, err := g.config.GetAnalystPrompt()
	if err != nil {
		return "", err
	}
	model := g.model(g.config.Settings.Agents.Analyst, systemPrompt, false)

	part, err := imagePart(visual)
	if err != nil {
		return "", err
	}
	return g.generate(ctx, model, part, genai.Text("Analyze this slide."))
}

// WriteSlideNotes generates narration for one slide.
func (g *GeminiCapabilities) WriteSlideNotes(ctx context.Context, req WriteRequest) (string, error) {
	systemPrompt, err := g.config.GetWriterPrompt()
	if err != nil {
		return "", err
	}
	model := g.model(g.config.Settings.Agents.Writer, systemPrompt, false)

	var sb strings.Builder
	fmt.Fprintf(&sb, "TARGET LANGUAGE: %s\n", languageName(req.Language))
	fmt.Fprintf(&sb, "SLIDE POSITION: %s\n", req.SlidePosition)
	if req.Style != "" {
		fmt.Fprintf(&sb, "STYLE: %s\n", req.Style)
	}
	fmt.Fprintf(&sb, "\nGLOBAL CONTEXT:\n%s\n", req.GlobalContext)
	fmt.Fprintf(&sb, "\nPREVIOUS SLIDE:\n%s\n", req.RollingContext)
	fmt.Fprintf(&sb, "\nANALYSIS:\n%s\n", req.Analysis)
	if req.Corrective != "" {
		fmt.Fprintf(&sb, "\n%s\n", req.Corrective)
	}

	return g.generate(ctx, model, genai.Text(sb.String()))
}

// TranslateNotes renders baseline narration into the target language.
func (g *GeminiCapabilities) TranslateNotes(ctx context.Context, text, targetLanguage, style, corrective string) (string, error) {
	systemPrompt, err := g.config.GetTranslatorPrompt()
	if err != nil {
		return "", err
	}
	model := g.model(g.config.Settings.Agents.Translator, systemPrompt, false)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Translate the following speaker notes to %s.\n", languageName(targetLanguage))
	if style != "" {
		fmt.Fprintf(&sb, "Style: %s\n", style)
	}
	fmt.Fprintf(&sb, "\nNotes:\n%s\n", text)
	if corrective != "" {
		fmt.Fprintf(&sb, "\n%s\n", corrective)
	}

	return g.generate(ctx, model, genai.Text(sb.String()))
}

// model builds a configured GenerativeModel for one stage.
func (g *GeminiCapabilities) model(agent AgentSettings, systemPrompt string, jsonOutput bool) *genai.GenerativeModel {
	model := g.client.GenerativeModel(agent.Model)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt)},
	}
	cfg := genai.GenerationConfig{
		Temperature:     genai.Ptr(float32(agent.Temperature)),
		MaxOutputTokens: genai.Ptr(int32(agent.MaxTokens)),
	}
	if jsonOutput {
		cfg.ResponseMIMEType = "application/json"
	}
	model.GenerationConfig = cfg
	return model
}

// refusalPhrases indicate the model declined; treated as an error so the
// bounded retry can run.
var refusalPhrases = []string{
	"i am unable to",
	"i cannot fulfill",
	"i cannot answer",
	"i cannot provide",
	"as a large language model",
}

// generate issues one call and extracts the text parts of the first candidate.
func (g *GeminiCapabilities) generate(ctx context.Context, model *genai.GenerativeModel, parts ...genai.Part) (string, error) {
	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no candidates in response")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	out := sb.String()

	lower := strings.ToLower(out)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			return "", fmt.Errorf("model refused: %q", truncateRunes(out, 120))
		}
	}
	return out, nil
}

// imagePart loads a rendered slide from disk as an inline image part.
func imagePart(visual VisualRef) (genai.Part, error) {
	data, err := os.ReadFile(string(visual))
	if err != nil {
		return nil, fmt.Errorf("reading slide visual %s: %w", visual, err)
	}

	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(string(visual))), ".")
	if format == "jpg" {
		format = "jpeg"
	}
	if format == "" {
		format = "png"
	}
	return genai.ImageData(format, data), nil
}
