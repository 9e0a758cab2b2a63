package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aktagon/llmkit/anthropic"
	"github.com/aktagon/llmkit/anthropic/types"
)

// AnthropicCapabilities implements Capabilities against the Anthropic API
// via llmkit. Every call is stateless: a fresh request per invocation, so
// retry attempts never reuse partial state.
type AnthropicCapabilities struct {
	apiKey string
	config *Config
}

// NewAnthropicCapabilities creates the Anthropic capability backend.
func NewAnthropicCapabilities(apiKey string, config *Config) *AnthropicCapabilities {
	return &AnthropicCapabilities{apiKey: apiKey, config: config}
}

// SynthesizeOverview feeds every rendered slide to the overviewer in one call.
func (a *AnthropicCapabilities) SynthesizeOverview(_ context.Context, visuals []VisualRef) (string, error) {
	systemPrompt, err := a.config.GetOverviewerPrompt()
	if err != nil {
		return "", err
	}

	files := make([]types.File, 0, len(visuals))
	for _, visual := range visuals {
		file, err := a.uploadVisual(visual)
		if err != nil {
			return "", err
		}
		files = append(files, file)
	}

	userPrompt := fmt.Sprintf(
		"Here are the rendered slides for the entire presentation, in order (%d slides). Analyze them.",
		len(visuals))
	return a.prompt(systemPrompt, userPrompt, "", a.config.Settings.Agents.Overviewer, files...)
}

// AuditNotes runs the quality gate with structured output.
func (a *AnthropicCapabilities) AuditNotes(_ context.Context, text, language, position string) (GateVerdict, error) {
	systemPrompt, err := a.config.GetAuditorPrompt()
	if err != nil {
		return "", err
	}

	userPrompt := fmt.Sprintf(
		"Target language: %s\nSlide position: %s\n\nSpeaker notes:\n%s",
		languageName(language), position, text)

	out, err := a.prompt(systemPrompt, userPrompt, a.config.GetAuditorSchema(), a.config.Settings.Agents.Auditor)
	if err != nil {
		return "", fmt.Errorf("auditor: %w", err)
	}
	return parseVerdict(out)
}

// AnalyzeSlide extracts a structured description from one rendered slide.
func (a *AnthropicCapabilities) AnalyzeSlide(_ context.Context, visual VisualRef) (string, error) {
	systemPrompt, err := a.config.GetAnalystPrompt()
	if err != nil {
		return "", err
	}

	file, err := a.uploadVisual(visual)
	if err != nil {
		return "", err
	}

	return a.prompt(systemPrompt, "Analyze this slide.", "", a.config.Settings.Agents.Analyst, file)
}

// WriteSlideNotes generates narration for one slide.
func (a *AnthropicCapabilities) WriteSlideNotes(_ context.Context, req WriteRequest) (string, error) {
	systemPrompt, err := a.config.GetWriterPrompt()
	if err != nil {
		return "", err
	}

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

	return a.prompt(systemPrompt, sb.String(), "", a.config.Settings.Agents.Writer)
}

// TranslateNotes renders baseline narration into the target language.
func (a *AnthropicCapabilities) TranslateNotes(_ context.Context, text, targetLanguage, style, corrective string) (string, error) {
	systemPrompt, err := a.config.GetTranslatorPrompt()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Translate the following speaker notes to %s.\n", languageName(targetLanguage))
	if style != "" {
		fmt.Fprintf(&sb, "Style: %s\n", style)
	}
	fmt.Fprintf(&sb, "\nNotes:\n%s\n", text)
	if corrective != "" {
		fmt.Fprintf(&sb, "\n%s\n", corrective)
	}

	return a.prompt(systemPrompt, sb.String(), "", a.config.Settings.Agents.Translator)
}

// prompt issues one stateless request and returns the first content block.
func (a *AnthropicCapabilities) prompt(systemPrompt, userPrompt, schema string, agent AgentSettings, files ...types.File) (string, error) {
	settings := types.RequestSettings{
		Model:       agent.Model,
		MaxTokens:   agent.MaxTokens,
		Temperature: agent.Temperature,
	}
	response, err := anthropic.PromptWithSettings(systemPrompt, userPrompt, schema, a.apiKey, settings, files...)
	if err != nil {
		return "", err
	}
	if len(response.Content) == 0 {
		return "", fmt.Errorf("no content in response")
	}
	return response.Content[0].Text, nil
}

// uploadVisual pushes a rendered slide to the Files API.
func (a *AnthropicCapabilities) uploadVisual(visual VisualRef) (types.File, error) {
	file, err := anthropic.UploadFile(string(visual), a.apiKey)
	if err != nil {
		return types.File{}, fmt.Errorf("uploading slide visual %s: %w", visual, err)
	}
	return types.File{ID: file.ID}, nil
}

// parseVerdict interprets the auditor's structured response, falling back
// to a substring match when the model strays from the schema.
func parseVerdict(out string) (GateVerdict, error) {
	var parsed struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(out), &parsed); err == nil {
		switch GateVerdict(strings.ToUpper(strings.TrimSpace(parsed.Status))) {
		case VerdictUseful:
			return VerdictUseful, nil
		case VerdictUseless:
			return VerdictUseless, nil
		}
	}

	upper := strings.ToUpper(out)
	if strings.Contains(upper, string(VerdictUseless)) {
		return VerdictUseless, nil
	}
	if strings.Contains(upper, string(VerdictUseful)) {
		return VerdictUseful, nil
	}
	return "", fmt.Errorf("unparseable auditor verdict: %q", out)
}
