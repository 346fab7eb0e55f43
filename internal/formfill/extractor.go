package formfill

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/immihelp/formapi/internal/apperr"
	"github.com/immihelp/formapi/internal/config"
	"github.com/immihelp/formapi/internal/formcfg"
	"github.com/immihelp/formapi/internal/llm"
	"github.com/immihelp/formapi/pkg/logging"
)

const extractionPromptTemplate = `Based ONLY on the following document text, extract the information requested for filling the specified form.
Provide the output STRICTLY as a JSON object where keys are the field identifiers and values are the extracted information.
The field identifiers to use are: %s

Read the specific instructions in the field descriptions below carefully.
Descriptions of the fields:
%s

If information for a specific field cannot be determined according to its description, use the value "NOT_FOUND" or omit the key. Do not make up information.

Document Text:
---
%s
---

Extracted JSON Data:`

// Extractor asks the language model for the form's declared fields and
// validates the response against the config.
type Extractor struct {
	provider llm.Provider
	logger   *logging.Logger
}

func NewExtractor(provider llm.Provider) *Extractor {
	return &Extractor{
		provider: provider,
		logger:   logging.NewLogger("Extractor"),
	}
}

// Extract performs exactly one model round-trip per call. An empty
// document short-circuits to an empty result without touching the model:
// "nothing extracted" is valid input for the mapper, not an error.
func (e *Extractor) Extract(ctx context.Context, documentText string, cfg *formcfg.FormConfig) (ExtractedData, error) {
	if documentText == "" {
		e.logger.Debug("no document content, skipping model call", "formID", cfg.FormID)
		return ExtractedData{}, nil
	}

	systemPrompt := cfg.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = config.DefaultExtractionSystemPrompt
	}

	raw, err := e.provider.Generate(ctx, llm.Request{
		System:      systemPrompt,
		Prompt:      buildPrompt(documentText, cfg),
		Temperature: config.ExtractionTemperature,
	})
	if err != nil {
		return nil, err
	}

	parsed, err := parseModelResponse(raw)
	if err != nil {
		e.logger.Error("unparsable extraction response", "formID", cfg.FormID, "error", err)
		return nil, err
	}

	return filterExtracted(parsed, cfg.FieldIDs()), nil
}

func buildPrompt(documentText string, cfg *formcfg.FormConfig) string {
	ids := cfg.FieldIDs()

	var descs strings.Builder
	for _, f := range cfg.Fields {
		descs.WriteString(fmt.Sprintf("- %s: %s\n", f.ID, f.DescriptionForLLM))
	}

	return fmt.Sprintf(extractionPromptTemplate,
		strings.Join(ids, ", "),
		strings.TrimRight(descs.String(), "\n"),
		documentText,
	)
}

func parseModelResponse(raw string) (map[string]any, error) {
	cleaned := stripFences(raw)
	if cleaned == "" {
		return nil, apperr.New(apperr.ExtractionParseError, "The language model returned empty output.")
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, apperr.Wrap(apperr.ExtractionParseError, "Failed to parse extraction result from the language model.", err)
	}
	return parsed, nil
}

// stripFences removes a wrapping markdown code block, with or without a
// language tag, so fenced and unfenced payloads parse identically.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.IndexByte(s, '\n'); idx >= 0 && !strings.ContainsAny(s[:idx], "{[") {
		// drop the language tag line ("json", "JSON", ...)
		s = s[idx+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// filterExtracted drops keys the config never declared, nulls, and the
// case-insensitive NOT_FOUND sentinel. Surviving values stay untyped for
// the mapper.
func filterExtracted(parsed map[string]any, fieldIDs []string) ExtractedData {
	declared := make(map[string]bool, len(fieldIDs))
	for _, id := range fieldIDs {
		declared[id] = true
	}

	data := make(ExtractedData, len(parsed))
	for k, v := range parsed {
		if !declared[k] || v == nil {
			continue
		}
		if s, ok := v.(string); ok && strings.EqualFold(s, config.NotFoundSentinel) {
			continue
		}
		data[k] = v
	}
	return data
}
