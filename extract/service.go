// Package extract turns photographed picking manifests into order rows.
//
// An image of the printed manifest table is sent to a vision model which
// returns the rows as JSON. Model output is messy in practice, so parsing
// is deliberately lenient and the result always passes through Normalize
// before it reaches the rest of the system.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
)

const extractPrompt = "Extract all picking rows from this table. " +
	"Fields: line, location, article, quantity, unit. " +
	"Return ONLY a raw JSON array. No Markdown."

// Tried in order. Newer models first would be nicer but the older flash
// models have proven the most reliable on low-light warehouse photos.
var defaultModels = []string{
	"gemini-1.5-flash",
	"gemini-1.5-flash-001",
	"gemini-1.5-pro",
	"gemini-2.0-flash-exp",
	"gemini-pro-vision",
}

// ErrExtraction is returned when no configured model produced a usable
// row set for the image.
var ErrExtraction = errors.New("no model produced a usable row set")

// Row is a single manifest line as the model reported it, before
// normalization. Zero values mean the model omitted the field.
type Row struct {
	Line     string
	Location string
	Article  string
	Quantity int64
	Unit     string
}

type clientFactory func(ctx context.Context, model string) (llms.Model, error)

// Extractor extracts manifest rows from images, falling back through a
// list of models until one answers with parseable JSON.
type Extractor struct {
	models  []string
	logger  *slog.Logger
	factory clientFactory
}

func NewExtractor(apiKey string, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		models: slices.Clone(defaultModels),
		logger: logger,
		factory: func(ctx context.Context, model string) (llms.Model, error) {
			return googleai.New(ctx,
				googleai.WithAPIKey(apiKey),
				googleai.WithDefaultModel(model),
			)
		},
	}
}

// Extract sends the manifest image to each model in turn and returns the
// rows from the first one that answers with a non-empty JSON array.
func (e *Extractor) Extract(ctx context.Context, imageData []byte, mimeType string) ([]Row, error) {
	msg := llms.MessageContent{
		Role: llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{
			llms.BinaryPart(mimeType, imageData),
			llms.TextPart(extractPrompt),
		},
	}

	for _, model := range e.models {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		client, err := e.factory(ctx, model)
		if err != nil {
			e.logger.Warn("extract: client init failed", "model", model, "error", err)
			continue
		}
		resp, err := client.GenerateContent(ctx, []llms.MessageContent{msg})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			e.logger.Warn("extract: model call failed", "model", model, "error", err)
			continue
		}
		if len(resp.Choices) == 0 {
			e.logger.Warn("extract: empty response", "model", model)
			continue
		}
		rows, err := parseRows(resp.Choices[0].Content)
		if err != nil {
			e.logger.Warn("extract: unparseable response", "model", model, "error", err)
			continue
		}
		if len(rows) == 0 {
			e.logger.Warn("extract: model saw no rows", "model", model)
			continue
		}
		e.logger.Info("extract: manifest read", "model", model, "rows", len(rows))
		return rows, nil
	}
	return nil, fmt.Errorf("extracting manifest rows: %w", ErrExtraction)
}

// parseRows decodes a model answer into rows. Models wrap the array in
// Markdown fences or prose despite the prompt, so everything outside the
// outermost brackets is discarded and field types are coerced.
func parseRows(answer string) ([]Row, error) {
	payload := stripFences(answer)
	start := strings.Index(payload, "[")
	end := strings.LastIndex(payload, "]")
	if start < 0 || end < start {
		return nil, errors.New("no JSON array in answer")
	}
	payload = payload[start : end+1]

	var raw []map[string]any
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("decoding row array: %w", err)
	}

	rows := make([]Row, 0, len(raw))
	for _, m := range raw {
		rows = append(rows, Row{
			Line:     asString(m["line"]),
			Location: asString(m["location"]),
			Article:  asString(m["article"]),
			Quantity: asInt64(m["quantity"]),
			Unit:     asString(m["unit"]),
		})
	}
	return rows, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

func asInt64(v any) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}
