package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/taskbuddy/backend/internal/llm"
	"github.com/taskbuddy/backend/internal/metrics"
)

const extractionSystemPrompt = `You extract task parameters from a user's message.
Respond with a single JSON object and nothing else, no markdown, no prose:
{"title": "<short task title>", "priority": "low|medium|high", "description": "<optional detail or empty string>"}
If the user gives no priority, use "medium". Keep the title under ten words.`

// Extractor pulls create-task parameters out of a message, preferring the
// language model and falling back to deterministic rules when the model is
// unavailable or returns garbage.
type Extractor struct {
	provider llm.Provider
	logger   *zap.Logger
}

func NewExtractor(provider llm.Provider, logger *zap.Logger) *Extractor {
	return &Extractor{provider: provider, logger: logger}
}

// Extract never returns an error: a model that cannot be reached or returns
// unparseable output degrades to the rule path, and a miss on either path is
// reported through Extraction.Failed.
func (e *Extractor) Extract(ctx context.Context, message string) Extraction {
	if params, parsed := e.extractWithModel(ctx, message); parsed {
		if utf8.RuneCountInString(params.Title) < 2 {
			return Extraction{Source: SourceModel, Failed: true}
		}
		params.Title = capitalize(params.Title)
		return Extraction{Params: params, Source: SourceModel}
	}

	metrics.ExtractorFallbacks.Inc()
	params, ok := extractWithRules(message)
	if !ok {
		return Extraction{Source: SourceRules, Failed: true}
	}
	return Extraction{Params: params, Source: SourceRules}
}

func (e *Extractor) extractWithModel(ctx context.Context, message string) (TaskParams, bool) {
	if e.provider == nil {
		return TaskParams{}, false
	}

	raw, err := e.provider.Complete(ctx, extractionSystemPrompt, nil, message)
	if err != nil {
		if !errors.Is(err, llm.ErrNotConfigured) {
			e.logger.Warn("Model extraction failed, using rules", zap.Error(err))
		}
		return TaskParams{}, false
	}

	var parsed struct {
		Title       string `json:"title"`
		Priority    string `json:"priority"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &parsed); err != nil {
		e.logger.Warn("Model returned unparseable extraction", zap.String("raw", raw))
		return TaskParams{}, false
	}

	priority := strings.ToLower(strings.TrimSpace(parsed.Priority))
	switch priority {
	case "low", "medium", "high":
	default:
		priority = "medium"
	}

	return TaskParams{
		Title:       strings.TrimSpace(parsed.Title),
		Priority:    priority,
		Description: strings.TrimSpace(parsed.Description),
	}, true
}

// stripCodeFence removes a surrounding markdown code fence, with or without
// a language tag, since models add one despite instructions.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 && !strings.HasPrefix(s, "{") {
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// Create triggers checked in order; the title is whatever follows the first
// one found. "tasks"/"task" come last so "add a task to buy milk" strips the
// filler words first.
var createTriggers = []string{"create", "add", "new task", "make a task", "todo", "remind me", "tasks", "task"}

var highPriorityCues = []string{"urgent", "important", "high priority", "asap", "critical"}
var lowPriorityCues = []string{"low priority", "later", "sometime", "eventually"}

func extractWithRules(message string) (TaskParams, bool) {
	lower := strings.ToLower(message)

	priority := "medium"
	if containsAny(lower, highPriorityCues) {
		priority = "high"
	} else if containsAny(lower, lowPriorityCues) {
		priority = "low"
	}

	title := strings.TrimSpace(message)
	for _, trigger := range createTriggers {
		if idx := strings.Index(lower, trigger); idx >= 0 {
			title = strings.TrimSpace(lower[idx+len(trigger):])
			break
		}
	}
	title = strings.Trim(title, `.,!?'"`)

	if utf8.RuneCountInString(title) < 2 {
		return TaskParams{}, false
	}
	return TaskParams{Title: capitalize(title), Priority: priority}, true
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
