// Package agent turns natural-language chat messages into task operations.
package agent

import (
	"time"

	"github.com/google/uuid"
)

// Intent is the classified purpose of a chat message.
type Intent string

const (
	IntentCreateTask   Intent = "create_task"
	IntentListTasks    Intent = "list_tasks"
	IntentCompleteTask Intent = "complete_task"
	IntentDeleteTask   Intent = "delete_task"
	IntentGeneral      Intent = "general"
)

// TaskSnapshot is a read-only view of a task used for reference resolution
// and response formatting.
type TaskSnapshot struct {
	ID        uuid.UUID
	Title     string
	Priority  string
	Completed bool
	DueDate   *time.Time
}

// TaskParams holds parameters extracted from a create request.
type TaskParams struct {
	Title       string
	Priority    string
	Description string
}

// ExtractionSource says which path produced the parameters.
type ExtractionSource string

const (
	// SourceModel means the language model produced valid structured output.
	SourceModel ExtractionSource = "model"
	// SourceRules means extraction fell back to the deterministic rules.
	SourceRules ExtractionSource = "rules"
)

// Extraction is the outcome of parameter extraction. Failed is set when
// neither path could produce a usable title.
type Extraction struct {
	Params TaskParams
	Source ExtractionSource
	Failed bool
}

// Resolution is the outcome of resolving a task reference against the
// caller's tasks.
type Resolution struct {
	Task     *TaskSnapshot // nil when not found
	Tier     string        // "exact", "substring", or "overlap"
	EmptyRef bool          // fragment was too short to attempt a match
}

// Result is what the engine returns for one processed message.
type Result struct {
	Response string         `json:"response"`
	Metadata map[string]any `json:"metadata"`
}
