package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskbuddy/backend/internal/db"
	"github.com/taskbuddy/backend/internal/llm"
	"github.com/taskbuddy/backend/internal/metrics"
)

const generalSystemPrompt = `You are Task Buddy, a friendly and professional AI task assistant.

Keep responses SHORT (under 100 words), HELPFUL, and NATURAL.

Your capabilities:
- Create tasks: "add task [name]"
- Show tasks: "show my tasks"
- Delete tasks: "remove [task name]"
- Complete tasks: "mark [task name] as done"

Be friendly but professional. No excessive emojis or encouragement.`

const generalFallbackResponse = "I can help you manage your tasks. Try 'add task buy milk', 'show my tasks', or 'mark buy milk as done'."

const persistenceFailureResponse = "Sorry, something went wrong while updating your tasks. Please try again."

// TaskStore is the slice of task persistence the engine needs.
type TaskStore interface {
	Create(ctx context.Context, t *db.Task) error
	ListByOwner(ctx context.Context, ownerID uuid.UUID, filter db.TaskFilter) ([]db.Task, error)
	SetCompleted(ctx context.Context, id, ownerID uuid.UUID, completed bool) error
	Delete(ctx context.Context, id, ownerID uuid.UUID) error
}

// NotificationStore records activity notifications for the owner.
type NotificationStore interface {
	Create(ctx context.Context, ownerID uuid.UUID, typ, message string) (*db.Notification, error)
}

// Engine processes one chat message end to end: classify, act on the task
// store, and build the reply.
type Engine struct {
	tasks         TaskStore
	notifications NotificationStore
	broadcaster   Broadcaster
	extractor     *Extractor
	provider      llm.Provider
	logger        *zap.Logger
}

// NewEngine wires an engine. notifications and broadcaster may be nil.
func NewEngine(tasks TaskStore, notifications NotificationStore, broadcaster Broadcaster, extractor *Extractor, provider llm.Provider, logger *zap.Logger) *Engine {
	if broadcaster == nil {
		broadcaster = NopBroadcaster{}
	}
	return &Engine{
		tasks:         tasks,
		notifications: notifications,
		broadcaster:   broadcaster,
		extractor:     extractor,
		provider:      provider,
		logger:        logger,
	}
}

// ProcessMessage handles one user message and returns the assistant reply.
// The reply is always well formed: recoverable misses (unknown reference,
// unusable fragment) and store failures alike come back as a Result with
// success=false metadata, with the underlying error logged.
func (e *Engine) ProcessMessage(ctx context.Context, userID uuid.UUID, message string, history []llm.Turn) (*Result, error) {
	intent := ClassifyIntent(message)
	start := time.Now()

	var (
		result *Result
		err    error
	)
	switch intent {
	case IntentDeleteTask:
		result, err = e.deleteTask(ctx, userID, message)
	case IntentListTasks:
		result, err = e.listTasks(ctx, userID)
	case IntentCreateTask:
		result, err = e.createTask(ctx, userID, message)
	case IntentCompleteTask:
		result, err = e.completeTask(ctx, userID, message)
	default:
		result, err = e.generalResponse(ctx, message, history)
	}

	metrics.ChatProcessingDuration.WithLabelValues(string(intent)).Observe(time.Since(start).Seconds())
	metrics.ChatMessagesProcessed.WithLabelValues(string(intent), fmt.Sprintf("%t", err == nil && succeeded(result))).Inc()

	if err != nil {
		e.logger.Error("Message processing failed",
			zap.String("intent", string(intent)),
			zap.String("user_id", userID.String()),
			zap.Error(err))
		// Store failures still produce a well-formed reply; the detail stays
		// in the logs, never in the chat.
		return &Result{
			Response: persistenceFailureResponse,
			Metadata: map[string]any{"action": string(intent), "success": false},
		}, nil
	}
	return result, nil
}

func succeeded(r *Result) bool {
	if r == nil {
		return false
	}
	if v, ok := r.Metadata["success"].(bool); ok {
		return v
	}
	return true
}

func (e *Engine) deleteTask(ctx context.Context, userID uuid.UUID, message string) (*Result, error) {
	fragment := ExtractDeleteFragment(message)
	if !FragmentUsable(fragment) {
		return &Result{
			Response: "Please specify which task you want to delete. For example: 'remove Add tasks'",
			Metadata: map[string]any{"action": "delete_task", "success": false},
		}, nil
	}

	pool, err := e.loadSnapshots(ctx, userID, db.TaskFilter{})
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return &Result{
			Response: "You don't have any tasks to delete.",
			Metadata: map[string]any{"action": "delete_task", "success": false},
		}, nil
	}

	res := ResolveReference(fragment, pool)
	if res.Task == nil {
		return &Result{
			Response: FormatNotFound(fragment, pool),
			Metadata: map[string]any{"action": "delete_task", "success": false, "task_title": fragment},
		}, nil
	}

	if err := e.tasks.Delete(ctx, res.Task.ID, userID); err != nil {
		return nil, fmt.Errorf("delete task: %w", err)
	}

	e.notify(ctx, userID, db.NotificationTaskDeleted, fmt.Sprintf("Task '%s' was deleted", res.Task.Title))
	e.broadcast(ctx, "task_deleted", map[string]any{
		"taskId":    res.Task.ID.String(),
		"userId":    userID.String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}, userID)

	return &Result{
		Response: fmt.Sprintf("✅ Task '%s' has been deleted.", res.Task.Title),
		Metadata: map[string]any{
			"action":     "delete_task",
			"success":    true,
			"task_id":    res.Task.ID.String(),
			"task_title": res.Task.Title,
		},
	}, nil
}

func (e *Engine) listTasks(ctx context.Context, userID uuid.UUID) (*Result, error) {
	pool, err := e.loadSnapshots(ctx, userID, db.TaskFilter{})
	if err != nil {
		return nil, err
	}
	return &Result{
		Response: FormatTaskList(pool),
		Metadata: map[string]any{"action": "list_tasks", "count": len(pool)},
	}, nil
}

func (e *Engine) createTask(ctx context.Context, userID uuid.UUID, message string) (*Result, error) {
	extraction := e.extractor.Extract(ctx, message)
	if extraction.Failed {
		return &Result{
			Response: "Please tell me what task you want to add. For example: 'add task buy milk'",
			Metadata: map[string]any{"action": "create_task", "success": false},
		}, nil
	}

	task := &db.Task{
		OwnerID:     userID,
		Title:       extraction.Params.Title,
		Description: extraction.Params.Description,
		Priority:    extraction.Params.Priority,
	}
	if err := e.tasks.Create(ctx, task); err != nil {
		if errors.Is(err, db.ErrConstraintViolation) {
			return &Result{
				Response: "Please tell me what task you want to add. For example: 'add task buy milk'",
				Metadata: map[string]any{"action": "create_task", "success": false},
			}, nil
		}
		return nil, fmt.Errorf("create task: %w", err)
	}

	e.notify(ctx, userID, db.NotificationTaskCreated, fmt.Sprintf("Task '%s' was created", task.Title))
	e.broadcast(ctx, "task_created", map[string]any{
		"task":      taskPayload(task),
		"userId":    userID.String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}, userID)

	return &Result{
		Response: fmt.Sprintf("✅ Task '%s' added successfully!", task.Title),
		Metadata: map[string]any{
			"action":     "create_task",
			"success":    true,
			"task_id":    task.ID.String(),
			"task_title": task.Title,
			"source":     string(extraction.Source),
		},
	}, nil
}

func (e *Engine) completeTask(ctx context.Context, userID uuid.UUID, message string) (*Result, error) {
	fragment := ExtractCompleteFragment(message)
	if !FragmentUsable(fragment) {
		return &Result{
			Response: "Please specify which task you want to mark as complete.",
			Metadata: map[string]any{"action": "complete_task", "success": false},
		}, nil
	}

	incomplete := false
	pool, err := e.loadSnapshots(ctx, userID, db.TaskFilter{Completed: &incomplete})
	if err != nil {
		return nil, err
	}

	res := ResolveReference(fragment, pool)
	if res.Task == nil {
		return &Result{
			Response: fmt.Sprintf("I couldn't find a task matching '%s'. Please check the task name.", fragment),
			Metadata: map[string]any{"action": "complete_task", "success": false},
		}, nil
	}

	if err := e.tasks.SetCompleted(ctx, res.Task.ID, userID, true); err != nil {
		return nil, fmt.Errorf("complete task: %w", err)
	}

	e.notify(ctx, userID, db.NotificationTaskCompleted, fmt.Sprintf("Task '%s' was completed", res.Task.Title))
	completed := *res.Task
	completed.Completed = true
	e.broadcast(ctx, "task_updated", map[string]any{
		"task":      snapshotPayload(&completed),
		"userId":    userID.String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}, userID)

	return &Result{
		Response: fmt.Sprintf("🎉 Great job! '%s' is now complete!", res.Task.Title),
		Metadata: map[string]any{
			"action":     "complete_task",
			"success":    true,
			"task_id":    res.Task.ID.String(),
			"task_title": res.Task.Title,
		},
	}, nil
}

func (e *Engine) generalResponse(ctx context.Context, message string, history []llm.Turn) (*Result, error) {
	reply := generalFallbackResponse
	if e.provider != nil {
		text, err := e.provider.Complete(ctx, generalSystemPrompt, history, message)
		if err == nil && text != "" {
			reply = text
		} else if err != nil && !errors.Is(err, llm.ErrNotConfigured) {
			e.logger.Warn("General response generation failed", zap.Error(err))
		}
	}
	return &Result{
		Response: reply,
		Metadata: map[string]any{"action": "general"},
	}, nil
}

func (e *Engine) loadSnapshots(ctx context.Context, userID uuid.UUID, filter db.TaskFilter) ([]TaskSnapshot, error) {
	tasks, err := e.tasks.ListByOwner(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	pool := make([]TaskSnapshot, len(tasks))
	for i, t := range tasks {
		pool[i] = TaskSnapshot{
			ID:        t.ID,
			Title:     t.Title,
			Priority:  t.Priority,
			Completed: t.Completed,
			DueDate:   t.DueDate,
		}
	}
	return pool, nil
}

func (e *Engine) notify(ctx context.Context, userID uuid.UUID, typ, message string) {
	if e.notifications == nil {
		return
	}
	if _, err := e.notifications.Create(ctx, userID, typ, message); err != nil {
		e.logger.Warn("Notification write failed", zap.String("type", typ), zap.Error(err))
	}
}

func (e *Engine) broadcast(ctx context.Context, eventType string, payload map[string]any, userID uuid.UUID) {
	if err := e.broadcaster.Broadcast(ctx, eventType, payload, userID.String()); err != nil {
		e.logger.Warn("Broadcast failed", zap.String("event_type", eventType), zap.Error(err))
	}
}

func taskPayload(t *db.Task) map[string]any {
	payload := map[string]any{
		"id":        t.ID.String(),
		"title":     t.Title,
		"priority":  t.Priority,
		"completed": t.Completed,
	}
	if t.Description != "" {
		payload["description"] = t.Description
	}
	if t.DueDate != nil {
		payload["dueDate"] = t.DueDate.UTC().Format(time.RFC3339)
	}
	return payload
}

func snapshotPayload(s *TaskSnapshot) map[string]any {
	payload := map[string]any{
		"id":        s.ID.String(),
		"title":     s.Title,
		"priority":  s.Priority,
		"completed": s.Completed,
	}
	if s.DueDate != nil {
		payload["dueDate"] = s.DueDate.UTC().Format(time.RFC3339)
	}
	return payload
}
