package agent

import "strings"

// Keyword tables checked in priority order. Delete wins over everything so
// "remove the task to add milk" never creates a task; list wins over create
// so "show my tasks" is never treated as "add".
var (
	deleteKeywords = []string{"remove", "delete", "get rid of", "erase"}

	listKeywords = []string{"show", "list", "what are", "what's", "display", "view", "my tasks", "see tasks"}

	createKeywords = []string{"add", "create", "new task", "make a task", "todo", "remind me"}

	completeKeywords = []string{"complete", "finish", "done", "mark as done", "finished", "completed"}
)

// ClassifyIntent maps a raw message to an Intent by substring keyword match
// on the lowercased text. Order matters: delete > list > create > complete.
func ClassifyIntent(message string) Intent {
	lower := strings.ToLower(message)

	if containsAny(lower, deleteKeywords) {
		return IntentDeleteTask
	}
	if containsAny(lower, listKeywords) {
		return IntentListTasks
	}
	if containsAny(lower, createKeywords) {
		return IntentCreateTask
	}
	if containsAny(lower, completeKeywords) {
		return IntentCompleteTask
	}
	return IntentGeneral
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
