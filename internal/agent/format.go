package agent

import (
	"fmt"
	"strings"
)

// FormatTaskList renders the user's tasks grouped by priority, pending tasks
// itemized and completed ones as a count.
func FormatTaskList(tasks []TaskSnapshot) string {
	if len(tasks) == 0 {
		return "You don't have any tasks yet. Want to add one? 😊"
	}

	var high, medium, low, completed []TaskSnapshot
	for _, t := range tasks {
		switch {
		case t.Completed:
			completed = append(completed, t)
		case t.Priority == "high":
			high = append(high, t)
		case t.Priority == "low":
			low = append(low, t)
		default:
			medium = append(medium, t)
		}
	}

	var b strings.Builder
	plural := "s"
	if len(tasks) == 1 {
		plural = ""
	}
	fmt.Fprintf(&b, "You have %d task%s:\n\n", len(tasks), plural)

	writeBucket(&b, "**High Priority** 🔴", high)
	writeBucket(&b, "**Medium Priority** 🟡", medium)
	writeBucket(&b, "**Low Priority** 🟢", low)

	if len(completed) > 0 {
		fmt.Fprintf(&b, "**Completed** ✓ (%d tasks)\n\n", len(completed))
	}

	return strings.TrimSpace(b.String())
}

func writeBucket(b *strings.Builder, header string, tasks []TaskSnapshot) {
	if len(tasks) == 0 {
		return
	}
	b.WriteString(header + "\n")
	for i, t := range tasks {
		due := ""
		if t.DueDate != nil {
			due = fmt.Sprintf(" (Due: %s)", t.DueDate.Format("Jan 02"))
		}
		fmt.Fprintf(b, "%d. %s%s\n", i+1, t.Title, due)
	}
	b.WriteString("\n")
}

// FormatNotFound tells the user the reference missed, listing up to five of
// their tasks so they can retry with a real title.
func FormatNotFound(fragment string, pool []TaskSnapshot) string {
	titles := make([]string, 0, 5)
	for _, t := range pool {
		if len(titles) == 5 {
			break
		}
		titles = append(titles, "- "+t.Title)
	}
	return fmt.Sprintf("Task '%s' not found. Your tasks:\n%s", fragment, strings.Join(titles, "\n"))
}
