package task

import "strings"

// Priority ranks how quickly a task should be picked up.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Task is a unit of work submitted for routing or coordination.
type Task struct {
	ID          string   `json:"id,omitempty"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
	Priority    Priority `json:"priority,omitempty"`
}

// TypeTag returns the task's primary type tag: the first explicit tag if
// present, otherwise the first word of the description.
func (t Task) TypeTag() string {
	if len(t.Tags) > 0 {
		return strings.ToLower(t.Tags[0])
	}
	fields := strings.Fields(strings.ToLower(t.Description))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Text returns the description plus tags lowercased, for keyword matching.
func (t Task) Text() string {
	parts := make([]string, 0, len(t.Tags)+1)
	parts = append(parts, t.Description)
	parts = append(parts, t.Tags...)
	return strings.ToLower(strings.Join(parts, " "))
}

// ContainsAny reports whether any of the keywords occurs in the task's
// description or tags. Matching is case-insensitive substring matching.
func (t Task) ContainsAny(keywords []string) bool {
	text := t.Text()
	for _, kw := range keywords {
		if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
