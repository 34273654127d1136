package models

import "strings"

type TaskStatus string

const (
	TaskTodo       TaskStatus = "TODO"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskInReview   TaskStatus = "IN_REVIEW"
	TaskDone       TaskStatus = "DONE"
	TaskBlocked    TaskStatus = "BLOCKED"
)

func ParseTaskStatus(s string) (TaskStatus, bool) {
	st := TaskStatus(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), " ", "_")))
	switch st {
	case TaskTodo, TaskInProgress, TaskInReview, TaskDone, TaskBlocked:
		return st, true
	}
	return "", false
}

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

func ParsePriority(s string) (Priority, bool) {
	p := Priority(strings.ToUpper(strings.TrimSpace(s)))
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return p, true
	}
	return "", false
}

type Frequency string

const (
	FrequencyDaily   Frequency = "DAILY"
	FrequencyWeekly  Frequency = "WEEKLY"
	FrequencyMonthly Frequency = "MONTHLY"
	FrequencyYearly  Frequency = "YEARLY"
)

// Recurrence is stored as JSON on the template task.
type Recurrence struct {
	Frequency      Frequency `json:"frequency"`
	Interval       int       `json:"interval"`
	NextOccurrence int64     `json:"next_occurrence"`
	LastCreated    *int64    `json:"last_created,omitempty"`
}

type Task struct {
	ID             string      `json:"id"`
	OrganizationID string      `json:"organization_id"`
	ProjectID      string      `json:"project_id"`
	Title          string      `json:"title"`
	Description    string      `json:"description"`
	Status         TaskStatus  `json:"status"`
	Priority       Priority    `json:"priority"`
	AssigneeID     *string     `json:"assignee_id,omitempty"`
	Tags           []string    `json:"tags"`
	DueDate        *int64      `json:"due_date,omitempty"`
	Recurrence     *Recurrence `json:"recurrence,omitempty"`
	ParentTaskID   *string     `json:"parent_task_id,omitempty"`
	CreatedBy      string      `json:"created_by"`
	CreatedAt      int64       `json:"created_at"`
	UpdatedAt      int64       `json:"updated_at"`
}
