package types

import "time"

type TaskState string

const (
	TaskQueued       TaskState = "queued"
	TaskDownloading  TaskState = "downloading"
	TaskTranscribing TaskState = "transcribing"
	TaskIndexing     TaskState = "indexing"
	TaskCompleted    TaskState = "completed"
	TaskError        TaskState = "error"
)

// TaskStatus tracks a background job. Progress is a percentage, 0-100.
type TaskStatus struct {
	ID             string         `json:"id"`
	Status         TaskState      `json:"status"`
	Progress       float64        `json:"progress"`
	Error          string         `json:"error,omitempty"`
	CurrentSegment int            `json:"current_segment,omitempty"`
	TotalSegments  int            `json:"total_segments,omitempty"`
	CurrentFile    string         `json:"current_file,omitempty"`
	Results        map[string]any `json:"results,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// TaskUpdate is a partial TaskStatus. Nil fields are left untouched.
type TaskUpdate struct {
	Status         *TaskState
	Progress       *float64
	Error          *string
	CurrentSegment *int
	TotalSegments  *int
	CurrentFile    *string
	Results        map[string]any
}

func (u TaskUpdate) WithStatus(s TaskState) TaskUpdate {
	u.Status = &s
	return u
}

func (u TaskUpdate) WithProgress(p float64) TaskUpdate {
	u.Progress = &p
	return u
}

func (u TaskUpdate) WithError(msg string) TaskUpdate {
	u.Error = &msg
	return u
}

func (u TaskUpdate) WithFile(name string) TaskUpdate {
	u.CurrentFile = &name
	return u
}

func (u TaskUpdate) WithSegments(current, total int) TaskUpdate {
	u.CurrentSegment = &current
	u.TotalSegments = &total
	return u
}

func (u TaskUpdate) WithResults(r map[string]any) TaskUpdate {
	u.Results = r
	return u
}
