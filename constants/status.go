package constants

// JobStatus is the canonical status for rows in "Job".
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusPending    JobStatus = "pending"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// TaskStatus is the canonical status for rows in "Task".
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// SummaryStatus is the canonical summarization flag on "DemandFile".
type SummaryStatus string

const (
	SummaryStatusNotSummarized SummaryStatus = "not_summarized"
	SummaryStatusSummarized    SummaryStatus = "summarized"
)

// Terminal reports whether a task has reached a terminal state.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// Terminal reports whether a job has reached a terminal state.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// taskTransitions encodes the task lifecycle:
// pending -> in_progress -> {completed, failed}.
var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskStatusPending:    {TaskStatusInProgress},
	TaskStatusInProgress: {TaskStatusCompleted, TaskStatusFailed},
}

// CanTransition reports whether a task may move from one status to another.
// Terminal states have no outgoing transitions.
func (s TaskStatus) CanTransition(to TaskStatus) bool {
	for _, next := range taskTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// jobTransitions encodes the job lifecycle. A job is only ever set directly
// to in_progress (at start) or failed (critical error); completed is reached
// through aggregation of its task set.
var jobTransitions = map[JobStatus][]JobStatus{
	JobStatusPending:    {JobStatusInProgress, JobStatusFailed},
	JobStatusInProgress: {JobStatusCompleted, JobStatusFailed},
}

// CanTransition reports whether a job may move from one status to another.
// Same-status writes are allowed: re-aggregating an unchanged task set is
// not a transition.
func (s JobStatus) CanTransition(to JobStatus) bool {
	if s == to {
		return true
	}
	for _, next := range jobTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}
