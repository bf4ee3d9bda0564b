package core

import "time"

// TaskStatus is the lifecycle state of a task. The only legal transitions are
// pending -> in_progress -> completed | failed; the two terminal states are
// final.
type TaskStatus string

const (
	// TaskPending marks a task that has been created but not started.
	TaskPending TaskStatus = "pending"
	// TaskInProgress marks a task currently driven by an orchestrator run.
	TaskInProgress TaskStatus = "in_progress"
	// TaskCompleted marks a task whose run reached a final answer.
	TaskCompleted TaskStatus = "completed"
	// TaskFailed marks a task whose run terminated with an error cause.
	TaskFailed TaskStatus = "failed"
)

// Terminal reports whether the status is final.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// MessageAuthor identifies who produced a transcript message.
type MessageAuthor string

const (
	// AuthorSystem marks orchestrator-generated messages (lifecycle notes,
	// observations, the final answer, terminal causes).
	AuthorSystem MessageAuthor = "system"
	// AuthorAgent marks replies produced by an invoked agent capability.
	AuthorAgent MessageAuthor = "agent"
	// AuthorUser marks the original task statement and any user input.
	AuthorUser MessageAuthor = "user"
)

// Task is one unit of work assigned to a crew.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	CrewID      string     `json:"crew_id"`
	Status      TaskStatus `json:"status"`
	// Error holds the terminal cause when Status is TaskFailed.
	Error     string     `json:"error,omitempty"`
	Created   time.Time  `json:"created"`
	Started   *time.Time `json:"started,omitempty"`
	Completed *time.Time `json:"completed,omitempty"`
}

// TaskMessage is one entry of a task transcript. Messages are append-only and
// their creation order is the source of truth for the conversation as the
// oracle sees it.
type TaskMessage struct {
	ID     string        `json:"id"`
	TaskID string        `json:"task_id"`
	Author MessageAuthor `json:"author"`
	// AgentName is set when Author is AuthorAgent.
	AgentName string    `json:"agent_name,omitempty"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTask constructs a pending task for a crew.
func NewTask(crewID, title, description string) *Task {
	return &Task{
		ID:          NewID(),
		Title:       title,
		Description: description,
		CrewID:      crewID,
		Status:      TaskPending,
		Created:     time.Now().UTC(),
	}
}

// NewTaskMessage constructs a transcript message stamped with the current time.
func NewTaskMessage(taskID string, author MessageAuthor, agentName, content string) TaskMessage {
	return TaskMessage{
		ID:        NewID(),
		TaskID:    taskID,
		Author:    author,
		AgentName: agentName,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}
