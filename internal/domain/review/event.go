package review

import "time"

type Action string

const (
	ActionOpened      Action = "opened"
	ActionSynchronize Action = "synchronize"
	ActionReopened    Action = "reopened"
	ActionClosed      Action = "closed"
)

type Status string

const (
	StatusQueued Status = "queued"
	StatusClosed Status = "closed"
)

const (
	EventPullRequest = "pull_request"
	EventPing        = "ping"
)

// PullRequestEvent is the canonical form of an accepted pull_request delivery.
type PullRequestEvent struct {
	EventType      string
	DeliveryID     string
	Sender         string
	InstallationID int64
	Owner          string
	Repo           string
	PRNumber       int
	BaseSHA        string
	HeadSHA        string
	Action         Action
	Status         Status
}

// Actionable reports whether the event produces review work.
func (e PullRequestEvent) Actionable() bool {
	return e.Status == StatusQueued
}

// WorkItem is the queue payload consumed by the reviewer worker.
type WorkItem struct {
	TaskID         uint64 `json:"taskId"`
	PRID           int    `json:"prId"`
	Repo           string `json:"repo"`
	Owner          string `json:"owner"`
	InstallationID int64  `json:"installationId"`
	BaseSHA        string `json:"baseSha"`
	HeadSHA        string `json:"headSha"`
	Action         Action `json:"action"`
}

func NewWorkItem(taskID uint64, event PullRequestEvent) WorkItem {
	return WorkItem{
		TaskID:         taskID,
		PRID:           event.PRNumber,
		Repo:           event.Repo,
		Owner:          event.Owner,
		InstallationID: event.InstallationID,
		BaseSHA:        event.BaseSHA,
		HeadSHA:        event.HeadSHA,
		Action:         event.Action,
	}
}

// TaskLogEntry is one audit row as read back from the store.
type TaskLogEntry struct {
	ID        uint64         `json:"id"`
	TaskID    *uint64        `json:"task_id"`
	EventType string         `json:"event_type"`
	Action    *string        `json:"action"`
	Status    *string        `json:"status"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
}

// ReviewResult is written by the reviewer worker and only read here.
type ReviewResult struct {
	ID        uint64         `json:"id"`
	TaskID    *uint64        `json:"task_id"`
	Owner     string         `json:"owner"`
	Repo      string         `json:"repo"`
	PRNumber  int            `json:"pr_number"`
	HeadSHA   string         `json:"head_sha"`
	Phase     string         `json:"phase"`
	Result    map[string]any `json:"result"`
	CreatedAt time.Time      `json:"created_at"`
}
