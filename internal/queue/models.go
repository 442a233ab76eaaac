package queue

import (
	"encoding/json"
	"strings"
	"time"
)

// Status represents the lifecycle of a work item.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusRetry      Status = "retry"
	StatusCancelled  Status = "cancelled"
)

// Priority is carried through the pipeline as an estimation hint. It does not
// influence scheduling order.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// MaxRetriesMessage is the error message set when an item exhausts its retry budget.
const MaxRetriesMessage = "Max retries exceeded"

// CancelledMessage is the error message set when a request is cancelled by the user.
const CancelledMessage = "Request cancelled by user"

var allStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
	StatusRetry,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var terminalStatuses = map[Status]struct{}{
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
}

// transitions encodes the state machine: pending → processing →
// {completed, failed, retry}; retry → processing; any non-terminal → cancelled.
var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusCompleted, StatusFailed, StatusRetry, StatusCancelled},
	StatusRetry:      {StatusProcessing, StatusCancelled},
}

// Item is one unit of work at one stage of the pipeline.
type Item struct {
	TenantKey          string
	StageKey           string
	Status             Status
	Priority           Priority
	ProcessingStrategy string
	RetryCount         int
	MaxRetries         int
	ErrorMessage       string
	PayloadJSON        string
	MetadataJSON       string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// ParsePriority converts a string into a known Priority, defaulting to medium.
func ParsePriority(value string) Priority {
	switch Priority(strings.ToLower(strings.TrimSpace(value))) {
	case PriorityHigh:
		return PriorityHigh
	case PriorityLow:
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// IsTerminal reports whether a status ends an item's lifecycle.
func IsTerminal(status Status) bool {
	_, ok := terminalStatuses[status]
	return ok
}

// CanTransition reports whether the state machine permits from → to.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the item has reached a final state.
func (i Item) IsTerminal() bool {
	return IsTerminal(i.Status)
}

// SetProcessing marks the item claimed by a poll cycle.
func (i *Item) SetProcessing() {
	i.Status = StatusProcessing
}

// SetCompleted marks the item done and persists the processor's payload.
func (i *Item) SetCompleted(payloadJSON string) {
	i.Status = StatusCompleted
	if payloadJSON != "" {
		i.PayloadJSON = payloadJSON
	}
}

// RecordFailure applies the retry rule: the retry count is incremented and
// the item moves to retry, unless the budget is exhausted, in which case it
// fails with MaxRetriesMessage. The last error message is kept for
// diagnostics and never cleared.
func (i *Item) RecordFailure(message string) {
	i.RetryCount++
	if i.RetryCount >= i.MaxRetries {
		i.RetryCount = min(i.RetryCount, i.MaxRetries)
		i.Status = StatusFailed
		i.ErrorMessage = MaxRetriesMessage
		return
	}
	i.Status = StatusRetry
	i.ErrorMessage = message
}

// Fail marks the item failed outright, bypassing the retry loop. Used for
// non-retryable failures such as validation errors.
func (i *Item) Fail(message string) {
	if i.RetryCount > i.MaxRetries {
		i.RetryCount = i.MaxRetries
	}
	i.Status = StatusFailed
	i.ErrorMessage = message
}

// Metadata decodes the free-form metadata map; nil when unset or malformed.
func (i Item) Metadata() map[string]string {
	if strings.TrimSpace(i.MetadataJSON) == "" {
		return nil
	}
	var meta map[string]string
	if err := json.Unmarshal([]byte(i.MetadataJSON), &meta); err != nil {
		return nil
	}
	return meta
}

// EncodeMetadata serializes a metadata map for storage. An empty map yields
// the empty string.
func EncodeMetadata(meta map[string]string) string {
	if len(meta) == 0 {
		return ""
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return ""
	}
	return string(data)
}

// DecodePayload unmarshals the opaque payload into out. The engine itself
// never calls this; it exists for processors and the gateway.
func (i Item) DecodePayload(out any) error {
	return json.Unmarshal([]byte(i.PayloadJSON), out)
}

// EncodePayload serializes a stage payload for storage.
func EncodePayload(payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
