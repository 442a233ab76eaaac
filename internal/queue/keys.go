package queue

import (
	"fmt"
	"strings"
	"time"
)

// KeySeparator joins the components of tenant and stage keys.
const KeySeparator = "#"

// NewTenantKey builds the composite identifier shared by every item
// belonging to one request across all stages.
func NewTenantKey(projectID, requestID string) string {
	return projectID + KeySeparator + requestID
}

// SplitTenantKey returns the project and request components of a tenant key.
func SplitTenantKey(tenantKey string) (projectID, requestID string, ok bool) {
	parts := strings.SplitN(tenantKey, KeySeparator, 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// NewStageKey mints a stage-scoped key with a fresh creation timestamp.
// Nanosecond precision keeps keys unique within a tenant/stage pair while
// preserving chronological ordering.
func NewStageKey(stage string) string {
	return fmt.Sprintf("%s%s%s", stage, KeySeparator, time.Now().UTC().Format(time.RFC3339Nano))
}

// StageKeyTime extracts the creation timestamp embedded in a stage key.
func StageKeyTime(stageKey string) (time.Time, bool) {
	idx := strings.Index(stageKey, KeySeparator)
	if idx < 0 {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339Nano, stageKey[idx+1:])
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}
