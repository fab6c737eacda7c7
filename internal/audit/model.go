package audit

import (
	"encoding/json"
	"time"
)

// Action enumerates audited mutation kinds.
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

// Record captures one logical mutation: who did what to which entity, with
// the entity state before and after. Before is nil for creates, After is
// nil for deletes. IP and user agent are opaque caller metadata. OpID is a
// correlation id assigned per logical operation.
type Record struct {
	ID         int64
	OpID       string
	EntityType string
	EntityID   string
	Action     Action
	Before     json.RawMessage
	After      json.RawMessage
	UserID     int64
	IP         string
	UserAgent  string
	At         time.Time
}
