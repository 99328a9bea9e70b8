package auditlog

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/frahmantamala/admin-console/internal/backend"
)

// Entry is one audit row as written by the backend procedures.
type Entry struct {
	ID           int64           `json:"id"`
	UserID       int64           `json:"user_id"`
	Action       string          `json:"action"`
	Timestamp    time.Time       `json:"timestamp"`
	CustomFields json.RawMessage `json:"custom_fields"`
}

func FromRecord(r backend.LogRecord) Entry {
	return Entry{
		ID:           r.ID,
		UserID:       r.UserID,
		Action:       r.Action,
		Timestamp:    r.Timestamp,
		CustomFields: r.CustomFields,
	}
}

// PrettyFields renders custom_fields as indented JSON for display.
// Anything that is not valid JSON is returned as-is.
func (e Entry) PrettyFields() string {
	if len(e.CustomFields) == 0 || string(e.CustomFields) == "null" {
		return "{}"
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, e.CustomFields, "", "  "); err != nil {
		return string(e.CustomFields)
	}
	return buf.String()
}
