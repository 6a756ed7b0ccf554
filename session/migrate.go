package session

import (
	"encoding/json"
	"fmt"
)

// migrate brings a persisted document forward to the current
// RecordVersion. A version-less document (pre-dates the version tag)
// is treated as already-"v1" shaped, since v1 is the only shape this
// implementation has ever produced; a document claiming a newer
// version than we understand is rejected rather than silently
// misread.
func migrate(data []byte) ([]byte, error) {
	var probe struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("session: migrate: %w", err)
	}
	switch probe.Version {
	case "", RecordVersion:
		return data, nil
	default:
		return nil, fmt.Errorf("session: migrate: unsupported record version %q", probe.Version)
	}
}
