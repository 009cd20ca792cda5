package model

import (
	"encoding/json"
)

// LogRecord is an ABI-encoded pool event as written to the journal.
type LogRecord struct {
	Sequence  uint64   `json:"sequence"`
	Address   string   `json:"address"`
	EventName string   `json:"event_name"`
	Topics    []string `json:"topics"`
	Data      string   `json:"data"`
	Timestamp uint64   `json:"timestamp"`
	EmittedAt string   `json:"emitted_at"`
}

// Topic0 returns the event signature topic, or "" when absent.
func (lr LogRecord) Topic0() string {
	if len(lr.Topics) == 0 {
		return ""
	}
	return lr.Topics[0]
}

// MarshalJSON ensures LogRecord is encoded with stable field names.
func (lr LogRecord) MarshalJSON() ([]byte, error) {
	type Alias LogRecord
	return json.Marshal(Alias(lr))
}

// UnmarshalJSON decodes a LogRecord from JSON.
func (lr *LogRecord) UnmarshalJSON(data []byte) error {
	type Alias LogRecord
	var a Alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*lr = LogRecord(a)
	return nil
}
