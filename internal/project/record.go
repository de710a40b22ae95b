package project

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimestampLayout is fixed width so that stored timestamps sort lexically.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// layouts accepted when reading. TimestampLayout ends in a literal Z, so it
// is read as UTC. Older files carry naive timestamps written in the host's
// local time, so values without a zone are read in time.Local.
var readLayouts = []struct {
	layout string
	loc    *time.Location
}{
	{TimestampLayout, time.UTC},
	{time.RFC3339Nano, time.UTC},
	{"2006-01-02T15:04:05.999999", time.Local},
}

// Timestamp is a UTC instant persisted as TimestampLayout text.
type Timestamp struct {
	time.Time
}

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{t.UTC().Truncate(time.Microsecond)}
}

func (t Timestamp) String() string {
	return t.UTC().Format(TimestampLayout)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseTimestamp reads any of the accepted timestamp forms.
func ParseTimestamp(s string) (Timestamp, error) {
	for _, r := range readLayouts {
		if parsed, err := time.ParseInLocation(r.layout, s, r.loc); err == nil {
			return NewTimestamp(parsed), nil
		}
	}
	return Timestamp{}, fmt.Errorf("timestamp: unrecognised value %q", s)
}

// Record is one saved project, stored as <ID>.json.
type Record struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	HTMLContent   string    `json:"html_content"`
	PromptHistory []string  `json:"prompt_history"`
	CreatedAt     Timestamp `json:"created_at"`
	UpdatedAt     Timestamp `json:"updated_at"`
}
