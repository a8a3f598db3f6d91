package amqp

import (
	"encoding/json"
	"time"

	"balances/internal/view"
)

// LoadEventType is the type field of every load event.
const LoadEventType = "balances.loaded"

// LoadEvent reports one finished snapshot load. It carries counts only, never
// balances.
type LoadEvent struct {
	Type           string    `json:"type"`
	AsOf           string    `json:"asOf,omitempty"`
	Success        bool      `json:"success"`
	Error          string    `json:"error,omitempty"`
	People         int       `json:"people"`
	Accounts       int       `json:"accounts"`
	FailedAccounts int       `json:"failedAccounts"`
	DurationMs     int64     `json:"durationMs"`
	Timestamp      time.Time `json:"timestamp"`
}

// NewLoadEvent summarizes o.
func NewLoadEvent(o view.LoadOutcome) *LoadEvent {
	ev := &LoadEvent{
		Type:       LoadEventType,
		Success:    o.Err == nil,
		DurationMs: o.Duration.Milliseconds(),
		Timestamp:  time.Now().UTC(),
	}
	if o.Err != nil {
		ev.Error = o.Err.Error()
		return ev
	}
	ev.AsOf = o.View.AsOf
	ev.People = len(o.View.Groups)
	ev.Accounts = o.View.AccountCount()
	ev.FailedAccounts = o.View.FailedAccounts()
	return ev
}

// ToJSON converts the event to JSON bytes
func (e *LoadEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LoadEventFromJSON decodes an event published by PublishLoad.
func LoadEventFromJSON(data []byte) (*LoadEvent, error) {
	var ev LoadEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
