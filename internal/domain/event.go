package domain

import "time"

type EventType string

const (
	EventFeed     EventType = "feed"
	EventBase     EventType = "base"
	EventAntifoam EventType = "antifoam"
	EventInducer  EventType = "inducer"
	EventAdditive EventType = "additive"
	EventHarvest  EventType = "harvest"
	EventSample   EventType = "sample"
	EventNote     EventType = "note"
	EventGas      EventType = "gas"
	EventSystem   EventType = "system"
)

// DosingEvent reports whether events of this type carry a required amount.
func (t EventType) DosingEvent() bool {
	switch t {
	case EventFeed, EventBase, EventAntifoam, EventInducer, EventAdditive:
		return true
	default:
		return false
	}
}

// ProcessEvent is one parsed line of the process event log.
type ProcessEvent struct {
	RunID      string    `json:"run_id"`
	Timestamp  time.Time `json:"timestamp"`
	Type       EventType `json:"event_type"`
	Subtype    string    `json:"subtype,omitempty"`
	Amount     *float64  `json:"amount,omitempty"`
	AmountUnit string    `json:"amount_unit,omitempty"`
	Actor      string    `json:"actor"`
	EntryMode  EntryMode `json:"entry_mode"`
	Notes      string    `json:"notes,omitempty"`
}
