package council

import "github.com/conclave-ai/conclave/internal/model"

// EventType names a pipeline progress event
type EventType string

// Event types, in emission order for a successful turn. An error event may
// appear at any point and terminates the stream for that turn.
const (
	EventStage1Start     EventType = "stage1_start"
	EventStage1Complete  EventType = "stage1_complete"
	EventStage2Start     EventType = "stage2_start"
	EventStage2Complete  EventType = "stage2_complete"
	EventStage25Start    EventType = "stage25_start"
	EventStage25Complete EventType = "stage25_complete"
	EventStage3Start     EventType = "stage3_start"
	EventStage3Complete  EventType = "stage3_complete"
	EventTitleComplete   EventType = "title_complete"
	EventComplete        EventType = "complete"
	EventError           EventType = "error"
)

// Event is one progress notification emitted to the boundary
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload,omitempty"`
}

// Emitter receives progress events. Implementations must not block the
// pipeline for long; the SSE server writes synchronously, the CLI logs.
type Emitter interface {
	Emit(Event)
}

// EmitterFunc adapts a function to the Emitter interface
type EmitterFunc func(Event)

// Emit calls f(e)
func (f EmitterFunc) Emit(e Event) { f(e) }

// NopEmitter discards all events
var NopEmitter Emitter = EmitterFunc(func(Event) {})

// Stage2Payload is the stage2_complete payload. The label map and aggregate
// rankings travel only here; they are never persisted.
type Stage2Payload struct {
	Rankings  []model.RankingResult    `json:"rankings"`
	LabelMap  map[string]string        `json:"label_map"`
	Aggregate []model.AggregateRanking `json:"aggregate_rankings"`
}

// Stage3Payload is the stage3_complete payload
type Stage3Payload struct {
	Model    string `json:"model"`
	Response string `json:"response"`
}

// TitlePayload is the title_complete payload
type TitlePayload struct {
	Title string `json:"title"`
}

// ErrorPayload is the error payload
type ErrorPayload struct {
	Message string `json:"message"`
}
