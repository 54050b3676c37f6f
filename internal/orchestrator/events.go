package orchestrator

import (
	"time"

	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/domain"
)

// EventType names a round lifecycle event.
type EventType string

const (
	EventStarted    EventType = "started"
	EventAssessment EventType = "assessment"
	EventCompleted  EventType = "completed"
	EventFailed     EventType = "failed"
)

// Event reports round progress. Assessment is set for EventAssessment, Report for
// EventCompleted and EventFailed.
type Event struct {
	Type       EventType                 `json:"type"`
	RoundID    string                    `json:"round_id"`
	Startup    string                    `json:"startup"`
	Total      int                       `json:"total"`
	Completed  int                       `json:"completed"`
	Assessment *domain.PartialAssessment `json:"assessment,omitempty"`
	Report     *domain.EvaluationReport  `json:"report,omitempty"`
	Message    string                    `json:"message,omitempty"`
	Timestamp  time.Time                 `json:"timestamp"`
}

// Observer receives round events. Calls for one round are serialized.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnEvent(e Event) { f(e) }
