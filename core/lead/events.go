package lead

import (
	"context"
	"time"
)

// Event types
const (
	EventCreated         = "lead.created"
	EventAssigned        = "lead.assigned"
	EventPriorityChanged = "lead.priority_changed"
	EventDeleted         = "lead.deleted"
)

type (
	Event struct {
		Type         string    `json:"type"`
		LeadID       string    `json:"lead_id"`
		ActorID      string    `json:"actor_id"`
		FromPriority string    `json:"from_priority,omitempty"`
		ToPriority   string    `json:"to_priority,omitempty"`
		AssignedTo   string    `json:"assigned_to,omitempty"`
		OccurredAt   time.Time `json:"occurred_at"`
	}

	// Publisher broadcasts lead events to other systems. Publishing must not block the caller for long.
	Publisher interface {
		Publish(ctx context.Context, evt Event) error
	}

	// Metrics records pipeline activity.
	Metrics interface {
		LeadCreated(source string)
		PriorityChanged(from, to string)
		LeadAssigned()
	}
)

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, Event) error { return nil }

type noopMetrics struct{}

func (noopMetrics) LeadCreated(string)             {}
func (noopMetrics) PriorityChanged(string, string) {}
func (noopMetrics) LeadAssigned()                  {}
