// Package queue defines the visit events exchanged over the message
// broker and the publisher/consumer that move them.
package queue

// Event types carried in VisitEvent.Type.
const (
	EventVisitStarted = "visit.started"
	EventVisitEnded   = "visit.ended"
)

// VisitEvent is published after a check-in, check-out or cancellation
// commits.  It carries enough for downstream consumers to notify the
// member or feed analytics without querying the primary database.
// Publishing is fire-and-forget: a broker failure never rolls back the
// visit mutation that produced the event.
type VisitEvent struct {
	Type        string  `json:"type"`
	VisitID     uint64  `json:"visit_id"`
	UserID      uint64  `json:"user_id"`
	GardenID    uint64  `json:"garden_id"`
	GardenCode  string  `json:"garden_code"`
	GardenName  string  `json:"garden_name"`
	DogCount    int     `json:"dog_count"`
	OccurredAt  string  `json:"occurred_at"`
	DurationMin *uint32 `json:"duration_min,omitempty"`
}
