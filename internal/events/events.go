package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Topic is the in-process channel all lifecycle events are published on.
const Topic = "studyconnect.notifications"

// Type identifies a domain event.
type Type string

const (
	TypeRequestCreated  Type = "request.created"
	TypeTutorAssigned   Type = "request.tutor_assigned"
	TypeStatusChanged   Type = "request.status_changed"
	TypeFeedbackCreated Type = "feedback.created"
)

// Event is the envelope published after a successful mutation. Publishing is
// strictly post-commit: an event must never be emitted for a mutation that
// did not persist.
type Event struct {
	ID         string          `json:"id"`
	Type       Type            `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// RequestCreated is emitted when a student creates a request.
type RequestCreated struct {
	RequestID    string `json:"request_id"`
	Subject      string `json:"subject"`
	GradeLevel   string `json:"grade_level"`
	Description  string `json:"description"`
	StudentName  string `json:"student_name"`
	StudentEmail string `json:"student_email"`
}

// TutorAssigned is emitted when an admin assigns a tutor to an open request.
type TutorAssigned struct {
	RequestID    string `json:"request_id"`
	Subject      string `json:"subject"`
	TutorName    string `json:"tutor_name"`
	StudentName  string `json:"student_name"`
	StudentEmail string `json:"student_email"`
}

// StatusChanged is emitted on every accepted status transition.
type StatusChanged struct {
	RequestID    string `json:"request_id"`
	Subject      string `json:"subject"`
	NewStatus    string `json:"new_status"`
	StudentName  string `json:"student_name"`
	StudentEmail string `json:"student_email"`
}

// FeedbackCreated is emitted when lesson feedback is recorded.
type FeedbackCreated struct {
	TutorName  string `json:"tutor_name"`
	TutorEmail string `json:"tutor_email"`
	Lesson     string `json:"lesson"`
	Feedback   string `json:"feedback"`
	Rating     int    `json:"rating"`
}

// Publisher publishes domain events. Implementations must not block the
// caller on delivery.
type Publisher interface {
	Publish(ctx context.Context, eventType Type, payload interface{}) error
}

// NewEvent wraps a payload into the event envelope.
func NewEvent(eventType Type, payload interface{}) (*Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    raw,
	}, nil
}

// Decode unmarshals the envelope payload into dest.
func (e *Event) Decode(dest interface{}) error {
	return json.Unmarshal(e.Payload, dest)
}
