package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/ykvlv/legendalf-bot/internal/domain"
)

// Admission topics.
const (
	TopicAdmissionRequested = "admission.requested"
	TopicAdmissionApproved  = "admission.approved"
	TopicAdmissionDenied    = "admission.denied"
)

// Event carries fields common to every published event.
type Event struct {
	CorrelationID string    `json:"correlation_id"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewEvent stamps a fresh correlation id.
func NewEvent(now time.Time) Event {
	return Event{
		CorrelationID: uuid.New().String(),
		Timestamp:     now,
	}
}

// AdmissionRequested is published when a user joins the pending queue.
type AdmissionRequested struct {
	Event
	Profile     domain.Profile `json:"profile"`
	RequestedAt time.Time      `json:"requested_at"`
}

// AdmissionDecided is published on approve and deny.
type AdmissionDecided struct {
	Event
	UserID   int64 `json:"user_id"`
	Approved bool  `json:"approved"`
}
