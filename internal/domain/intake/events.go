package intake

import (
	"context"
	"encoding/json"
	"time"

	"github.com/medicenter/medicenter/internal/platform/websocket"
)

// Event types published on a facility topic.
const (
	EventQueued      = "record.queued"
	EventClaimed     = "record.claimed"
	EventRequeued    = "record.requeued"
	EventConfirmed   = "record.confirmed"
	EventTransferred = "record.transferred"
)

// Event describes one queue or record change at a facility.
type Event struct {
	Type       string    `json:"type"`
	FacilityID string    `json:"facility_id"`
	PatientID  string    `json:"patient_id"`
	RecordID   string    `json:"record_id"`
	Position   int       `json:"position,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	At         time.Time `json:"at"`
}

// Publisher receives events after the dispatcher has released its lock.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) error { return nil }

// FacilityTopic names the websocket topic for a facility.
func FacilityTopic(facilityID string) string {
	return "facility/" + facilityID
}

// HubPublisher forwards events to websocket subscribers of the facility
// topic.
type HubPublisher struct {
	hub websocket.EventPublisher
}

func NewHubPublisher(hub websocket.EventPublisher) *HubPublisher {
	return &HubPublisher{hub: hub}
}

func (p *HubPublisher) Publish(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return p.hub.Publish(ctx, websocket.Event{
		Type:       e.Type,
		Topic:      FacilityTopic(e.FacilityID),
		ResourceID: e.RecordID,
		Timestamp:  e.At,
		Data:       data,
	})
}
