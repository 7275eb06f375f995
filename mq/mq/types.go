package mq

import (
	"time"

	"github.com/google/uuid"
)

type Action int

const (
	ActionCreate Action = iota
	ActionUpdate
	ActionDelete
	ActionCnt
)

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	case ActionDelete:
		return "delete"
	}
	return "unknown"
}

type Mode string

const (
	ModeGoChan    Mode = "go_chan"
	ModeRabbitMQ  Mode = "rabbitmq"
	ModeGCPPubSub Mode = "gcp_pub_sub"
)

// SubmissionMessage announces a lifecycle transition of a monthly submission.
type SubmissionMessage struct {
	ID               uuid.UUID `json:"id"`
	DriverID         uuid.UUID `json:"driver_id"`
	Year             int       `json:"year"`
	Month            int       `json:"month"`
	Status           string    `json:"status"` // empty once the row is gone
	SettlementAmount *int64    `json:"settlement_amount,omitempty"`
	Action           Action    `json:"action"`
	At               time.Time `json:"at"`
}

func (m SubmissionMessage) GetTopic() uuid.UUID {
	return m.DriverID
}

type RecordMessage struct {
	ID        uuid.UUID `json:"id"`
	DriverID  uuid.UUID `json:"driver_id"`
	DriveDate time.Time `json:"drive_date"`
	Distance  float64   `json:"distance"`
	Action    Action    `json:"action"`
}

func (m RecordMessage) GetTopic() uuid.UUID {
	return m.DriverID
}
