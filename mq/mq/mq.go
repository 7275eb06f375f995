package mq

import "github.com/google/uuid"

// TopicProvider is implemented by every message: the topic is the driver the
// event belongs to. Subscribing to uuid.Nil receives every topic.
type TopicProvider interface {
	GetTopic() uuid.UUID
}

type MessageQueue[M TopicProvider] interface {
	Publish(msg M) error
	Subscribe(topic uuid.UUID) (uuid.UUID, <-chan M, error)
	DeSubscribe(id uuid.UUID) error
}

type MileageMessageQueueWrapper interface {
	GetSubmissionMessageQueue() MessageQueue[SubmissionMessage]
	GetRecordMessageQueue() MessageQueue[RecordMessage]
	Close() error
}
