package rabbit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"mileage/mq/mq"
)

const (
	submissionKind = "submission"
	recordKind     = "record"
)

// routingKey is "<kind>.<driver id>"; the nil topic binds to every driver.
func routingKey(kind string, topic uuid.UUID) string {
	if topic == uuid.Nil {
		return kind + ".*"
	}
	return kind + "." + topic.String()
}

// rabbitMessageQueue publishes JSON messages of one kind to the topic
// exchange. Every subscriber owns a private channel and an exclusive queue.
type rabbitMessageQueue[M mq.TopicProvider] struct {
	kind      string
	log       logrus.FieldLogger
	conn      *amqp.Connection
	pubMu     sync.Mutex
	channel   *amqp.Channel
	mu        sync.Mutex
	consumers map[uuid.UUID]*amqp.Channel
}

func newRabbitMessageQueue[M mq.TopicProvider](kind string, conn *amqp.Connection, log logrus.FieldLogger) (*rabbitMessageQueue[M], error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	if err := declareExchange(ch); err != nil {
		ch.Close()
		return nil, err
	}
	return &rabbitMessageQueue[M]{
		kind:      kind,
		log:       log.WithField("queue", kind),
		conn:      conn,
		channel:   ch,
		consumers: make(map[uuid.UUID]*amqp.Channel),
	}, nil
}

func (q *rabbitMessageQueue[M]) Publish(msg M) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal %s message: %w", q.kind, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	q.pubMu.Lock()
	defer q.pubMu.Unlock()
	err = q.channel.PublishWithContext(ctx,
		exchangeName,                       // exchange
		routingKey(q.kind, msg.GetTopic()), // routing key
		false,                              // mandatory
		false,                              // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Timestamp:   time.Now(),
			Body:        body,
		})
	if err != nil {
		return fmt.Errorf("failed to publish %s message: %w", q.kind, err)
	}
	return nil
}

func (q *rabbitMessageQueue[M]) Subscribe(topic uuid.UUID) (uuid.UUID, <-chan M, error) {
	ch, err := q.conn.Channel()
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("failed to open a consumer channel: %w", err)
	}
	queue, err := ch.QueueDeclare(
		"",    // name, server generated
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		return uuid.Nil, nil, fmt.Errorf("failed to declare a queue: %w", err)
	}
	if err := ch.QueueBind(queue.Name, routingKey(q.kind, topic), exchangeName, false, nil); err != nil {
		ch.Close()
		return uuid.Nil, nil, fmt.Errorf("failed to bind queue %s: %w", queue.Name, err)
	}
	deliveries, err := ch.Consume(
		queue.Name, // queue
		"",         // consumer
		true,       // auto-ack
		true,       // exclusive
		false,      // no-local
		false,      // no-wait
		nil,        // args
	)
	if err != nil {
		ch.Close()
		return uuid.Nil, nil, fmt.Errorf("failed to register a consumer: %w", err)
	}

	subscriberID := uuid.New()
	out := make(chan M)

	q.mu.Lock()
	q.consumers[subscriberID] = ch
	q.mu.Unlock()

	go q.relay(subscriberID, deliveries, out, time.Second)

	return subscriberID, out, nil
}

// relay decodes deliveries into out until deliveries closes, which happens
// once DeSubscribe closes the consumer channel. A message the consumer does
// not take within wait is dropped.
func (q *rabbitMessageQueue[M]) relay(subscriberID uuid.UUID, deliveries <-chan amqp.Delivery, out chan<- M, wait time.Duration) {
	defer close(out)
	log := q.log.WithField("subscriber", subscriberID)
	for d := range deliveries {
		var msg M
		if err := json.Unmarshal(d.Body, &msg); err != nil {
			log.WithError(err).Warn("failed to unmarshal message")
			continue
		}
		select {
		case out <- msg:
		case <-time.After(wait):
			log.Warn("consumer too slow, message dropped")
		}
	}
}

func (q *rabbitMessageQueue[M]) DeSubscribe(subscriberID uuid.UUID) error {
	q.mu.Lock()
	ch, ok := q.consumers[subscriberID]
	delete(q.consumers, subscriberID)
	q.mu.Unlock()

	if !ok {
		return fmt.Errorf("consumer with ID %s not found for %s queue", subscriberID, q.kind)
	}
	return ch.Close()
}

func (q *rabbitMessageQueue[M]) close() error {
	q.mu.Lock()
	for id, ch := range q.consumers {
		ch.Close()
		delete(q.consumers, id)
	}
	q.mu.Unlock()
	return q.channel.Close()
}

type RabbitMileageMessageQueueWrapper struct {
	submissions *rabbitMessageQueue[mq.SubmissionMessage]
	records     *rabbitMessageQueue[mq.RecordMessage]
	conn        *amqp.Connection
}

func NewRabbitMileageMessageQueueWrapper(conn *amqp.Connection, log logrus.FieldLogger) (*RabbitMileageMessageQueueWrapper, error) {
	submissions, err := newRabbitMessageQueue[mq.SubmissionMessage](submissionKind, conn, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create submission mq: %w", err)
	}
	records, err := newRabbitMessageQueue[mq.RecordMessage](recordKind, conn, log)
	if err != nil {
		submissions.close()
		return nil, fmt.Errorf("failed to create record mq: %w", err)
	}
	return &RabbitMileageMessageQueueWrapper{submissions: submissions, records: records, conn: conn}, nil
}

func (w *RabbitMileageMessageQueueWrapper) GetSubmissionMessageQueue() mq.MessageQueue[mq.SubmissionMessage] {
	return w.submissions
}

func (w *RabbitMileageMessageQueueWrapper) GetRecordMessageQueue() mq.MessageQueue[mq.RecordMessage] {
	return w.records
}

// Close shuts both queues and the connection.
func (w *RabbitMileageMessageQueueWrapper) Close() error {
	w.submissions.close()
	w.records.close()
	return w.conn.Close()
}
