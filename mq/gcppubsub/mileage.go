package gcppubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"mileage/mq/mq"
)

const (
	driverIDAttribute = "driverId"

	submissionTopicID = "mileage-submission-events"
	recordTopicID     = "mileage-record-events"
)

type subscriptionInfo struct {
	gcpSubscription *pubsub.Subscription
	cancel          context.CancelFunc
}

// GenericPubSubService provides a generic implementation for GCP Pub/Sub operations.
type GenericPubSubService[M mq.TopicProvider] struct {
	client              *pubsub.Client
	topic               *pubsub.Topic
	activeSubscriptions map[uuid.UUID]*subscriptionInfo
	subscriptionsMutex  sync.Mutex
	ctx                 context.Context
	log                 logrus.FieldLogger
}

// NewGenericPubSubService ensures the Pub/Sub topic exists, creating it if necessary.
func NewGenericPubSubService[M mq.TopicProvider](ctx context.Context, client *pubsub.Client, topicID string, log logrus.FieldLogger) (*GenericPubSubService[M], error) {
	if client == nil {
		return nil, fmt.Errorf("GCP Pub/Sub client is nil")
	}

	log = log.WithField("topic", topicID)
	topic := client.Topic(topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check for existence of topic %s: %w", topicID, err)
	}
	if !exists {
		topic, err = client.CreateTopic(ctx, topicID)
		if err != nil {
			return nil, fmt.Errorf("failed to create topic %s: %w", topicID, err)
		}
		log.Info("created pub/sub topic")
	}

	return &GenericPubSubService[M]{
		client:              client,
		topic:               topic,
		activeSubscriptions: make(map[uuid.UUID]*subscriptionInfo),
		ctx:                 ctx,
		log:                 log,
	}, nil
}

func typeName[M any]() string {
	return reflect.TypeOf(*new(M)).Name()
}

// subscriptionFilter limits delivery to one driver. The nil topic gets everything.
func subscriptionFilter(topic uuid.UUID) string {
	if topic == uuid.Nil {
		return ""
	}
	return fmt.Sprintf("attributes.%s = \"%s\"", driverIDAttribute, topic.String())
}

// Publish waits for the server ack so callers learn about failures.
func (s *GenericPubSubService[M]) Publish(msg M) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", typeName[M](), err)
	}

	result := s.topic.Publish(s.ctx, &pubsub.Message{
		Data: body,
		Attributes: map[string]string{
			driverIDAttribute: msg.GetTopic().String(),
		},
	})
	if _, err = result.Get(s.ctx); err != nil {
		return fmt.Errorf("failed to publish %s to topic %s: %w", typeName[M](), s.topic.ID(), err)
	}
	return nil
}

func (s *GenericPubSubService[M]) Subscribe(topic uuid.UUID) (uuid.UUID, <-chan M, error) {
	subscriptionID := uuid.New()
	name := typeName[M]()
	gcpSubName := fmt.Sprintf("sub-%s-%s", name, subscriptionID.String())

	gcpSub, err := s.client.CreateSubscription(s.ctx, gcpSubName, pubsub.SubscriptionConfig{
		Topic:            s.topic,
		Filter:           subscriptionFilter(topic),
		ExpirationPolicy: 24 * time.Hour,
		AckDeadline:      10 * time.Second,
	})
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("failed to create GCP subscription %s for %s: %w", gcpSubName, name, err)
	}

	msgChan := make(chan M, 5)
	receiveCtx, cancel := context.WithCancel(s.ctx)
	log := s.log.WithField("subscription", subscriptionID)

	s.subscriptionsMutex.Lock()
	s.activeSubscriptions[subscriptionID] = &subscriptionInfo{
		gcpSubscription: gcpSub,
		cancel:          cancel,
	}
	s.subscriptionsMutex.Unlock()

	go func() {
		defer func() {
			s.subscriptionsMutex.Lock()
			delete(s.activeSubscriptions, subscriptionID)
			s.subscriptionsMutex.Unlock()

			// subscriptions are billed resources, never leave them behind
			if deleteErr := gcpSub.Delete(context.Background()); deleteErr != nil {
				log.WithError(deleteErr).WithField("gcp_subscription", gcpSub.ID()).Warn("failed to delete GCP subscription")
			}
			close(msgChan)
		}()

		err := gcpSub.Receive(receiveCtx, func(ctx context.Context, pubsubMsg *pubsub.Message) {
			pubsubMsg.Ack()
			deliver(receiveCtx, log, pubsubMsg.Data, msgChan, 2*time.Second)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Error("pub/sub receive loop stopped")
		}
	}()

	return subscriptionID, msgChan, nil
}

// deliver decodes one payload into msgChan. A message the consumer does not
// take within wait is dropped.
func deliver[M any](ctx context.Context, log logrus.FieldLogger, data []byte, msgChan chan<- M, wait time.Duration) {
	var msg M
	if err := json.Unmarshal(data, &msg); err != nil {
		log.WithError(err).Warn("failed to unmarshal message")
		return
	}
	select {
	case msgChan <- msg:
	case <-time.After(wait):
		log.Warn("consumer too slow, message dropped")
	case <-ctx.Done():
	}
}

// DeSubscribe stops the receiver; the receiver goroutine deletes the GCP subscription.
func (s *GenericPubSubService[M]) DeSubscribe(id uuid.UUID) error {
	s.subscriptionsMutex.Lock()
	info, ok := s.activeSubscriptions[id]
	if ok {
		info.cancel()
	}
	s.subscriptionsMutex.Unlock()

	if !ok {
		return fmt.Errorf("subscription ID %s not found for %s service", id, typeName[M]())
	}
	return nil
}

func (s *GenericPubSubService[M]) Close() {
	s.subscriptionsMutex.Lock()
	defer s.subscriptionsMutex.Unlock()

	for _, info := range s.activeSubscriptions {
		info.cancel()
	}
	s.topic.Stop()
}

type GCPMileageMessageQueueWrapper struct {
	client      *pubsub.Client
	submissions *GenericPubSubService[mq.SubmissionMessage]
	records     *GenericPubSubService[mq.RecordMessage]
}

func NewGCPMileageMessageQueueWrapper(ctx context.Context, projectID string, log logrus.FieldLogger) (*GCPMileageMessageQueueWrapper, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCP Pub/Sub client for project %s: %w", projectID, err)
	}

	submissions, err := NewGenericPubSubService[mq.SubmissionMessage](ctx, client, submissionTopicID, log)
	if err != nil {
		client.Close()
		return nil, err
	}
	records, err := NewGenericPubSubService[mq.RecordMessage](ctx, client, recordTopicID, log)
	if err != nil {
		client.Close()
		return nil, err
	}

	return &GCPMileageMessageQueueWrapper{client: client, submissions: submissions, records: records}, nil
}

func (w *GCPMileageMessageQueueWrapper) GetSubmissionMessageQueue() mq.MessageQueue[mq.SubmissionMessage] {
	return w.submissions
}

func (w *GCPMileageMessageQueueWrapper) GetRecordMessageQueue() mq.MessageQueue[mq.RecordMessage] {
	return w.records
}

func (w *GCPMileageMessageQueueWrapper) Close() error {
	w.submissions.Close()
	w.records.Close()
	return w.client.Close()
}
