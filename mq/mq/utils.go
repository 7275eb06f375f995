package mq

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Subscriber is anything a processor can subscribe to and leave again.
type Subscriber[M any] interface {
	Subscribe(uuid.UUID) (uuid.UUID, <-chan M, error)
	DeSubscribe(id uuid.UUID) error
}

// SubscribeProcessor subscribes to topicID on service and forwards every
// message through transformFunc into outputStream until ctx ends or the
// queue closes. outputStream is closed on exit.
func SubscribeProcessor[S Subscriber[M], M any, O any](
	topicID uuid.UUID,
	ctx context.Context,
	service S,
	transformFunc func(msg M) (O, bool, error),
	outputStream chan<- O,
) {
	go func() {
		uid, inputCh, err := service.Subscribe(topicID)
		if err != nil {
			logrus.WithError(err).WithField("topic", topicID).Warn("subscribe failed")
			close(outputStream)
			return
		}

		defer func() {
			if err := service.DeSubscribe(uid); err != nil {
				logrus.WithError(err).WithField("subscriber_id", uid).Warn("unsubscribe failed")
			}
			close(outputStream)
		}()

		for {
			select {
			case msg, ok := <-inputCh:
				if !ok {
					return
				}

				output, skip, err := transformFunc(msg)
				if err != nil {
					logrus.WithError(err).WithField("topic", topicID).Debug("dropping message")
					continue
				}
				if skip {
					continue
				}

				select {
				case outputStream <- output:
				case <-ctx.Done():
					return
				}

			case <-ctx.Done():
				return
			}
		}
	}()
}
