package gcppubsub

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mileage/mq/mq"
)

func TestSubscriptionFilter(t *testing.T) {
	id := uuid.MustParse("6f1c1f5e-5f61-4d8a-9d7c-0f8f4b8e2a11")
	assert.Equal(t, `attributes.driverId = "6f1c1f5e-5f61-4d8a-9d7c-0f8f4b8e2a11"`, subscriptionFilter(id))
	assert.Empty(t, subscriptionFilter(uuid.Nil))
}

func TestDeliver(t *testing.T) {
	log, hook := test.NewNullLogger()
	ctx := context.Background()
	msgChan := make(chan mq.SubmissionMessage, 1)
	driverID := uuid.New()

	deliver(ctx, log, []byte(`{"driver_id":"`+driverID.String()+`","year":2024,"month":3}`), msgChan, 10*time.Millisecond)
	require.Len(t, msgChan, 1)
	msg := <-msgChan
	assert.Equal(t, driverID, msg.DriverID)
	assert.Equal(t, 3, msg.Month)
	assert.Empty(t, hook.AllEntries())

	deliver(ctx, log, []byte("{not json"), msgChan, 10*time.Millisecond)
	assert.Empty(t, msgChan)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "failed to unmarshal message", hook.LastEntry().Message)
	assert.Contains(t, hook.LastEntry().Data, logrus.ErrorKey)
	hook.Reset()

	// full channel, nobody reading
	msgChan <- mq.SubmissionMessage{}
	deliver(ctx, log, []byte(`{"month":4}`), msgChan, 10*time.Millisecond)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "consumer too slow, message dropped", hook.LastEntry().Message)
	hook.Reset()

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	deliver(cancelled, log, []byte(`{"month":5}`), msgChan, time.Minute)
	assert.Empty(t, hook.AllEntries())
}
