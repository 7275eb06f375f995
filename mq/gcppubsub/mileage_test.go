package gcppubsub_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mileage/logger"
	"mileage/mq/gcppubsub"
	"mileage/mq/mq"
)

// --- Test Pre-requisite ---
// This test suite requires the Google Cloud Pub/Sub emulator to be running:
//
//	gcloud beta emulators pubsub start --project=test-project
//
// Tests are skipped when PUBSUB_EMULATOR_HOST is not set.
const testProjectID = "test-project"

func getTestWrapper(t *testing.T) *gcppubsub.GCPMileageMessageQueueWrapper {
	t.Helper()
	if os.Getenv("PUBSUB_EMULATOR_HOST") == "" {
		t.Skip("Skipping test: PUBSUB_EMULATOR_HOST environment variable not set. Please start the Pub/Sub emulator.")
	}
	wrapper, err := gcppubsub.NewGCPMileageMessageQueueWrapper(context.Background(), testProjectID, logger.Discard())
	require.NoError(t, err)
	return wrapper
}

func receiveMsgWithTimeout[T any](tb testing.TB, ch <-chan T, timeout time.Duration) (T, bool) {
	tb.Helper()
	select {
	case msg, ok := <-ch:
		if !ok {
			var zero T
			return zero, false
		}
		return msg, true
	case <-time.After(timeout):
		var zero T
		return zero, false
	}
}

func TestGetGCPProjectID(t *testing.T) {
	id, err := gcppubsub.GetGCPProjectID("configured")
	require.NoError(t, err)
	assert.Equal(t, "configured", id)

	t.Setenv("GCP_PROJECT_ID", "")
	_, err = gcppubsub.GetGCPProjectID("")
	assert.Error(t, err)
}

func TestRecordMessageFiltering(t *testing.T) {
	w := getTestWrapper(t)
	defer w.Close()

	q := w.GetRecordMessageQueue()
	driverA, driverB := uuid.New(), uuid.New()

	subID, ch, err := q.Subscribe(driverA)
	require.NoError(t, err)
	defer q.DeSubscribe(subID)

	// give the emulator a moment to attach the filtered subscription
	time.Sleep(time.Second)

	require.NoError(t, q.Publish(mq.RecordMessage{ID: uuid.New(), DriverID: driverB, Distance: 1, Action: mq.ActionCreate}))
	require.NoError(t, q.Publish(mq.RecordMessage{ID: uuid.New(), DriverID: driverA, Distance: 42, Action: mq.ActionCreate}))

	msg, ok := receiveMsgWithTimeout(t, ch, 10*time.Second)
	require.True(t, ok)
	assert.Equal(t, driverA, msg.DriverID)
	assert.Equal(t, 42.0, msg.Distance)
}
