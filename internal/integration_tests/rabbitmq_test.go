package integrationtests

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"payer-analytics/internal/messaging"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRabbitMQ(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	publisher, receiver := setupRabbitMQContainer(t, ctx)
	defer receiver.Close()

	epochs := 150
	payload := messaging.TrainTaskPayload{
		RunId:   uuid.New(),
		ModelId: uuid.New(),
		Task:    "churn",
		Epochs:  &epochs,
	}
	err := publisher.PublishTrainTask(ctx, payload)
	require.NoError(t, err)

	select {
	case task := <-receiver.Tasks():
		assert.Equal(t, messaging.TrainingQueue, task.Type())

		var receivedPayload messaging.TrainTaskPayload
		err := json.Unmarshal(task.Payload(), &receivedPayload)
		require.NoError(t, err)
		assert.Equal(t, payload, receivedPayload)

		err = task.Ack()
		require.NoError(t, err)
	case <-time.After(4 * time.Second):
		t.Fatal("Timed out waiting for task")
	}
}
