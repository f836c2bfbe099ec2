package messaging_test

import (
	"context"
	"encoding/json"
	"testing"

	"payer-analytics/internal/messaging"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryQueueRoundTrip(t *testing.T) {
	queue := messaging.NewInMemoryQueue()

	epochs := 150
	payload := messaging.TrainTaskPayload{
		RunId:   uuid.New(),
		ModelId: uuid.New(),
		Task:    "churn",
		Epochs:  &epochs,
	}
	require.NoError(t, queue.PublishTrainTask(context.Background(), payload))

	task := <-queue.Tasks()
	assert.Equal(t, messaging.TrainingQueue, task.Type())

	var received messaging.TrainTaskPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &received))
	assert.Equal(t, payload.RunId, received.RunId)
	assert.Equal(t, payload.ModelId, received.ModelId)
	assert.Equal(t, "churn", received.Task)
	require.NotNil(t, received.Epochs)
	assert.Equal(t, 150, *received.Epochs)
	assert.Nil(t, received.Seed)

	assert.NoError(t, task.Ack())
}

func TestInMemoryQueueOrdering(t *testing.T) {
	queue := messaging.NewInMemoryQueue()

	tasks := []string{"churn", "cost", "risk"}
	for _, name := range tasks {
		require.NoError(t, queue.PublishTrainTask(context.Background(), messaging.TrainTaskPayload{
			RunId: uuid.New(), ModelId: uuid.New(), Task: name,
		}))
	}

	for _, want := range tasks {
		var payload messaging.TrainTaskPayload
		require.NoError(t, json.Unmarshal((<-queue.Tasks()).Payload(), &payload))
		assert.Equal(t, want, payload.Task)
	}
}

func TestInMemoryQueueClose(t *testing.T) {
	queue := messaging.NewInMemoryQueue()
	require.NoError(t, queue.PublishTrainTask(context.Background(), messaging.TrainTaskPayload{
		RunId: uuid.New(), ModelId: uuid.New(), Task: "churn",
	}))
	queue.Close()

	// Tasks published before Close remain drainable afterwards.
	task, ok := <-queue.Tasks()
	require.True(t, ok)
	assert.Equal(t, messaging.TrainingQueue, task.Type())

	_, ok = <-queue.Tasks()
	assert.False(t, ok, "channel must be closed")

	// A second close is a no-op.
	queue.Close()
}
