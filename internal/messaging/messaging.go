package messaging

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	TrainingQueue   = "training_queue"
	RetryDelay      = 5 * time.Second
	MaxConnectRetry = 5
)

type Task interface {
	Type() string

	Payload() []byte

	Ack() error

	Nack() error

	Reject() error
}

// TrainTaskPayload identifies a queued training run. The run and model rows
// are created by the publisher before the task is enqueued; the optional
// parameter fields override the worker's configured values for this run only.
type TrainTaskPayload struct {
	RunId   uuid.UUID
	ModelId uuid.UUID
	Task    string

	Seed            *int64
	ValidationRatio *float64
	Epochs          *int
	LearningRate    *float64
}

type Publisher interface {
	PublishTrainTask(ctx context.Context, payload TrainTaskPayload) error

	Close()
}

type Receiver interface {
	Tasks() <-chan Task

	Close()
}
