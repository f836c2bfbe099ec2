package database

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	ModelQueued   string = "QUEUED"
	ModelTraining string = "TRAINING"
	ModelTrained  string = "TRAINED"
	ModelFailed   string = "FAILED"
)

// Model is the registry row for one task's current model. There is exactly
// one per task; its artifact path is swapped on successful retrains.
type Model struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Task   string `gorm:"size:20;not null;uniqueIndex"`
	Status string `gorm:"size:20;not null"`

	ArtifactPath   string
	CreationTime   time.Time
	CompletionTime sql.NullTime

	Runs []TrainRun `gorm:"foreignKey:ModelId;constraint:OnDelete:CASCADE"`
}

const (
	RunQueued    string = "QUEUED"
	RunRunning   string = "RUNNING"
	RunCompleted string = "COMPLETED"
	RunFailed    string = "FAILED"
)

// TrainRun is one experiment record: the parameters, metrics, and artifact
// reference of a single training run. Rows are append-only; once a run
// reaches a terminal status it is never mutated.
type TrainRun struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	ModelId uuid.UUID `gorm:"type:uuid"`
	Model   *Model    `gorm:"foreignKey:ModelId"`

	Task   string `gorm:"size:20;not null;index"`
	Status string `gorm:"size:20;not null"`

	Params  datatypes.JSON `gorm:"type:jsonb"` // {"seed":…,"epochs":…}
	Metrics datatypes.JSON `gorm:"type:jsonb"` // {"auc":…} per task

	ArtifactPath string
	Error        sql.NullString

	CreationTime   time.Time
	CompletionTime sql.NullTime
}
