package migration_0

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Schema snapshot for migration 0. Later migrations must not reference the
// live schema types in package database, only their own copies.

type Model struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Task   string `gorm:"size:20;not null;uniqueIndex"`
	Status string `gorm:"size:20;not null"`

	ArtifactPath   string
	CreationTime   time.Time
	CompletionTime sql.NullTime
}

type TrainRun struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	ModelId uuid.UUID `gorm:"type:uuid"`
	Model   *Model    `gorm:"foreignKey:ModelId"`

	Task   string `gorm:"size:20;not null;index"`
	Status string `gorm:"size:20;not null"`

	Params  datatypes.JSON `gorm:"type:jsonb"`
	Metrics datatypes.JSON `gorm:"type:jsonb"`

	ArtifactPath string
	Error        sql.NullString

	CreationTime   time.Time
	CompletionTime sql.NullTime
}

func Migration(txn *gorm.DB) error {
	return txn.AutoMigrate(&Model{}, &TrainRun{})
}

func Rollback(txn *gorm.DB) error {
	return txn.Migrator().DropTable(&TrainRun{}, &Model{})
}
