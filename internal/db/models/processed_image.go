package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ProcessedImage records one archived conversion.
type ProcessedImage struct {
	bun.BaseModel `bun:"table:processed_images,alias:pi"`

	ID         uuid.UUID `bun:",type:uuid,pk" json:"id"`
	Operation  string    `bun:",notnull" json:"operation"`
	InputPath  string    `bun:",notnull" json:"input_path"`
	OutputPath string    `bun:",notnull" json:"output_path"`
	CreatedAt  time.Time `bun:",nullzero,notnull,default:current_timestamp" json:"created_at"`
}

func NewProcessedImage(operation, inputPath, outputPath string) *ProcessedImage {
	return &ProcessedImage{
		ID:         uuid.Must(uuid.NewRandom()),
		Operation:  operation,
		InputPath:  inputPath,
		OutputPath: outputPath,
		CreatedAt:  time.Now().UTC(),
	}
}

// Tables lists every model that has a table, in creation order.
func Tables() []interface{} {
	return []interface{}{
		(*APIKey)(nil),
		(*ProcessedImage)(nil),
	}
}
