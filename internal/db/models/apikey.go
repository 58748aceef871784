package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type APIKey struct {
	bun.BaseModel `bun:"table:api_keys,alias:k"`

	ID        uuid.UUID `bun:",type:uuid,pk"`
	KeyHash   string    `bun:",notnull,unique"`
	KeyMask   string    `bun:",notnull"`
	IsRevoked bool      `bun:",notnull,default:false"`
	CreatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp"`
}

func NewAPIKey(keyHash, keyMask string) *APIKey {
	return &APIKey{
		KeyHash: keyHash,
		KeyMask: keyMask,
		ID:      uuid.Must(uuid.NewRandom()),
	}
}
