package repository

import (
	"context"
	"errors"
)

var ErrNilModel = errors.New("model is nil")

type Repository[T any] interface {
	Create(ctx context.Context, arg *T) (*T, error)
	GetByID(ctx context.Context, id string) (*T, error)
}
