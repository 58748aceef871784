package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/cozy-creator/bg-remover/internal/db/models"
	"github.com/uptrace/bun"
)

var ErrAPIKeyNotFound = errors.New("api key not found")

type IAPIKeyRepository interface {
	Repository[models.APIKey]
	GetByHash(ctx context.Context, keyHash string) (*models.APIKey, error)
	RevokeByHash(ctx context.Context, keyHash string) error
	List(ctx context.Context) ([]models.APIKey, error)
}

type APIKeyRepository struct {
	db bun.IDB
}

func NewAPIKeyRepository(db bun.IDB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

func (r *APIKeyRepository) Create(ctx context.Context, apikey *models.APIKey) (*models.APIKey, error) {
	if apikey == nil {
		return nil, ErrNilModel
	}

	if _, err := r.db.NewInsert().Model(apikey).Exec(ctx); err != nil {
		return nil, err
	}

	return apikey, nil
}

func (r *APIKeyRepository) GetByID(ctx context.Context, id string) (*models.APIKey, error) {
	var apikey models.APIKey
	if err := r.db.NewSelect().Model(&apikey).Where("id = ?", id).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAPIKeyNotFound
		}
		return nil, err
	}

	return &apikey, nil
}

func (r *APIKeyRepository) GetByHash(ctx context.Context, keyHash string) (*models.APIKey, error) {
	var apikey models.APIKey
	if err := r.db.NewSelect().Model(&apikey).Where("key_hash = ?", keyHash).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAPIKeyNotFound
		}
		return nil, err
	}

	return &apikey, nil
}

func (r *APIKeyRepository) RevokeByHash(ctx context.Context, keyHash string) error {
	result, err := r.db.NewUpdate().
		Model((*models.APIKey)(nil)).
		Set("is_revoked = ?", true).
		Set("updated_at = ?", time.Now().UTC()).
		Where("key_hash = ?", keyHash).
		Exec(ctx)
	if err != nil {
		return err
	}

	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrAPIKeyNotFound
	}

	return nil
}

func (r *APIKeyRepository) List(ctx context.Context) ([]models.APIKey, error) {
	var apikeys []models.APIKey
	if err := r.db.NewSelect().Model(&apikeys).Order("created_at ASC").Scan(ctx); err != nil {
		return nil, err
	}

	return apikeys, nil
}
