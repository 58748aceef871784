package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/cozy-creator/bg-remover/internal/db/models"
	"github.com/uptrace/bun"
)

var ErrProcessedImageNotFound = errors.New("processed image not found")

type IProcessedImageRepository interface {
	Repository[models.ProcessedImage]
	ListRecent(ctx context.Context, limit int) ([]models.ProcessedImage, error)
}

type ProcessedImageRepository struct {
	db bun.IDB
}

func NewProcessedImageRepository(db bun.IDB) *ProcessedImageRepository {
	return &ProcessedImageRepository{db: db}
}

func (r *ProcessedImageRepository) Create(ctx context.Context, record *models.ProcessedImage) (*models.ProcessedImage, error) {
	if record == nil {
		return nil, ErrNilModel
	}

	if _, err := r.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, err
	}

	return record, nil
}

func (r *ProcessedImageRepository) GetByID(ctx context.Context, id string) (*models.ProcessedImage, error) {
	var record models.ProcessedImage
	if err := r.db.NewSelect().Model(&record).Where("id = ?", id).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProcessedImageNotFound
		}
		return nil, err
	}

	return &record, nil
}

func (r *ProcessedImageRepository) ListRecent(ctx context.Context, limit int) ([]models.ProcessedImage, error) {
	records := make([]models.ProcessedImage, 0, limit)
	if err := r.db.NewSelect().
		Model(&records).
		Order("created_at DESC").
		Limit(limit).
		Scan(ctx); err != nil {
		return nil, err
	}

	return records, nil
}
