package postgres

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/seu-repo/terra-assistant/internal/domain"
	"github.com/seu-repo/terra-assistant/internal/ports"
)

type CommandRepository struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewCommandRepository(db *gorm.DB, log *zap.Logger) ports.CommandRepository {
	return &CommandRepository{
		db:  db,
		log: log,
	}
}

// Save inserts the record. Records are never updated.
func (r *CommandRepository) Save(ctx context.Context, record *domain.CommandRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *CommandRepository) FindRecent(ctx context.Context, sessionID string, limit int) ([]domain.CommandRecord, error) {
	var records []domain.CommandRecord
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at desc").
		Limit(limit).
		Find(&records).Error
	return records, err
}
