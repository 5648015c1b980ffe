package repositories

import (
	"context"

	"rover-bridge/models"
	"rover-bridge/repositories/base"
	"rover-bridge/repositories/interfaces"

	"gorm.io/gorm"
)

const commandTable = "command_records"

// CommandRepository implements CommandRepositoryInterface.
type CommandRepository struct {
	db *gorm.DB
}

// NewCommandRepository creates a new instance of CommandRepository.
func NewCommandRepository(db *gorm.DB) interfaces.CommandRepositoryInterface {
	return &CommandRepository{db: db}
}

func (cr *CommandRepository) Record(ctx context.Context, record *models.CommandRecord) error {
	if err := cr.db.WithContext(ctx).Create(record).Error; err != nil {
		return base.WrapDBError("create", commandTable, err)
	}
	return nil
}

func (cr *CommandRepository) Recent(ctx context.Context, limit int) ([]models.CommandRecord, error) {
	var records []models.CommandRecord
	query := cr.db.WithContext(ctx).Order("id desc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&records).Error; err != nil {
		return nil, base.WrapDBError("find", commandTable, err)
	}
	return records, nil
}

func (cr *CommandRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := cr.db.WithContext(ctx).Model(&models.CommandRecord{}).Count(&count).Error; err != nil {
		return 0, base.WrapDBError("count", commandTable, err)
	}
	return count, nil
}
