package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/gatepass/internal/gatepass/entity"
	"gorm.io/gorm"
)

// MovementRepository 物料进出台账仓库
type MovementRepository struct {
	db *gorm.DB
}

func NewMovementRepository(db *gorm.DB) *MovementRepository {
	return &MovementRepository{db: db}
}

// FindByID 根据ID查找台账（含行项）
func (r *MovementRepository) FindByID(ctx context.Context, id string) (*entity.MaterialMovement, error) {
	var mv entity.MaterialMovement
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&mv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &mv, nil
}

// FindByGatePassNo 查某出门证的全部进出记录
func (r *MovementRepository) FindByGatePassNo(ctx context.Context, gatePassNo string) ([]entity.MaterialMovement, error) {
	var movements []entity.MaterialMovement
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("gate_pass_no = ?", gatePassNo).
		Order("created_at ASC").
		Find(&movements).Error
	return movements, err
}

// FindOutByGatePassNo 查某出门证的out记录，不存在返回nil（防重复出门检查）
func (r *MovementRepository) FindOutByGatePassNo(ctx context.Context, gatePassNo string) (*entity.MaterialMovement, error) {
	var mv entity.MaterialMovement
	err := r.db.WithContext(ctx).
		Where("gate_pass_no = ? AND movement_type = ?", gatePassNo, entity.MovementTypeOut).
		First(&mv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &mv, nil
}

// Create 写入台账（行项随单头一并insert）
func (r *MovementRepository) Create(ctx context.Context, mv *entity.MaterialMovement) error {
	return r.db.WithContext(ctx).Create(mv).Error
}

// UpdateStatus 更新台账状态
func (r *MovementRepository) UpdateStatus(ctx context.Context, id, status string) error {
	result := r.db.WithContext(ctx).
		Model(&entity.MaterialMovement{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ReceivedQuantities 统计各申请行项已回收数量（in记录中received状态的合计）
func (r *MovementRepository) ReceivedQuantities(ctx context.Context, gatePassNo string) (map[string]float64, error) {
	type row struct {
		RequisitionItemID string
		Total             float64
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&entity.MaterialMovementItem{}).
		Select("material_movement_items.requisition_item_id, SUM(material_movement_items.quantity) AS total").
		Joins("JOIN material_movements ON material_movements.id = material_movement_items.movement_id").
		Where("material_movements.gate_pass_no = ? AND material_movements.movement_type = ? AND material_movement_items.status = ?",
			gatePassNo, entity.MovementTypeIn, entity.MovementItemStatusReceived).
		Group("material_movement_items.requisition_item_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	totals := make(map[string]float64, len(rows))
	for _, row := range rows {
		totals[row.RequisitionItemID] = row.Total
	}
	return totals, nil
}
