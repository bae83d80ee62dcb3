package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bitfantasy/gatepass/internal/gatepass/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DetailsRepository 出门证单头仓库
type DetailsRepository struct {
	db *gorm.DB
}

func NewDetailsRepository(db *gorm.DB) *DetailsRepository {
	return &DetailsRepository{db: db}
}

// FindByRequisitionID 根据申请单ID查找出门证单头
func (r *DetailsRepository) FindByRequisitionID(ctx context.Context, requisitionID string) (*entity.RequisitionDetails, error) {
	var det entity.RequisitionDetails
	err := r.db.WithContext(ctx).
		Where("requisition_id = ?", requisitionID).
		First(&det).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &det, nil
}

// FindByGatePassNo 根据出门证号查找单头
func (r *DetailsRepository) FindByGatePassNo(ctx context.Context, gatePassNo string) (*entity.RequisitionDetails, error) {
	var det entity.RequisitionDetails
	err := r.db.WithContext(ctx).
		Where("gate_pass_no = ?", gatePassNo).
		First(&det).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &det, nil
}

// Upsert 按requisition_id幂等写入：不存在则创建，存在则原地更新
// 重复审批只会改写同一行的字段，不会产生第二行
func (r *DetailsRepository) Upsert(ctx context.Context, det *entity.RequisitionDetails) error {
	existing, err := r.FindByRequisitionID(ctx, det.RequisitionID)
	if err != nil {
		return err
	}
	if existing == nil {
		if det.ID == "" {
			det.ID = uuid.New().String()[:32]
		}
		return r.db.WithContext(ctx).Create(det).Error
	}
	det.ID = existing.ID
	det.CreatedAt = existing.CreatedAt
	return r.db.WithContext(ctx).Save(det).Error
}

// GenerateGatePassNo 生成出门证号 GP-{yymm}-{4位}
func (r *DetailsRepository) GenerateGatePassNo(ctx context.Context) (string, error) {
	yymm := time.Now().Format("0601")
	prefix := fmt.Sprintf("GP-%s-", yymm)

	var maxNo string
	err := r.db.WithContext(ctx).
		Model(&entity.RequisitionDetails{}).
		Select("COALESCE(MAX(gate_pass_no), '')").
		Where("gate_pass_no LIKE ?", prefix+"%").
		Scan(&maxNo).Error
	if err != nil {
		return "", err
	}

	var seq int
	if maxNo != "" {
		fmt.Sscanf(maxNo, "GP-"+yymm+"-%04d", &seq)
	}
	seq++
	return fmt.Sprintf("GP-%s-%04d", yymm, seq), nil
}
