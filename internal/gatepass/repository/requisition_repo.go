package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bitfantasy/gatepass/internal/gatepass/entity"
	"gorm.io/gorm"
)

// RequisitionRepository 申请单仓库
type RequisitionRepository struct {
	db *gorm.DB
}

func NewRequisitionRepository(db *gorm.DB) *RequisitionRepository {
	return &RequisitionRepository{db: db}
}

// FindAll 查询申请单列表
func (r *RequisitionRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Requisition, int64, error) {
	var items []entity.Requisition
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Requisition{})

	if status := filters["status"]; status != "" {
		query = query.Where("status = ?", status)
	}
	if userID := filters["user_id"]; userID != "" {
		query = query.Where("user_id = ?", userID)
	}
	if deptID := filters["department_id"]; deptID != "" {
		query = query.Where("department_id = ?", deptID)
	}
	if search := filters["search"]; search != "" {
		query = query.Where("pr_num ILIKE ? OR service_indent_no ILIKE ? OR requisitioned_by ILIKE ?",
			"%"+search+"%", "%"+search+"%", "%"+search+"%")
	}
	if days := filters["date_range"]; days != "" {
		if d, err := parseDays(days); err == nil {
			query = query.Where("requisition_date >= ?", time.Now().AddDate(0, 0, -d))
		}
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC")
		}).
		Preload("Department").
		Order("requisition_date DESC, created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&items).Error

	return items, total, err
}

// FindAllWithDetails 查询申请单列表（含出门证单头，管理端列表用）
func (r *RequisitionRepository) FindAllWithDetails(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Requisition, int64, error) {
	var items []entity.Requisition
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Requisition{})

	if status := filters["status"]; status != "" {
		query = query.Where("status = ?", status)
	}
	if search := filters["search"]; search != "" {
		query = query.Where("pr_num ILIKE ? OR service_indent_no ILIKE ?",
			"%"+search+"%", "%"+search+"%")
	}
	if days := filters["date_range"]; days != "" {
		if d, err := parseDays(days); err == nil {
			query = query.Where("requisition_date >= ?", time.Now().AddDate(0, 0, -d))
		}
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC")
		}).
		Preload("Department").
		Preload("Details").
		Order("requisition_date DESC, created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&items).Error

	return items, total, err
}

// FindByID 根据ID查找申请单（含行项和出门证单头）
func (r *RequisitionRepository) FindByID(ctx context.Context, id string) (*entity.Requisition, error) {
	var req entity.Requisition
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC")
		}).
		Preload("Department").
		Preload("Details").
		Where("id = ?", id).
		First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &req, nil
}

// FindByPRNum 根据SAP采购申请号查找（防重复提交）
func (r *RequisitionRepository) FindByPRNum(ctx context.Context, prNum string) (*entity.Requisition, error) {
	var req entity.Requisition
	err := r.db.WithContext(ctx).
		Where("pr_num = ?", prNum).
		First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &req, nil
}

// FindByGatePassNo 根据出门证号查找申请单（门卫核验用）
func (r *RequisitionRepository) FindByGatePassNo(ctx context.Context, gatePassNo string) (*entity.Requisition, error) {
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
	return r.FindByID(ctx, det.RequisitionID)
}

// Create 创建申请单（行项随单头一次写入）
func (r *RequisitionRepository) Create(ctx context.Context, req *entity.Requisition) error {
	return r.db.WithContext(ctx).Create(req).Error
}

// Update 更新申请单
func (r *RequisitionRepository) Update(ctx context.Context, req *entity.Requisition) error {
	return r.db.WithContext(ctx).Save(req).Error
}

// UpdateStatus 更新申请单状态（行项状态跟随单头）
func (r *RequisitionRepository) UpdateStatus(ctx context.Context, id, status string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&entity.Requisition{}).Where("id = ?", id).Update("status", status)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Model(&entity.RequisitionItem{}).
			Where("requisition_id = ?", id).
			Update("status", status).Error
	})
}

// GenerateServiceIndentNo 生成服务申请编号 SI-{year}-{4位}
func (r *RequisitionRepository) GenerateServiceIndentNo(ctx context.Context) (string, error) {
	year := time.Now().Format("2006")
	prefix := fmt.Sprintf("SI-%s-", year)

	var maxCode string
	err := r.db.WithContext(ctx).
		Model(&entity.Requisition{}).
		Select("COALESCE(MAX(service_indent_no), '')").
		Where("service_indent_no LIKE ?", prefix+"%").
		Scan(&maxCode).Error
	if err != nil {
		return "", err
	}

	var seq int
	if maxCode != "" {
		fmt.Sscanf(maxCode, "SI-"+year+"-%04d", &seq)
	}
	seq++
	return fmt.Sprintf("SI-%s-%04d", year, seq), nil
}

func parseDays(s string) (int, error) {
	var d int
	if _, err := fmt.Sscanf(s, "%d", &d); err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid day range: %s", s)
	}
	return d, nil
}
