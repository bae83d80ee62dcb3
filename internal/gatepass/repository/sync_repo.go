package repository

import (
	"context"
	"fmt"

	"github.com/bitfantasy/gatepass/internal/gatepass/entity"
	"gorm.io/gorm"
)

// 批量插入分块大小，限制单条语句体积
const syncInsertBatchSize = 500

// SyncResult 全量刷新结果
type SyncResult struct {
	Before  int64 `json:"db_count_before"`
	After   int64 `json:"db_count_after"`
	Updated bool  `json:"db_updated"`
}

// SyncRepository SAP同步目标表仓库（事务性全量刷新）
type SyncRepository struct {
	db *gorm.DB
}

func NewSyncRepository(db *gorm.DB) *SyncRepository {
	return &SyncRepository{db: db}
}

// ReplacePurchaseReqns 全量替换采购申请表
func (r *SyncRepository) ReplacePurchaseReqns(ctx context.Context, records []entity.PurchaseReqn) (*SyncResult, error) {
	var result *SyncResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = replaceAll(tx, &entity.PurchaseReqn{}, entity.PurchaseReqn{}.TableName(), len(records), func(tx *gorm.DB) error {
			return tx.CreateInBatches(records, syncInsertBatchSize).Error
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ReplaceProducts 全量替换物料主数据表
func (r *SyncRepository) ReplaceProducts(ctx context.Context, records []entity.Product) (*SyncResult, error) {
	var result *SyncResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = replaceAll(tx, &entity.Product{}, entity.Product{}.TableName(), len(records), func(tx *gorm.DB) error {
			return tx.CreateInBatches(records, syncInsertBatchSize).Error
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ReplaceSuppliers 全量替换供应商主数据表
func (r *SyncRepository) ReplaceSuppliers(ctx context.Context, records []entity.Supplier) (*SyncResult, error) {
	var result *SyncResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = replaceAll(tx, &entity.Supplier{}, entity.Supplier{}.TableName(), len(records), func(tx *gorm.DB) error {
			return tx.CreateInBatches(records, syncInsertBatchSize).Error
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CountPurchaseReqns 当前采购申请表行数
func (r *SyncRepository) CountPurchaseReqns(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.PurchaseReqn{}).Count(&count).Error
	return count, err
}

// FindPurchaseReqnsByPRNum 按采购申请号查同步行（拉取顺序即插入顺序）
func (r *SyncRepository) FindPurchaseReqnsByPRNum(ctx context.Context, prNum string) ([]entity.PurchaseReqn, error) {
	var rows []entity.PurchaseReqn
	err := r.db.WithContext(ctx).
		Where("pr_num = ?", prNum).
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

// FindAllPurchaseReqns 全部同步行，按插入顺序
func (r *SyncRepository) FindAllPurchaseReqns(ctx context.Context) ([]entity.PurchaseReqn, error) {
	var rows []entity.PurchaseReqn
	err := r.db.WithContext(ctx).
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

// FindSupplierByCode 按编码查供应商（审批时做快照用）
func (r *SyncRepository) FindSupplierByCode(ctx context.Context, code string) (*entity.Supplier, error) {
	var sup entity.Supplier
	err := r.db.WithContext(ctx).
		Where("supplier_code = ?", code).
		First(&sup).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &sup, nil
}

// replaceAll 事务内全量刷新：清表后分块重插，任一失败整体回滚
// 采用always-refresh策略，不做新旧行数比较
func replaceAll(tx *gorm.DB, model interface{}, table string, fresh int, insert func(tx *gorm.DB) error) (*SyncResult, error) {
	var before int64
	if err := tx.Model(model).Count(&before).Error; err != nil {
		return nil, fmt.Errorf("统计%s行数失败: %w", table, err)
	}

	if err := tx.Exec("TRUNCATE TABLE " + table + " RESTART IDENTITY").Error; err != nil {
		return nil, fmt.Errorf("清空%s失败: %w", table, err)
	}

	if fresh > 0 {
		if err := insert(tx); err != nil {
			return nil, fmt.Errorf("写入%s失败: %w", table, err)
		}
	}

	return &SyncResult{
		Before:  before,
		After:   int64(fresh),
		Updated: true,
	}, nil
}
