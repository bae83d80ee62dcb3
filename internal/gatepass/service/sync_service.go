package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bitfantasy/gatepass/internal/gatepass/entity"
	"github.com/bitfantasy/gatepass/internal/gatepass/repository"
	"github.com/bitfantasy/gatepass/internal/shared/sap"
	"github.com/bsm/redislock"
	"go.uber.org/zap"
)

// ErrSyncInProgress 同一资源的同步已在进行中
var ErrSyncInProgress = errors.New("同步进行中，请稍后重试")

// 同步锁TTL，覆盖最慢的全量拉取
const syncLockTTL = 10 * time.Minute

// SyncResources SAP OData资源路径
type SyncResources struct {
	PurchaseReqn string
	Product      string
	Supplier     string
}

// SyncReport 单次同步结果
type SyncReport struct {
	Resource string `json:"resource"`
	Fetched  int    `json:"sap_count"`
	repository.SyncResult
}

// SyncService SAP主数据同步服务：全量拉取后清表重灌，分布式锁防并发
type SyncService struct {
	client    *sap.Client
	repo      *repository.SyncRepository
	locker    *redislock.Client
	resources SyncResources
	logger    *zap.Logger
}

func NewSyncService(client *sap.Client, repo *repository.SyncRepository, locker *redislock.Client, resources SyncResources, logger *zap.Logger) *SyncService {
	return &SyncService{
		client:    client,
		repo:      repo,
		locker:    locker,
		resources: resources,
		logger:    logger,
	}
}

// acquireLock 按资源名取分布式锁；未配置redis时降级为无锁
func (s *SyncService) acquireLock(ctx context.Context, name string) (*redislock.Lock, error) {
	if s.locker == nil {
		return nil, nil
	}
	lock, err := s.locker.Obtain(ctx, "gatepass:sync:"+name, syncLockTTL, nil)
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) {
			return nil, ErrSyncInProgress
		}
		return nil, fmt.Errorf("获取同步锁失败: %w", err)
	}
	return lock, nil
}

func releaseLock(ctx context.Context, lock *redislock.Lock) {
	if lock != nil {
		_ = lock.Release(ctx)
	}
}

// SyncPurchaseReqns 全量同步SAP采购申请
func (s *SyncService) SyncPurchaseReqns(ctx context.Context) (*SyncReport, error) {
	lock, err := s.acquireLock(ctx, "purchase_reqns")
	if err != nil {
		return nil, err
	}
	defer releaseLock(ctx, lock)

	raws, err := s.client.FetchAll(ctx, s.resources.PurchaseReqn)
	if err != nil {
		return nil, err
	}

	records := make([]entity.PurchaseReqn, 0, len(raws))
	for _, raw := range raws {
		var rec sap.PurchaseReqnRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("解析采购申请记录失败: %w", err)
		}
		records = append(records, sap.MapPurchaseReqn(rec))
	}

	result, err := s.repo.ReplacePurchaseReqns(ctx, records)
	if err != nil {
		return nil, err
	}

	s.logger.Info("采购申请同步完成",
		zap.Int("fetched", len(records)),
		zap.Int64("before", result.Before),
		zap.Int64("after", result.After),
	)
	return &SyncReport{Resource: "purchase_reqns", Fetched: len(records), SyncResult: *result}, nil
}

// SyncProducts 全量同步SAP物料主数据
func (s *SyncService) SyncProducts(ctx context.Context) (*SyncReport, error) {
	lock, err := s.acquireLock(ctx, "products")
	if err != nil {
		return nil, err
	}
	defer releaseLock(ctx, lock)

	raws, err := s.client.FetchAll(ctx, s.resources.Product)
	if err != nil {
		return nil, err
	}

	records := make([]entity.Product, 0, len(raws))
	for _, raw := range raws {
		var rec sap.ProductRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("解析物料记录失败: %w", err)
		}
		records = append(records, sap.MapProduct(rec))
	}

	result, err := s.repo.ReplaceProducts(ctx, records)
	if err != nil {
		return nil, err
	}

	s.logger.Info("物料主数据同步完成",
		zap.Int("fetched", len(records)),
		zap.Int64("before", result.Before),
		zap.Int64("after", result.After),
	)
	return &SyncReport{Resource: "products", Fetched: len(records), SyncResult: *result}, nil
}

// SyncSuppliers 全量同步SAP供应商主数据
func (s *SyncService) SyncSuppliers(ctx context.Context) (*SyncReport, error) {
	lock, err := s.acquireLock(ctx, "suppliers")
	if err != nil {
		return nil, err
	}
	defer releaseLock(ctx, lock)

	raws, err := s.client.FetchAll(ctx, s.resources.Supplier)
	if err != nil {
		return nil, err
	}

	records := make([]entity.Supplier, 0, len(raws))
	for _, raw := range raws {
		var rec sap.SupplierRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("解析供应商记录失败: %w", err)
		}
		records = append(records, sap.MapSupplier(rec))
	}

	result, err := s.repo.ReplaceSuppliers(ctx, records)
	if err != nil {
		return nil, err
	}

	s.logger.Info("供应商主数据同步完成",
		zap.Int("fetched", len(records)),
		zap.Int64("before", result.Before),
		zap.Int64("after", result.After),
	)
	return &SyncReport{Resource: "suppliers", Fetched: len(records), SyncResult: *result}, nil
}

// GroupedPurchaseReqn 按采购申请号归并后的单头+行项
type GroupedPurchaseReqn struct {
	Requisition PRHeaderView `json:"requisition"`
	Items       []PRItemView `json:"items"`
}

// ListGroupedPurchaseReqns 已同步采购申请按单号归并返回
func (s *SyncService) ListGroupedPurchaseReqns(ctx context.Context) ([]GroupedPurchaseReqn, error) {
	rows, err := s.repo.FindAllPurchaseReqns(ctx)
	if err != nil {
		return nil, err
	}
	return GroupPurchaseReqns(rows), nil
}

// GroupPurchaseReqns 行式同步数据按pr_num归并，保持首次出现顺序
func GroupPurchaseReqns(rows []entity.PurchaseReqn) []GroupedPurchaseReqn {
	groups := make([]GroupedPurchaseReqn, 0)
	index := make(map[string]int)
	for _, row := range rows {
		i, ok := index[row.PRNum]
		if !ok {
			i = len(groups)
			index[row.PRNum] = i
			groups = append(groups, GroupedPurchaseReqn{
				Requisition: PRHeaderView{
					PRNum:           row.PRNum,
					DepartmentCode:  row.DepartmentCode,
					RequisitionedBy: row.RequisitionedBy,
					RequisitionDate: row.RequisitionDate,
					PRType:          "standard",
				},
			})
		}
		groups[i].Items = append(groups[i].Items, PRItemView{
			PRNum:               row.PRNum,
			ItemCode:            row.ItemCode,
			PRItmNum:            row.PRItmNum,
			QuantityRequested:   row.QuantityRequested,
			Unit:                row.Unit,
			ApproxCost:          row.ApproxCost,
			MaterialDescription: row.MaterialDescription,
			Currency:            row.Currency,
			ApproxDateOfRet:     row.DeliveryDate,
		})
	}
	return groups
}

// CountPurchaseReqns 本地已同步采购申请行数
func (s *SyncService) CountPurchaseReqns(ctx context.Context) (int64, error) {
	return s.repo.CountPurchaseReqns(ctx)
}
