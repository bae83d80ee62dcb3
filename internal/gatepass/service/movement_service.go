package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bitfantasy/gatepass/internal/gatepass/entity"
	"github.com/bitfantasy/gatepass/internal/gatepass/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MovementService 物料进出台账服务
// RGP：出门记pending，回厂按行项累计，收齐后闭环；NRGP：出门即闭环
type MovementService struct {
	repos  *repository.Repositories
	db     *gorm.DB
	logger *zap.Logger
}

func NewMovementService(repos *repository.Repositories, db *gorm.DB, logger *zap.Logger) *MovementService {
	return &MovementService{
		repos:  repos,
		db:     db,
		logger: logger,
	}
}

// ListByGatePassNo 查某出门证的全部进出记录
func (s *MovementService) ListByGatePassNo(ctx context.Context, gatePassNo string) ([]entity.MaterialMovement, error) {
	return s.repos.Movement.FindByGatePassNo(ctx, gatePassNo)
}

// Get 台账详情
func (s *MovementService) Get(ctx context.Context, id string) (*entity.MaterialMovement, error) {
	return s.repos.Movement.FindByID(ctx, id)
}

// RecordOut 门卫登记物料出门（RGP路径）
// 前置：申请单已过管理审批、该出门证尚无out记录；行项按申请数量全量出门
func (s *MovementService) RecordOut(ctx context.Context, gatePassNo string) (*entity.MaterialMovement, error) {
	requisition, err := s.repos.Requisition.FindByGatePassNo(ctx, gatePassNo)
	if err != nil {
		return nil, err
	}
	if requisition.Details == nil {
		return nil, validationErrf("出门证%s无单头信息", gatePassNo)
	}
	if requisition.Details.DocumentType != entity.DocumentTypeRGP {
		return nil, validationErrf("出门证%s类型为%s，应走NRGP出门接口", gatePassNo, requisition.Details.DocumentType)
	}
	if requisition.Status != entity.ReqStatusHigherAuthApprove {
		return nil, validationErrf("申请单当前状态%s不允许出门", requisition.Status)
	}

	existing, err := s.repos.Movement.FindOutByGatePassNo(ctx, gatePassNo)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, validationErrf("出门证%s已有出门记录", gatePassNo)
	}

	movement := &entity.MaterialMovement{
		ID:           uuid.New().String()[:32],
		GatePassNo:   gatePassNo,
		MovementType: entity.MovementTypeOut,
		Status:       entity.MovementStatusPending,
		MovementDate: time.Now(),
	}
	for _, item := range requisition.Items {
		movement.Items = append(movement.Items, entity.MaterialMovementItem{
			ID:                uuid.New().String()[:32],
			MovementID:        movement.ID,
			RequisitionItemID: item.ID,
			Quantity:          item.QuantityRequested,
			Status:            entity.MovementItemStatusPending,
		})
	}

	if err := s.repos.Movement.Create(ctx, movement); err != nil {
		return nil, fmt.Errorf("创建出门记录失败: %w", err)
	}

	s.logger.Info("物料出门登记",
		zap.String("gate_pass_no", gatePassNo),
		zap.String("movement_id", movement.ID),
		zap.Int("items", len(movement.Items)),
	)
	return movement, nil
}

// RecordInItem 回厂登记行项：received为false的行项本次不入账
type RecordInItem struct {
	RequisitionItemID string  `json:"requisitionItemId" binding:"required"`
	Quantity          float64 `json:"quantity"`
	Received          bool    `json:"received"`
}

// RecordInRequest 物料回厂登记
type RecordInRequest struct {
	Items []RecordInItem `json:"items" binding:"required,min=1"`
}

// RecordIn 门卫登记物料回厂（RGP路径）
// 累计回收量不得超过申请量；收齐后out记录与申请单联动闭环
func (s *MovementService) RecordIn(ctx context.Context, gatePassNo string, req *RecordInRequest) (*entity.MaterialMovement, error) {
	requisition, err := s.repos.Requisition.FindByGatePassNo(ctx, gatePassNo)
	if err != nil {
		return nil, err
	}

	out, err := s.repos.Movement.FindOutByGatePassNo(ctx, gatePassNo)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, validationErrf("出门证%s尚无出门记录，无法登记回厂", gatePassNo)
	}
	if out.Status == entity.MovementStatusCompleted {
		return nil, validationErrf("出门证%s已全部回收", gatePassNo)
	}

	requested := make(map[string]float64, len(requisition.Items))
	for _, item := range requisition.Items {
		requested[item.ID] = item.QuantityRequested
	}

	received, err := s.repos.Movement.ReceivedQuantities(ctx, gatePassNo)
	if err != nil {
		return nil, err
	}

	movement := &entity.MaterialMovement{
		ID:                uuid.New().String()[:32],
		GatePassNo:        gatePassNo,
		MovementType:      entity.MovementTypeIn,
		MovementDate:      time.Now(),
		RelatedMovementID: &out.ID,
	}
	for _, item := range req.Items {
		if !item.Received {
			continue
		}
		limit, ok := requested[item.RequisitionItemID]
		if !ok {
			return nil, validationErrf("行项%s不属于该申请单", item.RequisitionItemID)
		}
		if item.Quantity <= 0 {
			return nil, validationErrf("行项%s回收数量必须大于0", item.RequisitionItemID)
		}
		if received[item.RequisitionItemID]+item.Quantity > limit {
			return nil, validationErrf("行项%s累计回收量%.3f超过申请量%.3f",
				item.RequisitionItemID, received[item.RequisitionItemID]+item.Quantity, limit)
		}
		received[item.RequisitionItemID] += item.Quantity
		movement.Items = append(movement.Items, entity.MaterialMovementItem{
			ID:                uuid.New().String()[:32],
			MovementID:        movement.ID,
			RequisitionItemID: item.RequisitionItemID,
			Quantity:          item.Quantity,
			Status:            entity.MovementItemStatusReceived,
		})
	}
	if len(movement.Items) == 0 {
		return nil, validationErrf("本次无回收行项")
	}

	// 本次入账后是否收齐
	complete := true
	for id, limit := range requested {
		if received[id] < limit {
			complete = false
			break
		}
	}
	if complete {
		movement.Status = entity.MovementStatusCompleted
	} else {
		movement.Status = entity.MovementStatusPartial
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepos := repository.NewRepositories(tx)
		if err := txRepos.Movement.Create(ctx, movement); err != nil {
			return fmt.Errorf("创建回厂记录失败: %w", err)
		}
		if complete {
			if err := txRepos.Movement.UpdateStatus(ctx, out.ID, entity.MovementStatusCompleted); err != nil {
				return fmt.Errorf("更新出门记录状态失败: %w", err)
			}
			if err := txRepos.Requisition.UpdateStatus(ctx, requisition.ID, entity.ReqStatusCompleted); err != nil {
				return fmt.Errorf("更新申请单状态失败: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("物料回厂登记",
		zap.String("gate_pass_no", gatePassNo),
		zap.String("movement_id", movement.ID),
		zap.String("status", movement.Status),
		zap.Bool("complete", complete),
	)
	return movement, nil
}

// RecordOutNRGP 门卫登记NRGP物料出门：物料不回厂，出门即闭环
// out/in成对落库（in回指out），申请单直接completed，全部在一个事务内
func (s *MovementService) RecordOutNRGP(ctx context.Context, gatePassNo string) (*entity.MaterialMovement, error) {
	requisition, err := s.repos.Requisition.FindByGatePassNo(ctx, gatePassNo)
	if err != nil {
		return nil, err
	}
	if requisition.Details == nil {
		return nil, validationErrf("出门证%s无单头信息", gatePassNo)
	}
	if requisition.Details.DocumentType != entity.DocumentTypeNRGP {
		return nil, validationErrf("出门证%s类型为%s，应走RGP出门接口", gatePassNo, requisition.Details.DocumentType)
	}
	if requisition.Status != entity.ReqStatusHigherAuthApprove {
		return nil, validationErrf("申请单当前状态%s不允许出门", requisition.Status)
	}

	existing, err := s.repos.Movement.FindOutByGatePassNo(ctx, gatePassNo)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, validationErrf("出门证%s已有出门记录", gatePassNo)
	}

	now := time.Now()
	out := &entity.MaterialMovement{
		ID:           uuid.New().String()[:32],
		GatePassNo:   gatePassNo,
		MovementType: entity.MovementTypeOut,
		Status:       entity.MovementStatusCompleted,
		MovementDate: now,
	}
	in := &entity.MaterialMovement{
		ID:                uuid.New().String()[:32],
		GatePassNo:        gatePassNo,
		MovementType:      entity.MovementTypeIn,
		Status:            entity.MovementStatusCompleted,
		MovementDate:      now,
		RelatedMovementID: &out.ID,
	}
	for _, item := range requisition.Items {
		out.Items = append(out.Items, entity.MaterialMovementItem{
			ID:                uuid.New().String()[:32],
			MovementID:        out.ID,
			RequisitionItemID: item.ID,
			Quantity:          item.QuantityRequested,
			Status:            entity.MovementItemStatusReceived,
		})
		in.Items = append(in.Items, entity.MaterialMovementItem{
			ID:                uuid.New().String()[:32],
			MovementID:        in.ID,
			RequisitionItemID: item.ID,
			Quantity:          item.QuantityRequested,
			Status:            entity.MovementItemStatusReceived,
		})
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepos := repository.NewRepositories(tx)
		if err := txRepos.Movement.Create(ctx, out); err != nil {
			return fmt.Errorf("创建出门记录失败: %w", err)
		}
		if err := txRepos.Movement.Create(ctx, in); err != nil {
			return fmt.Errorf("创建闭环记录失败: %w", err)
		}
		if err := txRepos.Requisition.UpdateStatus(ctx, requisition.ID, entity.ReqStatusCompleted); err != nil {
			return fmt.Errorf("更新申请单状态失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("NRGP物料出门登记",
		zap.String("gate_pass_no", gatePassNo),
		zap.String("out_movement_id", out.ID),
		zap.String("in_movement_id", in.ID),
	)
	return out, nil
}
