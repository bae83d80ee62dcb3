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

// ValidationError 客户端参数错误，handler层映射为400
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationErrf(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// 状态机流转表：pending → storeapprove → higherauthapprove → completed
// rejected可从任意非终态进入；storeapprove/higherauthapprove允许自环
// 以支持重复审批的幂等upsert
var statusTransitions = map[string]map[string]bool{
	entity.ReqStatusPending: {
		entity.ReqStatusStoreApprove: true,
		entity.ReqStatusRejected:     true,
	},
	entity.ReqStatusStoreApprove: {
		entity.ReqStatusStoreApprove:      true,
		entity.ReqStatusHigherAuthApprove: true,
		entity.ReqStatusRejected:          true,
	},
	entity.ReqStatusHigherAuthApprove: {
		entity.ReqStatusHigherAuthApprove: true,
		entity.ReqStatusCompleted:         true,
		entity.ReqStatusRejected:          true,
	},
}

// CanTransition 状态流转是否合法
func CanTransition(from, to string) bool {
	return statusTransitions[from][to]
}

// RequisitionService 申请单服务，负责状态机流转及出门证单头的联动写入
type RequisitionService struct {
	repos  *repository.Repositories
	db     *gorm.DB
	logger *zap.Logger
}

func NewRequisitionService(repos *repository.Repositories, db *gorm.DB, logger *zap.Logger) *RequisitionService {
	return &RequisitionService{
		repos:  repos,
		db:     db,
		logger: logger,
	}
}

// === 查询 ===

// List 按状态等条件查询申请单
func (s *RequisitionService) List(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Requisition, int64, error) {
	return s.repos.Requisition.FindAll(ctx, page, pageSize, filters)
}

// ListWithDetails 查询申请单（含出门证单头）
func (s *RequisitionService) ListWithDetails(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Requisition, int64, error) {
	return s.repos.Requisition.FindAllWithDetails(ctx, page, pageSize, filters)
}

// Get 申请单详情
func (s *RequisitionService) Get(ctx context.Context, id string) (*entity.Requisition, error) {
	return s.repos.Requisition.FindByID(ctx, id)
}

// VerifyGatePass 门卫按出门证号核验申请单
func (s *RequisitionService) VerifyGatePass(ctx context.Context, gatePassNo string) (*entity.Requisition, error) {
	return s.repos.Requisition.FindByGatePassNo(ctx, gatePassNo)
}

// NextGatePassNo 预生成出门证号（仓库填单时调用）
func (s *RequisitionService) NextGatePassNo(ctx context.Context) (string, error) {
	return s.repos.Details.GenerateGatePassNo(ctx)
}

// === 提交 ===

// CreateItemRequest 申请单行项提交
type CreateItemRequest struct {
	ItemCode            string     `json:"itemCode"`
	MaterialDescription string     `json:"materialDescription"`
	QuantityReq         float64    `json:"quantityReq" binding:"required,gt=0"`
	Unit                string     `json:"unit"`
	ApproxCost          float64    `json:"approxCost"`
	Currency            string     `json:"currency"`
	ApproxDateOfReturn  *time.Time `json:"approxdateofreturn"`
	Remarks             string     `json:"remarks"`
}

// CreateRequisitionRequest 普通表单提交（本地生成服务申请编号）
type CreateRequisitionRequest struct {
	Department      int                 `json:"department" binding:"required"`
	RequisitionedBy string              `json:"requisitionedBy"`
	Remarks         string              `json:"remarks"`
	Items           []CreateItemRequest `json:"items" binding:"required,min=1"`
}

// Create 创建申请单（普通路径）
func (s *RequisitionService) Create(ctx context.Context, userID string, req *CreateRequisitionRequest) (*entity.Requisition, error) {
	if req.Department <= 0 {
		return nil, validationErrf("无效的部门编号")
	}
	if _, err := s.repos.Department.FindByID(ctx, req.Department); err != nil {
		if err == repository.ErrNotFound {
			return nil, validationErrf("部门%d不存在", req.Department)
		}
		return nil, err
	}

	indentNo, err := s.repos.Requisition.GenerateServiceIndentNo(ctx)
	if err != nil {
		return nil, fmt.Errorf("生成服务申请编号失败: %w", err)
	}

	requisition := &entity.Requisition{
		ID:              uuid.New().String()[:32],
		ServiceIndentNo: &indentNo,
		UserID:          userID,
		DepartmentID:    req.Department,
		RequisitionedBy: req.RequisitionedBy,
		RequisitionDate: time.Now(),
		Status:          entity.ReqStatusPending,
		Remarks:         req.Remarks,
		PRType:          "standard",
	}
	for i, item := range req.Items {
		requisition.Items = append(requisition.Items, entity.RequisitionItem{
			ID:                  uuid.New().String()[:32],
			RequisitionID:       requisition.ID,
			ItemCode:            item.ItemCode,
			MaterialDescription: item.MaterialDescription,
			QuantityRequested:   item.QuantityReq,
			Unit:                item.Unit,
			ApproxCost:          item.ApproxCost,
			Currency:            item.Currency,
			ApproxDateOfReturn:  item.ApproxDateOfReturn,
			Remarks:             item.Remarks,
			Status:              entity.ReqStatusPending,
			SortOrder:           i + 1,
		})
	}

	// 行项随单头一条insert批量写入，不逐行循环
	if err := s.repos.Requisition.Create(ctx, requisition); err != nil {
		return nil, fmt.Errorf("创建申请单失败: %w", err)
	}
	return requisition, nil
}

// SubmitPRHeader SAP采购申请提交单头
type SubmitPRHeader struct {
	PRNum           string `json:"pr_num" binding:"required"`
	DepartmentID    int    `json:"department_id"`
	DepartmentCode  string `json:"department_code"`
	RequisitionedBy string `json:"requisitioned_by"`
	RequisitionDate string `json:"requisition_date"`
	Remarks         string `json:"remarks"`
	PRType          string `json:"pr_type"`
}

// SubmitPRItem SAP采购申请提交行项
type SubmitPRItem struct {
	ItemCode            string  `json:"item_code"`
	PRItmNum            string  `json:"pr_itm_num"`
	QuantityRequested   float64 `json:"quantity_requested"`
	Unit                string  `json:"unit"`
	ApproxCost          float64 `json:"approx_cost"`
	MaterialDescription string  `json:"material_description"`
	Currency            string  `json:"currency"`
	ApproxDateOfRet     string  `json:"approxdateofret"`
}

// SubmitPRRequest 经SAP校验后的采购申请提交
type SubmitPRRequest struct {
	Requisition SubmitPRHeader `json:"requisition" binding:"required"`
	Items       []SubmitPRItem `json:"items" binding:"required,min=1"`
}

// SubmitPR 提交SAP采购申请为本地申请单，pr_num重复提交拒绝
func (s *RequisitionService) SubmitPR(ctx context.Context, userID string, req *SubmitPRRequest) (*entity.Requisition, error) {
	existing, err := s.repos.Requisition.FindByPRNum(ctx, req.Requisition.PRNum)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, validationErrf("采购申请%s已存在", req.Requisition.PRNum)
	}

	departmentID := req.Requisition.DepartmentID
	if departmentID <= 0 && req.Requisition.DepartmentCode != "" {
		dept, err := s.repos.Department.FindByCode(ctx, req.Requisition.DepartmentCode)
		if err != nil {
			return nil, err
		}
		if dept != nil {
			departmentID = dept.ID
		}
	}
	if departmentID <= 0 {
		return nil, validationErrf("无效的部门编号")
	}

	reqDate := time.Now()
	if req.Requisition.RequisitionDate != "" {
		if parsed, err := time.Parse("2006-01-02", req.Requisition.RequisitionDate); err == nil {
			reqDate = parsed
		}
	}

	prType := req.Requisition.PRType
	if prType == "" {
		prType = "standard"
	}

	prNum := req.Requisition.PRNum
	requisition := &entity.Requisition{
		ID:              uuid.New().String()[:32],
		PRNum:           &prNum,
		UserID:          userID,
		DepartmentID:    departmentID,
		RequisitionedBy: req.Requisition.RequisitionedBy,
		RequisitionDate: reqDate,
		Status:          entity.ReqStatusPending,
		Remarks:         req.Requisition.Remarks,
		PRType:          prType,
	}
	for i, item := range req.Items {
		var retDate *time.Time
		if item.ApproxDateOfRet != "" {
			if parsed, err := time.Parse("2006-01-02", item.ApproxDateOfRet); err == nil {
				retDate = &parsed
			}
		}
		requisition.Items = append(requisition.Items, entity.RequisitionItem{
			ID:                  uuid.New().String()[:32],
			RequisitionID:       requisition.ID,
			ItemCode:            item.ItemCode,
			PRItmNum:            item.PRItmNum,
			MaterialDescription: item.MaterialDescription,
			QuantityRequested:   item.QuantityRequested,
			Unit:                item.Unit,
			ApproxCost:          item.ApproxCost,
			Currency:            item.Currency,
			ApproxDateOfReturn:  retDate,
			Status:              entity.ReqStatusPending,
			SortOrder:           i + 1,
		})
	}

	if err := s.repos.Requisition.Create(ctx, requisition); err != nil {
		return nil, fmt.Errorf("创建申请单失败: %w", err)
	}

	s.logger.Info("PR提交成功",
		zap.String("pr_num", prNum),
		zap.Int("items", len(requisition.Items)),
	)
	return requisition, nil
}

// === PR校验/查询 ===

// PRHeaderView 已同步采购申请的单头视图（提交表单格式）
type PRHeaderView struct {
	PRNum           string  `json:"pr_num"`
	DepartmentID    *int    `json:"department_id"`
	DepartmentCode  string  `json:"department_code"`
	RequisitionedBy string  `json:"requisitioned_by"`
	RequisitionDate *string `json:"requisition_date"`
	Remarks         string  `json:"remarks"`
	PRType          string  `json:"pr_type"`
}

// PRItemView 已同步采购申请的行项视图
type PRItemView struct {
	PRNum               string  `json:"pr_num"`
	ItemCode            string  `json:"item_code"`
	PRItmNum            string  `json:"pr_itm_num"`
	QuantityRequested   float64 `json:"quantity_requested"`
	Unit                string  `json:"unit"`
	ApproxCost          float64 `json:"approx_cost"`
	MaterialDescription string  `json:"material_description"`
	Currency            string  `json:"currency"`
	ApproxDateOfRet     *string `json:"approxdateofret"`
}

// ValidatePRResult PR校验结果
type ValidatePRResult struct {
	Exists      bool          `json:"exists"`
	Requisition *PRHeaderView `json:"requisition,omitempty"`
	Items       []PRItemView  `json:"items,omitempty"`
}

// ValidatePR 按采购申请号查已同步的SAP数据，重整为提交格式
func (s *RequisitionService) ValidatePR(ctx context.Context, prNum string) (*ValidatePRResult, error) {
	rows, err := s.repos.Sync.FindPurchaseReqnsByPRNum(ctx, prNum)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return &ValidatePRResult{Exists: false}, nil
	}

	head := rows[0]
	header := &PRHeaderView{
		PRNum:           head.PRNum,
		DepartmentCode:  head.DepartmentCode,
		RequisitionedBy: head.RequisitionedBy,
		RequisitionDate: head.RequisitionDate,
		PRType:          "standard",
	}
	if head.DepartmentCode != "" {
		dept, err := s.repos.Department.FindByCode(ctx, head.DepartmentCode)
		if err != nil {
			return nil, err
		}
		if dept != nil {
			header.DepartmentID = &dept.ID
		}
	}

	items := make([]PRItemView, 0, len(rows))
	for _, row := range rows {
		items = append(items, PRItemView{
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

	return &ValidatePRResult{
		Exists:      true,
		Requisition: header,
		Items:       items,
	}, nil
}

// === 状态流转 ===

// GatePassDetailsRequest 出门证单头字段（仓库审批/管理打印共用）
type GatePassDetailsRequest struct {
	GatePassNo        string     `json:"gatePassNo"`
	DocumentType      string     `json:"documentType"`
	FiscalYear        string     `json:"fiscalYear"`
	IssuedBy          string     `json:"issuedBy"`
	AuthorizedBy      string     `json:"authorizedBy"`
	TransporterName   string     `json:"transporterName"`
	TransporterGSTIN  string     `json:"transporterGstin"`
	EwayBillNo        string     `json:"ewayBillNo"`
	VehicleNo         string     `json:"vehicleNo"`
	ChallanNo         string     `json:"challanNo"`
	ChallanDate       *time.Time `json:"challanDate"`
	TransactionDate   *time.Time `json:"transactionDate"`
	BuyerName         string     `json:"buyerName"`
	ApprovalAuthority string     `json:"approvalAuthority"`
	SupplierID        string     `json:"supplierId"`
	SupplierName      string     `json:"supplierName"`
	SupplierAddress   string     `json:"supplierAddress"`
	SupplierGSTIN     string     `json:"supplierGstin"`
	SupplierContact   string     `json:"supplierContact"`
}

// StoreApprove 仓库审批：pending→storeapprove，出门证单头幂等upsert
// gatePassNo/documentType/fiscalYear/issuedBy缺任一项直接报客户端错误，不做默认填充
func (s *RequisitionService) StoreApprove(ctx context.Context, id string, req *GatePassDetailsRequest) (*entity.Requisition, error) {
	requisition, err := s.repos.Requisition.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(requisition.Status, entity.ReqStatusStoreApprove) {
		return nil, validationErrf("申请单当前状态%s不允许仓库审批", requisition.Status)
	}

	if req.GatePassNo == "" {
		return nil, validationErrf("缺少出门证号gatePassNo")
	}
	if req.DocumentType == "" {
		return nil, validationErrf("缺少出门证类型documentType")
	}
	if req.DocumentType != entity.DocumentTypeRGP && req.DocumentType != entity.DocumentTypeNRGP {
		return nil, validationErrf("出门证类型必须为RGP或NRGP")
	}
	if req.FiscalYear == "" {
		return nil, validationErrf("缺少财年fiscalYear")
	}
	if req.IssuedBy == "" {
		return nil, validationErrf("缺少签发人issuedBy")
	}

	details, err := s.buildDetails(ctx, requisition.ID, req)
	if err != nil {
		return nil, err
	}

	if err := s.applyTransition(ctx, requisition.ID, entity.ReqStatusStoreApprove, details); err != nil {
		return nil, err
	}

	s.logger.Info("仓库审批通过",
		zap.String("requisition_id", requisition.ID),
		zap.String("gate_pass_no", details.GatePassNo),
		zap.String("document_type", details.DocumentType),
	)
	return s.repos.Requisition.FindByID(ctx, id)
}

// AdminApprove 管理审批（打印动作）：storeapprove→higherauthapprove
// 打印时允许补充送货单日期等字段，同样走幂等upsert；此流转后出门证
// 方可进行实物出门
func (s *RequisitionService) AdminApprove(ctx context.Context, id string, req *GatePassDetailsRequest) (*entity.Requisition, error) {
	requisition, err := s.repos.Requisition.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(requisition.Status, entity.ReqStatusHigherAuthApprove) {
		return nil, validationErrf("申请单当前状态%s不允许管理审批", requisition.Status)
	}

	existing, err := s.repos.Details.FindByRequisitionID(ctx, requisition.ID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, validationErrf("申请单尚未经仓库审批，无出门证单头")
	}

	merged := mergeDetailsRequest(existing, req)
	details, err := s.buildDetails(ctx, requisition.ID, merged)
	if err != nil {
		return nil, err
	}

	if err := s.applyTransition(ctx, requisition.ID, entity.ReqStatusHigherAuthApprove, details); err != nil {
		return nil, err
	}

	s.logger.Info("管理审批通过",
		zap.String("requisition_id", requisition.ID),
		zap.String("gate_pass_no", details.GatePassNo),
	)
	return s.repos.Requisition.FindByID(ctx, id)
}

// Reject 拒绝：任意非终态可进入rejected，不动出门证单头
func (s *RequisitionService) Reject(ctx context.Context, id string) (*entity.Requisition, error) {
	requisition, err := s.repos.Requisition.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if entity.IsTerminalStatus(requisition.Status) {
		return nil, validationErrf("申请单已处于终态%s", requisition.Status)
	}

	if err := s.repos.Requisition.UpdateStatus(ctx, id, entity.ReqStatusRejected); err != nil {
		return nil, err
	}

	s.logger.Info("申请单已拒绝", zap.String("requisition_id", id))
	return s.repos.Requisition.FindByID(ctx, id)
}

// applyTransition 状态更新与单头upsert在同一事务内落库
func (s *RequisitionService) applyTransition(ctx context.Context, requisitionID, status string, details *entity.RequisitionDetails) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepos := repository.NewRepositories(tx)
		if err := txRepos.Details.Upsert(ctx, details); err != nil {
			return fmt.Errorf("写入出门证单头失败: %w", err)
		}
		if err := txRepos.Requisition.UpdateStatus(ctx, requisitionID, status); err != nil {
			return fmt.Errorf("更新申请单状态失败: %w", err)
		}
		return nil
	})
}

// buildDetails 组装出门证单头，供应商只给编码时从同步表取快照
func (s *RequisitionService) buildDetails(ctx context.Context, requisitionID string, req *GatePassDetailsRequest) (*entity.RequisitionDetails, error) {
	details := &entity.RequisitionDetails{
		RequisitionID:     requisitionID,
		GatePassNo:        req.GatePassNo,
		DocumentType:      req.DocumentType,
		FiscalYear:        req.FiscalYear,
		IssuedBy:          req.IssuedBy,
		AuthorizedBy:      req.AuthorizedBy,
		TransporterName:   req.TransporterName,
		TransporterGSTIN:  req.TransporterGSTIN,
		EwayBillNo:        req.EwayBillNo,
		VehicleNo:         req.VehicleNo,
		ChallanNo:         req.ChallanNo,
		ChallanDate:       req.ChallanDate,
		TransactionDate:   req.TransactionDate,
		BuyerName:         req.BuyerName,
		ApprovalAuthority: req.ApprovalAuthority,
		SupplierID:        req.SupplierID,
		SupplierName:      req.SupplierName,
		SupplierAddress:   req.SupplierAddress,
		SupplierGSTIN:     req.SupplierGSTIN,
		SupplierContact:   req.SupplierContact,
	}

	// 供应商快照：审批时点拷贝，不是活引用
	if details.SupplierID != "" && details.SupplierName == "" {
		supplier, err := s.repos.Sync.FindSupplierByCode(ctx, details.SupplierID)
		if err != nil {
			return nil, err
		}
		if supplier != nil {
			details.SupplierName = supplier.SupplierName
			details.SupplierAddress = supplier.Address
			details.SupplierGSTIN = supplier.GSTIN
			details.SupplierContact = supplier.Contact
		}
	}

	return details, nil
}

// mergeDetailsRequest 打印审批的字段补充：请求里为空的字段保留已有值
func mergeDetailsRequest(existing *entity.RequisitionDetails, req *GatePassDetailsRequest) *GatePassDetailsRequest {
	merged := *req
	if merged.GatePassNo == "" {
		merged.GatePassNo = existing.GatePassNo
	}
	if merged.DocumentType == "" {
		merged.DocumentType = existing.DocumentType
	}
	if merged.FiscalYear == "" {
		merged.FiscalYear = existing.FiscalYear
	}
	if merged.IssuedBy == "" {
		merged.IssuedBy = existing.IssuedBy
	}
	if merged.AuthorizedBy == "" {
		merged.AuthorizedBy = existing.AuthorizedBy
	}
	if merged.TransporterName == "" {
		merged.TransporterName = existing.TransporterName
	}
	if merged.TransporterGSTIN == "" {
		merged.TransporterGSTIN = existing.TransporterGSTIN
	}
	if merged.EwayBillNo == "" {
		merged.EwayBillNo = existing.EwayBillNo
	}
	if merged.VehicleNo == "" {
		merged.VehicleNo = existing.VehicleNo
	}
	if merged.ChallanNo == "" {
		merged.ChallanNo = existing.ChallanNo
	}
	if merged.ChallanDate == nil {
		merged.ChallanDate = existing.ChallanDate
	}
	if merged.TransactionDate == nil {
		merged.TransactionDate = existing.TransactionDate
	}
	if merged.BuyerName == "" {
		merged.BuyerName = existing.BuyerName
	}
	if merged.ApprovalAuthority == "" {
		merged.ApprovalAuthority = existing.ApprovalAuthority
	}
	if merged.SupplierID == "" {
		merged.SupplierID = existing.SupplierID
	}
	if merged.SupplierName == "" {
		merged.SupplierName = existing.SupplierName
	}
	if merged.SupplierAddress == "" {
		merged.SupplierAddress = existing.SupplierAddress
	}
	if merged.SupplierGSTIN == "" {
		merged.SupplierGSTIN = existing.SupplierGSTIN
	}
	if merged.SupplierContact == "" {
		merged.SupplierContact = existing.SupplierContact
	}
	return &merged
}
