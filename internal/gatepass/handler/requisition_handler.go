package handler

import (
	"github.com/bitfantasy/gatepass/internal/gatepass/entity"
	"github.com/bitfantasy/gatepass/internal/gatepass/service"
	"github.com/gin-gonic/gin"
)

// RequisitionHandler 申请单处理器
type RequisitionHandler struct {
	svc *service.RequisitionService
}

func NewRequisitionHandler(svc *service.RequisitionService) *RequisitionHandler {
	return &RequisitionHandler{svc: svc}
}

func listFilters(c *gin.Context) map[string]string {
	return map[string]string{
		"status":        c.Query("status"),
		"department_id": c.Query("department_id"),
		"search":        c.Query("search"),
		"date_range":    c.Query("date_range"),
	}
}

// ListRequisitions 申请单列表
// GET /api/v1/requisitions?status=xxx&search=xxx&date_range=30&page=1&page_size=20
func (h *RequisitionHandler) ListRequisitions(c *gin.Context) {
	page, pageSize := GetPagination(c)

	items, total, err := h.svc.List(c.Request.Context(), page, pageSize, listFilters(c))
	if err != nil {
		InternalError(c, "获取申请单列表失败: "+err.Error())
		return
	}

	respondList(c, items, total, page, pageSize)
}

// ListRequisitionsWithDetails 申请单列表（含出门证单头）
// GET /api/v1/requisitionsdet
func (h *RequisitionHandler) ListRequisitionsWithDetails(c *gin.Context) {
	page, pageSize := GetPagination(c)

	items, total, err := h.svc.ListWithDetails(c.Request.Context(), page, pageSize, listFilters(c))
	if err != nil {
		InternalError(c, "获取申请单列表失败: "+err.Error())
		return
	}

	respondList(c, items, total, page, pageSize)
}

// ListByUser 某用户的申请单
// GET /api/v1/requisitions/user/:userID
func (h *RequisitionHandler) ListByUser(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := listFilters(c)
	filters["user_id"] = c.Param("userID")

	items, total, err := h.svc.List(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		InternalError(c, "获取申请单列表失败: "+err.Error())
		return
	}

	respondList(c, items, total, page, pageSize)
}

func respondList(c *gin.Context, items []entity.Requisition, total int64, page, pageSize int) {
	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}
	Success(c, ListResponse{
		Items: items,
		Pagination: &Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      int(total),
			TotalPages: totalPages,
		},
	})
}

// GetRequisition 申请单详情
// GET /api/v1/requisitions/:id
func (h *RequisitionHandler) GetRequisition(c *gin.Context) {
	requisition, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		NotFound(c, "申请单不存在")
		return
	}
	Success(c, requisition)
}

// CreateRequisition 普通表单提交
// POST /api/v1/requisitions
func (h *RequisitionHandler) CreateRequisition(c *gin.Context) {
	var req service.CreateRequisitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	requisition, err := h.svc.Create(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		ServiceError(c, err, "创建申请单失败")
		return
	}

	Created(c, requisition)
}

// SubmitPR SAP采购申请提交
// POST /api/v1/submit-pr
func (h *RequisitionHandler) SubmitPR(c *gin.Context) {
	var req service.SubmitPRRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	requisition, err := h.svc.SubmitPR(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		ServiceError(c, err, "提交采购申请失败")
		return
	}

	Created(c, requisition)
}

// ValidatePR 校验采购申请号
// GET /api/v1/validate-requisition/:prNum
func (h *RequisitionHandler) ValidatePR(c *gin.Context) {
	result, err := h.svc.ValidatePR(c.Request.Context(), c.Param("prNum"))
	if err != nil {
		InternalError(c, "校验采购申请失败: "+err.Error())
		return
	}
	Success(c, result)
}

// UpdateStatusRequest 仓库审批/拒绝请求：status之外为出门证单头字段
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
	service.GatePassDetailsRequest
}

// UpdateStatus 仓库审批或拒绝
// PUT /api/v1/requisitions/:id/status
func (h *RequisitionHandler) UpdateStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	var requisition *entity.Requisition
	var err error
	switch req.Status {
	case entity.ReqStatusStoreApprove:
		requisition, err = h.svc.StoreApprove(c.Request.Context(), c.Param("id"), &req.GatePassDetailsRequest)
	case entity.ReqStatusRejected:
		requisition, err = h.svc.Reject(c.Request.Context(), c.Param("id"))
	default:
		BadRequest(c, "该接口仅支持storeapprove或rejected")
		return
	}
	if err != nil {
		ServiceError(c, err, "更新申请单状态失败")
		return
	}

	Success(c, requisition)
}

// UpdateState 管理审批（打印）
// PUT /api/v1/requisitions/:id/state
func (h *RequisitionHandler) UpdateState(c *gin.Context) {
	var req service.GatePassDetailsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	requisition, err := h.svc.AdminApprove(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		ServiceError(c, err, "管理审批失败")
		return
	}

	Success(c, requisition)
}

// Reject 管理拒绝
// PUT /api/v1/requisitions/:id/reject
func (h *RequisitionHandler) Reject(c *gin.Context) {
	requisition, err := h.svc.Reject(c.Request.Context(), c.Param("id"))
	if err != nil {
		ServiceError(c, err, "拒绝申请单失败")
		return
	}
	Success(c, requisition)
}

// VerifyGatePass 门卫按出门证号核验
// GET /api/v1/requisitions/verify/:gatePassNo
func (h *RequisitionHandler) VerifyGatePass(c *gin.Context) {
	requisition, err := h.svc.VerifyGatePass(c.Request.Context(), c.Param("gatePassNo"))
	if err != nil {
		NotFound(c, "出门证不存在")
		return
	}
	Success(c, requisition)
}

// NextGatePassNo 预生成出门证号
// GET /api/v1/gatepass-no
func (h *RequisitionHandler) NextGatePassNo(c *gin.Context) {
	no, err := h.svc.NextGatePassNo(c.Request.Context())
	if err != nil {
		InternalError(c, "生成出门证号失败: "+err.Error())
		return
	}
	Success(c, gin.H{"gate_pass_no": no})
}
