package handler

import (
	"github.com/bitfantasy/gatepass/internal/gatepass/service"
	"github.com/gin-gonic/gin"
)

// SyncHandler SAP同步处理器
type SyncHandler struct {
	svc *service.SyncService
}

func NewSyncHandler(svc *service.SyncService) *SyncHandler {
	return &SyncHandler{svc: svc}
}

// SyncPurchaseReqns 同步采购申请并按单号归并返回
// GET /api/v1/sap/purchreq
func (h *SyncHandler) SyncPurchaseReqns(c *gin.Context) {
	report, err := h.svc.SyncPurchaseReqns(c.Request.Context())
	if err != nil {
		ServiceError(c, err, "同步采购申请失败")
		return
	}

	groups, err := h.svc.ListGroupedPurchaseReqns(c.Request.Context())
	if err != nil {
		InternalError(c, "读取同步结果失败: "+err.Error())
		return
	}

	Success(c, gin.H{
		"sync":         report,
		"requisitions": groups,
	})
}

// SyncProducts 同步物料主数据
// GET /api/v1/sap/products
func (h *SyncHandler) SyncProducts(c *gin.Context) {
	report, err := h.svc.SyncProducts(c.Request.Context())
	if err != nil {
		ServiceError(c, err, "同步物料主数据失败")
		return
	}
	Success(c, report)
}

// SyncSuppliers 同步供应商主数据
// GET /api/v1/sap/suppliers
func (h *SyncHandler) SyncSuppliers(c *gin.Context) {
	report, err := h.svc.SyncSuppliers(c.Request.Context())
	if err != nil {
		ServiceError(c, err, "同步供应商主数据失败")
		return
	}
	Success(c, report)
}
