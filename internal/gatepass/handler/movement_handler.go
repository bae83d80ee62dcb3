package handler

import (
	"github.com/bitfantasy/gatepass/internal/gatepass/service"
	"github.com/gin-gonic/gin"
)

// MovementHandler 物料进出台账处理器
type MovementHandler struct {
	svc *service.MovementService
}

func NewMovementHandler(svc *service.MovementService) *MovementHandler {
	return &MovementHandler{svc: svc}
}

type gatePassRequest struct {
	GatePassNo string `json:"gatePassNo" binding:"required"`
}

// RecordOut 登记物料出门（RGP）
// POST /api/v1/material-movements
func (h *MovementHandler) RecordOut(c *gin.Context) {
	var req gatePassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	movement, err := h.svc.RecordOut(c.Request.Context(), req.GatePassNo)
	if err != nil {
		ServiceError(c, err, "登记出门失败")
		return
	}

	Created(c, movement)
}

type recordInRequest struct {
	GatePassNo string                 `json:"gatePassNo" binding:"required"`
	Items      []service.RecordInItem `json:"items" binding:"required,min=1"`
}

// RecordIn 登记物料回厂（RGP）
// POST /api/v1/material-in
func (h *MovementHandler) RecordIn(c *gin.Context) {
	var req recordInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	movement, err := h.svc.RecordIn(c.Request.Context(), req.GatePassNo, &service.RecordInRequest{Items: req.Items})
	if err != nil {
		ServiceError(c, err, "登记回厂失败")
		return
	}

	Created(c, movement)
}

// RecordOutNRGP 登记NRGP物料出门（出门即闭环）
// POST /api/v1/material-out-nrgp
func (h *MovementHandler) RecordOutNRGP(c *gin.Context) {
	var req gatePassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	movement, err := h.svc.RecordOutNRGP(c.Request.Context(), req.GatePassNo)
	if err != nil {
		ServiceError(c, err, "登记NRGP出门失败")
		return
	}

	Created(c, movement)
}

// ListByGatePassNo 某出门证的进出记录
// GET /api/v1/material-movements/:gatePassNo
func (h *MovementHandler) ListByGatePassNo(c *gin.Context) {
	movements, err := h.svc.ListByGatePassNo(c.Request.Context(), c.Param("gatePassNo"))
	if err != nil {
		InternalError(c, "获取进出记录失败: "+err.Error())
		return
	}
	Success(c, movements)
}
