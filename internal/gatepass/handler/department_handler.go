package handler

import (
	"github.com/bitfantasy/gatepass/internal/gatepass/repository"
	"github.com/gin-gonic/gin"
)

// DepartmentHandler 部门处理器
type DepartmentHandler struct {
	repo *repository.DepartmentRepository
}

func NewDepartmentHandler(repo *repository.DepartmentRepository) *DepartmentHandler {
	return &DepartmentHandler{repo: repo}
}

// ListDepartments 部门列表
// GET /api/v1/departments
func (h *DepartmentHandler) ListDepartments(c *gin.Context) {
	departments, err := h.repo.FindAll(c.Request.Context())
	if err != nil {
		InternalError(c, "获取部门列表失败: "+err.Error())
		return
	}
	Success(c, departments)
}
