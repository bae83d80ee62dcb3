package entity

import "time"

// Requisition 领料/出门申请单
// pr_num 来自SAP采购申请，service_indent_no 为本地生成的服务申请编号，两者必有其一
type Requisition struct {
	ID              string  `json:"id" gorm:"primaryKey;size:32"`
	PRNum           *string `json:"pr_num" gorm:"size:32;uniqueIndex"`
	ServiceIndentNo *string `json:"service_indent_no" gorm:"size:32;uniqueIndex"`

	UserID          string    `json:"user_id" gorm:"size:32;index"`
	DepartmentID    int       `json:"department_id" gorm:"not null;index"`
	RequisitionedBy string    `json:"requisitioned_by" gorm:"size:100"`
	RequisitionDate time.Time `json:"requisition_date"`
	Status          string    `json:"status" gorm:"size:20;default:pending;index"` // pending/storeapprove/higherauthapprove/rejected/completed
	Remarks         string    `json:"remarks" gorm:"type:text"`
	PRType          string    `json:"pr_type" gorm:"size:20;default:standard"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 关联
	Department *Department         `json:"department,omitempty" gorm:"foreignKey:DepartmentID"`
	Items      []RequisitionItem   `json:"items,omitempty" gorm:"foreignKey:RequisitionID"`
	Details    *RequisitionDetails `json:"details,omitempty" gorm:"foreignKey:RequisitionID"`
}

func (Requisition) TableName() string {
	return "requisitions"
}

// 申请单状态（唯一有效的状态集，旧的approved/securityapprove变体已废弃）
const (
	ReqStatusPending           = "pending"
	ReqStatusStoreApprove      = "storeapprove"
	ReqStatusHigherAuthApprove = "higherauthapprove"
	ReqStatusRejected          = "rejected"
	ReqStatusCompleted         = "completed"
)

// IsTerminalStatus 终态判断，completed/rejected之后不再流转
func IsTerminalStatus(status string) bool {
	return status == ReqStatusCompleted || status == ReqStatusRejected
}

// IsValidStatus 状态值合法性
func IsValidStatus(status string) bool {
	switch status {
	case ReqStatusPending, ReqStatusStoreApprove, ReqStatusHigherAuthApprove,
		ReqStatusRejected, ReqStatusCompleted:
		return true
	}
	return false
}

// RequisitionItem 申请单行项
type RequisitionItem struct {
	ID            string `json:"id" gorm:"primaryKey;size:32"`
	RequisitionID string `json:"requisition_id" gorm:"size:32;not null;index"`

	ItemCode            string     `json:"item_code" gorm:"size:50"`
	PRItmNum            string     `json:"pr_itm_num" gorm:"size:10"`
	MaterialDescription string     `json:"material_description" gorm:"size:500"`
	QuantityRequested   float64    `json:"quantity_requested" gorm:"type:decimal(12,3);not null"`
	Unit                string     `json:"unit" gorm:"size:20"`
	ApproxCost          float64    `json:"approx_cost" gorm:"type:decimal(15,2)"`
	Currency            string     `json:"currency" gorm:"size:10"`
	ApproxDateOfReturn  *time.Time `json:"approxdateofret"`
	Remarks             string     `json:"remarks" gorm:"type:text"`

	// 行项状态跟随单头，无独立语义
	Status    string    `json:"status" gorm:"size:20;default:pending"`
	SortOrder int       `json:"sort_order" gorm:"default:0"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (RequisitionItem) TableName() string {
	return "req_items"
}
