package entity

import "time"

// PurchaseReqn SAP同步的采购申请行（全量刷新目标表）
// 一个pr_num对应多行，按pr_num分组还原"单头+行项"视图
type PurchaseReqn struct {
	ID uint `json:"id" gorm:"primaryKey;autoIncrement"`

	PRNum               string  `json:"pr_num" gorm:"size:32;not null;index"`
	PRItmNum            string  `json:"pr_itm_num" gorm:"size:10"`
	ItemCode            string  `json:"item_code" gorm:"size:50"`
	MaterialDescription string  `json:"material_description" gorm:"size:500"`
	QuantityRequested   float64 `json:"quantity_requested" gorm:"type:decimal(12,3)"`
	Unit                string  `json:"unit" gorm:"size:20"`
	ApproxCost          float64 `json:"approx_cost" gorm:"type:decimal(15,2)"`
	Currency            string  `json:"currency" gorm:"size:10"`
	DepartmentCode      string  `json:"department_code" gorm:"size:20"`
	RequisitionedBy     string  `json:"requisitioned_by" gorm:"size:100"`
	RequisitionDate     *string `json:"requisition_date" gorm:"size:10"` // YYYY-MM-DD
	DeliveryDate        *string `json:"approxdateofret" gorm:"size:10"`  // YYYY-MM-DD

	SyncedAt time.Time `json:"synced_at" gorm:"autoCreateTime"`
}

func (PurchaseReqn) TableName() string {
	return "purchasereqn_new"
}

// Product SAP同步的物料主数据（全量刷新目标表）
type Product struct {
	ID uint `json:"id" gorm:"primaryKey;autoIncrement"`

	ProductCode string `json:"product_code" gorm:"size:50;not null;uniqueIndex"`
	ProductDesc string `json:"product_desc" gorm:"size:500"`
	ProductUOM  string `json:"product_uom" gorm:"size:20"`

	SyncedAt time.Time `json:"synced_at" gorm:"autoCreateTime"`
}

func (Product) TableName() string {
	return "products_new"
}

// Supplier SAP同步的供应商主数据（全量刷新目标表）
// 审批时其字段被快照进requisition_details
type Supplier struct {
	ID uint `json:"id" gorm:"primaryKey;autoIncrement"`

	SupplierCode string `json:"supplier_code" gorm:"size:32;not null;uniqueIndex"`
	SupplierName string `json:"supplier_name" gorm:"size:200"`
	Address      string `json:"address" gorm:"size:500"`
	GSTIN        string `json:"gstin" gorm:"size:20"`
	Contact      string `json:"contact" gorm:"size:50"`

	SyncedAt time.Time `json:"synced_at" gorm:"autoCreateTime"`
}

func (Supplier) TableName() string {
	return "suppliers_new"
}
