package entity

import "time"

// RequisitionDetails 出门证单头（门禁放行单），与申请单1:1
// 首次仓库审批时创建，后续审批动作原地更新（按requisition_id幂等upsert）
type RequisitionDetails struct {
	ID            string `json:"id" gorm:"primaryKey;size:32"`
	RequisitionID string `json:"requisition_id" gorm:"size:32;uniqueIndex;not null"`

	GatePassNo   string `json:"gate_pass_no" gorm:"size:32;uniqueIndex;not null"`
	DocumentType string `json:"document_type" gorm:"size:10;not null"` // RGP/NRGP
	FiscalYear   string `json:"fiscal_year" gorm:"size:10;not null"`
	IssuedBy     string `json:"issued_by" gorm:"size:100;not null"`
	AuthorizedBy string `json:"authorized_by" gorm:"size:100"`

	// 运输信息
	TransporterName  string `json:"transporter_name" gorm:"size:200"`
	TransporterGSTIN string `json:"transporter_gstin" gorm:"size:20"`
	EwayBillNo       string `json:"eway_bill_no" gorm:"size:30"`
	VehicleNo        string `json:"vehicle_no" gorm:"size:20"`

	// 送货单/交易信息
	ChallanNo         string     `json:"challan_no" gorm:"size:50"`
	ChallanDate       *time.Time `json:"challan_date"`
	TransactionDate   *time.Time `json:"transaction_date"`
	BuyerName         string     `json:"buyer_name" gorm:"size:200"`
	ApprovalAuthority string     `json:"approval_authority" gorm:"size:100"`

	// 供应商快照（审批时点的冗余拷贝，不是外键引用）
	SupplierID      string `json:"supplier_id" gorm:"size:32"`
	SupplierName    string `json:"supplier_name" gorm:"size:200"`
	SupplierAddress string `json:"supplier_address" gorm:"size:500"`
	SupplierGSTIN   string `json:"supplier_gstin" gorm:"size:20"`
	SupplierContact string `json:"supplier_contact" gorm:"size:50"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (RequisitionDetails) TableName() string {
	return "requisition_details"
}

// 出门证类型
const (
	DocumentTypeRGP  = "RGP"  // 可回收出门证，物料出厂后需返回
	DocumentTypeNRGP = "NRGP" // 不可回收出门证，物料永久离场
)
