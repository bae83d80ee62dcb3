package sap

import (
	"regexp"
	"strconv"
	"time"

	"github.com/bitfantasy/gatepass/internal/gatepass/entity"
)

// =============================================================================
// 字段映射 — SAP原始记录到本地表结构的纯转换，无I/O
// =============================================================================

var odataDatePattern = regexp.MustCompile(`^/Date\((-?\d+)\)/$`)

// ConvertODataDate SAP的/Date(毫秒)/线格式转YYYY-MM-DD（UTC）
// 不匹配该格式的字符串原样透传，nil透传nil
func ConvertODataDate(raw *string) *string {
	if raw == nil {
		return nil
	}
	m := odataDatePattern.FindStringSubmatch(*raw)
	if m == nil {
		return raw
	}
	millis, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return raw
	}
	formatted := time.UnixMilli(millis).UTC().Format("2006-01-02")
	return &formatted
}

// PurchaseReqnRecord SAP采购申请行原始记录
type PurchaseReqnRecord struct {
	PurchaseRequisition         string  `json:"PurchaseRequisition"`
	PurchaseRequisitionItem     string  `json:"PurchaseRequisitionItem"`
	Material                    string  `json:"Material"`
	PurchaseRequisitionItemText string  `json:"PurchaseRequisitionItemText"`
	RequestedQuantity           string  `json:"RequestedQuantity"`
	BaseUnit                    string  `json:"BaseUnit"`
	ValuationPrice              string  `json:"ValuationPrice"`
	PurReqnItemCurrency         string  `json:"PurReqnItemCurrency"`
	CostCenter                  string  `json:"CostCenter"`
	CreatedByUser               string  `json:"CreatedByUser"`
	PurchaseReqnCreationDate    *string `json:"PurchaseReqnCreationDate"`
	DeliveryDate                *string `json:"DeliveryDate"`
}

// MapPurchaseReqn 采购申请行映射
func MapPurchaseReqn(rec PurchaseReqnRecord) entity.PurchaseReqn {
	return entity.PurchaseReqn{
		PRNum:               rec.PurchaseRequisition,
		PRItmNum:            rec.PurchaseRequisitionItem,
		ItemCode:            rec.Material,
		MaterialDescription: rec.PurchaseRequisitionItemText,
		QuantityRequested:   parseFloat(rec.RequestedQuantity),
		Unit:                rec.BaseUnit,
		ApproxCost:          parseFloat(rec.ValuationPrice),
		Currency:            rec.PurReqnItemCurrency,
		DepartmentCode:      rec.CostCenter,
		RequisitionedBy:     rec.CreatedByUser,
		RequisitionDate:     ConvertODataDate(rec.PurchaseReqnCreationDate),
		DeliveryDate:        ConvertODataDate(rec.DeliveryDate),
	}
}

// ProductRecord SAP物料主数据原始记录
type ProductRecord struct {
	Product     string `json:"Product"`
	ProductName string `json:"ProductName"`
	BaseUnit    string `json:"BaseUnit"`
}

// MapProduct 物料主数据映射
func MapProduct(rec ProductRecord) entity.Product {
	desc := rec.ProductName
	if desc == "" {
		desc = "No Description"
	}
	uom := rec.BaseUnit
	if uom == "" {
		uom = "EA"
	}
	return entity.Product{
		ProductCode: rec.Product,
		ProductDesc: desc,
		ProductUOM:  uom,
	}
}

// SupplierRecord SAP供应商主数据原始记录
// GSTIN在印度本地化里存于TaxNumber3
type SupplierRecord struct {
	Supplier     string `json:"Supplier"`
	SupplierName string `json:"SupplierName"`
	Address      string `json:"Address"`
	TaxNumber3   string `json:"TaxNumber3"`
	PhoneNumber  string `json:"PhoneNumber"`
}

// MapSupplier 供应商主数据映射
func MapSupplier(rec SupplierRecord) entity.Supplier {
	return entity.Supplier{
		SupplierCode: rec.Supplier,
		SupplierName: rec.SupplierName,
		Address:      rec.Address,
		GSTIN:        rec.TaxNumber3,
		Contact:      rec.PhoneNumber,
	}
}

func parseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
