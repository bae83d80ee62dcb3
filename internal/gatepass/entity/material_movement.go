package entity

import "time"

// MaterialMovement 物料进出台账，每次物理出门/回厂记一行
// in类型通过related_movement_id回指对应的out（NRGP自动闭环路径同样回指）
type MaterialMovement struct {
	ID                string    `json:"id" gorm:"primaryKey;size:32"`
	GatePassNo        string    `json:"gate_pass_no" gorm:"size:32;not null;index"`
	MovementType      string    `json:"movement_type" gorm:"size:10;not null"` // out/in
	Status            string    `json:"status" gorm:"size:20;default:pending"` // pending/partial/completed
	MovementDate      time.Time `json:"movement_date"`
	RelatedMovementID *string   `json:"related_movement_id" gorm:"size:32"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Items []MaterialMovementItem `json:"items,omitempty" gorm:"foreignKey:MovementID"`
}

func (MaterialMovement) TableName() string {
	return "material_movements"
}

// MaterialMovementItem 进出台账行项
type MaterialMovementItem struct {
	ID                string  `json:"id" gorm:"primaryKey;size:32"`
	MovementID        string  `json:"movement_id" gorm:"size:32;not null;index"`
	RequisitionItemID string  `json:"requisition_item_id" gorm:"size:32;not null;index"`
	Quantity          float64 `json:"quantity" gorm:"type:decimal(12,3);not null"`
	Status            string  `json:"status" gorm:"size:20;default:pending"` // pending/received

	CreatedAt time.Time `json:"created_at"`
}

func (MaterialMovementItem) TableName() string {
	return "material_movement_items"
}

// 进出类型
const (
	MovementTypeOut = "out"
	MovementTypeIn  = "in"
)

// 进出状态
const (
	MovementStatusPending   = "pending"
	MovementStatusPartial   = "partial"
	MovementStatusCompleted = "completed"
)

// 行项回收状态
const (
	MovementItemStatusPending  = "pending"
	MovementItemStatusReceived = "received"
)
