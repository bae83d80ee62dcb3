package repository

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")
)

// Repositories 仓库集合
type Repositories struct {
	Requisition *RequisitionRepository
	Details     *DetailsRepository
	Movement    *MovementRepository
	Sync        *SyncRepository
	User        *UserRepository
	Department  *DepartmentRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Requisition: NewRequisitionRepository(db),
		Details:     NewDetailsRepository(db),
		Movement:    NewMovementRepository(db),
		Sync:        NewSyncRepository(db),
		User:        NewUserRepository(db),
		Department:  NewDepartmentRepository(db),
	}
}
