package service

import (
	"github.com/bitfantasy/gatepass/internal/gatepass/repository"
	"github.com/bitfantasy/gatepass/internal/shared/sap"
	"github.com/bsm/redislock"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Services 服务集合
type Services struct {
	Auth        *AuthService
	Requisition *RequisitionService
	Movement    *MovementService
	Sync        *SyncService
}

// NewServices 创建服务集合
func NewServices(repos *repository.Repositories, db *gorm.DB, sapClient *sap.Client, locker *redislock.Client, resources SyncResources, jwtSecret string, logger *zap.Logger) *Services {
	return &Services{
		Auth:        NewAuthService(repos.User, jwtSecret),
		Requisition: NewRequisitionService(repos, db, logger),
		Movement:    NewMovementService(repos, db, logger),
		Sync:        NewSyncService(sapClient, repos.Sync, locker, resources, logger),
	}
}
