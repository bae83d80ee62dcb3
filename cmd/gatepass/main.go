package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/bitfantasy/gatepass/internal/config"
	"github.com/bitfantasy/gatepass/internal/gatepass/entity"
	"github.com/bitfantasy/gatepass/internal/gatepass/handler"
	"github.com/bitfantasy/gatepass/internal/gatepass/repository"
	"github.com/bitfantasy/gatepass/internal/gatepass/service"
	"github.com/bitfantasy/gatepass/internal/middleware"
	"github.com/bitfantasy/gatepass/internal/shared/sap"
	"github.com/bsm/redislock"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting gatepass service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	// 初始化数据库
	db, err := initDatabase(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	// 迁移表结构
	if err := db.AutoMigrate(
		&entity.User{},
		&entity.Department{},
		&entity.Requisition{},
		&entity.RequisitionItem{},
		&entity.RequisitionDetails{},
		&entity.MaterialMovement{},
		&entity.MaterialMovementItem{},
		&entity.PurchaseReqn{},
		&entity.Product{},
		&entity.Supplier{},
	); err != nil {
		zapLogger.Warn("AutoMigrate warning", zap.Error(err))
	}
	seedDepartments(db, zapLogger)

	// Redis可选：未配置时同步锁降级为无锁
	var locker *redislock.Client
	if cfg.Redis.Host != "" {
		rdb := initRedis(cfg.Redis)
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			zapLogger.Warn("Redis unavailable, sync lock disabled", zap.Error(err))
		} else {
			locker = redislock.New(rdb)
		}
	}

	// SAP OData客户端
	sapClient := sap.NewClient(sap.Config{
		BaseURL:    cfg.SAP.BaseURL,
		Username:   cfg.SAP.Username,
		Password:   cfg.SAP.Password,
		BatchSize:  cfg.SAP.BatchSize,
		MaxRetries: cfg.SAP.MaxRetries,
		RetryDelay: cfg.SAP.RetryDelay,
		Timeout:    cfg.SAP.Timeout,
	}, zapLogger)

	resources := service.SyncResources{
		PurchaseReqn: cfg.SAP.PurchReqResource,
		Product:      cfg.SAP.ProductResource,
		Supplier:     cfg.SAP.SupplierResource,
	}

	// 初始化依赖
	repos := repository.NewRepositories(db)
	services := service.NewServices(repos, db, sapClient, locker, resources, cfg.JWT.Secret, zapLogger)
	handlers := handler.NewHandlers(services, repos.Department)

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	// 注册路由
	registerRoutes(router, handlers, cfg)

	// 创建HTTP服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 启动服务器
	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited")
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	}

	db, err := gorm.Open(postgres.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return db, nil
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

// seedDepartments 部门空表时写入初始数据
func seedDepartments(db *gorm.DB, zapLogger *zap.Logger) {
	var count int64
	if err := db.Model(&entity.Department{}).Count(&count).Error; err != nil || count > 0 {
		return
	}

	departments := []entity.Department{
		{Name: "Stores", Code: "STR"},
		{Name: "Maintenance", Code: "MNT"},
		{Name: "Production", Code: "PRD"},
		{Name: "Quality", Code: "QLT"},
		{Name: "Projects", Code: "PRJ"},
		{Name: "Administration", Code: "ADM"},
	}
	if err := db.Create(&departments).Error; err != nil {
		zapLogger.Warn("Seed departments warning", zap.Error(err))
		return
	}
	zapLogger.Info("Seeded departments", zap.Int("count", len(departments)))
}

func registerRoutes(r *gin.Engine, h *handler.Handlers, cfg *config.Config) {
	// 健康检查
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 版本信息
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	// API v1
	v1 := r.Group("/api/v1")
	{
		// 认证 (无需登录)
		auth := v1.Group("/auth")
		{
			auth.POST("/register", h.Auth.Register)
			auth.POST("/login", h.Auth.Login)
		}

		// 需要认证的接口
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(cfg.JWT.Secret))
		{
			// 部门
			authorized.GET("/departments", h.Department.ListDepartments)

			// 申请单
			requisitions := authorized.Group("/requisitions")
			{
				requisitions.GET("", h.Requisition.ListRequisitions)
				requisitions.POST("", h.Requisition.CreateRequisition)
				requisitions.GET("/user/:userID", h.Requisition.ListByUser)
				requisitions.GET("/verify/:gatePassNo", h.Requisition.VerifyGatePass)
				requisitions.GET("/:id", h.Requisition.GetRequisition)
				requisitions.PUT("/:id/status", middleware.RequireRole("store"), h.Requisition.UpdateStatus)
				requisitions.PUT("/:id/state", middleware.RequireRole("admin"), h.Requisition.UpdateState)
				requisitions.PUT("/:id/reject", middleware.RequireRole("admin"), h.Requisition.Reject)
			}
			authorized.GET("/requisitionsdet", h.Requisition.ListRequisitionsWithDetails)
			authorized.POST("/submit-pr", h.Requisition.SubmitPR)
			authorized.GET("/validate-requisition/:prNum", h.Requisition.ValidatePR)
			authorized.GET("/gatepass-no", middleware.RequireRole("store"), h.Requisition.NextGatePassNo)

			// 物料进出
			authorized.POST("/material-movements", middleware.RequireRole("security"), h.Movement.RecordOut)
			authorized.GET("/material-movements/:gatePassNo", h.Movement.ListByGatePassNo)
			authorized.POST("/material-in", middleware.RequireRole("security"), h.Movement.RecordIn)
			authorized.POST("/material-out-nrgp", middleware.RequireRole("security"), h.Movement.RecordOutNRGP)

			// SAP同步
			sapGroup := authorized.Group("/sap")
			{
				sapGroup.GET("/purchreq", h.Sync.SyncPurchaseReqns)
				sapGroup.GET("/products", h.Sync.SyncProducts)
				sapGroup.GET("/suppliers", h.Sync.SyncSuppliers)
			}
		}
	}
}
