package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"sel_rubric_backend/internal/config"
	"sel_rubric_backend/internal/controller"
	"sel_rubric_backend/internal/repository"
	"sel_rubric_backend/internal/service"
	"sel_rubric_backend/internal/util"
	"sel_rubric_backend/pkg/configwatcher"
	"sel_rubric_backend/pkg/database"
	"sel_rubric_backend/pkg/logger"
	"sel_rubric_backend/pkg/monitoring"
	"sel_rubric_backend/pkg/security"
	"sel_rubric_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config     *config.Config
	ConfigPath string
	Router     *gin.Engine
	DB         *gorm.DB
	Redis      *redis.Client

	services        *services
	rateLimiter     *security.RateLimiter
	tracerProvider  *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)
	ctx             context.Context
	cancel          context.CancelFunc
}

type repositories struct {
	assessment   *repository.AssessmentRepository
	distribution *repository.CohortDistributionRepository
	profile      *repository.TeacherProfileRepository
	upload       *repository.RubricUploadRepository
	tx           repository.TxRunner
}

type services struct {
	cache        *service.DistributionCache
	storage      *service.StorageService
	aggregator   *service.AggregatorService
	assessment   *service.AssessmentService
	distribution *service.DistributionService
	audit        *service.DistributionAuditService
	teacher      *service.TeacherService
	upload       *service.RubricUploadService
}

type controllers struct {
	assessment   *controller.AssessmentController
	distribution *controller.DistributionController
	teacher      *controller.TeacherController
	rubric       *controller.RubricController
	upload       *controller.RubricUploadController
	health       *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		assessment:   repository.NewAssessmentRepository(db),
		distribution: repository.NewCohortDistributionRepository(db),
		profile:      repository.NewTeacherProfileRepository(db),
		upload:       repository.NewRubricUploadRepository(db),
		tx:           repository.NewTxRunner(db),
	}
}

func (a *App) initServices(ctx context.Context, repos *repositories, cfg *config.Config, rdb *redis.Client) (*services, error) {
	s := &services{}

	storage, err := service.NewStorageService(ctx, &cfg.Storage)
	if err != nil {
		return nil, err
	}
	s.storage = storage

	metrics := monitoring.AggregatorMetrics{}
	s.cache = service.NewDistributionCache(rdb, cfg.Scoring.CacheTTL)
	s.aggregator = service.NewAggregatorService(repos.distribution, s.cache, metrics, service.RetryPolicyFromConfig(cfg.Scoring))
	s.assessment = service.NewAssessmentService(
		repos.assessment,
		repos.distribution,
		repos.profile,
		s.aggregator,
		repos.tx,
		assessmentSettings(cfg),
		metrics,
	)
	s.distribution = service.NewDistributionService(repos.distribution, s.cache)
	s.audit = service.NewDistributionAuditService(repos.distribution, repos.assessment, s.aggregator, metrics)
	s.teacher = service.NewTeacherService(repos.profile)
	s.upload = service.NewRubricUploadService(repos.upload, s.storage, cfg.Storage.MaxUploadMB)

	return s, nil
}

func assessmentSettings(cfg *config.Config) service.AssessmentSettings {
	return service.AssessmentSettings{
		DefaultAssessmentName: cfg.Scoring.DefaultAssessmentName,
		MaxBatchSize:          cfg.Scoring.MaxBatchSize,
	}
}

func (a *App) initControllers(s *services, db *gorm.DB) *controllers {
	components := map[string]controller.Pinger{"storage": s.storage}
	if a.Redis != nil {
		components["redis"] = s.cache
	}
	return &controllers{
		assessment:   controller.NewAssessmentController(s.assessment),
		distribution: controller.NewDistributionController(s.distribution, s.audit),
		teacher:      controller.NewTeacherController(s.teacher),
		rubric:       controller.NewRubricController(),
		upload:       controller.NewRubricUploadController(s.upload),
		health:       controller.NewHealthController(db, components),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	a.rateLimiter = security.NewRateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute)
	router.Use(a.rateLimiter.Middleware())

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// registerReloaders applies the settings that may change while running.
func (a *App) registerReloaders() {
	a.RegisterConfigCallback(func(cfg *config.Config) {
		logger.SetLevel(cfg)
	})
	a.RegisterConfigCallback(func(cfg *config.Config) {
		a.services.aggregator.SetRetryPolicy(service.RetryPolicyFromConfig(cfg.Scoring))
		a.services.assessment.SetSettings(assessmentSettings(cfg))
	})
	a.RegisterConfigCallback(func(cfg *config.Config) {
		a.rateLimiter.Update(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute)
	})
}

func (a *App) reload(cfg *config.Config) {
	for _, cb := range a.configCallbacks {
		cb(cfg)
	}
	logger.Log.Info("Configuration reloaded",
		zap.Int("max_retries", cfg.Scoring.MaxRetries),
		zap.Int("rate_limit", cfg.RateLimit.MaxRequests),
		zap.String("log_level", logger.Level().String()),
	)
}

func (a *App) startBackgroundTasks(ctx context.Context, s *services) {
	interval := a.Config.Scoring.AuditInterval
	if interval > 0 {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if _, err := s.audit.Audit(ctx); err != nil {
						logger.Log.Error("distribution audit error", zap.Error(err))
					}
				}
			}
		}()
	}

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.rateLimiter.Cleanup()
			}
		}
	}()

	if a.ConfigPath != "" {
		go func() {
			file := filepath.Join(a.ConfigPath, "config.yaml")
			if err := configwatcher.WatchConfig(ctx, file, config.LoadConfig, a.reload); err != nil {
				logger.Log.Warn("Config hot reload disabled", zap.Error(err))
			}
		}()
	}
}

// NewApp wires the service. With cfg.MigrateOnly it stops after the migration.
func NewApp(cfg *config.Config, configPath string) *App {
	logger.InitLogger(cfg)
	logger.Log.Info("Logger initialized successfully")

	migrate := cfg.ForceMigrate || cfg.Server.Mode != "release"
	db, err := database.InitDB(&cfg.Database, migrate)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	app := &App{
		Config:     cfg,
		ConfigPath: configPath,
		DB:         db,
	}
	if cfg.MigrateOnly {
		return app
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
		log.Fatalf("Failed to initialize redis: %v", err)
	}
	app.Redis = rdb

	app.ctx, app.cancel = context.WithCancel(context.Background())

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(cfg.Tracing.ServiceName, cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracerProvider = tp
	}

	// 监控初始化
	monitoring.Init()

	repos := app.initRepositories(db)
	services, err := app.initServices(app.ctx, repos, cfg, rdb)
	if err != nil {
		logger.Log.Fatal("Failed to initialize services", zap.Error(err))
	}
	app.services = services
	controllers := app.initControllers(services, db)

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == util.StorageLocal {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	app.registerReloaders()
	app.startBackgroundTasks(app.ctx, services)

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	a.Close(ctx)
	logger.Log.Info("Server exiting")
}

// Close stops background tasks and releases connections.
func (a *App) Close(ctx context.Context) {
	if a.cancel != nil {
		a.cancel()
	}
	if a.tracerProvider != nil {
		if err := a.tracerProvider.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			logger.Log.Warn("Failed to close redis", zap.Error(err))
		}
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		sqlDB.Close()
	}
	logger.Log.Sync()
}
