package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/acadforge/timetable-api/api/swagger"
	"github.com/acadforge/timetable-api/internal/handler"
	"github.com/acadforge/timetable-api/internal/middleware"
	"github.com/acadforge/timetable-api/internal/models"
	"github.com/acadforge/timetable-api/internal/repository"
	"github.com/acadforge/timetable-api/internal/service"
	"github.com/acadforge/timetable-api/pkg/cache"
	"github.com/acadforge/timetable-api/pkg/config"
	"github.com/acadforge/timetable-api/pkg/database"
	"github.com/acadforge/timetable-api/pkg/jobs"
	"github.com/acadforge/timetable-api/pkg/logger"
	corsmiddleware "github.com/acadforge/timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/acadforge/timetable-api/pkg/middleware/requestid"
	"github.com/acadforge/timetable-api/pkg/storage"
)

// @title AcadForge Timetable API
// @version 1.0.0
// @description Academic timetabling service: catalog management, constraint-based schedule generation, lifecycle and exports
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()

	// Redis is optional. Without it the timetable view falls back to the
	// database on every request.
	var cacheSvc *service.CacheService
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, timetable cache disabled", zap.Error(err))
	} else {
		defer redisClient.Close() //nolint:errcheck
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.TTL, logr, cfg.Cache.Enabled)
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	termRepo := repository.NewTermRepository(db)
	departmentRepo := repository.NewDepartmentRepository(db)
	facultyRepo := repository.NewFacultyRepository(db)
	classroomRepo := repository.NewClassroomRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	entryRepo := repository.NewScheduleEntryRepository(db)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
		SingleSession:      cfg.JWT.SingleSession,
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	termSvc := service.NewTermService(termRepo, validate, logr)
	departmentSvc := service.NewDepartmentService(departmentRepo, validate, logr)
	facultySvc := service.NewFacultyService(facultyRepo, entryRepo, validate, logr)
	classroomSvc := service.NewClassroomService(classroomRepo, validate, logr)
	subjectSvc := service.NewSubjectService(subjectRepo, validate, logr)
	scheduleSvc := service.NewScheduleService(entryRepo, facultyRepo, classroomRepo, subjectRepo, cacheSvc, validate, logr)
	generatorSvc := service.NewGeneratorService(facultyRepo, classroomRepo, subjectRepo, entryRepo, validate, logr, metricsSvc, service.GeneratorConfig{
		MaxTrials:     cfg.Generator.MaxTrials,
		SearchTimeout: cfg.Generator.SearchTimeout,
		ProposalTTL:   cfg.Generator.ProposalTTL,
		SlotStepMins:  cfg.Generator.SlotStepMins,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		exportJobSvc *service.ExportJobService
		exportQueue  *jobs.Queue
	)
	if cfg.Export.Enabled {
		store, storeErr := storage.NewLocalStorage(cfg.Export.StorageDir)
		if storeErr != nil {
			logr.Fatal("failed to init export storage", zap.Error(storeErr))
		}
		signer := storage.NewSignedURLSigner(cfg.Export.SignedURLSecret, cfg.Export.SignedURLTTL)
		exportSvc := service.NewExportService(facultyRepo, classroomRepo, subjectRepo, entryRepo, store, signer, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Export.SignedURLTTL,
		}, logr, nil, nil)
		exportJobRepo := repository.NewExportJobRepository(db)
		worker := service.NewExportWorker(exportJobRepo, exportSvc, cfg.Export.WorkerRetries, logr)
		exportQueue = jobs.NewQueue("exports", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Export.WorkerConcurrency,
			MaxRetries: cfg.Export.WorkerRetries,
			Logger:     logr,
		})
		exportQueue.Start(ctx)
		exportJobSvc = service.NewExportJobService(exportJobRepo, exportQueue, exportSvc, logr, service.ExportJobConfig{
			ResultTTL:       cfg.Export.SignedURLTTL,
			CleanupInterval: cfg.Export.CleanupInterval,
			MaxRetries:      cfg.Export.WorkerRetries,
		})
		exportJobSvc.RecoverPendingJobs(ctx)
		exportJobSvc.StartCleanup(ctx)
	}

	router := setupRouter(cfg, logr, routerDeps{
		db:         db,
		auth:       handler.NewAuthHandler(authSvc),
		users:      handler.NewUserHandler(userSvc),
		terms:      handler.NewTermHandler(termSvc),
		depts:      handler.NewDepartmentHandler(departmentSvc),
		faculty:    handler.NewFacultyHandler(facultySvc),
		classrooms: handler.NewClassroomHandler(classroomSvc),
		subjects:   handler.NewSubjectHandler(subjectSvc),
		schedules:  handler.NewScheduleHandler(scheduleSvc),
		generator:  handler.NewGeneratorHandler(generatorSvc),
		exports:    exportJobHandler(exportJobSvc),
		metrics:    handler.NewMetricsHandler(metricsSvc),
		authSvc:    authSvc,
		metricsSvc: metricsSvc,
		userRepo:   userRepo,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	if exportQueue != nil {
		exportQueue.Stop()
	}
	logr.Info("server stopped")
}

func exportJobHandler(svc *service.ExportJobService) *handler.ExportHandler {
	if svc == nil {
		return nil
	}
	return handler.NewExportHandler(svc)
}

type routerDeps struct {
	db         *sqlx.DB
	auth       *handler.AuthHandler
	users      *handler.UserHandler
	terms      *handler.TermHandler
	depts      *handler.DepartmentHandler
	faculty    *handler.FacultyHandler
	classrooms *handler.ClassroomHandler
	subjects   *handler.SubjectHandler
	schedules  *handler.ScheduleHandler
	generator  *handler.GeneratorHandler
	exports    *handler.ExportHandler
	metrics    *handler.MetricsHandler
	authSvc    *service.AuthService
	metricsSvc *service.MetricsService
	userRepo   *repository.UserRepository
}

func setupRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.WithResponseMeta())
	r.Use(middleware.Metrics(deps.metricsSvc))

	r.GET("/health", deps.metrics.Health)
	r.GET("/ready", func(c *gin.Context) {
		start := time.Now()
		err := deps.db.PingContext(c.Request.Context())
		deps.metricsSvc.ObserveDBQuery("ping", time.Since(start))
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", deps.metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", deps.auth.Login)
		auth.POST("/refresh", deps.auth.Refresh)
		auth.POST("/forgot-password", deps.auth.ForgotPassword)
		auth.POST("/reset-password", deps.auth.ResetPassword)

		session := auth.Group("")
		session.Use(middleware.JWT(deps.authSvc))
		session.POST("/logout", deps.auth.Logout)
		session.POST("/change-password", deps.auth.ChangePassword)
		session.GET("/me", deps.auth.Me)
	}

	if deps.exports != nil {
		// The signed token is the credential, no session required.
		api.GET("/exports/download/:token", deps.exports.Download)
	}

	// The published timetable is public read. Claims are attached when
	// present so the request log carries the user.
	api.GET("/schedules/timetable", middleware.OptionalJWT(deps.authSvc), deps.schedules.Timetable)

	protected := api.Group("")
	protected.Use(middleware.JWT(deps.authSvc))

	adminOnly := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin)
	schedulerWrite := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleScheduler)

	protected.GET("/metrics/summary", adminOnly, deps.metrics.Summary)

	users := protected.Group("/users")
	{
		users.GET("", adminOnly, deps.users.List)
		users.GET("/:id", middleware.RBAC(string(models.RoleSuperAdmin), string(models.RoleAdmin), "SELF"), deps.users.Get)
		users.POST("", adminOnly, middleware.Audit(deps.userRepo, models.AuditActionUserCreate, "users"), deps.users.Create)
		users.PUT("/:id", adminOnly, middleware.Audit(deps.userRepo, models.AuditActionUserUpdate, "users"), deps.users.Update)
		users.DELETE("/:id", adminOnly, middleware.Audit(deps.userRepo, models.AuditActionUserDelete, "users"), deps.users.Delete)
	}

	terms := protected.Group("/terms")
	{
		terms.GET("", deps.terms.List)
		terms.GET("/active", deps.terms.GetActive)
		terms.GET("/:id", deps.terms.Get)
		terms.POST("", adminOnly, deps.terms.Create)
		terms.PUT("/:id", adminOnly, deps.terms.Update)
		terms.POST("/:id/activate", adminOnly, deps.terms.SetActive)
	}

	departments := protected.Group("/departments")
	{
		departments.GET("", deps.depts.List)
		departments.GET("/:id", deps.depts.Get)
		departments.POST("", adminOnly, deps.depts.Create)
		departments.PUT("/:id", adminOnly, deps.depts.Update)
		departments.DELETE("/:id", adminOnly, deps.depts.Delete)
	}

	faculty := protected.Group("/faculty")
	{
		faculty.GET("", deps.faculty.List)
		faculty.GET("/:id", deps.faculty.Get)
		faculty.GET("/:id/workload", deps.faculty.Workload)
		faculty.POST("", adminOnly, deps.faculty.Create)
		faculty.PUT("/:id", adminOnly, deps.faculty.Update)
		faculty.DELETE("/:id", adminOnly, deps.faculty.Deactivate)
	}

	classrooms := protected.Group("/classrooms")
	{
		classrooms.GET("", deps.classrooms.List)
		classrooms.GET("/:id", deps.classrooms.Get)
		classrooms.POST("", adminOnly, deps.classrooms.Create)
		classrooms.PUT("/:id", adminOnly, deps.classrooms.Update)
		classrooms.DELETE("/:id", adminOnly, deps.classrooms.Delete)
	}

	subjects := protected.Group("/subjects")
	{
		subjects.GET("", deps.subjects.List)
		subjects.GET("/:id", deps.subjects.Get)
		subjects.GET("/:id/load", deps.subjects.Load)
		subjects.POST("", adminOnly, deps.subjects.Create)
		subjects.PUT("/:id", adminOnly, deps.subjects.Update)
		subjects.DELETE("/:id", adminOnly, deps.subjects.Delete)
	}

	schedules := protected.Group("/schedules")
	{
		schedules.GET("", deps.schedules.List)
		schedules.GET("/:id", deps.schedules.Get)
		schedules.POST("", schedulerWrite, deps.schedules.Create)
		schedules.PUT("/:id", schedulerWrite, deps.schedules.Update)
		schedules.DELETE("/:id", schedulerWrite, deps.schedules.Delete)
		schedules.POST("/publish", schedulerWrite, middleware.Audit(deps.userRepo, models.AuditActionSchedulePublish, "schedules"), deps.schedules.Publish)
		schedules.POST("/archive", schedulerWrite, middleware.Audit(deps.userRepo, models.AuditActionScheduleArchive, "schedules"), deps.schedules.ArchiveTerm)
		schedules.POST("/generate", schedulerWrite, deps.generator.Generate)
		schedules.POST("/commit", schedulerWrite, middleware.Audit(deps.userRepo, models.AuditActionScheduleCommit, "schedules"), deps.generator.Commit)
		schedules.POST("/conflicts", schedulerWrite, deps.generator.DetectConflicts)
	}


	if deps.exports != nil {
		exports := protected.Group("/exports")
		exports.POST("", deps.exports.Create)
		exports.GET("/:id", deps.exports.Status)
	}

	return r
}
