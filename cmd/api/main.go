package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/unireg-api/api/swagger"
	"github.com/noah-isme/unireg-api/internal/handler"
	"github.com/noah-isme/unireg-api/internal/middleware"
	"github.com/noah-isme/unireg-api/internal/models"
	"github.com/noah-isme/unireg-api/internal/repository"
	"github.com/noah-isme/unireg-api/internal/service"
	"github.com/noah-isme/unireg-api/pkg/cache"
	"github.com/noah-isme/unireg-api/pkg/config"
	"github.com/noah-isme/unireg-api/pkg/database"
	"github.com/noah-isme/unireg-api/pkg/jobs"
	"github.com/noah-isme/unireg-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/unireg-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/unireg-api/pkg/middleware/requestid"
)

// @title UniReg API
// @version 1.0.0
// @description University course registration backend
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
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close() //nolint:errcheck

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
			redisClient = nil
		} else {
			defer redisClient.Close() //nolint:errcheck
		}
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	schoolRepo := repository.NewSchoolRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	classroomRepo := repository.NewClassroomRepository(db)
	semesterRepo := repository.NewSemesterRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	registrationRepo := repository.NewRegistrationRepository(db)
	changeRequestRepo := repository.NewChangeRequestRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, cfg.Cache.CurrentSemesterTTL, cfg.Cache.CourseDetailTTL, logr)

	activitySvc := service.NewActivityService(activityRepo, jobs.QueueConfig{
		Workers:    cfg.Audit.Workers,
		BufferSize: cfg.Audit.BufferSize,
	}, logr)
	if cfg.Audit.Enabled {
		activitySvc.Start(context.Background())
		defer activitySvc.Stop()
	}

	authSvc := service.NewAuthService(userRepo, activitySvc, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, schoolRepo, validate, logr)
	schoolSvc := service.NewSchoolService(schoolRepo, validate, logr)
	subjectSvc := service.NewSubjectService(subjectRepo, schoolRepo, validate, logr)
	classroomSvc := service.NewClassroomService(classroomRepo, validate, logr)
	semesterSvc := service.NewSemesterService(semesterRepo, cacheSvc, activitySvc, validate, logr)
	courseSvc := service.NewCourseService(courseRepo, subjectRepo, semesterRepo, classroomRepo, userRepo, cacheSvc, activitySvc, validate, logr)
	registrationSvc := service.NewRegistrationService(registrationRepo, courseRepo, semesterRepo, subjectRepo, userRepo, activitySvc, cacheSvc, validate, logr)
	changeRequestSvc := service.NewChangeRequestService(changeRequestRepo, userRepo, schoolRepo, activitySvc, validate, logr)
	transcriptSvc := service.NewTranscriptService(registrationRepo, userRepo, semesterRepo, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	schoolHandler := handler.NewSchoolHandler(schoolSvc)
	subjectHandler := handler.NewSubjectHandler(subjectSvc)
	classroomHandler := handler.NewClassroomHandler(classroomSvc)
	semesterHandler := handler.NewSemesterHandler(semesterSvc)
	courseHandler := handler.NewCourseHandler(courseSvc)
	registrationHandler := handler.NewRegistrationHandler(registrationSvc, metricsSvc)
	changeRequestHandler := handler.NewChangeRequestHandler(changeRequestSvc)
	transcriptHandler := handler.NewTranscriptHandler(transcriptSvc)
	activityHandler := handler.NewActivityHandler(activitySvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
		authGroup.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
	}

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))

	adminOnly := middleware.RequireRoles(models.RoleAdmin)
	staffOnly := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher)
	studentOnly := middleware.RequireRoles(models.RoleStudent)

	users := authed.Group("/users")
	{
		users.GET("", adminOnly, userHandler.List)
		users.GET("/me", userHandler.Me)
		users.GET("/:id", middleware.RBAC(string(models.RoleAdmin), "SELF"), userHandler.Get)
		users.POST("", adminOnly, userHandler.Create)
		users.PUT("/:id", adminOnly, userHandler.Update)
	}

	schools := authed.Group("/schools")
	{
		schools.GET("", schoolHandler.List)
		schools.GET("/:id", schoolHandler.Get)
		schools.POST("", adminOnly, schoolHandler.Create)
		schools.PUT("/:id", adminOnly, schoolHandler.Update)
		schools.DELETE("/:id", adminOnly, schoolHandler.Delete)
	}

	subjects := authed.Group("/subjects")
	{
		subjects.GET("", subjectHandler.List)
		subjects.GET("/:id", subjectHandler.Get)
		subjects.POST("", adminOnly, subjectHandler.Create)
		subjects.PUT("/:id", adminOnly, subjectHandler.Update)
		subjects.DELETE("/:id", adminOnly, subjectHandler.Delete)
	}

	classrooms := authed.Group("/classrooms")
	{
		classrooms.GET("", classroomHandler.List)
		classrooms.GET("/:id", classroomHandler.Get)
		classrooms.POST("", adminOnly, classroomHandler.Create)
		classrooms.PUT("/:id", adminOnly, classroomHandler.Update)
		classrooms.DELETE("/:id", adminOnly, classroomHandler.Delete)
	}

	semesters := authed.Group("/semesters")
	{
		semesters.GET("", semesterHandler.List)
		semesters.GET("/current", semesterHandler.Current)
		semesters.GET("/:id", semesterHandler.Get)
		semesters.POST("", adminOnly, semesterHandler.Create)
		semesters.PUT("/:id", adminOnly, semesterHandler.Update)
		semesters.PUT("/:id/activate", adminOnly, semesterHandler.Activate)
		semesters.DELETE("/:id", adminOnly, semesterHandler.Delete)
	}

	courses := authed.Group("/courses")
	{
		courses.GET("", courseHandler.List)
		courses.GET("/:id", courseHandler.Get)
		courses.POST("", adminOnly, courseHandler.Create)
		courses.PUT("/:id", adminOnly, courseHandler.Update)
		courses.DELETE("/:id", adminOnly, courseHandler.Delete)
	}

	registrations := authed.Group("/registrations")
	{
		registrations.GET("", registrationHandler.List)
		registrations.GET("/:id", registrationHandler.Get)
		registrations.POST("", studentOnly, registrationHandler.Create)
		registrations.PUT("/:id/approve", staffOnly, registrationHandler.Approve)
		registrations.PUT("/:id/reject", staffOnly, registrationHandler.Reject)
		registrations.PUT("/:id/grade", staffOnly, registrationHandler.Grade)
		registrations.POST("/:id/switch", studentOnly, registrationHandler.Switch)
		registrations.DELETE("/:id", middleware.RequireRoles(models.RoleStudent, models.RoleAdmin), registrationHandler.Withdraw)
	}

	authed.GET("/students/:id/transcript", middleware.RBAC(string(models.RoleAdmin), "SELF"), transcriptHandler.Export)

	changeRequests := authed.Group("/change-requests")
	{
		changeRequests.GET("", changeRequestHandler.List)
		changeRequests.POST("", studentOnly, changeRequestHandler.Create)
		changeRequests.PUT("/:id/resolve", adminOnly, changeRequestHandler.Resolve)
	}

	authed.GET("/activity-logs", adminOnly, activityHandler.List)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
