package router

import (
	"time"

	"github.com/shototoy/qr-attendance-api/internal/config"
	"github.com/shototoy/qr-attendance-api/internal/handler"
	"github.com/shototoy/qr-attendance-api/internal/infra"
	"github.com/shototoy/qr-attendance-api/internal/middleware"
	"github.com/shototoy/qr-attendance-api/internal/model"
	"github.com/shototoy/qr-attendance-api/internal/repository"
	"github.com/shototoy/qr-attendance-api/internal/service"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Deps carries the pieces built in main that the HTTP layer shares with the
// worker pool.
type Deps struct {
	Events service.EventPublisher
	Photos *infra.PhotoStore
}

// App is the wired HTTP engine plus the services main needs for background
// jobs.
type App struct {
	Engine     *gin.Engine
	Attendance service.AttendanceService
}

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, deps Deps) *App {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute))

	loc, err := cfg.Location()
	if err != nil {
		log.Warn().Err(err).Str("timezone", cfg.Timezone).Msg("unknown APP_TIMEZONE, using local time")
		loc = time.Local
	}

	// ── Repositories ─────────────────────────────────────────────────────────
	staffRepo := repository.NewStaffRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	directory := service.NewStaffDirectory(staffRepo, rdb)
	authSvc := service.NewAuthService(staffRepo, cfg)
	staffSvc := service.NewStaffService(staffRepo, directory, deps.Photos)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, directory, deps.Events, service.AttendanceOptions{
		Location:            loc,
		HistoryDefaultLimit: cfg.HistoryDefaultLimit,
	})

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(authSvc)
	staffH := handler.NewStaffHandler(staffSvc, cfg.PhotoMaxUploadMB)
	attendanceH := handler.NewAttendanceHandler(attendanceSvc, loc)

	// ── Routes ───────────────────────────────────────────────────────────────
	r.GET("/health", handler.Health(db, rdb))
	if deps.Photos != nil {
		r.Static("/photos", deps.Photos.Dir())
	}

	auth := r.Group("/v1/auth")
	{
		auth.POST("/login", middleware.LoginRateLimiter(), authH.Login)
		auth.POST("/refresh", authH.Refresh)
	}

	v1 := r.Group("/v1", middleware.JWTAuth(cfg.JWTSecret))
	{
		admin := middleware.RequireRole(model.RoleAdmin)

		att := v1.Group("/attendance")
		{
			att.POST("/check-in", attendanceH.CheckIn)
			att.POST("/check-out", attendanceH.CheckOut)
			att.GET("/me/current", attendanceH.Current)
			att.GET("/history", attendanceH.History)

			att.POST("/break/start", admin, attendanceH.StartBreak)
			att.POST("/break/end", admin, attendanceH.EndBreak)
			att.GET("/today", admin, attendanceH.Today)
			att.GET("/history.pdf", admin, attendanceH.HistoryPDF)
		}

		me := v1.Group("/me")
		{
			me.GET("", staffH.Me)
			me.PUT("", staffH.UpdateMe)
			me.POST("/photo", staffH.UploadMyPhoto)
		}

		staff := v1.Group("/staff", admin)
		{
			staff.POST("", staffH.Create)
			staff.GET("", staffH.List)
			staff.GET("/:id", staffH.Get)
			staff.DELETE("/:id", staffH.Deactivate)
			staff.POST("/:id/photo", staffH.UploadPhotoFor)
		}
	}

	// Swagger UI, only outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return &App{Engine: r, Attendance: attendanceSvc}
}
