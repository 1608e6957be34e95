package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"anoa.com/studentlms/internal/access"
	"anoa.com/studentlms/internal/config"
	"anoa.com/studentlms/internal/middleware"
	"anoa.com/studentlms/internal/session"
	"anoa.com/studentlms/internal/web"
	"anoa.com/studentlms/pkg/apperror"
	"anoa.com/studentlms/pkg/database"
	"anoa.com/studentlms/pkg/mailer"
	"anoa.com/studentlms/pkg/response"
	"anoa.com/studentlms/pkg/storage"
	"anoa.com/studentlms/pkg/validator"

	notifHttp "anoa.com/studentlms/internal/modules/notification/delivery/http"
	notifService "anoa.com/studentlms/internal/modules/notification/service"

	profileHttp "anoa.com/studentlms/internal/modules/profile/delivery/http"

	searchService "anoa.com/studentlms/internal/modules/search/service"

	studentHttp "anoa.com/studentlms/internal/modules/student/delivery/http"
	studentService "anoa.com/studentlms/internal/modules/student/service"

	userHttp "anoa.com/studentlms/internal/modules/user/delivery/http"
	userRepo "anoa.com/studentlms/internal/modules/user/repository"
	userService "anoa.com/studentlms/internal/modules/user/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Dependencies are the external collaborators the HTTP server is built on.
type Dependencies struct {
	DB            *gorm.DB
	Redis         *redis.Client
	Mailer        mailer.Mailer
	ImageStorage  storage.ImageStorage
	SearchIndexer searchService.StudentIndexer
}

type Server struct {
	engine        *gin.Engine
	db            *gorm.DB
	redisClient   *redis.Client
	notifications notifService.NotificationService
}

func NewServer(cfg *config.Config, deps Dependencies) (*Server, error) {
	validator.Setup()

	userRepository := userRepo.NewUserRepository(deps.DB)
	sessions := session.NewStore(deps.Redis, "session", cfg.SessionTTL)

	notificationSvc := notifService.NewNotificationService(deps.Mailer, cfg.DefaultFromEmail, deps.Redis)
	notificationHandler := notifHttp.NewNotificationHandler(deps.Redis, cfg.OriginList())

	studentSvc := studentService.NewStudentService(userRepository, deps.ImageStorage, sessions, deps.SearchIndexer, notificationSvc)
	studentHandler := studentHttp.NewStudentHandler(studentSvc)
	profileHandler := profileHttp.NewProfileHandler(studentSvc)

	authSvc := userService.NewAuthService(userRepository, studentSvc, sessions, notificationSvc, deps.Redis, userService.Options{
		SecretKey:        cfg.SecretKey,
		PasswordResetTTL: cfg.PasswordResetTTL,
		SiteURL:          cfg.SiteURL,
		RegisterCooldown: cfg.RateLimitRegister,
		LoginMaxAttempts: cfg.LoginMaxAttempts,
		LoginLockout:     cfg.LoginLockout,
	})
	authMiddleware := middleware.NewAuthMiddleware(authSvc, cfg.SessionCookieName, cfg.CookieSecure)
	userHandler := userHttp.NewUserHandler(authSvc, authMiddleware)

	templates, err := web.Templates()
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	router := gin.New()
	router.SetHTMLTemplate(templates)

	setupCORS(router, cfg.OriginList())

	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz"},
	}))
	router.Use(response.FlashSessions(cfg.SecretKey, cfg.CookieSecure))
	router.Use(authMiddleware.Resolve())

	router.StaticFS("/static", web.Static())
	if cfg.StorageDriver == config.StorageLocal {
		router.Static(cfg.MediaURL, cfg.MediaRoot)
	}

	s := &Server{
		engine:        router,
		db:            deps.DB,
		redisClient:   deps.Redis,
		notifications: notificationSvc,
	}
	router.GET("/healthz", s.health)

	// Public routes
	router.GET("/", userHandler.Home)
	router.GET("/register", userHandler.RegisterForm)
	router.POST("/register", userHandler.Register)
	router.GET("/login", userHandler.LoginForm)
	router.POST("/login", userHandler.Login)
	router.GET("/logout", userHandler.Logout)
	router.GET("/password-reset", userHandler.PasswordResetForm)
	router.POST("/password-reset", userHandler.PasswordReset)
	router.GET("/password-reset/confirm", userHandler.PasswordResetConfirmForm)
	router.POST("/password-reset/confirm", userHandler.PasswordResetConfirm)

	// Student routes
	student := router.Group("")
	student.Use(authMiddleware.Require(access.RoleStudent))
	{
		student.GET("/student_dashboard", profileHandler.Dashboard)
		student.GET("/student/edit-profile", profileHandler.EditForm)
		student.POST("/student/edit-profile", profileHandler.Edit)
	}

	// Admin routes
	admin := router.Group("/admin-dashboard")
	admin.Use(authMiddleware.Require(access.RoleAdmin))
	{
		admin.GET("", studentHandler.Dashboard)
		admin.GET("/add", studentHandler.AddForm)
		admin.POST("/add", studentHandler.Add)
		admin.GET("/edit/:id", studentHandler.EditForm)
		admin.POST("/edit/:id", studentHandler.Edit)
		admin.GET("/delete/:id", studentHandler.Delete)
		admin.POST("/delete/:id", studentHandler.Delete)
		admin.GET("/block/:id", studentHandler.Block)
		admin.POST("/block/:id", studentHandler.Block)
		admin.GET("/unblock/:id", studentHandler.Unblock)
		admin.POST("/unblock/:id", studentHandler.Unblock)
		admin.GET("/events", notificationHandler.StudentEvents)
	}

	router.NoRoute(func(c *gin.Context) {
		response.ResponseError(c, apperror.ErrNotFound)
	})

	return s, nil
}

// Handler exposes the router, e.g. for an http.Server or httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}

// Wait blocks until queued emails have been handed to the mailer.
func (s *Server) Wait() {
	s.notifications.Wait()
}

func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := gin.H{"database": "ok", "redis": "ok"}
	code := http.StatusOK

	if err := database.Ping(ctx, s.db); err != nil {
		status["database"] = err.Error()
		code = http.StatusServiceUnavailable
	}
	if s.redisClient == nil {
		status["redis"] = "not configured"
		code = http.StatusServiceUnavailable
	} else if err := s.redisClient.Ping(ctx).Err(); err != nil {
		status["redis"] = err.Error()
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, status)
}

func setupCORS(router *gin.Engine, origins []string) {
	if len(origins) == 0 {
		origins = []string{"http://localhost:8080"}
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
}
