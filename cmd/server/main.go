package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"anoa.com/studentlms/internal/bootstrap"
	"anoa.com/studentlms/internal/config"
	searchService "anoa.com/studentlms/internal/modules/search/service"
	"anoa.com/studentlms/internal/server"
	"anoa.com/studentlms/pkg/database"
	"anoa.com/studentlms/pkg/mailer"
	"anoa.com/studentlms/pkg/storage"
	"github.com/gin-gonic/gin"
	"github.com/meilisearch/meilisearch-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.DSN(), cfg.IsDevelopment())
	if err != nil {
		log.Fatalf("db connection failed: %v", err)
	}
	if err := setupDatabase(db, cfg); err != nil {
		log.Fatalf("database setup failed: %v", err)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("invalid REDIS_URL: %v", err)
	}
	redisClient := redis.NewClient(redisOpts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		cancel()
		log.Fatalf("redis ping failed: %v", err)
	}
	cancel()
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Printf("redis close error: %v", err)
		}
	}()

	imageStorage, err := newImageStorage(cfg)
	if err != nil {
		log.Fatalf("failed to initialize %s storage: %v", cfg.StorageDriver, err)
	}

	srv, err := server.NewServer(cfg, server.Dependencies{
		DB:            db,
		Redis:         redisClient,
		Mailer:        newMailer(cfg),
		ImageStorage:  imageStorage,
		SearchIndexer: newSearchIndexer(cfg),
	})
	if err != nil {
		log.Fatalf("server init failed: %v", err)
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("🚀 Student LMS listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	srv.Wait()
}

func setupDatabase(db *gorm.DB, cfg *config.Config) error {
	if err := bootstrap.Migrate(db); err != nil {
		return err
	}
	if err := bootstrap.SeedRoles(db); err != nil {
		return err
	}

	switch {
	case cfg.AdminUsername != "":
		return bootstrap.SeedAdminUser(db, bootstrap.AdminSeed{
			Username: cfg.AdminUsername,
			Password: cfg.AdminPassword,
			Email:    cfg.AdminEmail,
		})
	case cfg.IsDevelopment():
		return bootstrap.SeedAdminUser(db, bootstrap.DevelopmentAdmin)
	}
	return nil
}

func newImageStorage(cfg *config.Config) (storage.ImageStorage, error) {
	if cfg.StorageDriver == config.StorageCloudinary {
		return storage.NewCloudinaryStorage(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryUploadFolder)
	}
	return storage.NewLocalStorage(cfg.MediaRoot, cfg.MediaURL)
}

func newMailer(cfg *config.Config) mailer.Mailer {
	if cfg.SMTPHost == "" {
		log.Println("SMTP_HOST not set, emails are written to the log")
		return mailer.NewLogMailer()
	}
	return mailer.NewSMTPMailer(cfg.SMTPHost, strconv.Itoa(cfg.SMTPPort), cfg.SMTPUsername, cfg.SMTPPassword)
}

func newSearchIndexer(cfg *config.Config) searchService.StudentIndexer {
	host := cfg.MeiliHost()
	if host == "" {
		return searchService.NewNoopIndexer()
	}
	meiliClient := meilisearch.New(host, meilisearch.WithAPIKey(cfg.MeiliMasterKey))
	return searchService.NewMeiliStudentIndexer(meiliClient)
}
