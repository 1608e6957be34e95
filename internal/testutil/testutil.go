// Package testutil provides in-memory databases and Redis servers for tests.
package testutil

import (
	"testing"

	"anoa.com/studentlms/internal/entity"
	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a private in-memory SQLite database with the schema migrated and
// the Admin and Student roles present.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_pragma=foreign_keys(1)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(&entity.Role{}, &entity.User{}, &entity.StudentProfile{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	for _, name := range []string{entity.RoleAdmin, entity.RoleStudent} {
		if err := db.Create(&entity.Role{Name: name}).Error; err != nil {
			t.Fatalf("seed role %s: %v", name, err)
		}
	}

	return db
}

// NewRedis starts a miniredis server and returns it with a connected client.
func NewRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

// CreateAccount inserts an active account with the given role. Students also
// get an empty profile.
func CreateAccount(t *testing.T, db *gorm.DB, role, username, password string) *entity.User {
	t.Helper()

	var r entity.Role
	if err := db.Where("name = ?", role).First(&r).Error; err != nil {
		t.Fatalf("role %s: %v", role, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	user := &entity.User{
		Username:     username,
		Email:        username + "@example.com",
		FirstName:    username,
		PasswordHash: string(hash),
		RoleID:       &r.ID,
		IsActive:     true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create %s: %v", username, err)
	}

	if role == entity.RoleStudent {
		profile := &entity.StudentProfile{UserID: user.ID}
		if err := db.Create(profile).Error; err != nil {
			t.Fatalf("create profile for %s: %v", username, err)
		}
		user.Student = profile
	}
	user.Role = r

	return user
}
