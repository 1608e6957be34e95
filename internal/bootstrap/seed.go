package bootstrap

import (
	"errors"
	"log"

	"anoa.com/studentlms/internal/entity"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&entity.Role{},
		&entity.User{},
		&entity.StudentProfile{},
	)
}

func SeedRoles(db *gorm.DB) error {
	defaultRoles := []entity.Role{
		{Name: entity.RoleAdmin, Description: "Administrator"},
		{Name: entity.RoleStudent, Description: "Student"},
	}

	for _, role := range defaultRoles {
		var count int64
		if err := db.Model(&entity.Role{}).
			Where("name = ?", role.Name).
			Count(&count).Error; err != nil {
			return err
		}

		if count == 0 {
			if err := db.Create(&role).Error; err != nil {
				return err
			}
		}
	}

	return nil
}

// AdminSeed describes the initial administrator account.
type AdminSeed struct {
	Username string
	Password string
	Email    string
}

// DevelopmentAdmin is seeded when no ADMIN_* settings are given in development.
var DevelopmentAdmin = AdminSeed{
	Username: "admin",
	Password: "admin12345",
	Email:    "admin@studentlms.local",
}

func SeedAdminUser(db *gorm.DB, seed AdminSeed) error {
	if seed.Username == "" || seed.Password == "" {
		return errors.New("admin seed needs a username and a password")
	}

	var adminRole entity.Role
	if err := db.Where("name = ?", entity.RoleAdmin).First(&adminRole).Error; err != nil {
		return err
	}

	var count int64
	if err := db.Model(&entity.User{}).
		Where("username = ?", seed.Username).
		Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		log.Println("Admin user already exists, skipping seed")
		return nil
	}

	hashedPasswordBytes, err := bcrypt.GenerateFromPassword([]byte(seed.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	email := seed.Email
	if email == "" {
		email = seed.Username + "@studentlms.local"
	}

	adminUser := entity.User{
		Username:     seed.Username,
		Email:        email,
		FirstName:    "Administrator",
		PasswordHash: string(hashedPasswordBytes),
		RoleID:       &adminRole.ID,
		IsActive:     true,
	}

	if err := db.Create(&adminUser).Error; err != nil {
		return err
	}

	log.Println("✅ Admin user seeded successfully")
	log.Printf("   Username: %s", seed.Username)

	return nil
}
