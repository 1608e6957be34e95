package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:10;uniqueIndex;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

const (
	RoleAdmin   = "Admin"
	RoleStudent = "Student"
)

type User struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Username     string          `gorm:"size:150;uniqueIndex;not null" json:"username"`
	Email        string          `gorm:"size:254;uniqueIndex;not null" json:"email"`
	FirstName    string          `gorm:"size:150" json:"first_name"`
	LastName     string          `gorm:"size:150" json:"last_name"`
	PasswordHash string          `gorm:"size:255;not null" json:"-"`
	RoleID       *uint           `json:"role_id"`
	Role         Role            `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"role"`
	IsActive     bool            `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	Student      *StudentProfile `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"student,omitempty"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// FullName is "first last", falling back to the username when both are blank.
func (u *User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// StudentProfile holds the student-only fields of a Student account.
type StudentProfile struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	UserID            uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	RollNumber        *string   `gorm:"size:20" json:"roll_number,omitempty"`
	Department        *string   `gorm:"size:50" json:"department,omitempty"`
	Year              *string   `gorm:"size:10" json:"year,omitempty"`
	ProfilePictureURL *string   `gorm:"type:text" json:"profile_picture_url,omitempty"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
