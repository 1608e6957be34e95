package dto

import (
	"time"

	"anoa.com/studentlms/internal/access"
)

type LoginInput struct {
	Username string `form:"username" binding:"required"`
	Password string `form:"password" binding:"required"`
}

type LoginResult struct {
	Identity  *access.Identity
	SessionID string
	ExpiresAt time.Time
}

type PasswordResetRequestInput struct {
	Email string `form:"email" binding:"required,email"`
}

type PasswordResetConfirmInput struct {
	Token        string `form:"token" binding:"required"`
	NewPassword1 string `form:"new_password1" binding:"required,min=8"`
	NewPassword2 string `form:"new_password2" binding:"required,min=8"`
}
