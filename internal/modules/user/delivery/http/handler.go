package handler

import (
	"errors"
	"fmt"
	"net/http"

	"anoa.com/studentlms/internal/access"
	"anoa.com/studentlms/internal/middleware"
	studentDto "anoa.com/studentlms/internal/modules/student/dto"
	"anoa.com/studentlms/internal/modules/user/dto"
	userService "anoa.com/studentlms/internal/modules/user/service"
	"anoa.com/studentlms/pkg/apperror"
	"anoa.com/studentlms/pkg/request"
	"anoa.com/studentlms/pkg/response"
	"anoa.com/studentlms/pkg/validator"
	"github.com/gin-gonic/gin"
)

const (
	msgRegistered      = "Registration successful! You can log in."
	msgInvalidLogin    = "Invalid username or password"
	msgLoggedOut       = "You have been logged out."
	msgResetRequested  = "If an account with that email exists, we have sent a link to reset its password."
	msgResetDone       = "Your password has been reset. You can log in with the new password."
	msgTooManyRequests = "Too many requests. Please try again later."
)

type UserHandler struct {
	authService userService.AuthService
	auth        *middleware.AuthMiddleware
}

func NewUserHandler(authService userService.AuthService, auth *middleware.AuthMiddleware) *UserHandler {
	return &UserHandler{
		authService: authService,
		auth:        auth,
	}
}

func (h *UserHandler) Home(c *gin.Context) {
	response.HTML(c, http.StatusOK, "home.html", nil)
}

func (h *UserHandler) RegisterForm(c *gin.Context) {
	response.HTML(c, http.StatusOK, "register.html", gin.H{"Form": studentDto.CreateStudentInput{}})
}

func (h *UserHandler) Register(c *gin.Context) {
	var input studentDto.CreateStudentInput
	if err := c.ShouldBind(&input); err != nil {
		h.renderRegister(c, input, validator.FromBindingError(err))
		return
	}

	picture, closePicture, err := request.FormPicture(c)
	if err != nil {
		response.ResponseError(c, fmt.Errorf("%w: %v", apperror.ErrBadRequest, err))
		return
	}
	defer closePicture()

	if _, err := h.authService.Register(c.Request.Context(), input, picture, c.ClientIP()); err != nil {
		if ve, ok := apperror.AsValidation(err); ok {
			h.renderRegister(c, input, ve)
			return
		}
		if errors.Is(err, apperror.ErrRateLimitExceeded) {
			ve := apperror.NewValidationError()
			ve.Add(apperror.NonFieldKey, appMessage(err))
			response.HTML(c, http.StatusTooManyRequests, "register.html", gin.H{"Form": input, "Errors": ve.Fields})
			return
		}
		response.ResponseError(c, err)
		return
	}

	response.Success(c, msgRegistered)
	response.Redirect(c, access.LoginPath)
}

func (h *UserHandler) renderRegister(c *gin.Context, input studentDto.CreateStudentInput, ve *apperror.ValidationError) {
	response.HTML(c, http.StatusUnprocessableEntity, "register.html", gin.H{"Form": input, "Errors": ve.Fields})
}

func (h *UserHandler) LoginForm(c *gin.Context) {
	if identity, err := response.GetIdentity(c); err == nil {
		response.Redirect(c, identity.Role.Dashboard())
		return
	}
	response.HTML(c, http.StatusOK, "login.html", gin.H{"Username": ""})
}

func (h *UserHandler) Login(c *gin.Context) {
	var input dto.LoginInput
	if err := c.ShouldBind(&input); err != nil {
		response.Error(c, msgInvalidLogin)
		response.HTML(c, http.StatusUnauthorized, "login.html", gin.H{"Username": input.Username})
		return
	}

	result, err := h.authService.Login(c.Request.Context(), input, c.ClientIP())
	if err != nil {
		switch {
		case errors.Is(err, apperror.ErrInvalidCredentials), errors.Is(err, apperror.ErrAccountBlocked):
			response.Error(c, msgInvalidLogin)
			response.HTML(c, http.StatusUnauthorized, "login.html", gin.H{"Username": input.Username})
		case errors.Is(err, apperror.ErrRateLimitExceeded):
			response.Error(c, appMessage(err))
			response.HTML(c, http.StatusTooManyRequests, "login.html", gin.H{"Username": input.Username})
		default:
			response.ResponseError(c, err)
		}
		return
	}

	h.auth.SetSessionCookie(c, result.SessionID, result.ExpiresAt)
	response.Success(c, fmt.Sprintf("Welcome back, %s!", result.Identity.Username))
	response.Redirect(c, result.Identity.Role.Dashboard())
}

func (h *UserHandler) Logout(c *gin.Context) {
	if identity, err := response.GetIdentity(c); err == nil {
		if err := h.authService.Logout(c.Request.Context(), identity); err != nil {
			response.ResponseError(c, err)
			return
		}
	}

	h.auth.ClearSessionCookie(c)
	response.Info(c, msgLoggedOut)
	response.Redirect(c, access.LoginPath)
}

func (h *UserHandler) PasswordResetForm(c *gin.Context) {
	response.HTML(c, http.StatusOK, "password_reset_request.html", gin.H{"Email": ""})
}

func (h *UserHandler) PasswordReset(c *gin.Context) {
	var input dto.PasswordResetRequestInput
	if err := c.ShouldBind(&input); err != nil {
		response.HTML(c, http.StatusUnprocessableEntity, "password_reset_request.html", gin.H{
			"Email":  input.Email,
			"Errors": validator.FromBindingError(err).Fields,
		})
		return
	}

	if err := h.authService.RequestPasswordReset(c.Request.Context(), input.Email); err != nil {
		response.ResponseError(c, err)
		return
	}

	response.Info(c, msgResetRequested)
	response.Redirect(c, access.LoginPath)
}

func (h *UserHandler) PasswordResetConfirmForm(c *gin.Context) {
	token := c.Query("token")
	if err := h.authService.CheckResetToken(c.Request.Context(), token); err != nil {
		h.renderResetConfirmError(c, token, err)
		return
	}
	response.HTML(c, http.StatusOK, "password_reset_confirm.html", gin.H{"Token": token})
}

func (h *UserHandler) PasswordResetConfirm(c *gin.Context) {
	var input dto.PasswordResetConfirmInput
	if err := c.ShouldBind(&input); err != nil {
		if input.Token == "" {
			h.renderResetConfirmError(c, "", apperror.ErrInvalidToken)
			return
		}
		response.HTML(c, http.StatusUnprocessableEntity, "password_reset_confirm.html", gin.H{
			"Token":  input.Token,
			"Errors": validator.FromBindingError(err).Fields,
		})
		return
	}

	if err := h.authService.ConfirmPasswordReset(c.Request.Context(), input); err != nil {
		h.renderResetConfirmError(c, input.Token, err)
		return
	}

	response.Success(c, msgResetDone)
	response.Redirect(c, access.LoginPath)
}

func (h *UserHandler) renderResetConfirmError(c *gin.Context, token string, err error) {
	if ve, ok := apperror.AsValidation(err); ok {
		response.HTML(c, http.StatusUnprocessableEntity, "password_reset_confirm.html", gin.H{"Token": token, "Errors": ve.Fields})
		return
	}
	if errors.Is(err, apperror.ErrInvalidToken) {
		response.HTML(c, http.StatusBadRequest, "password_reset_confirm.html", gin.H{"Invalid": true})
		return
	}
	response.ResponseError(c, err)
}

// appMessage returns the user-facing text carried by an AppError.
func appMessage(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return msgTooManyRequests
}
