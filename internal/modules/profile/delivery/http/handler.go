package handler

import (
	"fmt"
	"net/http"

	studentDto "anoa.com/studentlms/internal/modules/student/dto"
	studentService "anoa.com/studentlms/internal/modules/student/service"
	"anoa.com/studentlms/pkg/apperror"
	"anoa.com/studentlms/pkg/request"
	"anoa.com/studentlms/pkg/response"
	"anoa.com/studentlms/pkg/validator"
	"github.com/gin-gonic/gin"
)

const dashboardPath = "/student_dashboard"

// ProfileHandler lets a signed-in student view and edit their own record.
type ProfileHandler struct {
	studentService studentService.StudentService
}

func NewProfileHandler(studentService studentService.StudentService) *ProfileHandler {
	return &ProfileHandler{
		studentService: studentService,
	}
}

func (h *ProfileHandler) Dashboard(c *gin.Context) {
	identity, err := response.GetIdentity(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	user, err := h.studentService.GetByAccount(c.Request.Context(), identity.AccountID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	response.HTML(c, http.StatusOK, "student_dashboard.html", gin.H{"Student": user})
}

func (h *ProfileHandler) EditForm(c *gin.Context) {
	identity, err := response.GetIdentity(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	user, err := h.studentService.GetByAccount(c.Request.Context(), identity.AccountID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	response.HTML(c, http.StatusOK, "edit_profile.html", gin.H{"Form": studentDto.UpdateInputFrom(user)})
}

func (h *ProfileHandler) Edit(c *gin.Context) {
	identity, err := response.GetIdentity(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var input studentDto.UpdateStudentInput
	if err := c.ShouldBind(&input); err != nil {
		h.renderEdit(c, input, validator.FromBindingError(err))
		return
	}

	picture, closePicture, err := request.FormPicture(c)
	if err != nil {
		response.ResponseError(c, fmt.Errorf("%w: %v", apperror.ErrBadRequest, err))
		return
	}
	defer closePicture()

	if _, err := h.studentService.UpdateAccount(c.Request.Context(), identity.AccountID, input, picture); err != nil {
		if ve, ok := apperror.AsValidation(err); ok {
			h.renderEdit(c, input, ve)
			return
		}
		response.ResponseError(c, err)
		return
	}

	response.Success(c, "Your profile has been updated.")
	response.Redirect(c, dashboardPath)
}

func (h *ProfileHandler) renderEdit(c *gin.Context, input studentDto.UpdateStudentInput, ve *apperror.ValidationError) {
	response.HTML(c, http.StatusUnprocessableEntity, "edit_profile.html", gin.H{"Form": input, "Errors": ve.Fields})
}
