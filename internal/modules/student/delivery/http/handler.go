package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"anoa.com/studentlms/internal/modules/student/dto"
	studentService "anoa.com/studentlms/internal/modules/student/service"
	"anoa.com/studentlms/pkg/apperror"
	"anoa.com/studentlms/pkg/request"
	"anoa.com/studentlms/pkg/response"
	"anoa.com/studentlms/pkg/validator"
	"github.com/gin-gonic/gin"
)

const dashboardPath = "/admin-dashboard"

// StudentHandler serves the admin dashboard and the student management
// actions behind it.
type StudentHandler struct {
	studentService studentService.StudentService
}

func NewStudentHandler(studentService studentService.StudentService) *StudentHandler {
	return &StudentHandler{
		studentService: studentService,
	}
}

func (h *StudentHandler) Dashboard(c *gin.Context) {
	page, err := h.studentService.Search(c.Request.Context(), c.Query("q"), c.Query("page"))
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	response.HTML(c, http.StatusOK, "admin_dashboard.html", gin.H{"Page": page})
}

func (h *StudentHandler) AddForm(c *gin.Context) {
	response.HTML(c, http.StatusOK, "student_form.html", gin.H{"Mode": "add", "Form": dto.CreateStudentInput{}})
}

func (h *StudentHandler) Add(c *gin.Context) {
	var input dto.CreateStudentInput
	if err := c.ShouldBind(&input); err != nil {
		h.renderAdd(c, input, validator.FromBindingError(err))
		return
	}

	picture, closePicture, err := request.FormPicture(c)
	if err != nil {
		response.ResponseError(c, fmt.Errorf("%w: %v", apperror.ErrBadRequest, err))
		return
	}
	defer closePicture()

	user, err := h.studentService.Create(c.Request.Context(), input, picture, actorName(c))
	if err != nil {
		if ve, ok := apperror.AsValidation(err); ok {
			h.renderAdd(c, input, ve)
			return
		}
		response.ResponseError(c, err)
		return
	}

	response.Success(c, fmt.Sprintf("Student %s added.", user.Username))
	response.Redirect(c, dashboardPath)
}

func (h *StudentHandler) renderAdd(c *gin.Context, input dto.CreateStudentInput, ve *apperror.ValidationError) {
	response.HTML(c, http.StatusUnprocessableEntity, "student_form.html", gin.H{
		"Mode":   "add",
		"Form":   input,
		"Errors": ve.Fields,
	})
}

func (h *StudentHandler) EditForm(c *gin.Context) {
	id, ok := profileID(c)
	if !ok {
		return
	}

	user, err := h.studentService.Get(c.Request.Context(), id)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	response.HTML(c, http.StatusOK, "student_form.html", gin.H{
		"Mode":      "edit",
		"ProfileID": id,
		"Student":   user,
		"Form":      dto.UpdateInputFrom(user),
	})
}

func (h *StudentHandler) Edit(c *gin.Context) {
	id, ok := profileID(c)
	if !ok {
		return
	}

	var input dto.UpdateStudentInput
	if err := c.ShouldBind(&input); err != nil {
		h.renderEdit(c, id, input, validator.FromBindingError(err))
		return
	}

	picture, closePicture, err := request.FormPicture(c)
	if err != nil {
		response.ResponseError(c, fmt.Errorf("%w: %v", apperror.ErrBadRequest, err))
		return
	}
	defer closePicture()

	user, err := h.studentService.Update(c.Request.Context(), id, input, picture, actorName(c))
	if err != nil {
		if ve, ok := apperror.AsValidation(err); ok {
			h.renderEdit(c, id, input, ve)
			return
		}
		response.ResponseError(c, err)
		return
	}

	response.Success(c, fmt.Sprintf("Student %s updated.", user.Username))
	response.Redirect(c, dashboardPath)
}

func (h *StudentHandler) renderEdit(c *gin.Context, id uint, input dto.UpdateStudentInput, ve *apperror.ValidationError) {
	data := gin.H{
		"Mode":      "edit",
		"ProfileID": id,
		"Form":      input,
		"Errors":    ve.Fields,
	}
	if user, err := h.studentService.Get(c.Request.Context(), id); err == nil {
		data["Student"] = user
	} else if errors.Is(err, apperror.ErrNotFound) {
		response.ResponseError(c, err)
		return
	}
	response.HTML(c, http.StatusUnprocessableEntity, "student_form.html", data)
}

func (h *StudentHandler) Delete(c *gin.Context) {
	id, ok := profileID(c)
	if !ok {
		return
	}

	if err := h.studentService.Delete(c.Request.Context(), id, actorName(c)); err != nil {
		response.ResponseError(c, err)
		return
	}

	response.Success(c, "Student deleted.")
	response.Redirect(c, dashboardPath)
}

func (h *StudentHandler) Block(c *gin.Context) {
	h.setActive(c, false, "Student blocked.")
}

func (h *StudentHandler) Unblock(c *gin.Context) {
	h.setActive(c, true, "Student unblocked.")
}

func (h *StudentHandler) setActive(c *gin.Context, active bool, message string) {
	id, ok := profileID(c)
	if !ok {
		return
	}

	if err := h.studentService.SetActive(c.Request.Context(), id, active, actorName(c)); err != nil {
		response.ResponseError(c, err)
		return
	}

	response.Success(c, message)
	response.Redirect(c, dashboardPath)
}

// profileID parses the :id path parameter. Anything that is not a profile id
// is answered with the not-found page.
func profileID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		response.ResponseError(c, fmt.Errorf("student %q: %w", c.Param("id"), apperror.ErrNotFound))
		return 0, false
	}
	return uint(id), true
}

func actorName(c *gin.Context) string {
	if identity, err := response.GetIdentity(c); err == nil {
		return identity.Username
	}
	return ""
}
