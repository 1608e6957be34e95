package dto

import (
	"anoa.com/studentlms/internal/entity"
	commonDto "anoa.com/studentlms/pkg/dto"
)

// PageSize is the number of students listed per admin dashboard page.
const PageSize = 6

// CreateStudentInput is the registration form, also used by admins adding a
// student.
type CreateStudentInput struct {
	Username   string  `form:"username" binding:"required,max=150"`
	FirstName  string  `form:"first_name" binding:"max=150"`
	LastName   string  `form:"last_name" binding:"max=150"`
	Email      string  `form:"email" binding:"required,email,max=254"`
	Password1  string  `form:"password1" binding:"required"`
	Password2  string  `form:"password2" binding:"required"`
	RollNumber *string `form:"roll_number" binding:"omitempty,max=20"`
	Department *string `form:"department" binding:"omitempty,max=50"`
	Year       *string `form:"year" binding:"omitempty,max=10"`
}

// UpdateStudentInput is the profile form shared by the admin editor and the
// student's own edit page.
type UpdateStudentInput struct {
	FirstName  string  `form:"first_name" binding:"max=50"`
	LastName   string  `form:"last_name" binding:"max=50"`
	Email      string  `form:"email" binding:"required,email,max=254"`
	RollNumber *string `form:"roll_number" binding:"omitempty,max=20"`
	Department *string `form:"department" binding:"omitempty,max=50"`
	Year       *string `form:"year" binding:"omitempty,max=10"`
}

// UpdateInputFrom prefills the edit form from a stored account.
func UpdateInputFrom(user *entity.User) UpdateStudentInput {
	input := UpdateStudentInput{
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Email:     user.Email,
	}
	if user.Student != nil {
		input.RollNumber = user.Student.RollNumber
		input.Department = user.Student.Department
		input.Year = user.Student.Year
	}
	return input
}

type StudentPage struct {
	Students []*entity.User
	Query    string
	Meta     commonDto.PaginationMeta
}

// PageNumbers lists 1..TotalPages for the pager.
func (p *StudentPage) PageNumbers() []int {
	pages := make([]int, p.Meta.TotalPages)
	for i := range pages {
		pages[i] = i + 1
	}
	return pages
}
