package service

import (
	"testing"

	"anoa.com/studentlms/internal/entity"
	"github.com/microcosm-cc/bluemonday"
	"github.com/stretchr/testify/assert"
)

func TestToDocFlattensStudent(t *testing.T) {
	s := &meiliStudentIndexer{sanitizer: bluemonday.StrictPolicy()}
	dept := "<b>Computer</b>   Science"

	doc := s.toDoc(&entity.User{
		Username:  "alice",
		FirstName: "Alice",
		Email:     "alice@example.com",
		IsActive:  true,
		Student:   &entity.StudentProfile{ID: 7, Department: &dept},
	})

	assert.Equal(t, "student-7", doc.ID)
	assert.EqualValues(t, 7, doc.ProfileID)
	assert.Equal(t, "Computer Science", doc.Department)
	assert.Empty(t, doc.RollNumber)
	assert.True(t, doc.IsActive)
}

func TestNoopIndexer(t *testing.T) {
	idx := NewNoopIndexer()
	assert.NoError(t, idx.IndexStudent(&entity.User{}))
	assert.NoError(t, idx.DeleteStudent(1))
}
