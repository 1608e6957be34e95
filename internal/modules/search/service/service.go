package service

import (
	"log"
	"strconv"
	"strings"

	"anoa.com/studentlms/internal/entity"
	"github.com/meilisearch/meilisearch-go"
	"github.com/microcosm-cc/bluemonday"
)

const studentsIndex = "students"

// StudentIndexer mirrors student records into the search engine.
type StudentIndexer interface {
	IndexStudent(user *entity.User) error
	DeleteStudent(profileID uint) error
}

type meiliStudentIndexer struct {
	client    meilisearch.ServiceManager
	sanitizer *bluemonday.Policy
}

func NewMeiliStudentIndexer(client meilisearch.ServiceManager) StudentIndexer {
	s := &meiliStudentIndexer{
		client:    client,
		sanitizer: bluemonday.StrictPolicy(),
	}
	s.initIndex()
	return s
}

func (s *meiliStudentIndexer) initIndex() {
	filterable := []any{"is_active", "department", "year"}
	if _, err := s.client.Index(studentsIndex).UpdateFilterableAttributes(&filterable); err != nil {
		log.Printf("Failed to update students filterable attributes: %v", err)
	}

	sortable := []string{"profile_id"}
	if _, err := s.client.Index(studentsIndex).UpdateSortableAttributes(&sortable); err != nil {
		log.Printf("Failed to update students sortable attributes: %v", err)
	}

	log.Println("Meilisearch students index initialized")
}

type meiliStudentDoc struct {
	ID         string `json:"id"`
	ProfileID  uint   `json:"profile_id"`
	Username   string `json:"username"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	RollNumber string `json:"roll_number"`
	Department string `json:"department"`
	Year       string `json:"year"`
	IsActive   bool   `json:"is_active"`
}

func (s *meiliStudentIndexer) clean(v string) string {
	return strings.Join(strings.Fields(s.sanitizer.Sanitize(v)), " ")
}

func (s *meiliStudentIndexer) toDoc(user *entity.User) meiliStudentDoc {
	doc := meiliStudentDoc{
		ID:        documentID(user.Student.ID),
		ProfileID: user.Student.ID,
		Username:  user.Username,
		FirstName: s.clean(user.FirstName),
		LastName:  s.clean(user.LastName),
		Email:     user.Email,
		IsActive:  user.IsActive,
	}
	doc.RollNumber = s.clean(getStringOrEmpty(user.Student.RollNumber))
	doc.Department = s.clean(getStringOrEmpty(user.Student.Department))
	doc.Year = s.clean(getStringOrEmpty(user.Student.Year))
	return doc
}

func (s *meiliStudentIndexer) IndexStudent(user *entity.User) error {
	if user == nil || user.Student == nil {
		return nil
	}

	task, err := s.client.Index(studentsIndex).AddDocuments([]meiliStudentDoc{s.toDoc(user)}, strPtr("id"))
	if err != nil {
		return err
	}
	log.Printf("Indexed student %d, task id: %d", user.Student.ID, task.TaskUID)
	return nil
}

func (s *meiliStudentIndexer) DeleteStudent(profileID uint) error {
	_, err := s.client.Index(studentsIndex).DeleteDocument(documentID(profileID))
	return err
}

type noopIndexer struct{}

// NewNoopIndexer is used when no search engine is configured.
func NewNoopIndexer() StudentIndexer {
	return noopIndexer{}
}

func (noopIndexer) IndexStudent(*entity.User) error { return nil }
func (noopIndexer) DeleteStudent(uint) error        { return nil }

func documentID(profileID uint) string {
	return "student-" + strconv.FormatUint(uint64(profileID), 10)
}

func getStringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func strPtr(s string) *string {
	return &s
}
