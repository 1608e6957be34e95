package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"anoa.com/studentlms/internal/entity"
	notifService "anoa.com/studentlms/internal/modules/notification/service"
	searchService "anoa.com/studentlms/internal/modules/search/service"
	"anoa.com/studentlms/internal/modules/student/dto"
	userRepo "anoa.com/studentlms/internal/modules/user/repository"
	"anoa.com/studentlms/pkg/apperror"
	commonDto "anoa.com/studentlms/pkg/dto"
	"anoa.com/studentlms/pkg/storage"
	"anoa.com/studentlms/pkg/validator"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	pictureFolder = "profile_pics"

	msgPasswordMismatch = "The two password fields didn't match."
	msgUsernameTaken    = "A user with that username already exists."
	msgEmailTaken       = "A user with that email already exists."
	msgAccountTaken     = "A user with that username or email already exists."
)

// SessionRevoker ends every live session of an account.
type SessionRevoker interface {
	DeleteAllForUser(ctx context.Context, userID string) error
}

type StudentService interface {
	Create(ctx context.Context, input dto.CreateStudentInput, picture *commonDto.UploadedFile, actor string) (*entity.User, error)
	Get(ctx context.Context, profileID uint) (*entity.User, error)
	GetByAccount(ctx context.Context, accountID uuid.UUID) (*entity.User, error)
	Update(ctx context.Context, profileID uint, input dto.UpdateStudentInput, picture *commonDto.UploadedFile, actor string) (*entity.User, error)
	UpdateAccount(ctx context.Context, accountID uuid.UUID, input dto.UpdateStudentInput, picture *commonDto.UploadedFile) (*entity.User, error)
	Delete(ctx context.Context, profileID uint, actor string) error
	SetActive(ctx context.Context, profileID uint, active bool, actor string) error
	Search(ctx context.Context, query, page string) (*dto.StudentPage, error)
}

type studentService struct {
	repo          userRepo.UserRepository
	imageStorage  storage.ImageStorage
	sessions      SessionRevoker
	indexer       searchService.StudentIndexer
	notifications notifService.NotificationService
	bcryptCost    int
}

func NewStudentService(
	repo userRepo.UserRepository,
	imageStorage storage.ImageStorage,
	sessions SessionRevoker,
	indexer searchService.StudentIndexer,
	notifications notifService.NotificationService,
) StudentService {
	if indexer == nil {
		indexer = searchService.NewNoopIndexer()
	}
	return &studentService{
		repo:          repo,
		imageStorage:  imageStorage,
		sessions:      sessions,
		indexer:       indexer,
		notifications: notifications,
		bcryptCost:    bcrypt.DefaultCost,
	}
}

func (s *studentService) Create(ctx context.Context, input dto.CreateStudentInput, picture *commonDto.UploadedFile, actor string) (*entity.User, error) {
	username := strings.TrimSpace(input.Username)
	email := strings.TrimSpace(input.Email)

	ve := apperror.NewValidationError()
	validator.ValidateUsername(ve, "username", username)
	validator.ValidatePasswordPair(ve, "password1", "password2", input.Password1, input.Password2, msgPasswordMismatch)
	validatePicture(ve, picture)

	if _, ok := ve.Fields["username"]; !ok {
		if _, err := s.repo.FindByUsername(ctx, username); err == nil {
			ve.Add("username", msgUsernameTaken)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	if err := s.checkEmailFree(ctx, ve, email, uuid.Nil); err != nil {
		return nil, err
	}
	if err := ve.OrNil(); err != nil {
		return nil, err
	}

	role, err := s.repo.FindRoleByName(ctx, entity.RoleStudent)
	if err != nil {
		return nil, fmt.Errorf("student role not found: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password1), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &entity.User{
		Username:     username,
		Email:        email,
		FirstName:    validator.Sanitize(input.FirstName),
		LastName:     validator.Sanitize(input.LastName),
		PasswordHash: string(hashedPassword),
		RoleID:       &role.ID,
		Role:         *role,
		IsActive:     true,
	}
	profile := &entity.StudentProfile{
		RollNumber: validator.NormalizeOptional(input.RollNumber),
		Department: validator.NormalizeOptional(input.Department),
		Year:       validator.NormalizeOptional(input.Year),
	}

	uploaded, err := s.upload(ctx, picture)
	if err != nil {
		return nil, err
	}
	profile.ProfilePictureURL = uploaded

	if err := s.repo.Create(ctx, user, profile); err != nil {
		s.discard(uploaded)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, s.conflictError(ctx, username, email, uuid.Nil)
		}
		return nil, err
	}

	s.afterChange(ctx, notifService.EventStudentCreated, user, actor)
	return user, nil
}

func (s *studentService) Get(ctx context.Context, profileID uint) (*entity.User, error) {
	user, err := s.repo.FindByProfileID(ctx, profileID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("student %d: %w", profileID, apperror.ErrNotFound)
		}
		return nil, err
	}
	return user, nil
}

func (s *studentService) GetByAccount(ctx context.Context, accountID uuid.UUID) (*entity.User, error) {
	user, err := s.repo.FindByID(ctx, accountID.String())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("account %s: %w", accountID, apperror.ErrNotFound)
		}
		return nil, err
	}
	return user, nil
}

func (s *studentService) Update(ctx context.Context, profileID uint, input dto.UpdateStudentInput, picture *commonDto.UploadedFile, actor string) (*entity.User, error) {
	user, err := s.Get(ctx, profileID)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, user, input, picture, actor)
}

func (s *studentService) UpdateAccount(ctx context.Context, accountID uuid.UUID, input dto.UpdateStudentInput, picture *commonDto.UploadedFile) (*entity.User, error) {
	user, err := s.GetByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, user, input, picture, user.Username)
}

func (s *studentService) update(ctx context.Context, user *entity.User, input dto.UpdateStudentInput, picture *commonDto.UploadedFile, actor string) (*entity.User, error) {
	email := strings.TrimSpace(input.Email)

	ve := apperror.NewValidationError()
	validatePicture(ve, picture)
	if err := s.checkEmailFree(ctx, ve, email, user.ID); err != nil {
		return nil, err
	}
	if err := ve.OrNil(); err != nil {
		return nil, err
	}

	user.FirstName = validator.Sanitize(input.FirstName)
	user.LastName = validator.Sanitize(input.LastName)
	user.Email = email

	profile := user.Student
	if profile == nil {
		profile = &entity.StudentProfile{UserID: user.ID}
	}
	profile.RollNumber = validator.NormalizeOptional(input.RollNumber)
	profile.Department = validator.NormalizeOptional(input.Department)
	profile.Year = validator.NormalizeOptional(input.Year)

	uploaded, err := s.upload(ctx, picture)
	if err != nil {
		return nil, err
	}
	var previous *string
	if uploaded != nil {
		previous = profile.ProfilePictureURL
		profile.ProfilePictureURL = uploaded
	}

	if err := s.repo.Update(ctx, user, profile); err != nil {
		s.discard(uploaded)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, s.conflictError(ctx, "", email, user.ID)
		}
		return nil, err
	}
	user.Student = profile
	s.discard(previous)

	s.afterChange(ctx, notifService.EventStudentUpdated, user, actor)
	return user, nil
}

func (s *studentService) Delete(ctx context.Context, profileID uint, actor string) error {
	user, err := s.Get(ctx, profileID)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, user.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("student %d: %w", profileID, apperror.ErrNotFound)
		}
		return err
	}
	log.Printf("[audit] student.delete actor=%s username=%s profile=%d", actor, user.Username, profileID)

	s.revokeSessions(ctx, user)
	s.discard(user.Student.ProfilePictureURL)

	if err := s.indexer.DeleteStudent(profileID); err != nil {
		log.Printf("Failed to remove student %d from search index: %v", profileID, err)
	}
	if s.notifications != nil {
		s.notifications.PublishStudentEvent(ctx, notifService.StudentEvent{
			Type:      notifService.EventStudentDeleted,
			ProfileID: profileID,
			Username:  user.Username,
			Actor:     actor,
		})
	}
	return nil
}

func (s *studentService) SetActive(ctx context.Context, profileID uint, active bool, actor string) error {
	user, err := s.Get(ctx, profileID)
	if err != nil {
		return err
	}

	if err := s.repo.SetActive(ctx, user.ID, active); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("student %d: %w", profileID, apperror.ErrNotFound)
		}
		return err
	}
	user.IsActive = active

	event := notifService.EventStudentUnblocked
	if !active {
		event = notifService.EventStudentBlocked
		s.revokeSessions(ctx, user)
	}
	log.Printf("[audit] %s actor=%s username=%s profile=%d", event, actor, user.Username, profileID)

	s.afterChange(ctx, event, user, actor)
	return nil
}

func (s *studentService) Search(ctx context.Context, query, page string) (*dto.StudentPage, error) {
	query = strings.TrimSpace(query)

	total, err := s.repo.CountStudents(ctx, query)
	if err != nil {
		return nil, err
	}

	current := commonDto.ResolvePage(page, dto.PageSize, total)
	students, err := s.repo.FindStudents(ctx, query, dto.PageSize, (current-1)*dto.PageSize)
	if err != nil {
		return nil, err
	}

	return &dto.StudentPage{
		Students: students,
		Query:    query,
		Meta:     commonDto.NewPaginationMeta(current, dto.PageSize, total),
	}, nil
}

func (s *studentService) checkEmailFree(ctx context.Context, ve *apperror.ValidationError, email string, owner uuid.UUID) error {
	if email == "" {
		return nil
	}
	existing, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if existing.ID != owner {
		ve.Add("email", msgEmailTaken)
	}
	return nil
}

// conflictError names the unique column a rejected write collided with. It
// runs after the write failed, so it sees the row that won the race.
func (s *studentService) conflictError(ctx context.Context, username, email string, owner uuid.UUID) error {
	ve := apperror.NewValidationError()
	if username != "" {
		existing, err := s.repo.FindByUsername(ctx, username)
		if err == nil && existing.ID != owner {
			ve.Add("username", msgUsernameTaken)
		} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
	}
	if err := s.checkEmailFree(ctx, ve, email, owner); err != nil {
		return err
	}
	if !ve.HasErrors() {
		ve.Add(apperror.NonFieldKey, msgAccountTaken)
	}
	return ve
}

func validatePicture(ve *apperror.ValidationError, picture *commonDto.UploadedFile) {
	if picture == nil || picture.Reader == nil {
		return
	}
	if err := storage.ValidateImageName(picture.FileName); err != nil {
		ve.Add("profile_picture", "Upload a valid image. The file you uploaded was either not an image or a corrupted image.")
	}
}

func (s *studentService) upload(ctx context.Context, picture *commonDto.UploadedFile) (*string, error) {
	if picture == nil || picture.Reader == nil || s.imageStorage == nil {
		return nil, nil
	}
	url, err := s.imageStorage.UploadImage(ctx, picture.Reader, pictureFolder, picture.FileName)
	if err != nil {
		return nil, fmt.Errorf("failed to store profile picture: %w", err)
	}
	return &url, nil
}

// discard removes a stored picture that is no longer referenced.
func (s *studentService) discard(url *string) {
	if url == nil || *url == "" || s.imageStorage == nil {
		return
	}
	if err := s.imageStorage.DeleteImage(context.Background(), *url); err != nil {
		log.Printf("Failed to delete profile picture %s: %v", *url, err)
	}
}

func (s *studentService) revokeSessions(ctx context.Context, user *entity.User) {
	if s.sessions == nil {
		return
	}
	if err := s.sessions.DeleteAllForUser(ctx, user.ID.String()); err != nil {
		log.Printf("Failed to revoke sessions of %s: %v", user.Username, err)
	}
}

func (s *studentService) afterChange(ctx context.Context, eventType string, user *entity.User, actor string) {
	if user.Student == nil {
		return
	}

	snapshot := *user
	profile := *user.Student
	snapshot.Student = &profile
	go func() {
		if err := s.indexer.IndexStudent(&snapshot); err != nil {
			log.Printf("Failed to index student %d: %v", profile.ID, err)
		}
	}()

	if s.notifications != nil {
		s.notifications.PublishStudentEvent(ctx, notifService.StudentEvent{
			Type:      eventType,
			ProfileID: profile.ID,
			Username:  user.Username,
			Actor:     actor,
		})
	}
}
