package repository

import (
	"context"
	"strings"

	"anoa.com/studentlms/internal/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepository interface {
	Create(ctx context.Context, user *entity.User, profile *entity.StudentProfile) error
	FindByID(ctx context.Context, id string) (*entity.User, error)
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	FindByUsername(ctx context.Context, username string) (*entity.User, error)
	FindByProfileID(ctx context.Context, profileID uint) (*entity.User, error)
	FindRoleByName(ctx context.Context, name string) (*entity.Role, error)
	Update(ctx context.Context, user *entity.User, profile *entity.StudentProfile) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	Delete(ctx context.Context, id uuid.UUID) error
	CountStudents(ctx context.Context, query string) (int64, error)
	FindStudents(ctx context.Context, query string, limit, offset int) ([]*entity.User, error)
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Create stores an account and, for students, its profile in one transaction.
func (r *userRepository) Create(ctx context.Context, user *entity.User, profile *entity.StudentProfile) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(user).Error; err != nil {
			return err
		}

		if profile != nil {
			profile.UserID = user.ID
			if err := tx.Create(profile).Error; err != nil {
				return err
			}
			user.Student = profile
		}

		return nil
	})
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	var user entity.User
	if err := r.db.WithContext(ctx).
		Preload("Role").
		Preload("Student").
		Where("LOWER(email) = ?", strings.ToLower(email)).
		First(&user).Error; err != nil {
		return nil, err
	}

	return &user, nil
}

func (r *userRepository) FindByUsername(ctx context.Context, username string) (*entity.User, error) {
	var user entity.User
	if err := r.db.WithContext(ctx).
		Preload("Role").
		Preload("Student").
		Where("username = ?", username).
		First(&user).Error; err != nil {
		return nil, err
	}

	return &user, nil
}

func (r *userRepository) FindByID(ctx context.Context, id string) (*entity.User, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, gorm.ErrRecordNotFound
	}

	var user entity.User
	if err := r.db.WithContext(ctx).
		Preload("Role").
		Preload("Student").
		Where("id = ?", uid).
		First(&user).Error; err != nil {
		return nil, err
	}

	return &user, nil
}

func (r *userRepository) FindByProfileID(ctx context.Context, profileID uint) (*entity.User, error) {
	var profile entity.StudentProfile
	if err := r.db.WithContext(ctx).First(&profile, profileID).Error; err != nil {
		return nil, err
	}

	var user entity.User
	if err := r.db.WithContext(ctx).
		Preload("Role").
		Where("id = ?", profile.UserID).
		First(&user).Error; err != nil {
		return nil, err
	}
	user.Student = &profile

	return &user, nil
}

func (r *userRepository) FindRoleByName(ctx context.Context, name string) (*entity.Role, error) {
	var role entity.Role
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&role).Error; err != nil {
		return nil, err
	}

	return &role, nil
}

func (r *userRepository) Update(ctx context.Context, user *entity.User, profile *entity.StudentProfile) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(user).Error; err != nil {
			return err
		}

		if profile != nil {
			if err := tx.Save(profile).Error; err != nil {
				return err
			}
		}

		return nil
	})
}

func (r *userRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	res := r.db.WithContext(ctx).
		Model(&entity.User{}).
		Where("id = ?", id).
		Update("password_hash", passwordHash)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *userRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	res := r.db.WithContext(ctx).
		Model(&entity.User{}).
		Where("id = ?", id).
		Update("is_active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete removes the account together with its profile.
func (r *userRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&entity.StudentProfile{}).Error; err != nil {
			return err
		}

		res := tx.Where("id = ?", id).Delete(&entity.User{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *userRepository) CountStudents(ctx context.Context, query string) (int64, error) {
	var count int64
	if err := r.studentQuery(ctx, query).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *userRepository) FindStudents(ctx context.Context, query string, limit, offset int) ([]*entity.User, error) {
	var users []*entity.User
	if err := r.studentQuery(ctx, query).
		Select("users.*").
		Preload("Role").
		Preload("Student").
		Order("student_profiles.id ASC").
		Limit(limit).
		Offset(offset).
		Find(&users).Error; err != nil {
		return nil, err
	}

	return users, nil
}

var searchColumns = []string{
	"users.username",
	"users.first_name",
	"users.last_name",
	"users.email",
	"student_profiles.roll_number",
	"student_profiles.department",
	"student_profiles.year",
}

// studentQuery selects accounts that own a student profile, optionally
// filtered by a case-insensitive substring match on any searchable column.
func (r *userRepository) studentQuery(ctx context.Context, query string) *gorm.DB {
	q := r.db.WithContext(ctx).
		Model(&entity.User{}).
		Joins("JOIN student_profiles ON student_profiles.user_id = users.id")

	query = strings.TrimSpace(query)
	if query == "" {
		return q
	}

	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	conds := make([]string, 0, len(searchColumns))
	args := make([]any, 0, len(searchColumns))
	for _, col := range searchColumns {
		conds = append(conds, "LOWER("+col+`) LIKE ? ESCAPE '\'`)
		args = append(args, pattern)
	}

	return q.Where("("+strings.Join(conds, " OR ")+")", args...)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
