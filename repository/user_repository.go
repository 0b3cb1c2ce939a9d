package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"sacraltrack/model"
)

// UserRepository defines the interface for user data operations.
type UserRepository interface {
	CreateUser(user *model.User) (int64, error)
	GetUserByID(id int64) (*model.User, error)
	GetUserByUsername(username string) (*model.User, error)
	GetUserByEmail(email string) (*model.User, error)
}

// gormUserRepository implements UserRepository on GORM. Users are the only
// GORM-managed aggregate; tracks use the raw SQL repository.
type gormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository creates a new gormUserRepository.
func NewGormUserRepository(db *gorm.DB) UserRepository {
	return &gormUserRepository{db: db}
}

// CreateUser adds a new user to the database.
func (r *gormUserRepository) CreateUser(user *model.User) (int64, error) {
	if err := r.db.Create(user).Error; err != nil {
		return 0, fmt.Errorf("failed to create user: %w", err)
	}
	return user.ID, nil
}

// GetUserByID retrieves a user by ID. Returns (nil, nil) when absent.
func (r *gormUserRepository) GetUserByID(id int64) (*model.User, error) {
	user := &model.User{}
	if err := r.db.First(user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by ID %d: %w", id, err)
	}
	return user, nil
}

// GetUserByUsername retrieves a user by username. Returns (nil, nil) when absent.
func (r *gormUserRepository) GetUserByUsername(username string) (*model.User, error) {
	user := &model.User{}
	if err := r.db.Where("username = ?", username).First(user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by username %s: %w", username, err)
	}
	return user, nil
}

// GetUserByEmail retrieves a user by email. Returns (nil, nil) when absent.
func (r *gormUserRepository) GetUserByEmail(email string) (*model.User, error) {
	user := &model.User{}
	if err := r.db.Where("email = ?", email).First(user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by email %s: %w", email, err)
	}
	return user, nil
}
