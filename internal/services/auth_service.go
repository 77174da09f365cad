package services

import (
	"errors"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/sekikawa/project-management-api/internal/auth"
	"github.com/sekikawa/project-management-api/internal/constants"
	"github.com/sekikawa/project-management-api/internal/models"
	"github.com/sekikawa/project-management-api/internal/repository"
)

// AuthService handles signup, login and profile lookup. Passwords are
// bcrypt hashed; failed logins report one generic error regardless of
// whether the username exists.
type AuthService struct {
	userRepo  repository.UserRepository
	validator *auth.Validator
	logger    *zap.Logger
}

func NewAuthService(userRepo repository.UserRepository, validator *auth.Validator, logger *zap.Logger) *AuthService {
	return &AuthService{userRepo: userRepo, validator: validator, logger: logger}
}

type SignupInput struct {
	Username    string
	Password    string
	DisplayName string
}

// Signup registers a new user and returns it with a fresh access token.
func (s *AuthService) Signup(in SignupInput) (*models.User, string, error) {
	if len(in.Password) < constants.MinPasswordLength {
		return nil, "", ErrPasswordTooShort
	}
	if in.Username == "" {
		return nil, "", ErrValidation
	}
	if in.DisplayName == "" {
		in.DisplayName = in.Username
	}

	if _, err := s.userRepo.FindByUsername(in.Username); err == nil {
		return nil, "", ErrUsernameTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", err
	}

	user := &models.User{
		Username:     in.Username,
		DisplayName:  in.DisplayName,
		PasswordHash: string(hash),
	}
	if err := s.userRepo.Create(user); err != nil {
		return nil, "", err
	}

	token, err := s.validator.Issue(user)
	if err != nil {
		return nil, "", err
	}
	s.logger.Info("user registered", zap.Uint64("user_id", user.ID))
	return user, token, nil
}

// Login verifies credentials and returns the user with an access token.
func (s *AuthService) Login(username, password string) (*models.User, string, error) {
	user, err := s.userRepo.FindByUsername(username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.validator.Issue(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// GetUser returns a user by id.
func (s *AuthService) GetUser(id uint64) (*models.User, error) {
	user, err := s.userRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user, nil
}
