package service

import (
	"context"
	"errors"

	userserrors "househunt/internal/users/errors"
	"househunt/internal/users/repository"
	"househunt/internal/users/validator"
	"househunt/pkg/config"
	apperrors "househunt/pkg/errors"
	"househunt/pkg/model"
	"househunt/pkg/sanitizer"
	"househunt/pkg/validation"

	"golang.org/x/crypto/bcrypt"
)

const invalidCredentials = "Invalid credentials"

type UserService interface {
	Register(ctx context.Context, reg *model.UserRegistration) (*model.User, error)
	Login(ctx context.Context, creds *model.Credentials) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]*model.User, error)
}

type userService struct {
	repo      repository.UserRepository
	validator *validator.UserValidator
	cfg       *config.Config
}

func NewUserService(
	repo repository.UserRepository,
	validator *validator.UserValidator,
	cfg *config.Config,
) UserService {
	return &userService{
		repo:      repo,
		validator: validator,
		cfg:       cfg,
	}
}

func (s *userService) Register(ctx context.Context, reg *model.UserRegistration) (*model.User, error) {
	reg.Name = sanitizer.NormalizeName(reg.Name)
	reg.Email = sanitizer.NormalizeEmail(reg.Email)
	if reg.Role == "" {
		reg.Role = model.RoleRenter
	}

	if err := s.validator.ValidateRegistration(reg); err != nil {
		s.cfg.Log.Warn("User registration validation failed",
			"email", reg.Email,
			"error", err,
		)
		return nil, validationError("User validation failed", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), s.cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, apperrors.Validation("User validation failed", map[string]any{
				"fields": map[string]any{"password": "must be at most 72 bytes"},
			})
		}
		return nil, apperrors.Internal("Failed to hash password", err)
	}

	user := &model.User{
		Name:         reg.Name,
		Email:        reg.Email,
		PasswordHash: string(hash),
		Role:         reg.Role,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, userserrors.ErrDuplicateEmail) {
			s.cfg.Log.Warn("Duplicate registration", "email", user.Email)
			return nil, apperrors.Validation("Email already registered", map[string]any{
				"email": user.Email,
			})
		}
		s.cfg.Log.Error("Failed to create user",
			"email", user.Email,
			"error", err,
		)
		return nil, apperrors.Persistence("Failed to register user", err)
	}

	s.cfg.Log.Info("User registered successfully",
		"id", user.ID,
		"role", user.Role,
	)

	return user, nil
}

func (s *userService) Login(ctx context.Context, creds *model.Credentials) (*model.User, error) {
	creds.Email = sanitizer.NormalizeEmail(creds.Email)

	if err := s.validator.ValidateCredentials(creds); err != nil {
		return nil, validationError("Email and password are required", err)
	}

	user, err := s.repo.FindByEmail(ctx, creds.Email)
	if err != nil {
		if errors.Is(err, userserrors.ErrNotFound) {
			return nil, apperrors.Unauthorized(invalidCredentials)
		}
		s.cfg.Log.Error("Failed to look up user for login", "error", err)
		return nil, apperrors.Persistence("Failed to log in", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		s.cfg.Log.Warn("Login rejected", "user_id", user.ID)
		return nil, apperrors.Unauthorized(invalidCredentials)
	}

	return user, nil
}

func (s *userService) GetByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("User ID cannot be empty")
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, userserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("User", id)
		}
		if errors.Is(err, userserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid user ID format")
		}
		s.cfg.Log.Error("Failed to get user by ID",
			"id", id,
			"error", err,
		)
		return nil, apperrors.Persistence("Failed to retrieve user", err)
	}

	return user, nil
}

// FindByIDs resolves ids in one query. Ids without a stored user are absent
// from the result.
func (s *userService) FindByIDs(ctx context.Context, ids []string) (map[string]*model.User, error) {
	users, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		s.cfg.Log.Error("Failed to resolve users",
			"count", len(ids),
			"error", err,
		)
		return nil, apperrors.Persistence("Failed to retrieve users", err)
	}

	byID := make(map[string]*model.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	return byID, nil
}

func validationError(message string, err error) error {
	if errs, ok := validation.AsErrors(err); ok {
		return apperrors.Validation(message, errs.Details())
	}
	return apperrors.Validation(message, map[string]any{"error": err.Error()})
}
