package service

import (
	"context"
	"errors"

	propertieserrors "househunt/internal/properties/errors"
	"househunt/internal/properties/repository"
	"househunt/internal/properties/validator"
	"househunt/pkg/config"
	apperrors "househunt/pkg/errors"
	"househunt/pkg/model"
	"househunt/pkg/sanitizer"
	"househunt/pkg/validation"
)

type PropertyService interface {
	Add(ctx context.Context, listing *model.PropertyListing) (*model.Property, error)
	List(ctx context.Context, limit int, offset int64) ([]*model.Property, error)
	GetByID(ctx context.Context, id string) (*model.Property, error)
	GetByTitle(ctx context.Context, title string) (*model.Property, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]*model.Property, error)
}

// OwnerFinder looks up the user a listing is attributed to.
type OwnerFinder interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
}

type propertyService struct {
	repo      repository.PropertyRepository
	owners    OwnerFinder
	validator *validator.PropertyValidator
	cfg       *config.Config
}

func NewPropertyService(
	repo repository.PropertyRepository,
	owners OwnerFinder,
	validator *validator.PropertyValidator,
	cfg *config.Config,
) PropertyService {
	return &propertyService{
		repo:      repo,
		owners:    owners,
		validator: validator,
		cfg:       cfg,
	}
}

func (s *propertyService) Add(ctx context.Context, listing *model.PropertyListing) (*model.Property, error) {
	s.sanitize(listing)

	if err := s.validator.Validate(listing); err != nil {
		s.cfg.Log.Warn("Property validation failed",
			"title", listing.Title,
			"owner_id", listing.OwnerID,
			"error", err,
		)
		if errs, ok := validation.AsErrors(err); ok {
			return nil, apperrors.Validation("Property validation failed", errs.Details())
		}
		return nil, apperrors.Validation("Property validation failed", map[string]any{"error": err.Error()})
	}

	owner, err := s.owners.GetByID(ctx, listing.OwnerID)
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeNotFound) {
			return nil, apperrors.NotFoundWithID("Owner", listing.OwnerID)
		}
		return nil, err
	}
	if !owner.Role.CanListProperties() {
		s.cfg.Log.Warn("Property rejected: user cannot list properties",
			"owner_id", owner.ID,
			"role", owner.Role,
		)
		return nil, apperrors.Validation("User is not allowed to list properties", map[string]any{
			"ownerId": owner.ID,
			"role":    string(owner.Role),
		})
	}

	property := listing.ToProperty()
	if err := s.repo.Create(ctx, property); err != nil {
		s.cfg.Log.Error("Failed to create property",
			"title", property.Title,
			"owner_id", property.OwnerID,
			"error", err,
		)
		return nil, apperrors.Persistence("Failed to add property", err)
	}

	s.cfg.Log.Info("Property added successfully",
		"id", property.ID,
		"owner_id", property.OwnerID,
		"title", property.Title,
	)

	return property, nil
}

func (s *propertyService) List(ctx context.Context, limit int, offset int64) ([]*model.Property, error) {
	properties, err := s.repo.FindAll(ctx, config.NormalizePaginationLimit(limit), config.NormalizeOffset(offset))
	if err != nil {
		s.cfg.Log.Error("Failed to list properties",
			"limit", limit,
			"offset", offset,
			"error", err,
		)
		return nil, apperrors.Persistence("Failed to retrieve properties", err)
	}

	return properties, nil
}

func (s *propertyService) GetByID(ctx context.Context, id string) (*model.Property, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Property ID cannot be empty")
	}

	property, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapLookupError(err, id)
	}

	return property, nil
}

func (s *propertyService) GetByTitle(ctx context.Context, title string) (*model.Property, error) {
	property, err := s.repo.FindByTitle(ctx, sanitizer.NormalizeTitle(title))
	if err != nil {
		return nil, s.mapLookupError(err, title)
	}

	return property, nil
}

// FindByIDs resolves ids in one query. Ids without a stored property are
// absent from the result.
func (s *propertyService) FindByIDs(ctx context.Context, ids []string) (map[string]*model.Property, error) {
	properties, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		s.cfg.Log.Error("Failed to resolve properties",
			"count", len(ids),
			"error", err,
		)
		return nil, apperrors.Persistence("Failed to retrieve properties", err)
	}

	byID := make(map[string]*model.Property, len(properties))
	for _, p := range properties {
		byID[p.ID] = p
	}
	return byID, nil
}

func (s *propertyService) mapLookupError(err error, key string) error {
	if errors.Is(err, propertieserrors.ErrNotFound) {
		return apperrors.NotFoundWithID("Property", key)
	}
	if errors.Is(err, propertieserrors.ErrInvalidID) {
		return apperrors.InvalidInput("Invalid property ID format")
	}
	s.cfg.Log.Error("Failed to get property",
		"key", key,
		"error", err,
	)
	return apperrors.Persistence("Failed to retrieve property", err)
}

func (s *propertyService) sanitize(listing *model.PropertyListing) {
	listing.Title = sanitizer.NormalizeTitle(listing.Title)
	listing.Description = sanitizer.NormalizeText(listing.Description)
	listing.Location = sanitizer.NormalizeLocation(listing.Location)
	listing.Images = sanitizer.NormalizeImages(listing.Images)
}
