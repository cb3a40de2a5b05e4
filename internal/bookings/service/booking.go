package service

import (
	"context"
	"errors"
	"sync"

	bookingserrors "househunt/internal/bookings/errors"
	"househunt/internal/bookings/events"
	"househunt/internal/bookings/repository"
	"househunt/internal/bookings/validator"
	"househunt/pkg/config"
	apperrors "househunt/pkg/errors"
	"househunt/pkg/model"
	"househunt/pkg/sanitizer"
	"househunt/pkg/validation"
)

type BookingService interface {
	Create(ctx context.Context, req *model.BookingRequest) (*model.Booking, error)
	List(ctx context.Context, limit int, offset int64) ([]*model.BookingDetails, error)
	GetByID(ctx context.Context, id string) (*model.BookingDetails, error)
	Transition(ctx context.Context, id string, update *model.BookingStatusUpdate) (*model.Booking, error)
}

type UserFinder interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]*model.User, error)
}

type PropertyFinder interface {
	GetByID(ctx context.Context, id string) (*model.Property, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]*model.Property, error)
}

type bookingService struct {
	repo       repository.BookingRepository
	users      UserFinder
	properties PropertyFinder
	publisher  events.Publisher
	validator  *validator.BookingValidator
	cfg        *config.Config
}

func NewBookingService(
	repo repository.BookingRepository,
	users UserFinder,
	properties PropertyFinder,
	publisher events.Publisher,
	validator *validator.BookingValidator,
	cfg *config.Config,
) BookingService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &bookingService{
		repo:       repo,
		users:      users,
		properties: properties,
		publisher:  publisher,
		validator:  validator,
		cfg:        cfg,
	}
}

func (s *bookingService) Create(ctx context.Context, req *model.BookingRequest) (*model.Booking, error) {
	booking := &model.Booking{
		RenterID:   sanitizer.TrimAndNormalize(req.RenterID),
		PropertyID: sanitizer.TrimAndNormalize(req.PropertyID),
		Message:    sanitizer.NormalizeText(req.Message),
		Status:     model.BookingPending,
	}

	if err := s.validator.Validate(booking); err != nil {
		s.cfg.Log.Warn("Booking validation failed",
			"renter_id", booking.RenterID,
			"property_id", booking.PropertyID,
			"error", err,
		)
		return nil, validationError("Booking validation failed", err)
	}

	if err := s.verifyReferences(ctx, booking); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, booking); err != nil {
		s.cfg.Log.Error("Failed to create booking",
			"renter_id", booking.RenterID,
			"property_id", booking.PropertyID,
			"error", err,
		)
		return nil, apperrors.Persistence("Failed to create booking", err)
	}

	s.cfg.Log.Info("Booking requested",
		"id", booking.ID,
		"renter_id", booking.RenterID,
		"property_id", booking.PropertyID,
	)
	s.publisher.Publish(ctx, events.BookingRequested, booking)

	return booking, nil
}

// verifyReferences checks that the renter and property exist before the
// booking is written. Both lookups run concurrently.
func (s *bookingService) verifyReferences(ctx context.Context, booking *model.Booking) error {
	var renterErr, propertyErr error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, renterErr = s.users.GetByID(ctx, booking.RenterID)
	}()
	go func() {
		defer wg.Done()
		_, propertyErr = s.properties.GetByID(ctx, booking.PropertyID)
	}()
	wg.Wait()

	if renterErr != nil {
		if apperrors.HasCode(renterErr, apperrors.CodeNotFound) {
			return apperrors.NotFoundWithID("Renter", booking.RenterID)
		}
		return renterErr
	}
	if propertyErr != nil {
		if apperrors.HasCode(propertyErr, apperrors.CodeNotFound) {
			return apperrors.NotFoundWithID("Property", booking.PropertyID)
		}
		return propertyErr
	}
	return nil
}

func (s *bookingService) List(ctx context.Context, limit int, offset int64) ([]*model.BookingDetails, error) {
	bookings, err := s.repo.FindAll(ctx, config.NormalizePaginationLimit(limit), config.NormalizeOffset(offset))
	if err != nil {
		s.cfg.Log.Error("Failed to list bookings",
			"limit", limit,
			"offset", offset,
			"error", err,
		)
		return nil, apperrors.Persistence("Failed to retrieve bookings", err)
	}

	return s.resolve(ctx, bookings)
}

func (s *bookingService) GetByID(ctx context.Context, id string) (*model.BookingDetails, error) {
	booking, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	resolved, err := s.resolve(ctx, []*model.Booking{booking})
	if err != nil {
		return nil, err
	}
	return resolved[0], nil
}

// resolve embeds renter and property documents with one batched lookup per
// collection. A dangling reference resolves to nil.
func (s *bookingService) resolve(ctx context.Context, bookings []*model.Booking) ([]*model.BookingDetails, error) {
	details := make([]*model.BookingDetails, 0, len(bookings))
	if len(bookings) == 0 {
		return details, nil
	}

	renterIDs := make([]string, 0, len(bookings))
	propertyIDs := make([]string, 0, len(bookings))
	for _, b := range bookings {
		renterIDs = append(renterIDs, b.RenterID)
		propertyIDs = append(propertyIDs, b.PropertyID)
	}

	var renters map[string]*model.User
	var properties map[string]*model.Property
	var usersErr, propertiesErr error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		renters, usersErr = s.users.FindByIDs(ctx, renterIDs)
	}()
	go func() {
		defer wg.Done()
		properties, propertiesErr = s.properties.FindByIDs(ctx, propertyIDs)
	}()
	wg.Wait()

	if usersErr != nil {
		return nil, usersErr
	}
	if propertiesErr != nil {
		return nil, propertiesErr
	}

	for _, b := range bookings {
		details = append(details, model.NewBookingDetails(b, renters[b.RenterID], properties[b.PropertyID]))
	}
	return details, nil
}

func (s *bookingService) Transition(ctx context.Context, id string, update *model.BookingStatusUpdate) (*model.Booking, error) {
	if err := s.validator.ValidateStatusUpdate(update); err != nil {
		return nil, validationError("Invalid booking status", err)
	}

	current, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	if !current.Status.CanTransitionTo(update.Status) {
		s.cfg.Log.Warn("Booking transition rejected",
			"id", id,
			"from", current.Status,
			"to", update.Status,
		)
		return nil, apperrors.InvalidTransition(string(current.Status), string(update.Status))
	}

	updated, err := s.repo.UpdateStatus(ctx, id, current.Status, update.Status)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrStatusChanged) {
			return nil, s.lostRace(ctx, id, update.Status)
		}
		s.cfg.Log.Error("Failed to update booking status",
			"id", id,
			"to", update.Status,
			"error", err,
		)
		return nil, apperrors.Persistence("Failed to update booking status", err)
	}

	s.cfg.Log.Info("Booking status changed",
		"id", id,
		"from", current.Status,
		"to", updated.Status,
	)
	s.publisher.Publish(ctx, events.ForStatus(updated.Status), updated)

	return updated, nil
}

// lostRace reports the status a concurrent writer left behind.
func (s *bookingService) lostRace(ctx context.Context, id string, to model.BookingStatus) error {
	from := "unknown"
	if latest, err := s.repo.FindByID(ctx, id); err == nil {
		from = string(latest.Status)
	}
	s.cfg.Log.Warn("Booking transition lost to a concurrent update",
		"id", id,
		"status", from,
		"to", to,
	)
	return apperrors.InvalidTransition(from, string(to))
}

func (s *bookingService) find(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		if errors.Is(err, bookingserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid booking ID format")
		}
		s.cfg.Log.Error("Failed to get booking by ID",
			"id", id,
			"error", err,
		)
		return nil, apperrors.Persistence("Failed to retrieve booking", err)
	}

	return booking, nil
}

func validationError(message string, err error) error {
	if errs, ok := validation.AsErrors(err); ok {
		return apperrors.Validation(message, errs.Details())
	}
	return apperrors.Validation(message, map[string]any{"error": err.Error()})
}
