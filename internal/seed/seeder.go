package seed

import (
	"context"
	"fmt"

	apperrors "househunt/pkg/errors"
	"househunt/pkg/logger"
	"househunt/pkg/model"
	"househunt/pkg/sanitizer"
)

type UserCreator interface {
	Register(ctx context.Context, reg *model.UserRegistration) (*model.User, error)
	Login(ctx context.Context, creds *model.Credentials) (*model.User, error)
}

type PropertyCreator interface {
	Add(ctx context.Context, listing *model.PropertyListing) (*model.Property, error)
	GetByTitle(ctx context.Context, title string) (*model.Property, error)
}

type BookingCreator interface {
	Create(ctx context.Context, req *model.BookingRequest) (*model.Booking, error)
	Transition(ctx context.Context, id string, update *model.BookingStatusUpdate) (*model.Booking, error)
}

type Result struct {
	UsersCreated       int
	UsersExisting      int
	PropertiesCreated  int
	PropertiesExisting int
	BookingsCreated    int
}

// Seeder loads fixtures through the services, so every record passes the same
// validation and normalization as API traffic.
type Seeder struct {
	users      UserCreator
	properties PropertyCreator
	bookings   BookingCreator
	log        *logger.Logger
}

func NewSeeder(users UserCreator, properties PropertyCreator, bookings BookingCreator, log *logger.Logger) *Seeder {
	return &Seeder{
		users:      users,
		properties: properties,
		bookings:   bookings,
		log:        log,
	}
}

// Run is re-runnable for users and properties: existing emails and titles are
// reused. Bookings are always created anew.
func (s *Seeder) Run(ctx context.Context, f *Fixtures) (*Result, error) {
	res := &Result{}

	userIDs := make(map[string]string, len(f.Users))
	for _, u := range f.Users {
		user, created, err := s.ensureUser(ctx, u)
		if err != nil {
			return res, fmt.Errorf("user %s: %w", u.Email, err)
		}
		if created {
			res.UsersCreated++
		} else {
			res.UsersExisting++
		}
		userIDs[user.Email] = user.ID
	}

	propertyIDs := make(map[string]string, len(f.Properties))
	for _, p := range f.Properties {
		ownerID, ok := userIDs[sanitizer.NormalizeEmail(p.Owner)]
		if !ok {
			return res, fmt.Errorf("property %q: unknown owner %s", p.Title, p.Owner)
		}
		property, created, err := s.ensureProperty(ctx, ownerID, p)
		if err != nil {
			return res, fmt.Errorf("property %q: %w", p.Title, err)
		}
		if created {
			res.PropertiesCreated++
		} else {
			res.PropertiesExisting++
		}
		propertyIDs[sanitizer.NormalizeTitle(p.Title)] = property.ID
	}

	for i, b := range f.Bookings {
		renterID, ok := userIDs[sanitizer.NormalizeEmail(b.Renter)]
		if !ok {
			return res, fmt.Errorf("booking %d: unknown renter %s", i, b.Renter)
		}
		propertyID, ok := propertyIDs[sanitizer.NormalizeTitle(b.Property)]
		if !ok {
			return res, fmt.Errorf("booking %d: unknown property %q", i, b.Property)
		}
		if err := s.createBooking(ctx, renterID, propertyID, b); err != nil {
			return res, fmt.Errorf("booking %d: %w", i, err)
		}
		res.BookingsCreated++
	}

	s.log.Info("Seed completed",
		"users_created", res.UsersCreated,
		"users_existing", res.UsersExisting,
		"properties_created", res.PropertiesCreated,
		"properties_existing", res.PropertiesExisting,
		"bookings_created", res.BookingsCreated,
	)
	return res, nil
}

func (s *Seeder) ensureUser(ctx context.Context, u UserFixture) (*model.User, bool, error) {
	user, err := s.users.Register(ctx, &model.UserRegistration{
		Name:     u.Name,
		Email:    u.Email,
		Password: u.Password,
		Role:     model.Role(u.Role),
	})
	if err == nil {
		return user, true, nil
	}
	if !apperrors.HasCode(err, apperrors.CodeValidation) {
		return nil, false, err
	}

	// Most likely already registered; confirm with the fixture's credentials.
	existing, loginErr := s.users.Login(ctx, &model.Credentials{Email: u.Email, Password: u.Password})
	if loginErr != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (s *Seeder) ensureProperty(ctx context.Context, ownerID string, p PropertyFixture) (*model.Property, bool, error) {
	existing, err := s.properties.GetByTitle(ctx, p.Title)
	if err == nil {
		return existing, false, nil
	}
	if !apperrors.HasCode(err, apperrors.CodeNotFound) {
		return nil, false, err
	}

	property, err := s.properties.Add(ctx, &model.PropertyListing{
		OwnerID:     ownerID,
		Title:       p.Title,
		Description: p.Description,
		Rent:        p.Rent,
		Location:    p.Location,
		Bedrooms:    p.Bedrooms,
		Images:      p.Images,
		Available:   p.Available,
	})
	if err != nil {
		return nil, false, err
	}
	return property, true, nil
}

func (s *Seeder) createBooking(ctx context.Context, renterID, propertyID string, b BookingFixture) error {
	booking, err := s.bookings.Create(ctx, &model.BookingRequest{
		RenterID:   renterID,
		PropertyID: propertyID,
		Message:    b.Message,
	})
	if err != nil {
		return err
	}

	status := model.BookingStatus(b.Status)
	if status == "" || status == model.BookingPending {
		return nil
	}
	_, err = s.bookings.Transition(ctx, booking.ID, &model.BookingStatusUpdate{Status: status})
	return err
}
