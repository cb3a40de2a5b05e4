package househunt

import (
	"househunt/internal/bookings/events"
	bookinghandler "househunt/internal/bookings/handler"
	bookingrepo "househunt/internal/bookings/repository"
	bookingservice "househunt/internal/bookings/service"
	bookingvalidator "househunt/internal/bookings/validator"
	propertyhandler "househunt/internal/properties/handler"
	propertyrepo "househunt/internal/properties/repository"
	propertyservice "househunt/internal/properties/service"
	propertyvalidator "househunt/internal/properties/validator"
	userhandler "househunt/internal/users/handler"
	userrepo "househunt/internal/users/repository"
	userservice "househunt/internal/users/service"
	uservalidator "househunt/internal/users/validator"
	"househunt/pkg/config"
	"househunt/pkg/contracts"
)

type Services struct {
	Users      userservice.UserService
	Properties propertyservice.PropertyService
	Bookings   bookingservice.BookingService
}

// NewServices builds the Mongo-backed services. cfg.Client.Mongo must be
// connected. A nil publisher disables booking events.
func NewServices(cfg *config.Config, publisher events.Publisher) *Services {
	users := userservice.NewUserService(
		userrepo.NewMongoUserRepository(cfg),
		uservalidator.NewUserValidator(),
		cfg,
	)
	properties := propertyservice.NewPropertyService(
		propertyrepo.NewMongoPropertyRepository(cfg),
		users,
		propertyvalidator.NewPropertyValidator(),
		cfg,
	)
	bookings := bookingservice.NewBookingService(
		bookingrepo.NewMongoBookingRepository(cfg),
		users,
		properties,
		publisher,
		bookingvalidator.NewBookingValidator(),
		cfg,
	)

	cfg.Log.Info("Services initialized", "database", cfg.MongoDatabaseName)
	return &Services{
		Users:      users,
		Properties: properties,
		Bookings:   bookings,
	}
}

func (s *Services) Handlers(cfg *config.Config) []contracts.Handler {
	return []contracts.Handler{
		userhandler.NewUserHandler(s.Users, cfg.Log),
		propertyhandler.NewPropertyHandler(s.Properties, cfg.Log),
		bookinghandler.NewBookingHandler(s.Bookings, cfg.Log),
	}
}
