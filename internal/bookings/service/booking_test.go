package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	bookingserrors "househunt/internal/bookings/errors"
	"househunt/internal/bookings/events"
	"househunt/internal/bookings/validator"
	"househunt/pkg/config"
	apperrors "househunt/pkg/errors"
	"househunt/pkg/logger"
	"househunt/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ────────────────────────────────────────────────
// Mocks
// ────────────────────────────────────────────────

type mockBookingRepository struct {
	mu        sync.Mutex
	bookings  []*model.Booking
	createErr error
	// beforeUpdate runs inside UpdateStatus before the status check, letting a
	// test simulate a concurrent writer.
	beforeUpdate func(b *model.Booking)
}

func (m *mockBookingRepository) Create(_ context.Context, b *model.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	now := time.Now().UTC()
	b.ID = primitive.NewObjectID().Hex()
	b.CreatedAt = now
	b.UpdatedAt = now
	stored := *b
	m.bookings = append(m.bookings, &stored)
	return nil
}

func (m *mockBookingRepository) FindByID(_ context.Context, id string) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return nil, bookingserrors.ErrInvalidID
	}
	for _, b := range m.bookings {
		if b.ID == id {
			found := *b
			return &found, nil
		}
	}
	return nil, bookingserrors.ErrNotFound
}

func (m *mockBookingRepository) FindAll(_ context.Context, limit int, offset int64) ([]*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Booking, 0, len(m.bookings))
	for _, b := range m.bookings {
		found := *b
		out = append(out, &found)
	}
	if offset > int64(len(out)) {
		return []*model.Booking{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockBookingRepository) UpdateStatus(_ context.Context, id string, from, to model.BookingStatus) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bookings {
		if b.ID != id {
			continue
		}
		if m.beforeUpdate != nil {
			m.beforeUpdate(b)
		}
		if b.Status != from {
			return nil, bookingserrors.ErrStatusChanged
		}
		b.Status = to
		b.UpdatedAt = time.Now().UTC()
		updated := *b
		return &updated, nil
	}
	return nil, bookingserrors.ErrStatusChanged
}

type mockUserFinder struct {
	users map[string]*model.User
}

func (m *mockUserFinder) GetByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, apperrors.NotFoundWithID("User", id)
}

func (m *mockUserFinder) FindByIDs(_ context.Context, ids []string) (map[string]*model.User, error) {
	out := make(map[string]*model.User)
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

type mockPropertyFinder struct {
	properties map[string]*model.Property
	findErr    error
}

func (m *mockPropertyFinder) GetByID(_ context.Context, id string) (*model.Property, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	if p, ok := m.properties[id]; ok {
		return p, nil
	}
	return nil, apperrors.NotFoundWithID("Property", id)
}

func (m *mockPropertyFinder) FindByIDs(_ context.Context, ids []string) (map[string]*model.Property, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	out := make(map[string]*model.Property)
	for _, id := range ids {
		if p, ok := m.properties[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type published struct {
	event  string
	status model.BookingStatus
}

type mockPublisher struct {
	mu     sync.Mutex
	events []published
}

func (m *mockPublisher) Publish(_ context.Context, event string, b *model.Booking) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, published{event: event, status: b.Status})
}

var (
	aliceID = "65f0c0ffee00000000000002"
	bobID   = "65f0c0ffee00000000000001"
	loftID  = "65f0c0ffee0000000000000d"
)

type fixture struct {
	svc        BookingService
	repo       *mockBookingRepository
	users      *mockUserFinder
	properties *mockPropertyFinder
	publisher  *mockPublisher
}

func newFixture() *fixture {
	f := &fixture{
		repo: &mockBookingRepository{},
		users: &mockUserFinder{users: map[string]*model.User{
			aliceID: {ID: aliceID, Name: "Alice", Email: "alice@example.com", Role: model.RoleRenter},
			bobID:   {ID: bobID, Name: "Bob", Email: "bob@example.com", Role: model.RoleOwner},
		}},
		properties: &mockPropertyFinder{properties: map[string]*model.Property{
			loftID: {ID: loftID, OwnerID: bobID, Title: "Loft", Rent: 1200, Available: true, Images: []string{}},
		}},
		publisher: &mockPublisher{},
	}
	cfg := &config.Config{Log: logger.Discard()}
	f.svc = NewBookingService(f.repo, f.users, f.properties, f.publisher, validator.NewBookingValidator(), cfg)
	return f
}

func aliceRequestsLoft() *model.BookingRequest {
	return &model.BookingRequest{RenterID: aliceID, PropertyID: loftID, Message: "Interested"}
}

// ────────────────────────────────────────────────
// Create
// ────────────────────────────────────────────────

func TestCreate_StartsPendingWithDistinctIDs(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, err := f.svc.Create(ctx, aliceRequestsLoft())
	require.NoError(t, err)
	second, err := f.svc.Create(ctx, aliceRequestsLoft())
	require.NoError(t, err)

	assert.Equal(t, model.BookingPending, first.Status)
	assert.Equal(t, model.BookingPending, second.Status)
	assert.NotEmpty(t, first.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, "Interested", first.Message)
}

func TestCreate_IgnoresClientSuppliedStatus(t *testing.T) {
	f := newFixture()

	booking, err := f.svc.Create(context.Background(), &model.BookingRequest{
		RenterID:   " " + aliceID + " ",
		PropertyID: loftID,
		Message:    "hi\x00 there",
	})
	require.NoError(t, err)

	assert.Equal(t, model.BookingPending, booking.Status)
	assert.Equal(t, aliceID, booking.RenterID)
	assert.Equal(t, "hi there", booking.Message)
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  *model.BookingRequest
	}{
		{name: "missing renter", req: &model.BookingRequest{PropertyID: loftID}},
		{name: "missing property", req: &model.BookingRequest{RenterID: aliceID}},
		{name: "malformed renter", req: &model.BookingRequest{RenterID: "alice", PropertyID: loftID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			_, err := f.svc.Create(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
			assert.Empty(t, f.repo.bookings)
		})
	}
}

func TestCreate_UnknownReferences(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	missing := primitive.NewObjectID().Hex()

	_, err := f.svc.Create(ctx, &model.BookingRequest{RenterID: missing, PropertyID: loftID})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
	assert.Contains(t, err.Error(), "Renter")

	_, err = f.svc.Create(ctx, &model.BookingRequest{RenterID: aliceID, PropertyID: missing})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
	assert.Contains(t, err.Error(), "Property")

	assert.Empty(t, f.repo.bookings)
	assert.Empty(t, f.publisher.events)
}

func TestCreate_StoreFailure(t *testing.T) {
	f := newFixture()
	f.repo.createErr = errors.New("connection refused")

	_, err := f.svc.Create(context.Background(), aliceRequestsLoft())
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodePersistence))
	assert.Empty(t, f.publisher.events)
}

func TestCreate_PublishesRequestedEvent(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Create(context.Background(), aliceRequestsLoft())
	require.NoError(t, err)

	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, events.BookingRequested, f.publisher.events[0].event)
	assert.Equal(t, model.BookingPending, f.publisher.events[0].status)
}

// ────────────────────────────────────────────────
// List / GetByID
// ────────────────────────────────────────────────

func TestList_ResolvesEveryCreatedBooking(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	const n = 5
	for i := 0; i < n; i++ {
		_, err := f.svc.Create(ctx, aliceRequestsLoft())
		require.NoError(t, err)
	}

	bookings, err := f.svc.List(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, bookings, n)
	for _, b := range bookings {
		require.NotNil(t, b.Renter)
		require.NotNil(t, b.Property)
		assert.Equal(t, "Alice", b.Renter.Name)
		assert.Equal(t, "Loft", b.Property.Title)
	}
}

func TestList_EmptyIsNotNil(t *testing.T) {
	f := newFixture()

	bookings, err := f.svc.List(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.NotNil(t, bookings)
	assert.Empty(t, bookings)
}

func TestList_DanglingReferencesResolveToNil(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.Create(ctx, aliceRequestsLoft())
	require.NoError(t, err)

	delete(f.users.users, aliceID)
	delete(f.properties.properties, loftID)

	bookings, err := f.svc.List(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Nil(t, bookings[0].Renter)
	assert.Nil(t, bookings[0].Property)
	assert.Equal(t, model.BookingPending, bookings[0].Status)
}

func TestList_PropagatesLookupFailure(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.Create(ctx, aliceRequestsLoft())
	require.NoError(t, err)

	f.properties.findErr = apperrors.Persistence("Failed to retrieve properties", errors.New("timeout"))
	_, err = f.svc.List(ctx, 0, 0)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodePersistence))
}

func TestGetByID(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	created, err := f.svc.Create(ctx, aliceRequestsLoft())
	require.NoError(t, err)

	details, err := f.svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, details.ID)
	assert.Equal(t, "Alice", details.Renter.Name)

	_, err = f.svc.GetByID(ctx, primitive.NewObjectID().Hex())
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	_, err = f.svc.GetByID(ctx, "not-an-id")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))
}

// ────────────────────────────────────────────────
// Transition
// ────────────────────────────────────────────────

func TestTransition_AliceBobLoftScenario(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	booking, err := f.svc.Create(ctx, aliceRequestsLoft())
	require.NoError(t, err)

	confirmed, err := f.svc.Transition(ctx, booking.ID, &model.BookingStatusUpdate{Status: model.BookingConfirmed})
	require.NoError(t, err)
	assert.Equal(t, model.BookingConfirmed, confirmed.Status)

	_, err = f.svc.Transition(ctx, booking.ID, &model.BookingStatusUpdate{Status: model.BookingRejected})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))

	details, err := f.svc.GetByID(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingConfirmed, details.Status)
	assert.Equal(t, "Alice", details.Renter.Name)
	assert.Equal(t, "Loft", details.Property.Title)

	require.Len(t, f.publisher.events, 2)
	assert.Equal(t, events.BookingRequested, f.publisher.events[0].event)
	assert.Equal(t, events.BookingConfirmed, f.publisher.events[1].event)
}

func TestTransition_TerminalStatusIsFinal(t *testing.T) {
	for _, terminal := range []model.BookingStatus{model.BookingConfirmed, model.BookingRejected} {
		t.Run(string(terminal), func(t *testing.T) {
			f := newFixture()
			ctx := context.Background()

			booking, err := f.svc.Create(ctx, aliceRequestsLoft())
			require.NoError(t, err)
			_, err = f.svc.Transition(ctx, booking.ID, &model.BookingStatusUpdate{Status: terminal})
			require.NoError(t, err)

			for _, next := range []model.BookingStatus{model.BookingPending, model.BookingConfirmed, model.BookingRejected} {
				_, err = f.svc.Transition(ctx, booking.ID, &model.BookingStatusUpdate{Status: next})
				require.Error(t, err)
				assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition), "%s -> %s", terminal, next)
			}

			stored, err := f.repo.FindByID(ctx, booking.ID)
			require.NoError(t, err)
			assert.Equal(t, terminal, stored.Status)
		})
	}
}

func TestTransition_RejectPublishesRejectedEvent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	booking, err := f.svc.Create(ctx, aliceRequestsLoft())
	require.NoError(t, err)

	rejected, err := f.svc.Transition(ctx, booking.ID, &model.BookingStatusUpdate{Status: model.BookingRejected})
	require.NoError(t, err)
	assert.Equal(t, model.BookingRejected, rejected.Status)
	assert.Equal(t, events.BookingRejected, f.publisher.events[len(f.publisher.events)-1].event)
}

func TestTransition_InvalidStatus(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	booking, err := f.svc.Create(ctx, aliceRequestsLoft())
	require.NoError(t, err)

	_, err = f.svc.Transition(ctx, booking.ID, &model.BookingStatusUpdate{Status: "cancelled"})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	_, err = f.svc.Transition(ctx, booking.ID, &model.BookingStatusUpdate{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestTransition_UnknownBooking(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Transition(context.Background(), primitive.NewObjectID().Hex(),
		&model.BookingStatusUpdate{Status: model.BookingConfirmed})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestTransition_LosingConcurrentUpdateIsInvalidTransition(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	booking, err := f.svc.Create(ctx, aliceRequestsLoft())
	require.NoError(t, err)

	f.repo.beforeUpdate = func(b *model.Booking) {
		b.Status = model.BookingRejected
	}

	_, err = f.svc.Transition(ctx, booking.ID, &model.BookingStatusUpdate{Status: model.BookingConfirmed})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))

	appErr := apperrors.AsAppError(err)
	assert.Equal(t, "rejected", appErr.Details["from"])

	stored, err := f.repo.FindByID(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingRejected, stored.Status)
	assert.Len(t, f.publisher.events, 1, "only the request event is published")
}

func TestNewBookingService_NilPublisher(t *testing.T) {
	cfg := &config.Config{Log: logger.Discard()}
	f := newFixture()
	svc := NewBookingService(f.repo, f.users, f.properties, nil, validator.NewBookingValidator(), cfg)

	_, err := svc.Create(context.Background(), aliceRequestsLoft())
	require.NoError(t, err)
}
