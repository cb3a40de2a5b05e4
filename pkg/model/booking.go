package model

import (
	"time"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingRejected  BookingStatus = "rejected"
)

// IsTerminal reports whether no further transition is defined from s.
func (s BookingStatus) IsTerminal() bool {
	return s == BookingConfirmed || s == BookingRejected
}

func (s BookingStatus) IsValid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingRejected:
		return true
	}
	return false
}

// CanTransitionTo encodes the lifecycle: pending -> confirmed | rejected.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	return s == BookingPending && next.IsTerminal()
}

type Booking struct {
	ID         string        `json:"_id,omitempty" bson:"_id,omitempty"`
	RenterID   string        `json:"renterId" bson:"renter_id" validate:"required,mongodb"`
	PropertyID string        `json:"propertyId" bson:"property_id" validate:"required,mongodb"`
	Status     BookingStatus `json:"status" bson:"status" validate:"required,oneof=pending confirmed rejected"`
	Message    string        `json:"message" bson:"message" validate:"max=1000"`
	CreatedAt  time.Time     `json:"createdAt" bson:"created_at"`
	UpdatedAt  time.Time     `json:"updatedAt" bson:"updated_at"`
}

type BookingRequest struct {
	RenterID   string `json:"renterId"`
	PropertyID string `json:"propertyId"`
	Message    string `json:"message"`
}

type BookingStatusUpdate struct {
	Status BookingStatus `json:"status" validate:"required,oneof=pending confirmed rejected"`
}

// BookingDetails is a booking with its references resolved in place, matching
// the shape the front end expects: renterId and propertyId hold the full
// documents, or null when the reference is dangling.
type BookingDetails struct {
	ID        string        `json:"_id"`
	Renter    *User         `json:"renterId"`
	Property  *Property     `json:"propertyId"`
	Status    BookingStatus `json:"status"`
	Message   string        `json:"message"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

func NewBookingDetails(b *Booking, renter *User, property *Property) *BookingDetails {
	return &BookingDetails{
		ID:        b.ID,
		Renter:    renter,
		Property:  property,
		Status:    b.Status,
		Message:   b.Message,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}
