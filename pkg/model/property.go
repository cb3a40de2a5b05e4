package model

import "time"

type Property struct {
	ID          string    `json:"_id,omitempty" bson:"_id,omitempty"`
	OwnerID     string    `json:"ownerId" bson:"owner_id"`
	Title       string    `json:"title" bson:"title"`
	Description string    `json:"description" bson:"description"`
	Rent        float64   `json:"rent" bson:"rent"`
	Location    string    `json:"location" bson:"location"`
	Bedrooms    int       `json:"bedrooms" bson:"bedrooms"`
	Images      []string  `json:"images" bson:"images"`
	Available   bool      `json:"available" bson:"available"`
	CreatedAt   time.Time `json:"createdAt" bson:"created_at"`
}

// PropertyListing is the add-property request body. Available is a pointer so
// an omitted flag can default to true.
type PropertyListing struct {
	OwnerID     string   `json:"ownerId" validate:"required,mongodb"`
	Title       string   `json:"title" validate:"required,min=2,max=200"`
	Description string   `json:"description" validate:"max=5000"`
	Rent        float64  `json:"rent" validate:"gte=0"`
	Location    string   `json:"location" validate:"max=200"`
	Bedrooms    int      `json:"bedrooms" validate:"gte=0,lte=100"`
	Images      []string `json:"images" validate:"max=20,dive,image_ref"`
	Available   *bool    `json:"available"`
}

func (l *PropertyListing) ToProperty() *Property {
	available := true
	if l.Available != nil {
		available = *l.Available
	}
	images := l.Images
	if images == nil {
		images = []string{}
	}
	return &Property{
		OwnerID:     l.OwnerID,
		Title:       l.Title,
		Description: l.Description,
		Rent:        l.Rent,
		Location:    l.Location,
		Bedrooms:    l.Bedrooms,
		Images:      images,
		Available:   available,
	}
}
