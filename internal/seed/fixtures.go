package seed

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type UserFixture struct {
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

type PropertyFixture struct {
	Owner       string   `yaml:"owner"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Rent        float64  `yaml:"rent"`
	Location    string   `yaml:"location"`
	Bedrooms    int      `yaml:"bedrooms"`
	Images      []string `yaml:"images"`
	Available   *bool    `yaml:"available"`
}

// BookingFixture references its renter by email and its property by title.
// A non-pending Status is applied as a transition after the request.
type BookingFixture struct {
	Renter   string `yaml:"renter"`
	Property string `yaml:"property"`
	Message  string `yaml:"message"`
	Status   string `yaml:"status"`
}

type Fixtures struct {
	Users      []UserFixture     `yaml:"users"`
	Properties []PropertyFixture `yaml:"properties"`
	Bookings   []BookingFixture  `yaml:"bookings"`
}

var ErrEmptyFixtures = errors.New("seed: fixture payload is empty")

// ParseFixtures decodes a fixture document. Unknown keys are rejected so a
// typo does not silently drop data.
func ParseFixtures(data []byte) (*Fixtures, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFixtures
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f Fixtures
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("seed: decode fixtures: %w", err)
	}
	return &f, nil
}

func LoadFixtures(path string) (*Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("seed: read %s: %w", path, err)
	}
	f, err := ParseFixtures(data)
	if err != nil {
		return nil, fmt.Errorf("seed: %s: %w", path, err)
	}
	return f, nil
}
