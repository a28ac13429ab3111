package models

import (
	"encoding/json"
	"time"
)

type CarSource string

const (
	SourceAPI      CarSource = "API"
	SourceImported CarSource = "IMPORTED"
	SourceSample   CarSource = "SAMPLE"
)

// Car is the persisted catalog entry. DisplayID is unique case-insensitively;
// at most one Car exists per display id and the import pipeline never deletes
// one.
type Car struct {
	ID        int64  `json:"id" db:"id"`
	DisplayID string `json:"display_id" db:"display_id"`

	Make    string   `json:"make" db:"make"`
	Model   string   `json:"model" db:"model"`
	Year    int      `json:"year" db:"year"`
	Mileage int      `json:"mileage" db:"mileage"`
	Price   *float64 `json:"price" db:"price"`

	Location    string `json:"location" db:"location"`
	Description string `json:"description" db:"description"`

	// Details is the ordered label/value attribute list, serialized as a JSON
	// array of {label, value} objects.
	Details json.RawMessage `json:"details" db:"details"`

	AuctionStart *time.Time `json:"auction_start" db:"auction_start"`
	AuctionEnd   *time.Time `json:"auction_end" db:"auction_end"`

	Provider string `json:"provider" db:"provider"`

	VIN                   string `json:"vin" db:"vin"`
	RegistrationNumber    string `json:"registration_number" db:"registration_number"`
	FirstRegistrationDate string `json:"first_registration_date" db:"first_registration_date"`
	FuelType              string `json:"fuel_type" db:"fuel_type"`
	Transmission          string `json:"transmission" db:"transmission"`
	BodyType              string `json:"body_type" db:"body_type"`
	DriveType             string `json:"drive_type" db:"drive_type"`
	Power                 string `json:"power" db:"power"`
	Seats                 *int   `json:"seats" db:"seats"`
	Doors                 *int   `json:"doors" db:"doors"`

	Source     CarSource `json:"source" db:"source"`
	ImportedAt time.Time `json:"imported_at" db:"imported_at"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// CarImage is one photo row owned by a Car. On update the full image set is
// replaced (delete-then-insert), never diffed.
type CarImage struct {
	ID       int64  `json:"id" db:"id"`
	CarID    int64  `json:"car_id" db:"car_id"`
	URL      string `json:"url" db:"url"`
	Position int    `json:"position" db:"position"`
}
