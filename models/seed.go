package models

// AuctionSeed is an in-flight auction record: built by the parser from one
// vendor JSON record, mutated by the image pipeline, consumed exactly once by
// the catalog upsert and then discarded.
type AuctionSeed struct {
	DisplayID string `json:"display_id"`

	Make    string   `json:"make"`
	Model   string   `json:"model"`
	Year    int      `json:"year"`
	Mileage int      `json:"mileage"`
	Price   *float64 `json:"price"`

	Location    string `json:"location"`
	Description string `json:"description"`

	// Details preserves unmapped vendor attributes verbatim, in input order,
	// for display purposes.
	Details []Detail `json:"details"`

	// AuctionStart/AuctionEnd hold normalized wall-clock strings
	// ("2006-01-02 15:04") or, when the vendor sent an explicit offset, the
	// original string untouched. Conversion to an absolute instant happens
	// at persist time against the configured import timezone.
	AuctionStart string `json:"auction_start"`
	AuctionEnd   string `json:"auction_end"`

	Provider string `json:"provider"`

	VIN                   string `json:"vin"`
	RegistrationNumber    string `json:"registration_number"`
	FirstRegistrationDate string `json:"first_registration_date"`
	FuelType              string `json:"fuel_type"`
	Transmission          string `json:"transmission"`
	BodyType              string `json:"body_type"`
	DriveType             string `json:"drive_type"`
	Power                 string `json:"power"`
	Seats                 *int   `json:"seats"`
	Doors                 *int   `json:"doors"`

	Images []SeedImage `json:"images"`

	// Skip is set by the image pipeline when a provider rule excludes the
	// whole record (e.g. mandatory photos failed to download).
	Skip       bool   `json:"-"`
	SkipReason string `json:"-"`
}

// Detail is one free-form vendor attribute as a humanized label/value pair.
type Detail struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// SeedImage references one auction photo. Order is positional; the image at
// order 0 is the cover image.
type SeedImage struct {
	URL   string `json:"url"`
	Order int    `json:"order"`
}

// SkippedRecord reports a record intentionally excluded from a parse result.
type SkippedRecord struct {
	DisplayID string `json:"display_id,omitempty"`
	Reason    string `json:"reason"`
}
