package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"autoszczech/models"
	"autoszczech/storage"
)

// CatalogService maps consumed auction seeds onto persisted catalog entries.
// Each upsert runs in one store transaction: the entry and its image set
// change together or not at all.
type CatalogService struct {
	store *storage.PostgresStore
	loc   *time.Location
}

// NewCatalogService builds the service with the configured import timezone
// (IANA name, e.g. "Europe/Warsaw") used to anchor vendor wall-clock dates.
func NewCatalogService(store *storage.PostgresStore, timezone string) (*CatalogService, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	return &CatalogService{store: store, loc: loc}, nil
}

func (s *CatalogService) CountCars(ctx context.Context) (int, error) {
	return s.store.CountCars(ctx)
}

// Upsert persists one seed with the default IMPORTED source.
func (s *CatalogService) Upsert(ctx context.Context, seed *models.AuctionSeed) (bool, error) {
	return s.UpsertAs(ctx, seed, models.SourceImported)
}

// UpsertAs persists one seed under an explicit source tag (seed/sample data
// uses SAMPLE). Returns whether a new catalog entry was created.
func (s *CatalogService) UpsertAs(ctx context.Context, seed *models.AuctionSeed, source models.CarSource) (bool, error) {
	if seed.DisplayID == "" {
		return false, fmt.Errorf("seed has no display id")
	}

	car, images, err := s.carFromSeed(seed, source)
	if err != nil {
		return false, err
	}

	created, err := s.store.UpsertCar(ctx, car, images)
	if err != nil {
		return false, fmt.Errorf("upsert %s: %w", seed.DisplayID, err)
	}
	return created, nil
}

func (s *CatalogService) carFromSeed(seed *models.AuctionSeed, source models.CarSource) (*models.Car, []models.CarImage, error) {
	details, err := json.Marshal(seed.Details)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal details: %w", err)
	}

	now := time.Now()
	car := &models.Car{
		DisplayID:             seed.DisplayID,
		Make:                  seed.Make,
		Model:                 seed.Model,
		Year:                  seed.Year,
		Mileage:               seed.Mileage,
		Price:                 seed.Price,
		Location:              seed.Location,
		Description:           seed.Description,
		Details:               details,
		AuctionStart:          ToInstant(seed.AuctionStart, s.loc),
		AuctionEnd:            ToInstant(seed.AuctionEnd, s.loc),
		Provider:              seed.Provider,
		VIN:                   seed.VIN,
		RegistrationNumber:    seed.RegistrationNumber,
		FirstRegistrationDate: seed.FirstRegistrationDate,
		FuelType:              seed.FuelType,
		Transmission:          seed.Transmission,
		BodyType:              seed.BodyType,
		DriveType:             seed.DriveType,
		Power:                 seed.Power,
		Seats:                 seed.Seats,
		Doors:                 seed.Doors,
		Source:                source,
		ImportedAt:            now,
	}

	images := make([]models.CarImage, 0, len(seed.Images))
	for _, img := range seed.Images {
		images = append(images, models.CarImage{URL: img.URL, Position: img.Order})
	}

	return car, images, nil
}
