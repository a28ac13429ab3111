package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"autoszczech/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

// =============================================================================
// Cars
// =============================================================================

func (s *PostgresStore) CountCars(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM cars`).Scan(&count)
	return count, err
}

func (s *PostgresStore) GetCarByDisplayID(ctx context.Context, displayID string) (*models.Car, error) {
	query := `
		SELECT id, display_id, make, model, year, mileage, price, location, description,
			details, auction_start, auction_end, provider, vin, registration_number,
			first_registration_date, fuel_type, transmission, body_type, drive_type,
			power, seats, doors, source, imported_at, created_at, updated_at
		FROM cars WHERE LOWER(display_id) = LOWER($1)`

	var c models.Car
	err := s.pool.QueryRow(ctx, query, displayID).Scan(
		&c.ID, &c.DisplayID, &c.Make, &c.Model, &c.Year, &c.Mileage, &c.Price, &c.Location, &c.Description,
		&c.Details, &c.AuctionStart, &c.AuctionEnd, &c.Provider, &c.VIN, &c.RegistrationNumber,
		&c.FirstRegistrationDate, &c.FuelType, &c.Transmission, &c.BodyType, &c.DriveType,
		&c.Power, &c.Seats, &c.Doors, &c.Source, &c.ImportedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStore) GetCarByID(ctx context.Context, id int64) (*models.Car, error) {
	query := `
		SELECT id, display_id, make, model, year, mileage, price, location, description,
			details, auction_start, auction_end, provider, vin, registration_number,
			first_registration_date, fuel_type, transmission, body_type, drive_type,
			power, seats, doors, source, imported_at, created_at, updated_at
		FROM cars WHERE id = $1`

	var c models.Car
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.DisplayID, &c.Make, &c.Model, &c.Year, &c.Mileage, &c.Price, &c.Location, &c.Description,
		&c.Details, &c.AuctionStart, &c.AuctionEnd, &c.Provider, &c.VIN, &c.RegistrationNumber,
		&c.FirstRegistrationDate, &c.FuelType, &c.Transmission, &c.BodyType, &c.DriveType,
		&c.Power, &c.Seats, &c.Doors, &c.Source, &c.ImportedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// UpsertCar creates or updates one catalog entry by case-insensitive display
// id and replaces its image set, all inside one transaction: readers never
// observe a car with a partially replaced image set.
func (s *PostgresStore) UpsertCar(ctx context.Context, car *models.Car, images []models.CarImage) (bool, error) {
	created := false

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var existingID int64
		err := tx.QueryRow(ctx,
			`SELECT id FROM cars WHERE LOWER(display_id) = LOWER($1)`,
			car.DisplayID,
		).Scan(&existingID)

		switch {
		case err == pgx.ErrNoRows:
			insert := `
				INSERT INTO cars (
					display_id, make, model, year, mileage, price, location, description,
					details, auction_start, auction_end, provider, vin, registration_number,
					first_registration_date, fuel_type, transmission, body_type, drive_type,
					power, seats, doors, source, imported_at, created_at, updated_at
				) VALUES (
					$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
					$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, NOW(), NOW()
				)
				RETURNING id`
			if err := tx.QueryRow(ctx, insert,
				car.DisplayID, car.Make, car.Model, car.Year, car.Mileage, car.Price, car.Location, car.Description,
				car.Details, car.AuctionStart, car.AuctionEnd, car.Provider, car.VIN, car.RegistrationNumber,
				car.FirstRegistrationDate, car.FuelType, car.Transmission, car.BodyType, car.DriveType,
				car.Power, car.Seats, car.Doors, car.Source, car.ImportedAt,
			).Scan(&car.ID); err != nil {
				return fmt.Errorf("insert car: %w", err)
			}
			created = true
		case err != nil:
			return fmt.Errorf("lookup car: %w", err)
		default:
			car.ID = existingID
			update := `
				UPDATE cars SET
					make = $2, model = $3, year = $4, mileage = $5, price = $6,
					location = $7, description = $8, details = $9, auction_start = $10,
					auction_end = $11, provider = $12, vin = $13, registration_number = $14,
					first_registration_date = $15, fuel_type = $16, transmission = $17,
					body_type = $18, drive_type = $19, power = $20, seats = $21, doors = $22,
					source = $23, imported_at = $24, updated_at = NOW()
				WHERE id = $1`
			if _, err := tx.Exec(ctx, update,
				car.ID, car.Make, car.Model, car.Year, car.Mileage, car.Price,
				car.Location, car.Description, car.Details, car.AuctionStart,
				car.AuctionEnd, car.Provider, car.VIN, car.RegistrationNumber,
				car.FirstRegistrationDate, car.FuelType, car.Transmission,
				car.BodyType, car.DriveType, car.Power, car.Seats, car.Doors,
				car.Source, car.ImportedAt,
			); err != nil {
				return fmt.Errorf("update car: %w", err)
			}
		}

		// Image sets are replaced whole, never diffed.
		if _, err := tx.Exec(ctx, `DELETE FROM car_images WHERE car_id = $1`, car.ID); err != nil {
			return fmt.Errorf("delete images: %w", err)
		}
		for _, img := range images {
			if _, err := tx.Exec(ctx,
				`INSERT INTO car_images (car_id, url, position) VALUES ($1, $2, $3)`,
				car.ID, img.URL, img.Position,
			); err != nil {
				return fmt.Errorf("insert image: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return false, err
	}

	return created, nil
}

func (s *PostgresStore) GetCarImages(ctx context.Context, carID int64) ([]models.CarImage, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, car_id, url, position FROM car_images WHERE car_id = $1 ORDER BY position`,
		carID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var images []models.CarImage
	for rows.Next() {
		var img models.CarImage
		if err := rows.Scan(&img.ID, &img.CarID, &img.URL, &img.Position); err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, rows.Err()
}
