package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hackgods/dental-clinic-api/internal/config"
	"github.com/hackgods/dental-clinic-api/internal/db"
	"github.com/hackgods/dental-clinic-api/internal/logger"
)

const (
	clinicCount       = 3
	doctorsPerClinic  = 6
	patientsPerClinic = 1500
	suppliesPerClinic = 25
	patientBatchSize  = 500
)

var specialties = []string{
	"General Dentistry",
	"Orthodontics",
	"Endodontics",
	"Periodontics",
	"Prosthodontics",
	"Oral Surgery",
	"Pediatric Dentistry",
}

var supplyNames = []string{
	"Nitrile gloves", "Face masks", "Lidocaine cartridges", "Composite resin", "Bonding agent",
	"Alginate", "Gutta-percha points", "Cotton rolls", "Saliva ejectors", "Suture kit",
	"Fluoride varnish", "Prophy paste", "Impression trays", "Endo files", "Articaine cartridges",
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	zlog, err := logger.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	if err := run(cfg, zlog); err != nil {
		zlog.Error("seed failed", zap.Error(err))
		_ = zlog.Sync()
		os.Exit(1)
	}
	zlog.Info("seed complete")
}

func run(cfg config.Config, zlog *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	cancel()
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	faker := gofakeit.New(uint64(time.Now().UnixNano()))
	s := &seeder{pool: pool, faker: faker, log: zlog}

	ctx = context.Background()
	for i := 0; i < clinicCount; i++ {
		clinicID, err := s.seedClinic(ctx)
		if err != nil {
			return fmt.Errorf("seed clinic: %w", err)
		}
		if err := s.seedDoctors(ctx, clinicID, doctorsPerClinic); err != nil {
			return fmt.Errorf("seed doctors: %w", err)
		}
		if err := s.seedPatients(ctx, clinicID, patientsPerClinic); err != nil {
			return fmt.Errorf("seed patients: %w", err)
		}
		if err := s.seedSupplies(ctx, clinicID, suppliesPerClinic); err != nil {
			return fmt.Errorf("seed supplies: %w", err)
		}
	}
	return nil
}

type seeder struct {
	pool  *pgxpool.Pool
	faker *gofakeit.Faker
	log   *zap.Logger
}

func (s *seeder) seedClinic(ctx context.Context) (uuid.UUID, error) {
	id := uuid.New()
	name := s.faker.LastName() + " Dental Care"

	_, err := s.pool.Exec(ctx, `
		INSERT INTO clinics (id, name, created_at, updated_at)
		VALUES ($1, $2, now(), now())
	`, id, name)
	if err != nil {
		return uuid.Nil, err
	}

	s.log.Info("clinic seeded", zap.String("clinic_id", id.String()), zap.String("name", name))
	return id, nil
}

func (s *seeder) seedDoctors(ctx context.Context, clinicID uuid.UUID, count int) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for i := 0; i < count; i++ {
			spec := specialties[s.faker.Number(0, len(specialties)-1)]
			_, err := tx.Exec(ctx, `
				INSERT INTO doctors (id, clinic_id, name, specialty, created_at, updated_at)
				VALUES ($1, $2, $3, $4, now(), now())
			`, uuid.New(), clinicID, "Dr. "+s.faker.Name(), spec)
			if err != nil {
				return err
			}
		}
		s.log.Info("doctors seeded", zap.String("clinic_id", clinicID.String()), zap.Int("count", count))
		return nil
	})
}

func (s *seeder) seedPatients(ctx context.Context, clinicID uuid.UUID, count int) error {
	for offset := 0; offset < count; offset += patientBatchSize {
		end := offset + patientBatchSize
		if end > count {
			end = count
		}

		err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			for i := offset; i < end; i++ {
				dob := s.faker.DateRange(time.Now().AddDate(-90, 0, 0), time.Now().AddDate(-2, 0, 0))
				_, err := tx.Exec(ctx, `
					INSERT INTO patients (id, clinic_id, name, email, phone, date_of_birth, created_at, updated_at)
					VALUES ($1, $2, $3, $4, $5, $6, now(), now())
				`, uuid.New(), clinicID, s.faker.Name(), s.faker.Email(), s.faker.Phone(), dob)
				if err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}

		s.log.Info("patients seeded", zap.Int("done", end), zap.Int("total", count))
	}
	return nil
}

func (s *seeder) seedSupplies(ctx context.Context, clinicID uuid.UUID, count int) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for i := 0; i < count; i++ {
			var expiry *time.Time
			if s.faker.Bool() {
				t := s.faker.DateRange(time.Now(), time.Now().AddDate(1, 0, 0))
				expiry = &t
			}
			_, err := tx.Exec(ctx, `
				INSERT INTO supplies (id, clinic_id, name, category, quantity, min_quantity, unit, expiry_date, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
			`,
				uuid.New(), clinicID,
				supplyNames[s.faker.Number(0, len(supplyNames)-1)],
				s.faker.RandomString([]string{"consumable", "anaesthetic", "restorative", "instrument"}),
				s.faker.Number(0, 200),
				s.faker.Number(5, 30),
				s.faker.RandomString([]string{"box", "pack", "unit", "cartridge"}),
				expiry,
			)
			if err != nil {
				return err
			}
		}
		s.log.Info("supplies seeded", zap.String("clinic_id", clinicID.String()), zap.Int("count", count))
		return nil
	})
}
