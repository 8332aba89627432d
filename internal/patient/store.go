// Package patient persists registered patients. Diagnoses may reference
// a patient by identifier but the reference is not enforced, so patient
// registration stays an optional administrative step.
package patient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medsage/medsage-server/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Create registers the patient under a fresh identifier.
func (s *Store) Create(ctx context.Context, p *types.Patient) (string, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.Exec(ctx, `
		INSERT INTO patients (patient_id, name, email, phone, date_of_birth, blood_group, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, id, p.Name, p.Email, p.Phone, p.DateOfBirth, p.BloodGroup, now, now)
	if err != nil {
		return "", fmt.Errorf("insert patient: %w", err)
	}
	return id, nil
}

// GetByID returns the patient, or nil when unknown.
func (s *Store) GetByID(ctx context.Context, id string) (*types.Patient, error) {
	var p types.Patient
	err := s.db.QueryRow(ctx, `
		SELECT patient_id, name, email, phone, date_of_birth, blood_group, created_at, updated_at
		FROM patients WHERE patient_id = $1
	`, id).Scan(&p.PatientID, &p.Name, &p.Email, &p.Phone, &p.DateOfBirth, &p.BloodGroup, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query patient %s: %w", id, err)
	}
	return &p, nil
}
