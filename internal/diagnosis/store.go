package diagnosis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/medsage/medsage-server/internal/types"
)

// DB is the slice of the connection pool the store uses. Satisfied by
// *pgxpool.Pool.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store owns the diagnoses table. Records are created once per
// diagnosis attempt and updated only for status transitions.
type Store struct {
	db DB
}

func NewStore(db DB) *Store {
	return &Store{db: db}
}

const recordColumns = `diagnosis_id, patient_id, symptoms, age, weight, height,
	diagnosis_text, image_analysis_result, image_path, confidence_score,
	status, created_at, updated_at`

// Create assigns a fresh identifier, inserts the record, then re-reads
// it by identifier to confirm durability. The identifier is only exposed
// to the caller once the verification read succeeds.
func (s *Store) Create(ctx context.Context, rec *types.DiagnosisRecord) (string, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	symptomsJSON, err := json.Marshal(rec.Symptoms)
	if err != nil {
		return "", fmt.Errorf("marshal symptoms: %w", err)
	}

	status := rec.Status
	if status == "" {
		status = types.StatusDraft
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO diagnoses (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, id, rec.PatientID, symptomsJSON, rec.Age, rec.Weight, rec.Height,
		rec.DiagnosisText, rec.ImageAnalysis, rec.ImagePath, rec.ConfidenceScore,
		status, now, now)
	if err != nil {
		return "", fmt.Errorf("insert diagnosis: %w", err)
	}

	// Verification read: a create that cannot be read back is a failure.
	verify, err := s.GetByID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("verify diagnosis %s: %w", id, err)
	}
	if verify == nil {
		return "", fmt.Errorf("diagnosis %s not found after insert", id)
	}

	return id, nil
}

var updatableColumns = map[string]bool{
	"patient_id":            true,
	"diagnosis_text":        true,
	"image_analysis_result": true,
	"image_path":            true,
	"confidence_score":      true,
	"status":                true,
}

// Update merges the given fields into the record and bumps updated_at.
// It reports updated=false without error when the identifier does not
// exist, so repeated status transitions are harmless.
func (s *Store) Update(ctx context.Context, id string, fields map[string]any) (bool, error) {
	if len(fields) == 0 {
		return false, nil
	}

	set := make([]string, 0, len(fields)+1)
	args := make([]any, 0, len(fields)+2)
	for col, val := range fields {
		if !updatableColumns[col] {
			return false, fmt.Errorf("column %q is not updatable", col)
		}
		args = append(args, val)
		set = append(set, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	args = append(args, time.Now().UTC())
	set = append(set, fmt.Sprintf("updated_at = $%d", len(args)))
	args = append(args, id)

	tag, err := s.db.Exec(ctx,
		fmt.Sprintf("UPDATE diagnoses SET %s WHERE diagnosis_id = $%d", strings.Join(set, ", "), len(args)),
		args...)
	if err != nil {
		return false, fmt.Errorf("update diagnosis %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetByID returns the record, or nil when the identifier is unknown.
func (s *Store) GetByID(ctx context.Context, id string) (*types.DiagnosisRecord, error) {
	row := s.db.QueryRow(ctx, `SELECT `+recordColumns+` FROM diagnoses WHERE diagnosis_id = $1`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query diagnosis %s: %w", id, err)
	}
	return rec, nil
}

// ListByPatient returns the patient's diagnoses, newest first.
func (s *Store) ListByPatient(ctx context.Context, patientID string) ([]types.DiagnosisRecord, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+recordColumns+` FROM diagnoses
		WHERE patient_id = $1
		ORDER BY created_at DESC
	`, patientID)
	if err != nil {
		return nil, fmt.Errorf("query patient diagnoses: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

// ListRecent returns the most recent diagnoses across all patients.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]types.DiagnosisRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+recordColumns+` FROM diagnoses
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent diagnoses: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

// Stats aggregates the record count and mean confidence score.
func (s *Store) Stats(ctx context.Context) (*types.DiagnosisStats, error) {
	var stats types.DiagnosisStats
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(AVG(confidence_score), 0) FROM diagnoses
	`).Scan(&stats.TotalDiagnoses, &stats.AvgConfidence)
	if err != nil {
		return nil, fmt.Errorf("query diagnosis stats: %w", err)
	}
	return &stats, nil
}

func scanRecord(row pgx.Row) (*types.DiagnosisRecord, error) {
	var rec types.DiagnosisRecord
	var symptomsJSON []byte

	err := row.Scan(
		&rec.DiagnosisID,
		&rec.PatientID,
		&symptomsJSON,
		&rec.Age,
		&rec.Weight,
		&rec.Height,
		&rec.DiagnosisText,
		&rec.ImageAnalysis,
		&rec.ImagePath,
		&rec.ConfidenceScore,
		&rec.Status,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(symptomsJSON) > 0 {
		if err := json.Unmarshal(symptomsJSON, &rec.Symptoms); err != nil {
			return nil, fmt.Errorf("unmarshal symptoms: %w", err)
		}
	}
	return &rec, nil
}

func collectRecords(rows pgx.Rows) ([]types.DiagnosisRecord, error) {
	var records []types.DiagnosisRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}
