package types

import "time"

// DiagnosisRequest is the validated form of one diagnosis submission.
// Instances are only produced by the validator; a populated value is
// guaranteed to be in-range.
type DiagnosisRequest struct {
	Age      int      `json:"age"`
	Weight   float64  `json:"weight"`
	Height   float64  `json:"height"`
	Symptoms []string `json:"symptoms"`

	// Set by the upload handler when an image accompanied the form.
	ImagePath string `json:"image_path,omitempty"`
}

// ImageLabel is the binary outcome of the blood-smear classifier.
type ImageLabel string

const (
	LabelParasitic    ImageLabel = "Parasitic"
	LabelNonParasitic ImageLabel = "Non-Parasitic"
)

// ImageAnalysis is a labeled, confidence-scored classifier result.
// Absence (a nil *ImageAnalysis) means no image was supplied or
// classification failed.
type ImageAnalysis struct {
	Label      ImageLabel `json:"label"`
	Confidence float64    `json:"confidence"` // [0,1], for the reported label
}

// RecordStatus is the lifecycle state of a persisted diagnosis.
type RecordStatus string

const (
	StatusDraft     RecordStatus = "draft"
	StatusCompleted RecordStatus = "completed"
)

// DiagnosisRecord is one persisted diagnosis attempt. DiagnosisID is
// assigned at creation and never changes.
type DiagnosisRecord struct {
	DiagnosisID     string       `json:"diagnosis_id"`
	PatientID       *string      `json:"patient_id"` // nil for anonymous diagnoses
	Symptoms        []string     `json:"symptoms"`
	Age             int          `json:"age"`
	Weight          float64      `json:"weight"`
	Height          float64      `json:"height"`
	DiagnosisText   string       `json:"diagnosis_text"`
	ImageAnalysis   *string      `json:"image_analysis_result"`
	ImagePath       *string      `json:"image_path"`
	ConfidenceScore *float64     `json:"confidence_score"`
	Status          RecordStatus `json:"status"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// Patient is a registered patient entity. Diagnoses may reference a
// patient but are not required to.
type Patient struct {
	PatientID   string    `json:"patient_id"`
	Name        string    `json:"name"`
	Email       string    `json:"email,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	DateOfBirth string    `json:"date_of_birth,omitempty"`
	BloodGroup  string    `json:"blood_group,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DiagnosisStats is the aggregate view over all diagnosis records.
type DiagnosisStats struct {
	TotalDiagnoses int64   `json:"total_diagnoses"`
	AvgConfidence  float64 `json:"avg_confidence"`
}
