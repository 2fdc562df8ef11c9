// Package records maps assessment grade records onto blob store items:
// normalization, validation, deterministic naming and versioning, plus
// export/import and integrity scanning.
package records

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	ErrInvalidRecord = errors.New("invalid record")
	ErrNotFound      = errors.New("record not found")
	ErrEncrypted     = errors.New("record is encrypted, passphrase required")
	ErrCorrupt       = errors.New("stored record is corrupt")
	ErrNameTaken     = errors.New("record name already in use")
)

// Result is one student's scores within a record.
type Result struct {
	StudentID   string  `json:"student_id" validate:"required"`
	StudentName string  `json:"student_name,omitempty"`
	CAT1        float64 `json:"cat1" validate:"gte=0,lte=30"`
	CAT2        float64 `json:"cat2" validate:"gte=0,lte=30"`
	Assignment  float64 `json:"assignment" validate:"gte=0,lte=20"`
	Exam        float64 `json:"exam" validate:"gte=0,lte=100"`
}

type Record struct {
	ID             string            `json:"id,omitempty"`
	Subject        string            `json:"subject" validate:"required"`
	AssessmentType string            `json:"assessmentType" validate:"required"`
	Results        []Result          `json:"results" validate:"required,min=1,dive"`
	Timestamp      int64             `json:"timestamp" validate:"gt=0"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	Version        int64             `json:"version,omitempty" validate:"gte=0"`
}

// scoreRange is the inclusive range each sub-score is clamped into.
type scoreRange struct{ min, max float64 }

var (
	rangeCAT1       = scoreRange{0, 30}
	rangeCAT2       = scoreRange{0, 30}
	rangeAssignment = scoreRange{0, 20}
	rangeExam       = scoreRange{0, 100}
)

func (r scoreRange) clamp(v float64) float64 {
	if math.IsNaN(v) {
		return r.min
	}
	return math.Min(r.max, math.Max(r.min, v))
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks a normalized record.
func Validate(r Record) error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	for i, res := range r.Results {
		for _, v := range []float64{res.CAT1, res.CAT2, res.Assignment, res.Exam} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: results[%d] has a non-finite score", ErrInvalidRecord, i)
			}
		}
	}
	return nil
}

// Name is the deterministic blob name of a record. Records with the same
// subject, assessment type and timestamp share a name.
func Name(r Record) string {
	return fmt.Sprintf("record:%s:%s:%d", slug(r.Subject), slug(r.AssessmentType), r.Timestamp)
}

func Tags(r Record) []string {
	return []string{
		"record",
		"subject:" + slug(r.Subject),
		"type:" + slug(r.AssessmentType),
	}
}

func slug(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "-")
}
