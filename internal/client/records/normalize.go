package records

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// NormalizeRecord trims identifiers, clamps every score into its range and
// drops rows without a student id. Out-of-range scores are not an error.
func NormalizeRecord(r Record) Record {
	out := Record{
		ID:             strings.TrimSpace(r.ID),
		Subject:        strings.TrimSpace(r.Subject),
		AssessmentType: strings.TrimSpace(r.AssessmentType),
		Timestamp:      r.Timestamp,
		Version:        r.Version,
		Results:        make([]Result, 0, len(r.Results)),
	}
	if len(r.Metadata) > 0 {
		out.Metadata = make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			out.Metadata[k] = v
		}
	}
	for _, res := range r.Results {
		id := strings.TrimSpace(res.StudentID)
		if id == "" {
			continue
		}
		out.Results = append(out.Results, Result{
			StudentID:   id,
			StudentName: strings.TrimSpace(res.StudentName),
			CAT1:        rangeCAT1.clamp(res.CAT1),
			CAT2:        rangeCAT2.clamp(res.CAT2),
			Assignment:  rangeAssignment.clamp(res.Assignment),
			Exam:        rangeExam.clamp(res.Exam),
		})
	}
	return out
}

// Normalize builds a record from loosely typed input such as decoded JSON
// or CLI flags, then applies NormalizeRecord. Unparseable numbers, and
// integers outside the int64 range, become 0.
func Normalize(in map[string]any) Record {
	r := Record{
		ID:             str(in["id"]),
		Subject:        str(in["subject"]),
		AssessmentType: str(first(in, "assessmentType", "assessment_type")),
		Timestamp:      whole(in["timestamp"]),
		Version:        whole(in["version"]),
	}

	if md, ok := in["metadata"].(map[string]any); ok {
		r.Metadata = make(map[string]string, len(md))
		for k, v := range md {
			r.Metadata[k] = str(v)
		}
	}

	if rows, ok := in["results"].([]any); ok {
		for _, row := range rows {
			m, ok := row.(map[string]any)
			if !ok {
				continue
			}
			r.Results = append(r.Results, Result{
				StudentID:   str(first(m, "student_id", "studentId")),
				StudentName: str(first(m, "student_name", "studentName", "name")),
				CAT1:        num(m["cat1"]),
				CAT2:        num(m["cat2"]),
				Assignment:  num(m["assignment"]),
				Exam:        num(m["exam"]),
			})
		}
	}
	return NormalizeRecord(r)
}

// ToMap is the inverse of Normalize, used to merge patches over a record.
func ToMap(r Record) map[string]any {
	b, _ := json.Marshal(r)
	var m map[string]any
	_ = json.Unmarshal(b, &m)
	return m
}

func first(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func str(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func num(v any) float64 {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		f, _ = t.Float64()
	case string:
		f, _ = strconv.ParseFloat(strings.TrimSpace(t), 64)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func whole(v any) int64 {
	f := num(v)
	if f >= 1<<63 || f < -(1<<63) {
		return 0
	}
	return int64(f)
}
