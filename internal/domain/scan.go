package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Symptom labels produced by the analysis engine.
type Symptom string

const (
	SymptomNormal    Symptom = "Normal"
	SymptomFever     Symptom = "Fever"
	SymptomCough     Symptom = "Cough"
	SymptomRunnyNose Symptom = "Runny Nose"
	SymptomFatigue   Symptom = "Fatigue"
	SymptomHeadache  Symptom = "Headache"
)

// HealthStatus is the verdict of a scan.
type HealthStatus string

const (
	HealthStatusHealthy HealthStatus = "healthy"
	HealthStatusWarning HealthStatus = "warning"
)

// Label is the text shown next to the status indicator.
func (s HealthStatus) Label() string {
	if s == HealthStatusHealthy {
		return "Healthy"
	}
	return "Needs Attention"
}

// PlaceholderStudentID is reported when nobody is signed in.
const PlaceholderStudentID = "UE-12345678"

// FeverThreshold is the temperature above which Fever is reported.
const FeverThreshold = 37.5

// ScanResult is the outcome of one health analysis.
type ScanResult struct {
	StudentID          string       `json:"student_id"`
	TemperatureCelsius float64      `json:"temperature_celsius"`
	Symptoms           []Symptom    `json:"symptoms"`
	Status             HealthStatus `json:"status"`
	Timestamp          time.Time    `json:"timestamp"`
}

// HasSymptom reports whether s was detected.
func (r ScanResult) HasSymptom(s Symptom) bool {
	return slices.Contains(r.Symptoms, s)
}

// TemperatureLabel renders the temperature as displayed, e.g. "37.2°C".
func (r ScanResult) TemperatureLabel() string {
	return fmt.Sprintf("%.1f°C", r.TemperatureCelsius)
}

// SymptomsLabel renders the symptoms as a comma separated list.
func (r ScanResult) SymptomsLabel() string {
	parts := make([]string, len(r.Symptoms))
	for i, s := range r.Symptoms {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}

// HealthRecord is a row of the health_records table.
type HealthRecord struct {
	UserID      string       `json:"user_id"`
	StudentID   string       `json:"student_id"`
	Temperature string       `json:"temperature"`
	Symptoms    string       `json:"symptoms"`
	Status      HealthStatus `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
}

// HealthRecordFor derives the persisted row for a result.
func HealthRecordFor(userID string, r ScanResult) HealthRecord {
	return HealthRecord{
		UserID:      userID,
		StudentID:   r.StudentID,
		Temperature: r.TemperatureLabel(),
		Symptoms:    r.SymptomsLabel(),
		Status:      r.Status,
		CreatedAt:   r.Timestamp,
	}
}
