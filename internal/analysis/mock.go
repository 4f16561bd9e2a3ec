package analysis

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/spec-kit/vitalwarrior/internal/domain"
)

// Temperature range drawn by the mock engine.
const (
	MinTemperature = 36.0
	MaxTemperature = 38.5
)

// DefaultDelay stands in for the latency of a real inference call.
const DefaultDelay = 2 * time.Second

// MockAnalyzer draws a random vitals report. The frame is not inspected.
type MockAnalyzer struct {
	delay time.Duration
	now   func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// MockOption customizes a MockAnalyzer.
type MockOption func(*MockAnalyzer)

// WithDelay overrides the artificial latency.
func WithDelay(d time.Duration) MockOption {
	return func(m *MockAnalyzer) { m.delay = d }
}

// WithSeed makes the draws reproducible.
func WithSeed(seed uint64) MockOption {
	return func(m *MockAnalyzer) { m.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) MockOption {
	return func(m *MockAnalyzer) { m.now = now }
}

// NewMockAnalyzer builds the analyzer with a 2s delay and a random seed.
func NewMockAnalyzer(opts ...MockOption) *MockAnalyzer {
	m := &MockAnalyzer{
		delay: DefaultDelay,
		now:   time.Now,
		rng:   rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Analyze waits the artificial delay and then evaluates. It only fails when
// ctx ends first.
func (m *MockAnalyzer) Analyze(ctx context.Context, _ domain.ImageBuffer, user *domain.UserRecord) (domain.ScanResult, error) {
	if m.delay > 0 {
		timer := time.NewTimer(m.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return domain.ScanResult{}, ctx.Err()
		case <-timer.C:
		}
	}
	return m.Evaluate(user), nil
}

// Evaluate draws one report without delay.
//
// Above 37.5°C the report carries Fever, then Headache (p=0.5) and Fatigue
// (p=0.3) drawn independently. Otherwise Runny Nose (p=0.2) and Cough
// (p=0.1) are drawn independently. An empty list becomes [Normal].
func (m *MockAnalyzer) Evaluate(user *domain.UserRecord) domain.ScanResult {
	m.mu.Lock()
	raw := m.rng.Float64()*(MaxTemperature-MinTemperature) + MinTemperature
	temperature := math.Round(raw*10) / 10

	var symptoms []domain.Symptom
	if temperature > domain.FeverThreshold {
		symptoms = append(symptoms, domain.SymptomFever)
		if m.rng.Float64() > 0.5 {
			symptoms = append(symptoms, domain.SymptomHeadache)
		}
		if m.rng.Float64() > 0.7 {
			symptoms = append(symptoms, domain.SymptomFatigue)
		}
	} else {
		if m.rng.Float64() > 0.8 {
			symptoms = append(symptoms, domain.SymptomRunnyNose)
		}
		if m.rng.Float64() > 0.9 {
			symptoms = append(symptoms, domain.SymptomCough)
		}
	}
	m.mu.Unlock()

	if len(symptoms) == 0 {
		symptoms = []domain.Symptom{domain.SymptomNormal}
	}

	status := domain.HealthStatusHealthy
	if containsFever(symptoms) {
		status = domain.HealthStatusWarning
	}

	studentID := domain.PlaceholderStudentID
	if user != nil && user.StudentID != "" {
		studentID = user.StudentID
	}

	return domain.ScanResult{
		StudentID:          studentID,
		TemperatureCelsius: temperature,
		Symptoms:           symptoms,
		Status:             status,
		Timestamp:          m.now().UTC(),
	}
}

func containsFever(symptoms []domain.Symptom) bool {
	for _, s := range symptoms {
		if s == domain.SymptomFever {
			return true
		}
	}
	return false
}
