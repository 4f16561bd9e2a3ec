// Package analysis turns a captured still into a vitals report.
package analysis

import (
	"context"

	"github.com/spec-kit/vitalwarrior/internal/domain"
)

// HealthAnalyzer produces a scan result for a captured frame. user is nil
// when nobody is signed in.
type HealthAnalyzer interface {
	Analyze(ctx context.Context, frame domain.ImageBuffer, user *domain.UserRecord) (domain.ScanResult, error)
}
