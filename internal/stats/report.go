// Package stats builds and renders practice history reports.
package stats

import (
	"context"
	"fmt"

	"github.com/verte-zerg/tuimul/internal/model"
)

// SummaryLister provides stored session summaries, oldest first.
type SummaryLister interface {
	ListSummaries(ctx context.Context) ([]model.SessionSummary, error)
}

// Report contains precomputed data for stats rendering.
type Report struct {
	Summaries []model.SessionSummary

	AvgSuccessRate  float64
	BestSuccessRate float64
	AvgTimeSec      float64
	TotalExercises  int
}

// BuildReport loads summaries and precomputes the aggregate line. A
// positive last keeps only the most recent sessions.
func BuildReport(ctx context.Context, st SummaryLister, last int) (Report, error) {
	summaries, err := st.ListSummaries(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("failed to load session summaries: %w", err)
	}
	if last > 0 && len(summaries) > last {
		summaries = summaries[len(summaries)-last:]
	}

	report := Report{Summaries: summaries}
	if len(summaries) == 0 {
		return report, nil
	}
	for _, s := range summaries {
		report.AvgSuccessRate += s.SuccessRate
		report.AvgTimeSec += s.AverageTimeSec
		report.TotalExercises += s.TotalExercises
		if s.SuccessRate > report.BestSuccessRate {
			report.BestSuccessRate = s.SuccessRate
		}
	}
	count := float64(len(summaries))
	report.AvgSuccessRate /= count
	report.AvgTimeSec /= count
	return report, nil
}
