// Package compare classifies a finished session against stored history
// and previous session summaries.
package compare

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/verte-zerg/tuimul/internal/model"
)

// Status classifies one exercise's final attempt against prior sessions.
type Status string

const (
	StatusNewRecord    Status = "new_record"
	StatusImproved     Status = "improved"
	StatusMastered     Status = "mastered"
	StatusSame         Status = "same"
	StatusDeteriorated Status = "deteriorated"
	StatusNew          Status = "new"
)

// Margins guarding classification against timer jitter. The values are
// part of the classification contract and must not change.
const (
	bestTimeMarginSec = 0.1
	jitterMarginSec   = 0.5
)

// HistorySource provides read access to the durable per-exercise log.
type HistorySource interface {
	ExerciseHistory(ctx context.Context, exerciseID, excludeSessionID string) ([]model.HistoryEntry, error)
}

// SummarySource provides read access to stored session summaries.
type SummarySource interface {
	PreviousSummary(ctx context.Context, excludeSessionID string) (*model.SessionSummary, error)
}

// ExerciseImprovement describes one exercise's trend versus history.
type ExerciseImprovement struct {
	ExerciseID      string
	A               int
	B               int
	CurrentCorrect  bool
	CurrentTimeSec  float64
	PreviousCorrect *bool    // nil when no prior attempt exists
	PreviousTimeSec *float64 // nil when no prior attempt exists
	BestTimeSec     *float64 // nil when no prior correct attempt exists
	Status          Status
}

// Improvement holds session-level deltas versus the previous session.
// SuccessRate: positive is better. AverageTimeSec and TotalRounds:
// negative is better.
type Improvement struct {
	SuccessRate    float64
	AverageTimeSec float64
	TotalRounds    int
}

// Stats counts exercises per status. Improved and Mastered are tracked
// separately; presentation may add them together.
type Stats struct {
	NewRecords   int
	Improved     int
	Mastered     int
	Same         int
	Deteriorated int
	New          int
}

// Comparison is the full result of comparing a finished session.
type Comparison struct {
	CurrentSession  model.SessionSummary
	PreviousSession *model.SessionSummary
	Improvement     Improvement
	Exercises       []ExerciseImprovement
	Stats           Stats
}

// Summarize aggregates a finished session's rounds into its summary row.
// Every attempt counts, including retries of the same exercise.
func Summarize(sessionID string, rounds []model.Round, start, end time.Time) model.SessionSummary {
	var totalExercises, correctExercises int
	var totalTime float64
	for _, round := range rounds {
		for _, att := range round.Attempts {
			totalExercises++
			if att.Correct {
				correctExercises++
			}
			totalTime += att.TimeTakenSec
		}
	}

	summary := model.SessionSummary{
		SessionID:        sessionID,
		StartTime:        start,
		EndTime:          end,
		TotalExercises:   totalExercises,
		CorrectExercises: correctExercises,
		TotalRounds:      len(rounds),
	}
	if totalExercises > 0 {
		summary.AverageTimeSec = totalTime / float64(totalExercises)
		summary.SuccessRate = float64(correctExercises) / float64(totalExercises) * 100
	}
	return summary
}

// Compare builds the comparison for a finished session. It is read-only
// over its sources, and absence of history or a previous summary is a
// valid first-session input rather than an error.
func Compare(ctx context.Context, sessionID string, rounds []model.Round, start, end time.Time, history HistorySource, summaries SummarySource) (*Comparison, error) {
	previous, err := summaries.PreviousSummary(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load previous summary: %w", err)
	}

	current := Summarize(sessionID, rounds, start, end)

	// Final attempt per exercise: last across rounds wins, first-seen
	// order is preserved for stable output.
	finals := make([]model.Attempt, 0)
	finalIndex := make(map[string]int)
	for _, round := range rounds {
		for _, att := range round.Attempts {
			if i, ok := finalIndex[att.ExerciseID]; ok {
				finals[i] = att
				continue
			}
			finalIndex[att.ExerciseID] = len(finals)
			finals = append(finals, att)
		}
	}

	comparison := &Comparison{
		CurrentSession:  current,
		PreviousSession: previous,
		Exercises:       make([]ExerciseImprovement, 0, len(finals)),
	}

	for _, att := range finals {
		entries, err := history.ExerciseHistory(ctx, att.ExerciseID, sessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to load history for %s: %w", att.ExerciseID, err)
		}

		imp := ExerciseImprovement{
			ExerciseID:     att.ExerciseID,
			A:              att.A,
			B:              att.B,
			CurrentCorrect: att.Correct,
			CurrentTimeSec: att.TimeTakenSec,
		}
		if last := lastEntry(entries); last != nil {
			correct := last.Correct
			timeSec := last.TimeTakenSec
			imp.PreviousCorrect = &correct
			imp.PreviousTimeSec = &timeSec
		}
		imp.BestTimeSec = bestTime(entries)
		imp.Status = classify(att, imp.PreviousCorrect, imp.PreviousTimeSec, imp.BestTimeSec)

		comparison.Exercises = append(comparison.Exercises, imp)
		comparison.Stats.count(imp.Status)
	}

	sort.SliceStable(comparison.Exercises, func(i, j int) bool {
		return statusPriority(comparison.Exercises[i].Status) < statusPriority(comparison.Exercises[j].Status)
	})

	if previous != nil {
		comparison.Improvement = Improvement{
			SuccessRate:    current.SuccessRate - previous.SuccessRate,
			AverageTimeSec: current.AverageTimeSec - previous.AverageTimeSec,
			TotalRounds:    current.TotalRounds - previous.TotalRounds,
		}
	}
	return comparison, nil
}

func classify(att model.Attempt, prevCorrect *bool, prevTime, best *float64) Status {
	switch {
	case prevCorrect == nil:
		if att.Correct {
			return StatusMastered
		}
		return StatusNew
	case att.Correct && !*prevCorrect:
		return StatusImproved
	case !att.Correct && *prevCorrect:
		return StatusDeteriorated
	case att.Correct && *prevCorrect:
		if best != nil && att.TimeTakenSec < *best-bestTimeMarginSec {
			return StatusNewRecord
		}
		if att.TimeTakenSec < *prevTime-jitterMarginSec {
			return StatusImproved
		}
		if att.TimeTakenSec > *prevTime+jitterMarginSec {
			return StatusDeteriorated
		}
		return StatusSame
	default:
		// Both incorrect.
		return StatusSame
	}
}

func (s *Stats) count(status Status) {
	switch status {
	case StatusNewRecord:
		s.NewRecords++
	case StatusImproved:
		s.Improved++
	case StatusMastered:
		s.Mastered++
	case StatusSame:
		s.Same++
	case StatusDeteriorated:
		s.Deteriorated++
	case StatusNew:
		s.New++
	}
}

func statusPriority(status Status) int {
	switch status {
	case StatusNewRecord:
		return 0
	case StatusImproved:
		return 1
	case StatusMastered:
		return 2
	case StatusSame:
		return 3
	case StatusDeteriorated:
		return 4
	default:
		return 5
	}
}

func lastEntry(entries []model.HistoryEntry) *model.HistoryEntry {
	if len(entries) == 0 {
		return nil
	}
	return &entries[len(entries)-1]
}

func bestTime(entries []model.HistoryEntry) *float64 {
	var best *float64
	for _, e := range entries {
		if !e.Correct {
			continue
		}
		t := e.TimeTakenSec
		if best == nil || t < *best {
			best = &t
		}
	}
	return best
}
