package stats

import (
	"fmt"
	"io"

	"github.com/verte-zerg/tuimul/internal/model"
)

// RenderReport prints the aggregate summary, a success-rate trend line
// sized to totalWidth, and one table row per session with its delta
// against the preceding session.
func RenderReport(w io.Writer, report Report, totalWidth int) error {
	if len(report.Summaries) == 0 {
		_, err := fmt.Fprintln(w, "No sessions recorded yet.")
		return err
	}

	if _, err := fmt.Fprintln(w, "Summary"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Sessions: %d\n", len(report.Summaries)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Exercises: %d\n", report.TotalExercises); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Avg Success: %.1f%%\n", report.AvgSuccessRate); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Best Success: %.1f%%\n", report.BestSuccessRate); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Avg Time: %.2fs\n", report.AvgTimeSec); err != nil {
		return err
	}
	if trend := trendLine(report.Summaries, totalWidth); trend != "" {
		if _, err := fmt.Fprintf(w, "Trend: %s\n", trend); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w, ""); err != nil {
		return err
	}

	headers := []string{"Date", "Rounds", "Exercises", "Correct", "Success", "Avg Time", "Δ Success"}
	rows := make([][]string, 0, len(report.Summaries))
	for i, s := range report.Summaries {
		delta := "-"
		if i > 0 {
			delta = fmt.Sprintf("%+.1f%%", s.SuccessRate-report.Summaries[i-1].SuccessRate)
		}
		rows = append(rows, []string{
			s.StartTime.Format("2006-01-02 15:04"),
			fmt.Sprintf("%d", s.TotalRounds),
			fmt.Sprintf("%d", s.TotalExercises),
			fmt.Sprintf("%d", s.CorrectExercises),
			fmt.Sprintf("%.1f%%", s.SuccessRate),
			fmt.Sprintf("%.2fs", s.AverageTimeSec),
			delta,
		})
	}
	rightAlign := map[int]bool{1: true, 2: true, 3: true, 4: true, 5: true, 6: true}
	for _, line := range formatTable(headers, rows, rightAlign) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// trendLine renders the success-rate sparkline, keeping only the most
// recent sessions when the terminal is too narrow.
func trendLine(summaries []model.SessionSummary, totalWidth int) string {
	if len(summaries) < 2 {
		return ""
	}
	rates := make([]float64, len(summaries))
	for i, s := range summaries {
		rates[i] = s.SuccessRate
	}
	if budget := totalWidth - len("Trend: "); budget > 0 && len(rates) > budget {
		rates = rates[len(rates)-budget:]
	}
	return Sparkline(rates)
}
