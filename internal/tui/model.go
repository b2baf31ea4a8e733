// Package tui provides the Bubble Tea practice interface.
package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/tuimul/internal/compare"
	"github.com/verte-zerg/tuimul/internal/engine"
	"github.com/verte-zerg/tuimul/internal/model"
)

var (
	titleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	problemStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	hintStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	correctStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A"))
	wrongStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	urgentStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F")).Bold(true)
	footerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	overlayStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(1, 2)
	errTitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F")).Bold(true)
)

// timeoutMsg carries the exercise sequence number the countdown was
// started for, so expirations from an earlier exercise are ignored.
type timeoutMsg struct {
	seq int
}

type tickMsg time.Time

// Model implements the Bubble Tea practice UI over the engine.
type Model struct {
	eng       *engine.Engine
	countdown *engine.Countdown
	timeoutCh chan int

	input         textinput.Model
	canResume     bool
	confirmStop   bool
	exerciseSeq   int
	exerciseStart time.Time

	width  int
	height int
}

// NewModel constructs the practice TUI model. canResume enables the
// resume entry on the idle menu.
func NewModel(eng *engine.Engine, canResume bool) *Model {
	input := textinput.New()
	input.Placeholder = "?"
	input.CharLimit = 4
	input.Width = 6
	return &Model{
		eng:       eng,
		countdown: engine.NewCountdown(),
		timeoutCh: make(chan int, 1),
		input:     input,
		canResume: canResume,
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.waitTimeout()
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tickMsg:
		if m.eng.Phase() == engine.PhaseExercise {
			return m, m.tick()
		}
		return m, nil
	case timeoutMsg:
		return m.handleTimeout(msg)
	case tea.KeyMsg:
		return m.handleKey(msg)
	default:
		return m, nil
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		m.countdown.Cancel()
		return m, tea.Quit
	}

	if m.eng.Err() != nil {
		return m.handleErrorKey(msg)
	}
	if m.confirmStop {
		return m.handleConfirmKey(msg)
	}

	switch m.eng.Phase() {
	case engine.PhaseIdle:
		return m.handleIdleKey(msg)
	case engine.PhaseExercise:
		return m.handleExerciseKey(msg)
	case engine.PhaseSummary:
		return m.handleSummaryKey(msg)
	case engine.PhaseComplete:
		return m.handleCompleteKey(msg)
	}
	return m, nil
}

func (m *Model) handleIdleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "s":
		if err := m.eng.StartSession(context.Background(), nil); err != nil {
			return m, nil
		}
		return m, m.beginExercise()
	case "r":
		if !m.canResume {
			return m, nil
		}
		if err := m.eng.ResumeSession(context.Background()); err != nil {
			return m, nil
		}
		if m.eng.Phase() == engine.PhaseExercise {
			return m, m.beginExercise()
		}
		return m, nil
	case "q", "esc":
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) handleExerciseKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		// The clock stops while the dialog is open.
		m.countdown.Cancel()
		m.confirmStop = true
		return m, nil
	case tea.KeyEnter:
		return m.submit()
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleSummaryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", " ":
		if err := m.eng.ContinueToNextRound(context.Background()); err != nil {
			return m, nil
		}
		if m.eng.Phase() == engine.PhaseExercise {
			return m, m.beginExercise()
		}
		return m, nil
	case "esc":
		m.confirmStop = true
		return m, nil
	case "q":
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) handleCompleteKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		// Practice again.
		if err := m.eng.StartSession(context.Background(), nil); err != nil {
			return m, nil
		}
		return m, m.beginExercise()
	case "q", "esc":
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "enter":
		m.confirmStop = false
		m.countdown.Cancel()
		if err := m.eng.StopSession(context.Background()); err != nil {
			return m, nil
		}
		m.canResume = false
		return m, nil
	case "n", "esc":
		m.confirmStop = false
		if m.eng.Phase() == engine.PhaseExercise {
			// The paused exercise restarts with a fresh clock.
			return m, m.beginExercise()
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) handleErrorKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "r", "enter":
		if err := m.eng.Retry(); err != nil {
			return m, nil
		}
		if m.eng.Phase() == engine.PhaseExercise && m.eng.CurrentExercise() != nil {
			return m, m.beginExercise()
		}
		return m, nil
	case "q", "esc":
		m.countdown.Cancel()
		return m, tea.Quit
	}
	return m, nil
}

// submit parses the typed answer. Empty or non-numeric input is ignored
// rather than treated as an attempt.
func (m *Model) submit() (tea.Model, tea.Cmd) {
	raw := strings.TrimSpace(m.input.Value())
	if raw == "" {
		return m, nil
	}
	answer, err := strconv.Atoi(raw)
	if err != nil {
		return m, nil
	}

	elapsed := time.Since(m.exerciseStart).Seconds()
	m.countdown.Cancel()
	if err := m.eng.SubmitAnswer(context.Background(), answer, elapsed); err != nil {
		return m, nil
	}
	if m.eng.Phase() == engine.PhaseExercise {
		return m, m.beginExercise()
	}
	return m, nil
}

func (m *Model) handleTimeout(msg timeoutMsg) (tea.Model, tea.Cmd) {
	// A token minted for an earlier exercise, or one that raced a
	// cancel, must never count against the current exercise.
	if msg.seq != m.exerciseSeq || m.confirmStop || m.eng.Phase() != engine.PhaseExercise {
		return m, m.waitTimeout()
	}
	if err := m.eng.HandleTimeout(context.Background()); err != nil {
		return m, m.waitTimeout()
	}
	if m.eng.Phase() == engine.PhaseExercise {
		return m, tea.Batch(m.waitTimeout(), m.beginExercise())
	}
	return m, m.waitTimeout()
}

// beginExercise resets the input, restarts the clock, and schedules the
// timeout for the newly current exercise.
func (m *Model) beginExercise() tea.Cmd {
	m.input.Reset()
	m.input.Focus()
	m.exerciseSeq++
	seq := m.exerciseSeq
	m.exerciseStart = time.Now()
	limit := time.Duration(m.eng.Config().TimeLimitSec) * time.Second
	m.countdown.Start(limit, func() {
		select {
		case m.timeoutCh <- seq:
		default:
		}
	})
	return tea.Batch(textinput.Blink, m.tick())
}

func (m *Model) waitTimeout() tea.Cmd {
	return func() tea.Msg {
		return timeoutMsg{seq: <-m.timeoutCh}
	}
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// View implements tea.Model.
func (m *Model) View() string {
	var content string
	switch {
	case m.eng.Err() != nil:
		content = m.viewError()
	case m.confirmStop:
		content = m.viewConfirmStop()
	default:
		switch m.eng.Phase() {
		case engine.PhaseIdle:
			content = m.viewIdle()
		case engine.PhaseExercise:
			content = m.viewExercise()
		case engine.PhaseSummary:
			content = m.viewSummary()
		case engine.PhaseComplete:
			content = m.viewComplete()
		}
	}
	if m.width == 0 || m.height == 0 {
		return content
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m *Model) viewIdle() string {
	lines := []string{
		titleStyle.Render("tuimul"),
		"",
		"enter  start practice",
	}
	if m.canResume {
		lines = append(lines, "r      resume session")
	}
	lines = append(lines, "q      quit")
	return strings.Join(lines, "\n")
}

func (m *Model) viewExercise() string {
	ex := m.eng.CurrentExercise()
	if ex == nil {
		return ""
	}
	remaining := float64(m.eng.Config().TimeLimitSec) - time.Since(m.exerciseStart).Seconds()
	if remaining < 0 {
		remaining = 0
	}
	clock := fmt.Sprintf("%.1fs", remaining)
	clockLine := hintStyle.Render(clock)
	if remaining <= 3 {
		clockLine = urgentStyle.Render(clock)
	}

	round := m.eng.CurrentRound()
	header := footerStyle.Render(fmt.Sprintf("round %d · %d left", round.RoundNumber, m.eng.PendingCount()))
	problem := problemStyle.Render(fmt.Sprintf("%d × %d = ", ex.A, ex.B))

	lines := []string{
		header,
		"",
		problem + m.input.View(),
		"",
		clockLine,
	}
	if hint := previousAttemptHint(m.eng.PreviousAttempt(ex.ID)); hint != "" {
		lines = append(lines, "", hintStyle.Render(hint))
	}
	lines = append(lines, "", footerStyle.Render("enter submit · esc stop"))
	return strings.Join(lines, "\n")
}

func (m *Model) viewSummary() string {
	rounds := m.eng.CompletedRounds()
	if len(rounds) == 0 {
		return ""
	}
	round := rounds[len(rounds)-1]

	correct := 0
	for _, att := range round.Attempts {
		if att.Correct {
			correct++
		}
	}

	lines := []string{
		titleStyle.Render(fmt.Sprintf("Round %d", round.RoundNumber)),
		footerStyle.Render(fmt.Sprintf("%d/%d correct · %.1fs total", correct, len(round.Attempts), round.TotalTimeSec)),
		"",
	}
	lines = append(lines, attemptRows(round.Attempts)...)
	lines = append(lines, "", footerStyle.Render(nextRoundPrompt(round.Attempts)))
	return strings.Join(lines, "\n")
}

func (m *Model) viewComplete() string {
	cmp := m.eng.Comparison()
	if cmp == nil {
		return ""
	}
	lines := []string{
		titleStyle.Render("Session complete"),
		"",
	}
	lines = append(lines, summaryLines(cmp)...)
	lines = append(lines, "", footerStyle.Render("enter practice again · q quit"))
	return strings.Join(lines, "\n")
}

func (m *Model) viewConfirmStop() string {
	body := strings.Join([]string{
		"Stop this session?",
		"",
		"y  stop and return to menu",
		"n  keep practicing",
	}, "\n")
	return overlayStyle.Render(body)
}

func (m *Model) viewError() string {
	body := strings.Join([]string{
		errTitleStyle.Render("Something went wrong"),
		"",
		m.eng.Err().Error(),
		"",
		"r  retry",
		"q  quit",
	}, "\n")
	return overlayStyle.Render(body)
}

// previousAttemptHint describes the last attempt at this exercise in the
// session, shown during retry rounds.
func previousAttemptHint(att *model.Attempt) string {
	if att == nil {
		return ""
	}
	if att.Correct {
		return fmt.Sprintf("last time: correct in %.1fs", att.TimeTakenSec)
	}
	if att.UserAnswer == nil {
		return "last time: out of time"
	}
	return fmt.Sprintf("last time: answered %d", *att.UserAnswer)
}

func attemptRows(attempts []model.Attempt) []string {
	rows := make([]string, 0, len(attempts))
	for _, att := range attempts {
		mark := correctStyle.Render("✓")
		if !att.Correct {
			mark = wrongStyle.Render("✗")
		}
		answer := "-"
		if att.UserAnswer != nil {
			answer = strconv.Itoa(*att.UserAnswer)
		}
		rows = append(rows, fmt.Sprintf("%s %-7s %6s %7.1fs  %s",
			mark,
			fmt.Sprintf("%d×%d", att.A, att.B),
			answer,
			att.TimeTakenSec,
			trendLabel(att.Result),
		))
	}
	return rows
}

func nextRoundPrompt(attempts []model.Attempt) string {
	failed := 0
	for _, att := range attempts {
		if !att.Correct {
			failed++
		}
	}
	if failed == 0 {
		return "enter finish session"
	}
	return fmt.Sprintf("enter retry %d missed · esc stop", failed)
}

func trendLabel(result model.AttemptResult) string {
	switch result {
	case model.ResultImproved:
		return correctStyle.Render("↑")
	case model.ResultDeteriorated:
		return wrongStyle.Render("↓")
	case model.ResultSame:
		return hintStyle.Render("=")
	default:
		return " "
	}
}

// summaryLines renders session aggregates, deltas against the previous
// session, and the per-exercise status breakdown.
func summaryLines(cmp *compare.Comparison) []string {
	cur := cmp.CurrentSession
	lines := []string{
		fmt.Sprintf("Success   %.1f%%%s", cur.SuccessRate, deltaSuffix(cmp.PreviousSession != nil, cmp.Improvement.SuccessRate, "%%", false)),
		fmt.Sprintf("Avg time  %.2fs%s", cur.AverageTimeSec, deltaSuffix(cmp.PreviousSession != nil, cmp.Improvement.AverageTimeSec, "s", true)),
		fmt.Sprintf("Rounds    %d%s", cur.TotalRounds, deltaSuffix(cmp.PreviousSession != nil, float64(cmp.Improvement.TotalRounds), "", true)),
		"",
	}
	lines = append(lines, statusBreakdown(cmp.Stats)...)
	return lines
}

// deltaSuffix formats a delta against the previous session. For
// lowerIsBetter metrics a negative delta renders as improvement.
func deltaSuffix(hasPrevious bool, delta float64, unit string, lowerIsBetter bool) string {
	if !hasPrevious || delta == 0 {
		return ""
	}
	text := fmt.Sprintf("  (%+.1f"+unit+")", delta)
	good := delta > 0
	if lowerIsBetter {
		good = delta < 0
	}
	if good {
		return correctStyle.Render(text)
	}
	return wrongStyle.Render(text)
}

func statusBreakdown(stats compare.Stats) []string {
	entries := []struct {
		label string
		count int
		style lipgloss.Style
	}{
		{"new records", stats.NewRecords, correctStyle},
		{"improved", stats.Improved, correctStyle},
		{"mastered", stats.Mastered, correctStyle},
		{"same", stats.Same, hintStyle},
		{"slower", stats.Deteriorated, wrongStyle},
		{"first try", stats.New, hintStyle},
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.count == 0 {
			continue
		}
		lines = append(lines, e.style.Render(fmt.Sprintf("%-12s %d", e.label, e.count)))
	}
	return lines
}
