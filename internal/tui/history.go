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
	"github.com/charmbracelet/x/ansi"

	"github.com/jask/pulmolens/internal/database/repository"
	"github.com/jask/pulmolens/internal/service"
)

const historyLimit = 500

var diagnosisCycle = []string{service.DiagnosisAll, "NORMAL", "PNEUMONIA"}

var periodCycle = []struct {
	label string
	days  int
}{
	{"all time", 0},
	{"last 7 days", 7},
	{"last 30 days", 30},
}

type historyMsg struct {
	reports    []repository.Report
	stats      service.Stats
	suggestion string
	err        error
}

// historyView lists recorded reports with summary analytics.
type historyView struct {
	reports    []repository.Report
	stats      service.Stats
	suggestion string
	err        error
	loaded     bool

	diagIdx   int
	periodIdx int
	// now is replaced in tests.
	now       func() time.Time
	filter    textinput.Model
	filtering bool
	cursor    int
	confirm   bool
}

func newHistoryView() *historyView {
	ti := textinput.New()
	ti.Prompt = "patient: "
	ti.Placeholder = "id"
	ti.CharLimit = 32
	ti.Width = 16
	return &historyView{filter: ti, now: time.Now}
}

func (h *historyView) query() service.HistoryQuery {
	q := service.HistoryQuery{
		PatientID: strings.TrimSpace(h.filter.Value()),
		Diagnosis: diagnosisCycle[h.diagIdx],
		Limit:     historyLimit,
	}
	if days := periodCycle[h.periodIdx].days; days > 0 {
		q.Since = h.now().AddDate(0, 0, -days)
	}
	return q
}

func (h *historyView) cycleDiagnosis() {
	h.diagIdx = (h.diagIdx + 1) % len(diagnosisCycle)
}

func (h *historyView) cyclePeriod() {
	h.periodIdx = (h.periodIdx + 1) % len(periodCycle)
}

func (h *historyView) startFilter() tea.Cmd {
	h.filtering = true
	return h.filter.Focus()
}

func (h *historyView) stopFilter() {
	h.filtering = false
	h.filter.Blur()
}

func (h *historyView) apply(m historyMsg) {
	h.loaded = true
	h.err = m.err
	if m.err != nil {
		return
	}
	h.reports = m.reports
	h.stats = m.stats
	h.suggestion = m.suggestion
	if h.cursor >= len(h.reports) {
		h.cursor = len(h.reports) - 1
	}
	if h.cursor < 0 {
		h.cursor = 0
	}
}

func (h *historyView) move(delta int) {
	h.cursor += delta
	if h.cursor >= len(h.reports) {
		h.cursor = len(h.reports) - 1
	}
	if h.cursor < 0 {
		h.cursor = 0
	}
}

func (h *historyView) selected() (repository.Report, bool) {
	if h.cursor < 0 || h.cursor >= len(h.reports) {
		return repository.Report{}, false
	}
	return h.reports[h.cursor], true
}

// loadHistoryCmd runs q and, when a patient filter finds nothing, looks for a
// near match to suggest.
func loadHistoryCmd(ctx context.Context, svc *service.HistoryService, q service.HistoryQuery) tea.Cmd {
	return func() tea.Msg {
		if svc == nil {
			return historyMsg{}
		}
		reports, err := svc.Search(ctx, q)
		if err != nil {
			return historyMsg{err: fmt.Errorf("load history: %w", err)}
		}
		msg := historyMsg{reports: reports, stats: service.ComputeStats(reports)}
		if len(reports) == 0 && q.PatientID != "" {
			if s, ok, err := svc.SuggestPatient(ctx, q.PatientID); err == nil && ok {
				msg.suggestion = s
			}
		}
		return msg
	}
}

func (h *historyView) View(width, height int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Report History"))
	b.WriteString("  " + mutedStyle.Render("diagnosis: ") + diagnosisCycle[h.diagIdx])
	b.WriteString("  " + mutedStyle.Render("period: ") + periodCycle[h.periodIdx].label)
	b.WriteString("  " + h.filter.View())
	b.WriteString("\n")
	if h.suggestion != "" {
		b.WriteString(warnStyle.Render("no reports for that patient. did you mean " + h.suggestion + "?"))
		b.WriteString("\n")
	}
	if h.err != nil {
		b.WriteString(errorStyle.Render(h.err.Error()) + "\n")
	}
	if h.confirm {
		b.WriteString(errorStyle.Render("Delete all recorded reports? [y] yes  [n] no") + "\n")
	}
	b.WriteString("\n")

	if !h.loaded {
		b.WriteString(mutedStyle.Render("loading..."))
		return b.String()
	}
	if len(h.reports) == 0 {
		b.WriteString(mutedStyle.Render("No reports recorded yet."))
		return b.String()
	}

	tableWidth := width
	if width >= 110 {
		tableWidth = width - 46
	}
	table := h.renderTable(tableWidth, height-8)
	stats := renderStats(h.stats)
	if width >= 110 {
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, table, "  ", stats))
	} else {
		b.WriteString(table + "\n\n" + stats)
	}

	if rep, ok := h.selected(); ok && rep.ReportText != "" {
		b.WriteString("\n\n" + labelStyle.Render("Report") + "\n")
		b.WriteString(reportStyle.Width(max(width-4, 20)).Render(firstLines(rep.ReportText, 4)))
	}
	return b.String()
}

func (h *historyView) renderTable(width, rows int) string {
	if rows < 3 {
		rows = 3
	}
	start := 0
	if h.cursor >= rows {
		start = h.cursor - rows + 1
	}
	end := start + rows
	if end > len(h.reports) {
		end = len(h.reports)
	}

	header := fmt.Sprintf("  %-16s %-10s %4s %-7s %-10s %8s  %s", "Date", "Patient", "Age", "Gender", "Diagnosis", "Conf", "Image")
	lines := []string{labelStyle.Render(ansi.Truncate(header, width, "…"))}
	for i := start; i < end; i++ {
		r := h.reports[i]
		prefix := "  "
		if i == h.cursor {
			prefix = cursorStyle.Render("> ")
		}
		age := "-"
		if r.Age != nil {
			age = strconv.Itoa(*r.Age)
		}
		diag := lipgloss.NewStyle().Foreground(diagnosisColor(r.Diagnosis)).Render(fmt.Sprintf("%-10s", orDash(r.Diagnosis)))
		line := fmt.Sprintf("%s%-16s %-10s %4s %-7s %s %7.2f%%  %s",
			prefix, r.CreatedAt.Local().Format("2006-01-02 15:04"), orDash(r.PatientID), age,
			orDash(r.Gender), diag, r.Confidence, r.ImageName)
		lines = append(lines, ansi.Truncate(line, width, "…"))
	}
	lines = append(lines, mutedStyle.Render(fmt.Sprintf("  %d of %d", h.cursor+1, len(h.reports))))
	return strings.Join(lines, "\n")
}

func renderStats(st service.Stats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %d   %s %.2f%%\n\n", labelStyle.Render("Total"), st.Total, labelStyle.Render("Mean conf"), st.MeanConfidence)

	b.WriteString(labelStyle.Render("Distribution") + "\n")
	for _, lc := range st.ByDiagnosis {
		color := lipgloss.NewStyle().Foreground(diagnosisColor(lc.Label))
		fmt.Fprintf(&b, "%-10s %s %d\n", ansi.Truncate(lc.Label, 10, ""), color.Render(bar(lc.Count, st.Total, 16)), lc.Count)
	}

	b.WriteString("\n" + labelStyle.Render("Confidence") + "\n")
	peak := 0
	for _, n := range st.Confidence {
		peak = max(peak, n)
	}
	step := 100.0 / service.ConfidenceBins
	for i, n := range st.Confidence {
		fmt.Fprintf(&b, "%3.0f-%-3.0f %s %d\n", float64(i)*step, float64(i+1)*step, barStyle.Render(bar(n, peak, 16)), n)
	}

	labels := diagnosisLabels(st)
	if len(labels) > 0 {
		b.WriteString("\n" + labelStyle.Render("Age group") + "\n")
		head := fmt.Sprintf("%-6s", "")
		for _, l := range labels {
			head += fmt.Sprintf(" %9s", ansi.Truncate(l, 9, ""))
		}
		b.WriteString(mutedStyle.Render(head) + "\n")
		for _, row := range st.AgeGroups {
			line := fmt.Sprintf("%-6s", row.Label)
			for _, l := range labels {
				line += fmt.Sprintf(" %9d", row.Counts[l])
			}
			b.WriteString(line + "\n")
		}
	}

	if len(st.Daily) > 0 {
		b.WriteString("\n" + labelStyle.Render("Per day") + "\n")
		days := st.Daily
		if len(days) > 7 {
			days = days[len(days)-7:]
		}
		peak = 0
		for _, d := range days {
			peak = max(peak, d.Count)
		}
		for _, d := range days {
			fmt.Fprintf(&b, "%s %s %d\n", d.Day.Format("01-02"), barStyle.Render(bar(d.Count, peak, 16)), d.Count)
		}
	}
	return boxStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func diagnosisLabels(st service.Stats) []string {
	out := make([]string, 0, len(st.ByDiagnosis))
	for _, lc := range st.ByDiagnosis {
		out = append(out, lc.Label)
	}
	return out
}

// bar renders n relative to total as at most width block characters.
func bar(n, total, width int) string {
	if total <= 0 || n <= 0 {
		return strings.Repeat(" ", width)
	}
	filled := n * width / total
	if filled == 0 {
		filled = 1
	}
	return strings.Repeat("█", filled) + strings.Repeat(" ", width-filled)
}

func firstLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = append(lines[:n], "…")
	}
	return strings.Join(lines, "\n")
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
