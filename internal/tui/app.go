package tui

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jask/pulmolens/internal/config"
	"github.com/jask/pulmolens/internal/database/repository"
	"github.com/jask/pulmolens/internal/export"
	"github.com/jask/pulmolens/internal/predict"
	"github.com/jask/pulmolens/internal/prefs"
	"github.com/jask/pulmolens/internal/service"
)

// App ties together the tabs.
type App struct {
	ctx      context.Context
	cfg      config.Config
	services Services
	prefs    prefs.Prefs

	// savePrefs persists prefs; replaced in tests.
	savePrefs func(prefs.Prefs) error

	tab     tab
	widget  *Widget
	picker  *filePicker
	history *historyView
	keys    keyMap

	status      string
	statusIsErr bool
	width       int
	height      int
}

// Services are the collaborators the TUI drives. History and Maintenance
// are nil when history is disabled.
type Services struct {
	Diagnosis   Diagnoser
	History     *service.HistoryService
	Maintenance *service.MaintenanceService
}

type tab int

const (
	tabDiagnose tab = iota
	tabHistory
	tabModel
	tabCount
)

var tabNames = []string{"Diagnose", "History", "Model"}

type statusMsg string

type errMsg struct{ err error }

type exportDoneMsg struct{ path string }

type resetDoneMsg struct{}

type reportDeletedMsg struct{ id string }

// New builds the app. files are captured into the widget as if picked.
func New(ctx context.Context, cfg config.Config, services Services, p prefs.Prefs, files []string) *App {
	dir := cfg.UI.ImageDir
	if p.LastDir != "" {
		dir = p.LastDir
	}
	if dir == "" {
		dir = "."
	}
	w := NewWidget(ctx, services.Diagnosis)
	if p.PatientGender != "" {
		w.SetGender(p.PatientGender)
	}
	w.Capture(files)
	return &App{
		ctx:       ctx,
		cfg:       cfg,
		services:  services,
		prefs:     p,
		savePrefs: prefs.Save,
		widget:    w,
		picker:    newFilePicker(dir, cfg.UI.Extensions),
		history:   newHistoryView(),
		keys:      newKeyMap(),
	}
}

func (a *App) Init() tea.Cmd {
	return a.loadHistory()
}

func (a *App) loadHistory() tea.Cmd {
	return loadHistoryCmd(a.ctx, a.services.History, a.history.query())
}

func (a *App) setStatus(s string) {
	a.status, a.statusIsErr = s, false
}

func (a *App) setError(err error) {
	log.Printf("error: %v", err)
	a.status, a.statusIsErr = err.Error(), true
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = m.Width, m.Height
		a.picker.setSize(m.Width, m.Height)
		return a, nil
	case tea.KeyMsg:
		return a, a.handleKey(m)
	case filesLoadedMsg:
		if m.err != nil {
			log.Printf("list images: %v", m.err)
		}
		return a, a.picker.loaded(m)
	case predictionMsg:
		return a, a.handlePrediction(m)
	case spinner.TickMsg:
		return a, a.widget.Update(m, a.keys)
	case historyMsg:
		a.history.apply(m)
		if m.err != nil {
			a.setError(m.err)
		}
		return a, nil
	case exportDoneMsg:
		a.setStatus("exported to " + m.path)
		return a, nil
	case resetDoneMsg:
		a.setStatus("history cleared")
		a.history.cursor = 0
		return a, a.loadHistory()
	case reportDeletedMsg:
		a.setStatus("deleted report " + m.id)
		return a, a.loadHistory()
	case statusMsg:
		a.setStatus(string(m))
		return a, nil
	case errMsg:
		a.setError(m.err)
		return a, nil
	}
	return a, nil
}

func (a *App) handlePrediction(m predictionMsg) tea.Cmd {
	if !a.widget.apply(m) {
		return nil
	}
	if m.err != nil {
		log.Printf("prediction failed: %v", m.err)
		if !errors.Is(m.err, context.Canceled) {
			a.setError(fmt.Errorf("prediction: %w", m.err))
		}
		return nil
	}
	a.setStatus("report generated: " + m.outcome.Result.Diagnosis)
	if m.outcome.SaveErr != nil {
		log.Printf("record report: %v", m.outcome.SaveErr)
	}
	if m.outcome.ReportID != "" {
		return a.loadHistory()
	}
	return nil
}

func (a *App) handleKey(m tea.KeyMsg) tea.Cmd {
	if m.String() == "ctrl+c" {
		a.widget.CancelPending()
		return tea.Quit
	}
	switch {
	case a.picker.open:
		return a.handlePickerKey(m)
	case a.widget.Editing():
		cmd := a.widget.Update(m, a.keys)
		if !a.widget.Editing() {
			return tea.Batch(cmd, a.rememberGender())
		}
		return cmd
	case a.history.filtering:
		return a.handleFilterKey(m)
	case a.history.confirm:
		return a.handleConfirmKey(m)
	}

	switch {
	case key.Matches(m, a.keys.Quit):
		a.widget.CancelPending()
		return tea.Quit
	case key.Matches(m, a.keys.NextTab):
		a.tab = (a.tab + 1) % tabCount
		return nil
	case key.Matches(m, a.keys.PrevTab):
		a.tab = (a.tab + tabCount - 1) % tabCount
		return nil
	}

	switch a.tab {
	case tabDiagnose:
		return a.handleDiagnoseKey(m)
	case tabHistory:
		return a.handleHistoryKey(m)
	}
	return nil
}

func (a *App) handleDiagnoseKey(m tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(m, a.keys.Open):
		return a.picker.Open()
	case key.Matches(m, a.keys.Submit):
		cmd := a.widget.Submit()
		if a.widget.Phase() == PhaseFailed {
			a.setError(a.widget.Err())
		} else {
			a.setStatus("submitted " + filepath.Base(a.widget.Selected()))
		}
		return cmd
	case key.Matches(m, a.keys.Cancel):
		if a.widget.CancelPending() {
			a.setStatus("request cancelled")
		}
		return nil
	case key.Matches(m, a.keys.Patient):
		return a.widget.StartEditing()
	case key.Matches(m, a.keys.Export):
		res, ok := a.widget.Result()
		if !ok {
			a.setStatus("nothing to export yet")
			return nil
		}
		sub, at, _ := a.widget.Submitted()
		return a.exportCmd(documentFromResult(sub, res, at))
	}
	return nil
}

func (a *App) handlePickerKey(m tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(m, a.keys.Close):
		a.picker.Close()
		return nil
	case key.Matches(m, a.keys.Parent):
		return a.picker.Parent()
	case m.String() == "enter":
		path, cmd := a.picker.Enter()
		if path == "" {
			return cmd
		}
		a.widget.Capture([]string{path})
		a.picker.Close()
		a.setStatus("selected " + filepath.Base(path))
		a.prefs.LastDir = a.picker.dir
		return a.savePrefsCmd()
	}
	return a.picker.Update(m)
}

func (a *App) handleHistoryKey(m tea.KeyMsg) tea.Cmd {
	switch m.String() {
	case "up", "k":
		a.history.move(-1)
		return nil
	case "down", "j":
		a.history.move(1)
		return nil
	}
	switch {
	case key.Matches(m, a.keys.Filter):
		return a.history.startFilter()
	case key.Matches(m, a.keys.Cycle):
		a.history.cycleDiagnosis()
		a.history.cursor = 0
		return a.loadHistory()
	case key.Matches(m, a.keys.Period):
		a.history.cyclePeriod()
		a.history.cursor = 0
		return a.loadHistory()
	case key.Matches(m, a.keys.Refresh):
		return a.loadHistory()
	case key.Matches(m, a.keys.Reset):
		if a.services.Maintenance == nil {
			a.setStatus("history is disabled")
			return nil
		}
		a.history.confirm = true
		return nil
	case key.Matches(m, a.keys.Delete):
		rep, ok := a.history.selected()
		if !ok || a.services.History == nil {
			return nil
		}
		return a.deleteReportCmd(rep.ID)
	case key.Matches(m, a.keys.Export):
		rep, ok := a.history.selected()
		if !ok {
			a.setStatus("nothing to export yet")
			return nil
		}
		return a.exportCmd(documentFromReport(rep))
	}
	return nil
}

func (a *App) handleFilterKey(m tea.KeyMsg) tea.Cmd {
	switch m.String() {
	case "enter":
		a.history.stopFilter()
		a.history.cursor = 0
		return a.loadHistory()
	case "esc":
		a.history.stopFilter()
		a.history.filter.SetValue("")
		a.history.cursor = 0
		return a.loadHistory()
	}
	var cmd tea.Cmd
	a.history.filter, cmd = a.history.filter.Update(m)
	return cmd
}

func (a *App) handleConfirmKey(m tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(m, a.keys.Confirm):
		a.history.confirm = false
		return a.resetCmd()
	case key.Matches(m, a.keys.Decline):
		a.history.confirm = false
	}
	return nil
}

// documentFromResult exports a result with the patient and image it was
// submitted with, not whatever the inputs hold now.
func documentFromResult(sub service.Submission, res predict.Result, at time.Time) export.Document {
	return export.Document{
		PatientID:  sub.Patient.ID,
		Age:        sub.Patient.Age,
		Gender:     sub.Patient.Gender,
		ImageName:  filepath.Base(sub.ImagePath),
		Diagnosis:  res.Diagnosis,
		Confidence: res.Confidence,
		Report:     res.Report,
		Date:       at,
	}
}

func documentFromReport(r repository.Report) export.Document {
	doc := export.Document{
		PatientID:  r.PatientID,
		Gender:     r.Gender,
		ImageName:  r.ImageName,
		Diagnosis:  r.Diagnosis,
		Confidence: r.Confidence,
		Report:     r.ReportText,
		Date:       r.CreatedAt,
	}
	if r.Age != nil {
		doc.Age = *r.Age
	}
	return doc
}

// commands
func (a *App) exportCmd(doc export.Document) tea.Cmd {
	dir, format := a.cfg.Export.Dir, a.cfg.Export.Format
	return func() tea.Msg {
		path, err := export.Write(dir, format, doc)
		if err != nil {
			return errMsg{fmt.Errorf("export: %w", err)}
		}
		return exportDoneMsg{path: path}
	}
}

func (a *App) resetCmd() tea.Cmd {
	return func() tea.Msg {
		if a.services.Maintenance == nil {
			return errMsg{fmt.Errorf("maintenance not configured")}
		}
		if err := a.services.Maintenance.Reset(a.ctx); err != nil {
			return errMsg{err}
		}
		return resetDoneMsg{}
	}
}

func (a *App) deleteReportCmd(id string) tea.Cmd {
	return func() tea.Msg {
		if err := a.services.History.Delete(a.ctx, id); err != nil {
			return errMsg{fmt.Errorf("delete report: %w", err)}
		}
		return reportDeletedMsg{id: id}
	}
}

func (a *App) rememberGender() tea.Cmd {
	g := a.widget.Patient().Gender
	if g == a.prefs.PatientGender {
		return nil
	}
	a.prefs.PatientGender = g
	return a.savePrefsCmd()
}

func (a *App) savePrefsCmd() tea.Cmd {
	p, save := a.prefs, a.savePrefs
	if save == nil {
		return nil
	}
	return func() tea.Msg {
		if err := save(p); err != nil {
			return errMsg{fmt.Errorf("save prefs: %w", err)}
		}
		return nil
	}
}

func (a *App) View() string {
	var body string
	switch {
	case a.picker.open:
		body = a.picker.View()
	case a.tab == tabHistory:
		body = a.renderHistory()
	case a.tab == tabModel:
		body = renderModelInfo(a.cfg)
	default:
		body = a.widget.View(a.width)
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		a.renderHeader(),
		lipgloss.NewStyle().Padding(1, 2).Render(body),
		a.renderStatus(),
		a.renderFooter(),
	)
}

func (a *App) renderHeader() string {
	tabs := make([]string, 0, len(tabNames))
	for i, name := range tabNames {
		if tab(i) == a.tab {
			tabs = append(tabs, activeTabStyle.Render(name))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(name))
		}
	}
	return headerBarStyle.Render(headerAppStyle.Render("PulmoLens") + " " + strings.Join(tabs, tabSepStyle.Render("│")))
}

func (a *App) renderHistory() string {
	if a.services.History == nil {
		return titleStyle.Render("Report History") + "\n\n" + mutedStyle.Render("History is disabled in the configuration.")
	}
	return a.history.View(a.width-4, a.height-8)
}

func (a *App) renderStatus() string {
	if a.status == "" {
		return statusBarStyle.Render(" ")
	}
	if a.statusIsErr {
		return statusBarStyle.Render(errorStyle.Render(a.status))
	}
	return statusBarStyle.Render(a.status)
}

func (a *App) helpContext() helpContext {
	switch {
	case a.picker.open:
		return helpPicker
	case a.widget.Editing():
		return helpEditing
	case a.history.filtering:
		return helpFiltering
	case a.history.confirm:
		return helpConfirm
	case a.tab == tabHistory:
		return helpHistory
	case a.tab == tabModel:
		return helpModel
	}
	return helpDiagnose
}

func (a *App) renderFooter() string {
	var parts []string
	for _, b := range a.keys.helpFor(a.helpContext()) {
		h := b.Help()
		parts = append(parts, keyHintStyle.Render(h.Key)+" "+h.Desc)
	}
	return footerStyle.Render(strings.Join(parts, "  "))
}

func renderModelInfo(cfg config.Config) string {
	rows := [][2]string{
		{"Model type", "Convolutional Neural Network (CNN)"},
		{"Task", "Binary classification (Normal vs Pneumonia)"},
		{"Input size", "224 × 224"},
		{"Framework", "TensorFlow / Keras"},
		{"Endpoint", cfg.Predict.Endpoint},
		{"Upload field", cfg.Predict.Field},
		{"Timeout", cfg.Predict.Timeout.String()},
	}
	if cfg.History.Enabled {
		rows = append(rows, [2]string{"History", cfg.Database.Path})
	} else {
		rows = append(rows, [2]string{"History", "disabled"})
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("CNN Model Details") + "\n\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render(fmt.Sprintf("%-13s", r[0]+":")), r[1])
	}
	b.WriteString("\n" + warnStyle.Render("Disclaimer: ") + export.Disclaimer)
	return boxStyle.Render(b.String())
}
