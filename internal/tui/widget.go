package tui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jask/pulmolens/internal/predict"
	"github.com/jask/pulmolens/internal/service"
)

// Diagnoser turns a submission into a prediction outcome.
type Diagnoser interface {
	Diagnose(ctx context.Context, sub service.Submission) (service.Outcome, error)
}

// Phase is the submission state shown by the widget.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseSuccess
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseSuccess:
		return "success"
	case PhaseFailed:
		return "failed"
	default:
		return "idle"
	}
}

// predictionMsg carries the outcome of submission number seq.
type predictionMsg struct {
	seq     uint64
	sub     service.Submission
	outcome service.Outcome
	err     error
}

const (
	fieldPatientID = iota
	fieldAge
	fieldGender
	fieldCount
)

// Widget captures one image, submits it and renders the returned diagnosis.
// Only the most recent submission may change the rendered result.
type Widget struct {
	ctx       context.Context
	diagnoser Diagnoser

	selected string
	result   *predict.Result
	// submitted is the submission that produced result.
	submitted service.Submission
	resultAt  time.Time
	reportID  string
	saveErr   error
	phase     Phase
	err       error

	seq    uint64
	cancel context.CancelFunc

	spinner spinner.Model
	inputs  []textinput.Model
	editing bool
	focus   int
}

func NewWidget(ctx context.Context, d Diagnoser) *Widget {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = infoStyle

	inputs := make([]textinput.Model, fieldCount)
	for i := range inputs {
		ti := textinput.New()
		ti.Prompt = ""
		ti.CharLimit = 32
		ti.Width = 16
		inputs[i] = ti
	}
	inputs[fieldPatientID].Placeholder = "patient id"
	inputs[fieldAge].Placeholder = "age"
	inputs[fieldAge].CharLimit = 3
	inputs[fieldAge].Width = 4
	inputs[fieldGender].Placeholder = "gender"

	return &Widget{ctx: ctx, diagnoser: d, spinner: sp, inputs: inputs}
}

// Capture replaces the selected image with the first entry of files.
// An empty list leaves the selection unchanged.
func (w *Widget) Capture(files []string) bool {
	if len(files) == 0 {
		return false
	}
	w.selected = files[0]
	return true
}

func (w *Widget) Selected() string { return w.selected }
func (w *Widget) Phase() Phase     { return w.phase }
func (w *Widget) Err() error       { return w.err }
func (w *Widget) Editing() bool    { return w.editing }

// Result returns the rendered prediction, if any.
func (w *Widget) Result() (predict.Result, bool) {
	if w.result == nil {
		return predict.Result{}, false
	}
	return *w.result, true
}

// Submitted returns the submission behind the rendered result and when it
// arrived. ok is false until a prediction succeeds.
func (w *Widget) Submitted() (sub service.Submission, at time.Time, ok bool) {
	if w.result == nil {
		return service.Submission{}, time.Time{}, false
	}
	return w.submitted, w.resultAt, true
}

// Patient returns the metadata typed into the patient fields.
func (w *Widget) Patient() predict.Patient {
	p := predict.Patient{
		ID:     strings.TrimSpace(w.inputs[fieldPatientID].Value()),
		Gender: strings.TrimSpace(w.inputs[fieldGender].Value()),
	}
	if age, err := strconv.Atoi(strings.TrimSpace(w.inputs[fieldAge].Value())); err == nil && age > 0 {
		p.Age = age
	}
	return p
}

// SetGender prefills the gender field.
func (w *Widget) SetGender(g string) {
	w.inputs[fieldGender].SetValue(g)
}

// Submit starts a new submission and supersedes any in-flight one.
func (w *Widget) Submit() tea.Cmd {
	if w.selected == "" {
		w.phase = PhaseFailed
		w.err = predict.ErrNoImage
		return nil
	}
	if w.diagnoser == nil {
		w.phase = PhaseFailed
		w.err = errors.New("no prediction service configured")
		return nil
	}
	if w.cancel != nil {
		w.cancel()
	}

	w.seq++
	seq := w.seq
	ctx, cancel := context.WithCancel(w.ctx)
	w.cancel = cancel
	w.phase = PhaseLoading
	w.err = nil

	sub := service.Submission{ImagePath: w.selected, Patient: w.Patient()}
	d := w.diagnoser
	return tea.Batch(w.spinner.Tick, func() tea.Msg {
		defer cancel()
		out, err := d.Diagnose(ctx, sub)
		return predictionMsg{seq: seq, sub: sub, outcome: out, err: err}
	})
}

// CancelPending abandons the in-flight submission. Its response is dropped.
func (w *Widget) CancelPending() bool {
	if w.phase != PhaseLoading {
		return false
	}
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	w.seq++
	w.phase = PhaseIdle
	return true
}

// apply folds a prediction into the widget. Stale responses are ignored.
func (w *Widget) apply(m predictionMsg) bool {
	if m.seq != w.seq {
		return false
	}
	w.cancel = nil
	if m.err != nil {
		w.phase = PhaseFailed
		w.err = m.err
		return true
	}
	res := m.outcome.Result
	w.result = &res
	w.submitted = m.sub
	w.resultAt = time.Now()
	w.reportID = m.outcome.ReportID
	w.saveErr = m.outcome.SaveErr
	w.phase = PhaseSuccess
	w.err = nil
	return true
}

// StartEditing focuses the first patient field.
func (w *Widget) StartEditing() tea.Cmd {
	w.editing = true
	w.focus = fieldPatientID
	return w.focusInputs()
}

func (w *Widget) stopEditing() {
	w.editing = false
	for i := range w.inputs {
		w.inputs[i].Blur()
	}
}

func (w *Widget) focusInputs() tea.Cmd {
	var cmd tea.Cmd
	for i := range w.inputs {
		if i == w.focus {
			cmd = w.inputs[i].Focus()
		} else {
			w.inputs[i].Blur()
		}
	}
	return cmd
}

// Update handles widget-local messages: predictions, spinner ticks and
// keystrokes while the patient fields are being edited.
func (w *Widget) Update(msg tea.Msg, keys keyMap) tea.Cmd {
	switch m := msg.(type) {
	case predictionMsg:
		w.apply(m)
		return nil
	case spinner.TickMsg:
		if w.phase != PhaseLoading {
			return nil
		}
		var cmd tea.Cmd
		w.spinner, cmd = w.spinner.Update(m)
		return cmd
	case tea.KeyMsg:
		if !w.editing {
			return nil
		}
		switch {
		case m.String() == "shift+tab" || m.String() == "up":
			w.focus = (w.focus + fieldCount - 1) % fieldCount
			return w.focusInputs()
		case key.Matches(m, keys.NextEdit):
			w.focus = (w.focus + 1) % fieldCount
			return w.focusInputs()
		case key.Matches(m, keys.Done):
			w.stopEditing()
			return nil
		}
		var cmd tea.Cmd
		w.inputs[w.focus], cmd = w.inputs[w.focus].Update(m)
		return cmd
	}
	return nil
}

// View renders the widget. The picker hint and submit action are always shown;
// the diagnosis block only when a result exists.
func (w *Widget) View(width int) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Medical Image Report Generator"))
	b.WriteString("\n\n")

	image := mutedStyle.Render("no image selected")
	if w.selected != "" {
		image = filepath.Base(w.selected) + mutedStyle.Render("  "+filepath.Dir(w.selected))
	}
	fmt.Fprintf(&b, "%s %s   %s\n", labelStyle.Render("Image:"), image, keyHintStyle.Render("[o] choose"))

	fields := []struct {
		label string
		idx   int
	}{{"Patient ID", fieldPatientID}, {"Age", fieldAge}, {"Gender", fieldGender}}
	var parts []string
	for _, f := range fields {
		parts = append(parts, labelStyle.Render(f.label+":")+" "+w.inputs[f.idx].View())
	}
	b.WriteString(strings.Join(parts, "  "))
	if !w.editing {
		b.WriteString("   " + keyHintStyle.Render("[p] edit"))
	}
	b.WriteString("\n\n")

	b.WriteString(buttonStyle.Render("Generate Report"))
	switch w.phase {
	case PhaseLoading:
		b.WriteString("  " + w.spinner.View() + " " + infoStyle.Render("Analyzing X-ray..."))
	case PhaseFailed:
		b.WriteString("  " + errorStyle.Render("✗ submission failed: "+errText(w.err)))
	}
	b.WriteString("\n")

	if w.result != nil {
		b.WriteString("\n")
		b.WriteString(mutedStyle.Render("Result for "+submissionLabel(w.submitted)) + "\n")
		b.WriteString(renderResult(*w.result, width))
		if w.saveErr != nil {
			b.WriteString("\n" + warnStyle.Render("not saved to history: "+w.saveErr.Error()))
		} else if w.reportID != "" {
			b.WriteString("\n" + mutedStyle.Render("saved to history"))
		}
	}
	return b.String()
}

func renderResult(r predict.Result, width int) string {
	diag := lipgloss.NewStyle().Foreground(diagnosisColor(r.Diagnosis)).Bold(true)
	lines := []string{
		diag.Render("Diagnosis: " + r.Diagnosis),
		"Confidence: " + predict.FormatConfidence(r.Confidence),
		"",
	}
	report := reportStyle
	if width > 8 {
		report = report.Width(width - 4)
	}
	return strings.Join(lines, "\n") + report.Render(r.Report)
}

func submissionLabel(sub service.Submission) string {
	label := filepath.Base(sub.ImagePath)
	if id := strings.TrimSpace(sub.Patient.ID); id != "" {
		label += " (patient " + id + ")"
	}
	return label
}

func errText(err error) string {
	var se *predict.StatusError
	switch {
	case err == nil:
		return "unknown error"
	case errors.Is(err, predict.ErrNoImage):
		return "choose an image first"
	case errors.As(err, &se):
		return fmt.Sprintf("service returned %d", se.StatusCode)
	default:
		return err.Error()
	}
}
