package export

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jask/pulmolens/internal/predict"
)

var ErrUnknownFormat = errors.New("export: unknown format")

const (
	FormatText = "txt"
	FormatYAML = "yaml"
)

// Disclaimer is appended to every exported report.
const Disclaimer = "This AI-generated report is for educational purposes only and should not replace professional medical diagnosis."

// Document is a rendered diagnosis ready to be written out.
type Document struct {
	PatientID  string
	Age        int
	Gender     string
	ImageName  string
	Diagnosis  string
	Confidence float64
	Report     string
	Date       time.Time
}

type yamlDoc struct {
	Patient struct {
		ID     string `yaml:"id,omitempty"`
		Age    int    `yaml:"age,omitempty"`
		Gender string `yaml:"gender,omitempty"`
	} `yaml:"patient"`
	Image      string  `yaml:"image,omitempty"`
	Date       string  `yaml:"date"`
	Diagnosis  string  `yaml:"diagnosis"`
	Confidence float64 `yaml:"confidence"`
	Report     string  `yaml:"report"`
	Disclaimer string  `yaml:"disclaimer"`
}

var textTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"confidence": predict.FormatConfidence,
	"disclaimer": func() string { return Disclaimer },
	"orDash": func(s string) string {
		if strings.TrimSpace(s) == "" {
			return "-"
		}
		return s
	},
}).Parse(`PulmoLens AI
AI-Assisted Chest X-ray Diagnostic & Analytics Platform
========================================================

Patient Information
  Patient ID:  {{orDash .PatientID}}
  Age:         {{if gt .Age 0}}{{.Age}}{{else}}-{{end}}
  Gender:      {{orDash .Gender}}
  Report Date: {{.Date.Format "2006-01-02 15:04"}}
{{- if .ImageName}}
  Image:       {{.ImageName}}
{{- end}}

Diagnosis Result
  Diagnosis:  {{.Diagnosis}}
  Confidence: {{confidence .Confidence}}

AI-Generated Medical Report
{{.Report}}

Disclaimer: {{disclaimer}}
`))

// Render encodes doc in the given format.
func Render(format string, doc Document) ([]byte, error) {
	if doc.Date.IsZero() {
		doc.Date = time.Now()
	}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatText, "":
		var buf bytes.Buffer
		if err := textTemplate.Execute(&buf, doc); err != nil {
			return nil, fmt.Errorf("render text report: %w", err)
		}
		return buf.Bytes(), nil
	case FormatYAML, "yml":
		var y yamlDoc
		y.Patient.ID = doc.PatientID
		y.Patient.Age = doc.Age
		y.Patient.Gender = doc.Gender
		y.Image = doc.ImageName
		y.Date = doc.Date.Format(time.RFC3339)
		y.Diagnosis = doc.Diagnosis
		y.Confidence = doc.Confidence
		y.Report = doc.Report
		y.Disclaimer = Disclaimer
		out, err := yaml.Marshal(&y)
		if err != nil {
			return nil, fmt.Errorf("render yaml report: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileName returns the export file name for doc, e.g. P-001_medical_report.txt.
func FileName(format string, doc Document) string {
	who := strings.Trim(unsafeName.ReplaceAllString(strings.TrimSpace(doc.PatientID), "_"), "._")
	if who == "" {
		who = "anonymous"
	}
	ext := strings.ToLower(strings.TrimSpace(format))
	switch ext {
	case "", FormatText:
		ext = FormatText
	case "yml":
		ext = FormatYAML
	}
	return who + "_medical_report." + ext
}

// Write renders doc into dir and returns the written path.
func Write(dir, format string, doc Document) (string, error) {
	data, err := Render(format, doc)
	if err != nil {
		return "", err
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir export dir: %w", err)
	}
	path := filepath.Join(dir, FileName(format, doc))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}
