package repository

import "time"

// Report is one recorded diagnosis.
type Report struct {
	ID         string
	PatientID  string
	Age        *int
	Gender     string
	ImageName  string
	Diagnosis  string
	Confidence float64
	ReportText string
	CreatedAt  time.Time
}

// ReportFilters narrows List. Empty fields match everything.
type ReportFilters struct {
	PatientID string
	Diagnosis string
	Since     time.Time
	Limit     int
}
