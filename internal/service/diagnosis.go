package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/jask/pulmolens/internal/database"
	"github.com/jask/pulmolens/internal/database/repository"
	"github.com/jask/pulmolens/internal/predict"
)

// Submission is everything the user supplies for one diagnosis.
type Submission struct {
	ImagePath string
	Patient   predict.Patient
}

// Outcome is the result of a successful prediction. SaveErr is set when the
// prediction could not be recorded; the result is still valid.
type Outcome struct {
	Result   predict.Result
	ReportID string
	SaveErr  error
}

// DiagnosisService sends images to the predictor and records the answers.
type DiagnosisService struct {
	Predictor predict.Submitter
	Reports   *repository.ReportRepo
}

// Diagnose loads the image, asks the predictor and records a report.
// Reports is optional; without it nothing is persisted.
func (s *DiagnosisService) Diagnose(ctx context.Context, sub Submission) (Outcome, error) {
	if s.Predictor == nil {
		return Outcome{}, fmt.Errorf("diagnosis: predictor not configured")
	}
	img, err := predict.LoadImage(sub.ImagePath)
	if err != nil {
		return Outcome{}, err
	}
	res, err := s.Predictor.Predict(ctx, img, sub.Patient)
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{Result: res}
	if s.Reports == nil {
		return out, nil
	}
	rep := reportFrom(sub, res)
	if err := s.Reports.Insert(ctx, rep); err != nil {
		out.SaveErr = fmt.Errorf("record report: %w", err)
		return out, nil
	}
	out.ReportID = rep.ID
	return out, nil
}

func reportFrom(sub Submission, res predict.Result) repository.Report {
	rep := repository.Report{
		ID:         uuid.NewString(),
		PatientID:  strings.TrimSpace(sub.Patient.ID),
		Gender:     strings.TrimSpace(sub.Patient.Gender),
		ImageName:  filepath.Base(sub.ImagePath),
		Diagnosis:  res.Diagnosis,
		Confidence: res.Confidence,
		ReportText: res.Report,
		CreatedAt:  database.Now(),
	}
	if sub.Patient.Age > 0 {
		age := sub.Patient.Age
		rep.Age = &age
	}
	return rep
}
