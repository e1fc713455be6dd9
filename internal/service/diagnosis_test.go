package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/pulmolens/internal/predict"
)

func writeImage(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("xray"), 0o600))
	return path
}

func TestDiagnoseRecordsReport(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	_, repo := openTestDB(t)
	fake := &fakePredictor{result: predict.Result{Diagnosis: "PNEUMONIA", Confidence: 87.5, Report: "IMPRESSION:\nPneumonia."}}
	svc := &DiagnosisService{Predictor: fake, Reports: repo}

	out, err := svc.Diagnose(ctx, Submission{
		ImagePath: writeImage(t, "chest.png"),
		Patient:   predict.Patient{ID: " P-9 ", Age: 61, Gender: "Female"},
	})
	require.NoError(t, err)
	require.NoError(t, out.SaveErr)
	require.Equal(t, fake.result, out.Result)
	require.NotEmpty(t, out.ReportID)
	require.Equal(t, 1, fake.calls)
	require.Equal(t, "chest.png", fake.gotImg.Filename)
	require.Equal(t, []byte("xray"), fake.gotImg.Data)

	rep, err := repo.Get(ctx, out.ReportID)
	require.NoError(t, err)
	require.Equal(t, "P-9", rep.PatientID)
	require.Equal(t, "chest.png", rep.ImageName)
	require.Equal(t, "PNEUMONIA", rep.Diagnosis)
	require.Equal(t, 87.5, rep.Confidence)
	require.Equal(t, "IMPRESSION:\nPneumonia.", rep.ReportText)
	require.NotNil(t, rep.Age)
	require.Equal(t, 61, *rep.Age)
}

func TestDiagnosePredictorFailureRecordsNothing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	_, repo := openTestDB(t)
	boom := errors.New("connection refused")
	svc := &DiagnosisService{Predictor: &fakePredictor{err: boom}, Reports: repo}

	_, err := svc.Diagnose(ctx, Submission{ImagePath: writeImage(t, "a.jpg")})
	require.ErrorIs(t, err, boom)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestDiagnoseWithoutImage(t *testing.T) {
	t.Parallel()
	fake := &fakePredictor{}
	svc := &DiagnosisService{Predictor: fake}

	_, err := svc.Diagnose(context.Background(), Submission{})
	require.ErrorIs(t, err, predict.ErrNoImage)
	require.Zero(t, fake.calls)
}

func TestDiagnoseWithoutHistory(t *testing.T) {
	t.Parallel()
	fake := &fakePredictor{result: predict.Result{Diagnosis: "NORMAL", Confidence: 93}}
	svc := &DiagnosisService{Predictor: fake}

	out, err := svc.Diagnose(context.Background(), Submission{ImagePath: writeImage(t, "a.jpg")})
	require.NoError(t, err)
	require.Empty(t, out.ReportID)
	require.NoError(t, out.SaveErr)
	require.Equal(t, "NORMAL", out.Result.Diagnosis)
}

func TestDiagnoseSaveFailureKeepsResult(t *testing.T) {
	t.Parallel()
	db, repo := openTestDB(t)
	_, err := db.Exec(`DROP TABLE reports`)
	require.NoError(t, err)
	svc := &DiagnosisService{Predictor: &fakePredictor{result: predict.Result{Diagnosis: "NORMAL", Confidence: 70}}, Reports: repo}

	out, err := svc.Diagnose(context.Background(), Submission{ImagePath: writeImage(t, "a.jpg")})
	require.NoError(t, err)
	require.Error(t, out.SaveErr)
	require.Equal(t, "NORMAL", out.Result.Diagnosis)
}
