package service

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/pulmolens/internal/database"
	"github.com/jask/pulmolens/internal/database/repository"
	"github.com/jask/pulmolens/internal/predict"
)

func openTestDB(t *testing.T) (*sql.DB, *repository.ReportRepo) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, database.RunMigrations(dbPath))
	db, err := database.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, repository.NewReportRepo(db)
}

type fakePredictor struct {
	result predict.Result
	err    error
	gotImg predict.Image
	gotPat predict.Patient
	calls  int
}

func (f *fakePredictor) Predict(_ context.Context, img predict.Image, p predict.Patient) (predict.Result, error) {
	f.calls++
	f.gotImg, f.gotPat = img, p
	return f.result, f.err
}

func intPtr(v int) *int { return &v }
