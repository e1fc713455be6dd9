package testdata

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/jask/pulmolens/internal/database/repository"
)

// Options controls Seed. Zero values fall back to sensible defaults.
type Options struct {
	Count int
	Seed  int64
	Now   time.Time
}

const (
	pneumoniaReport = "FINDINGS:\nPatchy air-space opacities in the lower lung zones.\n\nIMPRESSION:\nRadiographic findings are suggestive of pneumonia."
	normalReport    = "FINDINGS:\nThe lung fields are clear bilaterally.\n\nIMPRESSION:\nNo radiographic evidence of acute cardiopulmonary abnormality."
)

// Seed inserts sample reports spread over the last two weeks. The same seed
// always yields the same rows apart from ids.
func Seed(ctx context.Context, repo *repository.ReportRepo, opts Options) ([]repository.Report, error) {
	if opts.Count <= 0 {
		opts.Count = 20
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now().UTC()
	}
	rng := rand.New(rand.NewSource(opts.Seed))
	genders := []string{"Male", "Female", "Other"}

	out := make([]repository.Report, 0, opts.Count)
	for i := 0; i < opts.Count; i++ {
		age := 1 + rng.Intn(95)
		pred := rng.Float64()
		diagnosis, text, confidence := "NORMAL", normalReport, (1-pred)*100
		if pred > 0.5 {
			diagnosis, text, confidence = "PNEUMONIA", pneumoniaReport, pred*100
		}
		rep := repository.Report{
			ID:         uuid.NewString(),
			PatientID:  fmt.Sprintf("P-%03d", 1+rng.Intn(opts.Count/2+1)),
			Age:        &age,
			Gender:     genders[rng.Intn(len(genders))],
			ImageName:  fmt.Sprintf("xray_%03d.jpeg", i+1),
			Diagnosis:  diagnosis,
			Confidence: confidence,
			ReportText: text,
			CreatedAt:  opts.Now.Add(-time.Duration(rng.Intn(14*24)) * time.Hour).Truncate(time.Second),
		}
		if err := repo.Insert(ctx, rep); err != nil {
			return out, fmt.Errorf("seed report %d: %w", i, err)
		}
		out = append(out, rep)
	}
	return out, nil
}
