package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"

	"github.com/jask/pulmolens/internal/database/repository"
)

// DiagnosisAll disables the diagnosis filter.
const DiagnosisAll = "All"

// HistoryQuery filters the report history.
type HistoryQuery struct {
	PatientID string
	Diagnosis string
	// Since drops reports recorded before it. Zero means no lower bound.
	Since time.Time
	Limit int
}

// HistoryService answers questions about recorded reports.
type HistoryService struct {
	Reports *repository.ReportRepo
}

// Search returns reports matching q, newest first.
func (s *HistoryService) Search(ctx context.Context, q HistoryQuery) ([]repository.Report, error) {
	f := repository.ReportFilters{
		PatientID: strings.TrimSpace(q.PatientID),
		Since:     q.Since,
		Limit:     q.Limit,
	}
	if d := strings.TrimSpace(q.Diagnosis); d != "" && !strings.EqualFold(d, DiagnosisAll) {
		f.Diagnosis = d
	}
	return s.Reports.List(ctx, f)
}

// Delete removes one recorded report.
func (s *HistoryService) Delete(ctx context.Context, id string) error {
	return s.Reports.Delete(ctx, id)
}

// SuggestPatient returns the known patient id closest to query when query
// itself is unknown. ok is false when query matches exactly or nothing is close.
func (s *HistoryService) SuggestPatient(ctx context.Context, query string) (string, bool, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", false, nil
	}
	ids, err := s.Reports.PatientIDs(ctx)
	if err != nil {
		return "", false, err
	}
	best, ok := closestID(query, ids)
	return best, ok, nil
}

func closestID(query string, ids []string) (string, bool) {
	limit := len(query) / 3
	if limit < 1 {
		limit = 1
	}
	best, bestDist := "", limit+1
	for _, id := range ids {
		if id == query {
			return "", false
		}
		d := levenshtein.ComputeDistance(strings.ToUpper(query), strings.ToUpper(id))
		if d < bestDist {
			best, bestDist = id, d
		}
	}
	if best == "" {
		return "", false
	}
	return best, true
}

// LabelCount pairs a label with how often it occurs.
type LabelCount struct {
	Label string
	Count int
}

// AgeGroupRow is one row of the age group vs diagnosis crosstab.
type AgeGroupRow struct {
	Label  string
	Counts map[string]int
}

// DayCount is the number of reports recorded on one UTC day.
type DayCount struct {
	Day   time.Time
	Count int
}

// ConfidenceBins is the number of histogram buckets over 0-100.
const ConfidenceBins = 8

// Stats summarises a set of reports.
type Stats struct {
	Total          int
	ByDiagnosis    []LabelCount
	MeanConfidence float64
	Confidence     [ConfidenceBins]int
	AgeGroups      []AgeGroupRow
	Daily          []DayCount
}

var ageGroups = []struct {
	label string
	max   int
}{
	{"0–20", 20},
	{"21–40", 40},
	{"41–60", 60},
	{"61–80", 80},
	{"80+", 1 << 30},
}

// AgeGroupLabels returns the crosstab row labels in display order.
func AgeGroupLabels() []string {
	out := make([]string, len(ageGroups))
	for i, g := range ageGroups {
		out[i] = g.label
	}
	return out
}

func ageGroup(age int) int {
	for i, g := range ageGroups {
		if age <= g.max {
			return i
		}
	}
	return len(ageGroups) - 1
}

func confidenceBin(c float64) int {
	idx := int(c / (100.0 / ConfidenceBins))
	if idx < 0 {
		return 0
	}
	if idx >= ConfidenceBins {
		return ConfidenceBins - 1
	}
	return idx
}

// ComputeStats builds the analytics shown on the history tab.
func ComputeStats(reports []repository.Report) Stats {
	st := Stats{Total: len(reports)}
	if len(reports) == 0 {
		return st
	}

	byDiag := map[string]int{}
	rows := make([]AgeGroupRow, len(ageGroups))
	for i, g := range ageGroups {
		rows[i] = AgeGroupRow{Label: g.label, Counts: map[string]int{}}
	}
	daily := map[time.Time]int{}
	var sum float64

	for _, r := range reports {
		byDiag[r.Diagnosis]++
		sum += r.Confidence
		st.Confidence[confidenceBin(r.Confidence)]++
		if r.Age != nil && *r.Age > 0 {
			rows[ageGroup(*r.Age)].Counts[r.Diagnosis]++
		}
		t := r.CreatedAt.UTC()
		daily[time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)]++
	}

	for label, n := range byDiag {
		st.ByDiagnosis = append(st.ByDiagnosis, LabelCount{Label: label, Count: n})
	}
	sort.Slice(st.ByDiagnosis, func(i, j int) bool {
		if st.ByDiagnosis[i].Count != st.ByDiagnosis[j].Count {
			return st.ByDiagnosis[i].Count > st.ByDiagnosis[j].Count
		}
		return st.ByDiagnosis[i].Label < st.ByDiagnosis[j].Label
	})

	st.MeanConfidence = sum / float64(len(reports))
	st.AgeGroups = rows

	for day, n := range daily {
		st.Daily = append(st.Daily, DayCount{Day: day, Count: n})
	}
	sort.Slice(st.Daily, func(i, j int) bool { return st.Daily[i].Day.Before(st.Daily[j].Day) })
	return st
}
