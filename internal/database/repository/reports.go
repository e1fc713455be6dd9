package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

var ErrReportNotFound = errors.New("report not found")

// ReportRepo handles the report history.
type ReportRepo struct {
	db *sql.DB
}

func NewReportRepo(db *sql.DB) *ReportRepo { return &ReportRepo{db: db} }

func (r *ReportRepo) Insert(ctx context.Context, rep Report) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO reports(
	 id, patient_id, age, gender, image_name, diagnosis, confidence, report_text, created_at)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?);
	`,
		rep.ID, rep.PatientID, rep.Age, rep.Gender, rep.ImageName,
		rep.Diagnosis, rep.Confidence, rep.ReportText, rep.CreatedAt.UTC())
	return err
}

func (r *ReportRepo) Get(ctx context.Context, id string) (Report, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = ?`, id)
	rep, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Report{}, ErrReportNotFound
	}
	return rep, err
}

// List returns reports newest first.
func (r *ReportRepo) List(ctx context.Context, f ReportFilters) ([]Report, error) {
	var where []string
	var args []interface{}

	if f.PatientID != "" {
		where = append(where, "patient_id = ?")
		args = append(args, f.PatientID)
	}
	if f.Diagnosis != "" {
		where = append(where, "UPPER(diagnosis) = UPPER(?)")
		args = append(args, f.Diagnosis)
	}
	if !f.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, f.Since.UTC())
	}

	q := `SELECT ` + reportColumns + ` FROM reports`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Report
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}

// PatientIDs lists distinct non-empty patient ids.
func (r *ReportRepo) PatientIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT patient_id FROM reports WHERE patient_id <> '' ORDER BY patient_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *ReportRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reports`).Scan(&n)
	return n, err
}

func (r *ReportRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reports WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrReportNotFound
	}
	return nil
}

const reportColumns = `id, patient_id, age, gender, image_name, diagnosis, confidence, report_text, created_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanReport(s scanner) (Report, error) {
	var rep Report
	var age sql.NullInt64
	if err := s.Scan(&rep.ID, &rep.PatientID, &age, &rep.Gender, &rep.ImageName,
		&rep.Diagnosis, &rep.Confidence, &rep.ReportText, &rep.CreatedAt); err != nil {
		return Report{}, err
	}
	if age.Valid {
		v := int(age.Int64)
		rep.Age = &v
	}
	return rep, nil
}
