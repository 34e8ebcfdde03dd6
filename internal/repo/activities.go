package repo

import (
	"context"
	"database/sql"
	"strings"

	"tablero/internal/domain"
)

const activityCols = `id,indicator_id,name,area,status,progress,start_date,estimated_end_date,actual_end_date,responsible,COALESCE(observations,''),created_at,updated_at`

func scanActivity(scan func(dest ...any) error) (domain.Activity, error) {
	var a domain.Activity
	var actualEnd sql.NullString
	err := scan(&a.ID, &a.IndicatorID, &a.Name, &a.Area, &a.Status, &a.Progress,
		&a.StartDate, &a.EstimatedEndDate, &actualEnd, &a.Responsible, &a.Observations,
		&a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	if err != nil {
		return a, err
	}
	if actualEnd.Valid {
		a.ActualEndDate = &actualEnd.String
	}
	return a, nil
}

func (r Repo) InsertActivityTx(ctx context.Context, tx *sql.Tx, a domain.Activity) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO activities(id,indicator_id,name,area,status,progress,start_date,estimated_end_date,actual_end_date,responsible,observations,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		a.ID, a.IndicatorID, a.Name, a.Area, a.Status, a.Progress, a.StartDate,
		a.EstimatedEndDate, nullableStringPtr(a.ActualEndDate), a.Responsible,
		nullable(a.Observations), a.CreatedAt, a.UpdatedAt)
	return err
}

func (r Repo) UpdateActivityTx(ctx context.Context, tx *sql.Tx, a domain.Activity) error {
	res, err := tx.ExecContext(ctx, `UPDATE activities SET name=?, area=?, status=?, progress=?, start_date=?, estimated_end_date=?, actual_end_date=?, responsible=?, observations=?, updated_at=? WHERE id=?`,
		a.Name, a.Area, a.Status, a.Progress, a.StartDate, a.EstimatedEndDate,
		nullableStringPtr(a.ActualEndDate), a.Responsible, nullable(a.Observations), a.UpdatedAt, a.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetActivity(ctx context.Context, id string) (domain.Activity, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+activityCols+` FROM activities WHERE id=?`, id)
	return scanActivity(row.Scan)
}

func (r Repo) ListActivitiesByIndicator(ctx context.Context, indicatorID string) ([]domain.Activity, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+activityCols+` FROM activities WHERE indicator_id=? ORDER BY created_at ASC, id ASC`, indicatorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Activity
	for rows.Next() {
		a, err := scanActivity(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, nil
}

type ActivityFilters struct {
	DashboardID string
	IndicatorID string
	Area        string
	Status      string
	Limit       int
}

func (r Repo) ListActivities(ctx context.Context, f ActivityFilters) ([]domain.Activity, error) {
	clauses := []string{"1=1"}
	var args []any
	if f.DashboardID != "" {
		clauses = append(clauses, "indicator_id IN (SELECT id FROM indicators WHERE dashboard_id=?)")
		args = append(args, f.DashboardID)
	}
	if f.IndicatorID != "" {
		clauses = append(clauses, "indicator_id=?")
		args = append(args, f.IndicatorID)
	}
	if f.Area != "" {
		clauses = append(clauses, "area=?")
		args = append(args, f.Area)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := `SELECT ` + activityCols + ` FROM activities ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Activity
	for rows.Next() {
		a, err := scanActivity(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, nil
}

func (r Repo) DeleteActivity(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM activities WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
