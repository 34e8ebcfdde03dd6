package repo

import (
	"context"
	"database/sql"
	"strings"

	"tablero/internal/domain"
)

const indicatorCols = `id,dashboard_id,name,area,target,actual,measurement_date,responsible,status,COALESCE(observations,''),import_batch_id,created_at,updated_at`

func scanIndicator(scan func(dest ...any) error) (domain.Indicator, error) {
	var ind domain.Indicator
	var batchID sql.NullString
	err := scan(&ind.ID, &ind.DashboardID, &ind.Name, &ind.Area, &ind.Target, &ind.Actual,
		&ind.MeasurementDate, &ind.Responsible, &ind.Status, &ind.Observations, &batchID,
		&ind.CreatedAt, &ind.UpdatedAt)
	if err == sql.ErrNoRows {
		return ind, ErrNotFound
	}
	if err != nil {
		return ind, err
	}
	if batchID.Valid {
		ind.ImportBatchID = &batchID.String
	}
	return ind, nil
}

func (r Repo) InsertIndicatorTx(ctx context.Context, tx *sql.Tx, ind domain.Indicator) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO indicators(id,dashboard_id,name,area,target,actual,measurement_date,responsible,status,observations,import_batch_id,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		ind.ID, ind.DashboardID, ind.Name, ind.Area, ind.Target, ind.Actual, ind.MeasurementDate,
		ind.Responsible, ind.Status, nullable(ind.Observations), nullableStringPtr(ind.ImportBatchID),
		ind.CreatedAt, ind.UpdatedAt)
	return err
}

func (r Repo) UpdateIndicatorTx(ctx context.Context, tx *sql.Tx, ind domain.Indicator) error {
	res, err := tx.ExecContext(ctx, `UPDATE indicators SET name=?, area=?, target=?, actual=?, measurement_date=?, responsible=?, status=?, observations=?, updated_at=? WHERE id=?`,
		ind.Name, ind.Area, ind.Target, ind.Actual, ind.MeasurementDate, ind.Responsible,
		ind.Status, nullable(ind.Observations), ind.UpdatedAt, ind.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetIndicator(ctx context.Context, id string) (domain.Indicator, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+indicatorCols+` FROM indicators WHERE id=?`, id)
	ind, err := scanIndicator(row.Scan)
	if err != nil {
		return ind, err
	}
	acts, err := r.ListActivitiesByIndicator(ctx, ind.ID)
	if err != nil {
		return ind, err
	}
	ind.Activities = acts
	return ind, nil
}

type IndicatorFilters struct {
	DashboardID     string
	Area            string
	Status          string
	ImportBatchID   string
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

func (r Repo) ListIndicators(ctx context.Context, f IndicatorFilters) ([]domain.Indicator, error) {
	var clauses []string
	var args []any
	if f.DashboardID != "" {
		clauses = append(clauses, "dashboard_id=?")
		args = append(args, f.DashboardID)
	}
	if f.Area != "" {
		clauses = append(clauses, "area=?")
		args = append(args, f.Area)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.ImportBatchID != "" {
		clauses = append(clauses, "import_batch_id=?")
		args = append(args, f.ImportBatchID)
	}
	if f.CursorCreatedAt != "" && f.CursorID != "" {
		clauses = append(clauses, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, f.CursorCreatedAt, f.CursorCreatedAt, f.CursorID)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + indicatorCols + ` FROM indicators ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Indicator
	for rows.Next() {
		ind, err := scanIndicator(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, ind)
	}
	return res, nil
}

// ListIndicatorsWithActivities loads indicators and attaches each one's
// activities in a single extra query per page.
func (r Repo) ListIndicatorsWithActivities(ctx context.Context, f IndicatorFilters) ([]domain.Indicator, error) {
	inds, err := r.ListIndicators(ctx, f)
	if err != nil {
		return nil, err
	}
	for i := range inds {
		acts, err := r.ListActivitiesByIndicator(ctx, inds[i].ID)
		if err != nil {
			return nil, err
		}
		inds[i].Activities = acts
	}
	return inds, nil
}

func (r Repo) DeleteIndicator(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM indicators WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteIndicatorsByBatchTx removes all indicators from one import batch.
// Activities cascade via the FK.
func (r Repo) DeleteIndicatorsByBatchTx(ctx context.Context, tx *sql.Tx, dashboardID, batchID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM indicators WHERE dashboard_id=? AND import_batch_id=?`, dashboardID, batchID)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// DeleteIndicatorsByDayTx removes indicators created on a calendar day
// (YYYY-MM-DD). Used when a batch id is not recorded on the rows.
func (r Repo) DeleteIndicatorsByDayTx(ctx context.Context, tx *sql.Tx, dashboardID, day string) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM indicators WHERE dashboard_id=? AND substr(created_at,1,10)=?`, dashboardID, day)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (r Repo) CountIndicatorsByStatus(ctx context.Context, dashboardID string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, count(*) FROM indicators WHERE dashboard_id=? GROUP BY status`, dashboardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		res[status] = count
	}
	return res, nil
}
