package repo

import (
	"context"
	"database/sql"
	"strings"

	"tablero/internal/domain"
)

const riskCols = `id,dashboard_id,name,area,category,impact,probability,exposure,COALESCE(mitigation_plan,''),mitigation_status,status,responsible,import_batch_id,created_at,updated_at`

func scanRisk(scan func(dest ...any) error) (domain.Risk, error) {
	var rk domain.Risk
	var batchID sql.NullString
	err := scan(&rk.ID, &rk.DashboardID, &rk.Name, &rk.Area, &rk.Category, &rk.Impact,
		&rk.Probability, &rk.Exposure, &rk.MitigationPlan, &rk.MitigationStatus,
		&rk.Status, &rk.Responsible, &batchID, &rk.CreatedAt, &rk.UpdatedAt)
	if err == sql.ErrNoRows {
		return rk, ErrNotFound
	}
	if err != nil {
		return rk, err
	}
	if batchID.Valid {
		rk.ImportBatchID = &batchID.String
	}
	return rk, nil
}

func (r Repo) InsertRiskTx(ctx context.Context, tx *sql.Tx, rk domain.Risk) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO risks(id,dashboard_id,name,area,category,impact,probability,exposure,mitigation_plan,mitigation_status,status,responsible,import_batch_id,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		rk.ID, rk.DashboardID, rk.Name, rk.Area, rk.Category, rk.Impact, rk.Probability,
		rk.Exposure, nullable(rk.MitigationPlan), rk.MitigationStatus, rk.Status,
		rk.Responsible, nullableStringPtr(rk.ImportBatchID), rk.CreatedAt, rk.UpdatedAt)
	return err
}

func (r Repo) UpdateRiskTx(ctx context.Context, tx *sql.Tx, rk domain.Risk) error {
	res, err := tx.ExecContext(ctx, `UPDATE risks SET name=?, area=?, category=?, impact=?, probability=?, exposure=?, mitigation_plan=?, mitigation_status=?, status=?, responsible=?, updated_at=? WHERE id=?`,
		rk.Name, rk.Area, rk.Category, rk.Impact, rk.Probability, rk.Exposure,
		nullable(rk.MitigationPlan), rk.MitigationStatus, rk.Status, rk.Responsible, rk.UpdatedAt, rk.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetRisk(ctx context.Context, id string) (domain.Risk, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+riskCols+` FROM risks WHERE id=?`, id)
	return scanRisk(row.Scan)
}

type RiskFilters struct {
	DashboardID   string
	Area          string
	Status        string
	ImportBatchID string
	Limit         int
}

func (r Repo) ListRisks(ctx context.Context, f RiskFilters) ([]domain.Risk, error) {
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
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + riskCols + ` FROM risks ` + where + ` ORDER BY exposure DESC, created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Risk
	for rows.Next() {
		rk, err := scanRisk(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, rk)
	}
	return res, nil
}

func (r Repo) DeleteRisk(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM risks WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteRisksByBatchTx(ctx context.Context, tx *sql.Tx, dashboardID, batchID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM risks WHERE dashboard_id=? AND import_batch_id=?`, dashboardID, batchID)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (r Repo) DeleteRisksByDayTx(ctx context.Context, tx *sql.Tx, dashboardID, day string) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM risks WHERE dashboard_id=? AND substr(created_at,1,10)=?`, dashboardID, day)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}
