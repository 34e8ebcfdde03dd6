package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"tablero/internal/domain"
)

const historyCols = `id,dashboard_id,file_name,file_size,file_hash,date,kind,indicators_count,activities_count,risks_count,status,COALESCE(error_message,''),imported_by,imported_by_role,areas_json`

func scanHistory(scan func(dest ...any) error) (domain.ImportHistoryEntry, error) {
	var h domain.ImportHistoryEntry
	var areasJSON string
	err := scan(&h.ID, &h.DashboardID, &h.FileName, &h.FileSize, &h.FileHash, &h.Date,
		&h.Kind, &h.IndicatorsCount, &h.ActivitiesCount, &h.RisksCount, &h.Status,
		&h.ErrorMessage, &h.ImportedBy, &h.ImportedByRole, &areasJSON)
	if err == sql.ErrNoRows {
		return h, ErrNotFound
	}
	if err != nil {
		return h, err
	}
	if areasJSON != "" {
		if err := json.Unmarshal([]byte(areasJSON), &h.Areas); err != nil {
			return h, err
		}
	}
	if h.Areas == nil {
		h.Areas = []string{}
	}
	return h, nil
}

func (r Repo) InsertImportHistoryTx(ctx context.Context, tx *sql.Tx, h domain.ImportHistoryEntry) error {
	areas := h.Areas
	if areas == nil {
		areas = []string{}
	}
	areasJSON, err := json.Marshal(areas)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO import_history(id,dashboard_id,file_name,file_size,file_hash,date,kind,indicators_count,activities_count,risks_count,status,error_message,imported_by,imported_by_role,areas_json)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		h.ID, h.DashboardID, h.FileName, h.FileSize, h.FileHash, h.Date, h.Kind,
		h.IndicatorsCount, h.ActivitiesCount, h.RisksCount, h.Status,
		nullable(h.ErrorMessage), h.ImportedBy, h.ImportedByRole, string(areasJSON))
	return err
}

func (r Repo) GetImportHistory(ctx context.Context, id string) (domain.ImportHistoryEntry, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+historyCols+` FROM import_history WHERE id=?`, id)
	return scanHistory(row.Scan)
}

func (r Repo) ListImportHistory(ctx context.Context, dashboardID string, limit int) ([]domain.ImportHistoryEntry, error) {
	query := `SELECT ` + historyCols + ` FROM import_history WHERE dashboard_id=? ORDER BY date DESC, id DESC`
	args := []any{dashboardID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ImportHistoryEntry
	for rows.Next() {
		h, err := scanHistory(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, h)
	}
	return res, nil
}

// FindDuplicateImport returns the prior entry matching the content hash, or a
// successful entry with the same file name. File renames do not defeat the
// hash check.
func (r Repo) FindDuplicateImport(ctx context.Context, dashboardID, fileHash, fileName string) (domain.ImportHistoryEntry, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+historyCols+` FROM import_history
WHERE dashboard_id=? AND (file_hash=? OR (file_name=? AND status='success'))
ORDER BY date DESC, id DESC LIMIT 1`, dashboardID, fileHash, fileName)
	return scanHistory(row.Scan)
}

func (r Repo) DeleteImportHistory(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM import_history WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) PurgeImportHistory(ctx context.Context, dashboardID string) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM import_history WHERE dashboard_id=?`, dashboardID)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// MarkImportHistoryErrorTx flips an entry to error state with a note. Used
// after its imported rows are removed so the ledger reflects the deletion.
func (r Repo) MarkImportHistoryErrorTx(ctx context.Context, tx *sql.Tx, id, message string) error {
	res, err := tx.ExecContext(ctx, `UPDATE import_history SET status='error', error_message=? WHERE id=?`, message, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
