package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"tablero/internal/config"
	"tablero/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func (r Repo) InsertDashboard(ctx context.Context, d domain.Dashboard) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO dashboards(id,name,status,description,created_at) VALUES (?,?,?,?,?)`,
		d.ID, d.Name, d.Status, nullable(d.Description), d.CreatedAt)
	return err
}

func (r Repo) GetDashboard(ctx context.Context, id string) (domain.Dashboard, error) {
	var d domain.Dashboard
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,status,COALESCE(description,'') AS description,created_at FROM dashboards WHERE id=?`, id).
		Scan(&d.ID, &d.Name, &d.Status, &d.Description, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	return d, err
}

func (r Repo) SingleDashboard(ctx context.Context) (domain.Dashboard, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,status,COALESCE(description,'') AS description,created_at FROM dashboards`)
	if err != nil {
		return domain.Dashboard{}, err
	}
	defer rows.Close()
	var dashboards []domain.Dashboard
	for rows.Next() {
		var d domain.Dashboard
		if err := rows.Scan(&d.ID, &d.Name, &d.Status, &d.Description, &d.CreatedAt); err != nil {
			return domain.Dashboard{}, err
		}
		dashboards = append(dashboards, d)
	}
	if len(dashboards) == 0 {
		return domain.Dashboard{}, ErrNotFound
	}
	if len(dashboards) > 1 {
		return domain.Dashboard{}, fmt.Errorf("multiple dashboards exist; specify --dashboard")
	}
	return dashboards[0], nil
}

func (r Repo) ListDashboards(ctx context.Context) ([]domain.Dashboard, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,status,COALESCE(description,'') AS description,created_at FROM dashboards ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Dashboard
	for rows.Next() {
		var d domain.Dashboard
		if err := rows.Scan(&d.ID, &d.Name, &d.Status, &d.Description, &d.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, nil
}

func (r Repo) UpsertDashboardConfig(ctx context.Context, dashboardID string, cfg *config.Config) error {
	return upsertDashboardConfig(ctx, r.DB, nil, dashboardID, cfg)
}

func (r Repo) UpsertDashboardConfigTx(ctx context.Context, tx *sql.Tx, dashboardID string, cfg *config.Config) error {
	return upsertDashboardConfig(ctx, nil, tx, dashboardID, cfg)
}

func upsertDashboardConfig(ctx context.Context, db *sql.DB, tx *sql.Tx, dashboardID string, cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config nil")
	}
	cfg.Dashboard.ID = dashboardID
	if err := cfg.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	exec := func(query string, args ...any) (sql.Result, error) {
		if tx != nil {
			return tx.ExecContext(ctx, query, args...)
		}
		return db.ExecContext(ctx, query, args...)
	}
	_, err = exec(`INSERT INTO dashboard_configs(dashboard_id,config_json,created_at,updated_at) VALUES (?,?,?,?)
ON CONFLICT(dashboard_id) DO UPDATE SET config_json=excluded.config_json, updated_at=excluded.updated_at`, dashboardID, string(payload), now, now)
	return err
}

func (r Repo) GetDashboardConfig(ctx context.Context, dashboardID string) (*config.Config, error) {
	var payload string
	err := r.DB.QueryRowContext(ctx, `SELECT config_json FROM dashboard_configs WHERE dashboard_id=?`, dashboardID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var cfg config.Config
	if err := json.Unmarshal([]byte(payload), &cfg); err != nil {
		return nil, err
	}
	if cfg.Dashboard.ID == "" {
		cfg.Dashboard.ID = dashboardID
	}
	return &cfg, cfg.Validate()
}

func (r Repo) LatestEvents(ctx context.Context, limit int, dashboardID, evtType, entityKind, entityID string) ([]domain.Event, error) {
	return r.LatestEventsFrom(ctx, limit, 0, dashboardID, evtType, entityKind, entityID)
}

func (r Repo) LatestEventsFrom(ctx context.Context, limit int, cursor int64, dashboardID, evtType, entityKind, entityID string) ([]domain.Event, error) {
	clauses := []string{"1=1"}
	var args []any
	if dashboardID != "" {
		clauses = append(clauses, "dashboard_id=?")
		args = append(args, dashboardID)
	}
	if evtType != "" {
		clauses = append(clauses, "type=?")
		args = append(args, evtType)
	}
	if entityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, entityKind)
	}
	if entityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, entityID)
	}
	if cursor > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, cursor)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := fmt.Sprintf(`SELECT id,ts,type,COALESCE(dashboard_id,''),entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events %s ORDER BY id DESC LIMIT ?`, where)
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		var payload sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.DashboardID, &e.EntityKind, &e.EntityID, &e.ActorID, &payload); err != nil {
			return nil, err
		}
		if payload.Valid {
			e.Payload = payload.String
		}
		res = append(res, e)
	}
	return res, nil
}

// EventsAfter returns events with IDs greater than the cursor in ascending order.
func (r Repo) EventsAfter(ctx context.Context, limit int, cursor int64, dashboardID string) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	clauses := []string{"1=1"}
	var args []any
	if dashboardID != "" {
		clauses = append(clauses, "dashboard_id=?")
		args = append(args, dashboardID)
	}
	if cursor > 0 {
		clauses = append(clauses, "id>?")
		args = append(args, cursor)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := fmt.Sprintf(`SELECT id,ts,type,COALESCE(dashboard_id,''),entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events %s ORDER BY id ASC LIMIT ?`, where)
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		var payload sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.DashboardID, &e.EntityKind, &e.EntityID, &e.ActorID, &payload); err != nil {
			return nil, err
		}
		if payload.Valid {
			e.Payload = payload.String
		}
		res = append(res, e)
	}
	return res, nil
}

// LatestEventID returns the most recent event ID for a dashboard.
func (r Repo) LatestEventID(ctx context.Context, dashboardID string) (int64, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM events WHERE dashboard_id=?`, dashboardID)
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}
