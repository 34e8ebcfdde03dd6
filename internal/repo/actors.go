package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"tablero/internal/domain"
)

func (r Repo) InsertActor(ctx context.Context, a domain.Actor) error {
	if a.ID == "" {
		return errors.New("id required")
	}
	if a.Role == "" {
		return errors.New("role required")
	}
	if a.CreatedAt == "" {
		a.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	_, err := r.DB.ExecContext(ctx, `INSERT INTO actors(id,name,email,role,area,active,created_at) VALUES (?,?,?,?,?,?,?)`,
		a.ID, a.Name, nullable(a.Email), a.Role, nullable(a.Area), boolToInt(a.Active), a.CreatedAt)
	return err
}

func (r Repo) GetActor(ctx context.Context, id string) (domain.Actor, error) {
	var a domain.Actor
	var email, area sql.NullString
	var active int
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,email,role,area,active,created_at FROM actors WHERE id=?`, id).
		Scan(&a.ID, &a.Name, &email, &a.Role, &area, &active, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	if err != nil {
		return a, err
	}
	if email.Valid {
		a.Email = email.String
	}
	if area.Valid {
		a.Area = area.String
	}
	a.Active = active != 0
	return a, nil
}

func (r Repo) ListActors(ctx context.Context, role string) ([]domain.Actor, error) {
	query := `SELECT id,name,email,role,area,active,created_at FROM actors`
	var args []any
	if role != "" {
		query += ` WHERE role=?`
		args = append(args, role)
	}
	query += ` ORDER BY created_at DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Actor
	for rows.Next() {
		var a domain.Actor
		var email, area sql.NullString
		var active int
		if err := rows.Scan(&a.ID, &a.Name, &email, &a.Role, &area, &active, &a.CreatedAt); err != nil {
			return nil, err
		}
		if email.Valid {
			a.Email = email.String
		}
		if area.Valid {
			a.Area = area.String
		}
		a.Active = active != 0
		res = append(res, a)
	}
	return res, nil
}

func (r Repo) UpdateActor(ctx context.Context, id string, role, area *string, active *bool) error {
	var (
		fields []string
		args   []any
	)
	if role != nil {
		fields = append(fields, "role=?")
		args = append(args, *role)
	}
	if area != nil {
		fields = append(fields, "area=?")
		args = append(args, nullable(*area))
	}
	if active != nil {
		fields = append(fields, "active=?")
		args = append(args, boolToInt(*active))
	}
	if len(fields) == 0 {
		return nil
	}
	args = append(args, id)
	res, err := r.DB.ExecContext(ctx, `UPDATE actors SET `+strings.Join(fields, ",")+` WHERE id=?`, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteActor(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM actors WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
