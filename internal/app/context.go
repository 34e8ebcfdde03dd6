package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tablero/internal/config"
	"tablero/internal/domain"
	"tablero/internal/repo"
)

// ResolveDashboardAndConfig picks the active dashboard and ensures a dashboard
// plus config exist in DB, seeding defaults if missing. It prefers overrides,
// then single-dashboard DB. A missing dashboard is created on the fly.
func ResolveDashboardAndConfig(ctx context.Context, dashboardOverride string, r repo.Repo) (string, *config.Config, error) {
	dashboardID := dashboardOverride
	if dashboardID == "" {
		if d, err := r.SingleDashboard(ctx); err == nil {
			dashboardID = d.ID
		} else {
			return "", nil, fmt.Errorf("dashboard not specified; use --dashboard")
		}
	}
	seedCfg := config.Default(dashboardID)

	if _, err := r.GetDashboard(ctx, dashboardID); err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return "", nil, err
		}
		if err := createDashboard(ctx, r, dashboardID, seedCfg); err != nil {
			return "", nil, err
		}
	}
	cfg, err := r.GetDashboardConfig(ctx, dashboardID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			if err := r.UpsertDashboardConfig(ctx, dashboardID, seedCfg); err != nil {
				return "", nil, fmt.Errorf("seed dashboard config: %w", err)
			}
			cfg = seedCfg
		} else {
			return "", nil, err
		}
	}
	cfg.Dashboard.ID = dashboardID
	return dashboardID, cfg, nil
}

func createDashboard(ctx context.Context, r repo.Repo, dashboardID string, seedCfg *config.Config) error {
	if seedCfg == nil {
		seedCfg = config.Default(dashboardID)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	name := seedCfg.Dashboard.Name
	if name == "" {
		name = dashboardID
	}
	d := domain.Dashboard{
		ID:        dashboardID,
		Name:      name,
		Status:    "active",
		CreatedAt: now,
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO dashboards(id,name,status,description,created_at) VALUES (?,?,?,?,?)`,
		d.ID, d.Name, d.Status, d.Description, d.CreatedAt); err != nil {
		return fmt.Errorf("insert dashboard: %w", err)
	}
	if err := r.UpsertDashboardConfigTx(ctx, tx, dashboardID, seedCfg); err != nil {
		return fmt.Errorf("insert dashboard config: %w", err)
	}
	return tx.Commit()
}
