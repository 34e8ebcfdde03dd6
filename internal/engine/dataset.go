package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tablero/internal/domain"
	"tablero/internal/events"
	"tablero/internal/fields"
	"tablero/internal/repo"
)

// IndicatorUpdate patches an indicator. Nil fields keep their value.
type IndicatorUpdate struct {
	Name            *string
	Area            *string
	Target          *float64
	Actual          *float64
	MeasurementDate *string
	Responsible     *string
	Status          *string
	Observations    *string
}

func (e Engine) UpdateIndicator(ctx context.Context, id string, upd IndicatorUpdate, actorID string) (domain.Indicator, error) {
	ind, err := e.Repo.GetIndicator(ctx, id)
	if err != nil {
		return domain.Indicator{}, err
	}
	measured := false
	if upd.Name != nil {
		ind.Name = *upd.Name
	}
	if upd.Area != nil {
		if !domain.ValidArea(*upd.Area) {
			return domain.Indicator{}, fmt.Errorf("unknown area %s", *upd.Area)
		}
		ind.Area = *upd.Area
	}
	if upd.Target != nil {
		if *upd.Target <= 0 {
			return domain.Indicator{}, fmt.Errorf("target must be greater than 0")
		}
		ind.Target = *upd.Target
		measured = true
	}
	if upd.Actual != nil {
		ind.Actual = *upd.Actual
		measured = true
	}
	if upd.MeasurementDate != nil {
		ind.MeasurementDate = *upd.MeasurementDate
	}
	if upd.Responsible != nil {
		ind.Responsible = *upd.Responsible
	}
	if upd.Observations != nil {
		ind.Observations = *upd.Observations
	}
	switch {
	case upd.Status != nil:
		ind.Status = *upd.Status
	case measured && ind.Status != domain.IndicatorInProgress:
		// in_progress marks a manual override; never recompute over it.
		ind.Status = fields.StatusFromRatio(ind.Actual / ind.Target * 100)
	}
	ind.UpdatedAt = e.now().UTC().Format(time.RFC3339)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Indicator{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateIndicatorTx(ctx, tx, ind); err != nil {
		return domain.Indicator{}, err
	}
	if err := e.Events.Append(ctx, tx, "indicator.updated", ind.DashboardID, "indicator", ind.ID, actorID, events.EventPayload{
		"status": ind.Status,
	}); err != nil {
		return domain.Indicator{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Indicator{}, err
	}
	return ind, nil
}

func (e Engine) DeleteIndicator(ctx context.Context, id, actorID string) error {
	ind, err := e.Repo.GetIndicator(ctx, id)
	if err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM indicators WHERE id=?`, id); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "indicator.deleted", ind.DashboardID, "indicator", ind.ID, actorID, events.EventPayload{
		"name": ind.Name,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

// CreateIndicator inserts a manually entered indicator. Unlike imported ones
// it starts without activities and without a batch id.
func (e Engine) CreateIndicator(ctx context.Context, ind domain.Indicator, actorID string) (domain.Indicator, error) {
	if ind.DashboardID == "" {
		return domain.Indicator{}, fmt.Errorf("dashboard is required")
	}
	if ind.Name == "" {
		return domain.Indicator{}, fmt.Errorf("name is required")
	}
	if !domain.ValidArea(ind.Area) {
		return domain.Indicator{}, fmt.Errorf("unknown area %s", ind.Area)
	}
	if ind.Target <= 0 {
		return domain.Indicator{}, fmt.Errorf("target must be greater than 0")
	}
	if ind.ID == "" {
		ind.ID = uuid.NewString()
	}
	if ind.Status == "" {
		ind.Status = fields.StatusFromRatio(ind.Actual / ind.Target * 100)
	}
	if ind.MeasurementDate == "" {
		ind.MeasurementDate = e.now().UTC().Format("2006-01-02")
	}
	ts := e.now().UTC().Format(time.RFC3339)
	ind.CreatedAt = ts
	ind.UpdatedAt = ts
	ind.ImportBatchID = nil
	ind.Activities = nil

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Indicator{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertIndicatorTx(ctx, tx, ind); err != nil {
		return domain.Indicator{}, err
	}
	if err := e.Events.Append(ctx, tx, "indicator.created", ind.DashboardID, "indicator", ind.ID, actorID, events.EventPayload{
		"name": ind.Name,
		"area": ind.Area,
	}); err != nil {
		return domain.Indicator{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Indicator{}, err
	}
	return ind, nil
}

// ActivityUpdate patches an activity. Nil fields keep their value.
type ActivityUpdate struct {
	Name             *string
	Status           *string
	Progress         *int
	StartDate        *string
	EstimatedEndDate *string
	ActualEndDate    *string
	Responsible      *string
	Observations     *string
}

func (e Engine) UpdateActivity(ctx context.Context, id string, upd ActivityUpdate, actorID string) (domain.Activity, error) {
	act, err := e.Repo.GetActivity(ctx, id)
	if err != nil {
		return domain.Activity{}, err
	}
	if upd.Name != nil {
		act.Name = *upd.Name
	}
	if upd.Status != nil {
		act.Status = *upd.Status
	}
	if upd.Progress != nil {
		if *upd.Progress < 0 || *upd.Progress > 100 {
			return domain.Activity{}, fmt.Errorf("progress must be between 0 and 100")
		}
		act.Progress = *upd.Progress
	}
	if upd.StartDate != nil {
		act.StartDate = *upd.StartDate
	}
	if upd.EstimatedEndDate != nil {
		act.EstimatedEndDate = *upd.EstimatedEndDate
	}
	if upd.ActualEndDate != nil {
		if *upd.ActualEndDate == "" {
			act.ActualEndDate = nil
		} else {
			act.ActualEndDate = upd.ActualEndDate
		}
	}
	if upd.Responsible != nil {
		act.Responsible = *upd.Responsible
	}
	if upd.Observations != nil {
		act.Observations = *upd.Observations
	}
	act.UpdatedAt = e.now().UTC().Format(time.RFC3339)

	ind, err := e.Repo.GetIndicator(ctx, act.IndicatorID)
	if err != nil {
		return domain.Activity{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Activity{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateActivityTx(ctx, tx, act); err != nil {
		return domain.Activity{}, err
	}
	if err := e.Events.Append(ctx, tx, "activity.updated", ind.DashboardID, "activity", act.ID, actorID, events.EventPayload{
		"status":   act.Status,
		"progress": act.Progress,
	}); err != nil {
		return domain.Activity{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Activity{}, err
	}
	return act, nil
}

// CreateActivity inserts a manually entered activity under an existing
// indicator.
func (e Engine) CreateActivity(ctx context.Context, act domain.Activity, actorID string) (domain.Activity, error) {
	if act.Name == "" {
		return domain.Activity{}, fmt.Errorf("name is required")
	}
	if act.Progress < 0 || act.Progress > 100 {
		return domain.Activity{}, fmt.Errorf("progress must be between 0 and 100")
	}
	ind, err := e.Repo.GetIndicator(ctx, act.IndicatorID)
	if err != nil {
		return domain.Activity{}, err
	}
	if act.ID == "" {
		act.ID = uuid.NewString()
	}
	if act.Area == "" {
		act.Area = ind.Area
	}
	if act.Status == "" {
		act.Status = domain.ActivityPending
	}
	ts := e.now().UTC().Format(time.RFC3339)
	act.CreatedAt = ts
	act.UpdatedAt = ts

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Activity{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertActivityTx(ctx, tx, act); err != nil {
		return domain.Activity{}, err
	}
	if err := e.Events.Append(ctx, tx, "activity.created", ind.DashboardID, "activity", act.ID, actorID, events.EventPayload{
		"name":      act.Name,
		"indicator": ind.ID,
	}); err != nil {
		return domain.Activity{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Activity{}, err
	}
	return act, nil
}

func (e Engine) DeleteActivity(ctx context.Context, id, actorID string) error {
	act, err := e.Repo.GetActivity(ctx, id)
	if err != nil {
		return err
	}
	ind, err := e.Repo.GetIndicator(ctx, act.IndicatorID)
	if err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM activities WHERE id=?`, id); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "activity.deleted", ind.DashboardID, "activity", act.ID, actorID, events.EventPayload{
		"name": act.Name,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

// RiskUpdate patches a risk. Nil fields keep their value. Changing impact or
// probability recomputes exposure.
type RiskUpdate struct {
	Name             *string
	Area             *string
	Category         *string
	Impact           *string
	Probability      *string
	MitigationPlan   *string
	MitigationStatus *string
	Status           *string
	Responsible      *string
}

func (e Engine) UpdateRisk(ctx context.Context, id string, upd RiskUpdate, actorID string) (domain.Risk, error) {
	rk, err := e.Repo.GetRisk(ctx, id)
	if err != nil {
		return domain.Risk{}, err
	}
	if upd.Name != nil {
		rk.Name = *upd.Name
	}
	if upd.Area != nil {
		if !domain.ValidArea(*upd.Area) {
			return domain.Risk{}, fmt.Errorf("unknown area %s", *upd.Area)
		}
		rk.Area = *upd.Area
	}
	if upd.Category != nil {
		rk.Category = *upd.Category
	}
	if upd.Impact != nil {
		rk.Impact = fields.Impact(*upd.Impact)
	}
	if upd.Probability != nil {
		rk.Probability = fields.Probability(*upd.Probability)
	}
	if upd.Impact != nil || upd.Probability != nil {
		rk.Exposure = fields.Exposure(rk.Impact, rk.Probability)
	}
	if upd.MitigationPlan != nil {
		rk.MitigationPlan = *upd.MitigationPlan
	}
	if upd.MitigationStatus != nil {
		rk.MitigationStatus = *upd.MitigationStatus
	}
	if upd.Status != nil {
		rk.Status = *upd.Status
	}
	if upd.Responsible != nil {
		rk.Responsible = *upd.Responsible
	}
	rk.UpdatedAt = e.now().UTC().Format(time.RFC3339)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Risk{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateRiskTx(ctx, tx, rk); err != nil {
		return domain.Risk{}, err
	}
	if err := e.Events.Append(ctx, tx, "risk.updated", rk.DashboardID, "risk", rk.ID, actorID, events.EventPayload{
		"status":   rk.Status,
		"exposure": rk.Exposure,
	}); err != nil {
		return domain.Risk{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Risk{}, err
	}
	return rk, nil
}

// CreateRisk inserts a manually entered risk. Exposure is always derived,
// never taken from the input.
func (e Engine) CreateRisk(ctx context.Context, rk domain.Risk, actorID string) (domain.Risk, error) {
	if rk.DashboardID == "" {
		return domain.Risk{}, fmt.Errorf("dashboard is required")
	}
	if rk.Name == "" {
		return domain.Risk{}, fmt.Errorf("name is required")
	}
	if !domain.ValidArea(rk.Area) {
		return domain.Risk{}, fmt.Errorf("unknown area %s", rk.Area)
	}
	if rk.ID == "" {
		rk.ID = uuid.NewString()
	}
	rk.Impact = fields.Impact(rk.Impact)
	rk.Probability = fields.Probability(rk.Probability)
	rk.Exposure = fields.Exposure(rk.Impact, rk.Probability)
	if rk.Status == "" {
		rk.Status = fields.RiskStatus(rk.Impact, rk.Probability)
	}
	if rk.MitigationStatus == "" {
		rk.MitigationStatus = "pending"
	}
	ts := e.now().UTC().Format(time.RFC3339)
	rk.CreatedAt = ts
	rk.UpdatedAt = ts
	rk.ImportBatchID = nil

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Risk{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertRiskTx(ctx, tx, rk); err != nil {
		return domain.Risk{}, err
	}
	if err := e.Events.Append(ctx, tx, "risk.created", rk.DashboardID, "risk", rk.ID, actorID, events.EventPayload{
		"name":     rk.Name,
		"exposure": rk.Exposure,
	}); err != nil {
		return domain.Risk{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Risk{}, err
	}
	return rk, nil
}

func (e Engine) DeleteRisk(ctx context.Context, id, actorID string) error {
	rk, err := e.Repo.GetRisk(ctx, id)
	if err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM risks WHERE id=?`, id); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "risk.deleted", rk.DashboardID, "risk", rk.ID, actorID, events.EventPayload{
		"name": rk.Name,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

// AreaSummary aggregates one area's imported state.
type AreaSummary struct {
	Area        string  `json:"area"`
	Indicators  int     `json:"indicators"`
	Achieved    int     `json:"achieved"`
	AtRisk      int     `json:"at_risk"`
	Critical    int     `json:"critical"`
	Activities  int     `json:"activities"`
	AvgProgress float64 `json:"avg_progress"`
	Risks       int     `json:"risks"`
	MaxExposure int     `json:"max_exposure"`
}

// Summary aggregates the dashboard per area.
func (e Engine) Summary(ctx context.Context, dashboardID string) ([]AreaSummary, error) {
	byArea := map[string]*AreaSummary{}
	get := func(area string) *AreaSummary {
		if s, ok := byArea[area]; ok {
			return s
		}
		s := &AreaSummary{Area: area}
		byArea[area] = s
		return s
	}

	inds, err := e.Repo.ListIndicatorsWithActivities(ctx, repo.IndicatorFilters{DashboardID: dashboardID})
	if err != nil {
		return nil, err
	}
	progressSum := map[string]int{}
	for _, ind := range inds {
		s := get(ind.Area)
		s.Indicators++
		switch ind.Status {
		case domain.IndicatorAchieved:
			s.Achieved++
		case domain.IndicatorAtRisk:
			s.AtRisk++
		case domain.IndicatorCritical:
			s.Critical++
		}
		for _, act := range ind.Activities {
			s.Activities++
			progressSum[ind.Area] += act.Progress
		}
	}
	risks, err := e.Repo.ListRisks(ctx, repo.RiskFilters{DashboardID: dashboardID})
	if err != nil {
		return nil, err
	}
	for _, rk := range risks {
		s := get(rk.Area)
		s.Risks++
		if rk.Exposure > s.MaxExposure {
			s.MaxExposure = rk.Exposure
		}
	}

	var res []AreaSummary
	for _, area := range domain.AreaCodes() {
		s, ok := byArea[area]
		if !ok {
			continue
		}
		if s.Activities > 0 {
			s.AvgProgress = float64(progressSum[area]) / float64(s.Activities)
		}
		res = append(res, *s)
	}
	return res, nil
}
