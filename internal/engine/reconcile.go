package engine

import (
	"fmt"
	"time"

	"tablero/internal/domain"
	"tablero/internal/fields"
)

// ReconcileInput feeds the pure apportionment step. Now pins every generated
// id so a batch reconciles deterministically.
type ReconcileInput struct {
	DashboardID string
	Batch       domain.ImportBatch
	Now         time.Time
}

// Reconcile turns parsed proto records into linked indicators, activities and
// risks. Every activity ends up under exactly one indicator and every
// indicator carries at least one activity:
//
//   - activities are dealt to indicators in contiguous chunks of
//     ceil(len(activities)/len(indicators));
//   - an indicator left without activities gets a generated default activity;
//   - activities with no indicators at all each get a generated indicator.
func Reconcile(in ReconcileInput) ([]domain.Indicator, []domain.Risk) {
	ts := in.Now.UnixMilli()

	var indicators []domain.Indicator
	for i, p := range in.Batch.Indicators {
		indicators = append(indicators, domain.Indicator{
			ID:              fmt.Sprintf("ind-%d-%d", ts, i),
			DashboardID:     in.DashboardID,
			Name:            p.Name,
			Area:            p.Area,
			Target:          p.Target,
			Actual:          p.Actual,
			MeasurementDate: p.MeasurementDate,
			Responsible:     p.Responsible,
			Status:          p.Status,
			Observations:    p.Observations,
		})
	}

	if len(indicators) > 0 && len(in.Batch.Activities) > 0 {
		perIndicator := (len(in.Batch.Activities) + len(indicators) - 1) / len(indicators)
		for i := range indicators {
			start := i * perIndicator
			if start >= len(in.Batch.Activities) {
				break
			}
			end := start + perIndicator
			if end > len(in.Batch.Activities) {
				end = len(in.Batch.Activities)
			}
			for j, p := range in.Batch.Activities[start:end] {
				indicators[i].Activities = append(indicators[i].Activities, activityFromProto(p, indicators[i].ID, j))
			}
		}
	}

	if len(indicators) == 0 {
		for i, p := range in.Batch.Activities {
			ind := indicatorForActivity(in.DashboardID, p, ts, i)
			ind.Activities = []domain.Activity{activityFromProto(p, ind.ID, 0)}
			indicators = append(indicators, ind)
		}
	}

	for i := range indicators {
		if len(indicators[i].Activities) == 0 {
			indicators[i].Activities = []domain.Activity{defaultActivity(indicators[i], in.Now)}
		}
	}

	var risks []domain.Risk
	for i, p := range in.Batch.Risks {
		risks = append(risks, domain.Risk{
			ID:               fmt.Sprintf("risk-%d-%d", ts, i),
			DashboardID:      in.DashboardID,
			Name:             p.Name,
			Area:             p.Area,
			Category:         p.Category,
			Impact:           p.Impact,
			Probability:      p.Probability,
			Exposure:         fields.Exposure(p.Impact, p.Probability),
			MitigationPlan:   p.MitigationPlan,
			MitigationStatus: "pending",
			Status:           p.Status,
			Responsible:      p.Responsible,
		})
	}

	return indicators, risks
}

func activityFromProto(p domain.ProtoActivity, indicatorID string, idx int) domain.Activity {
	a := domain.Activity{
		ID:               fmt.Sprintf("act-%s-%d", indicatorID, idx),
		IndicatorID:      indicatorID,
		Name:             p.Name,
		Area:             p.Area,
		Status:           p.Status,
		Progress:         p.Progress,
		StartDate:        p.StartDate,
		EstimatedEndDate: p.EstimatedEndDate,
		Responsible:      p.Responsible,
		Observations:     p.Observations,
	}
	if p.ActualEndDate != "" {
		v := p.ActualEndDate
		a.ActualEndDate = &v
	}
	return a
}

func indicatorForActivity(dashboardID string, p domain.ProtoActivity, ts int64, idx int) domain.Indicator {
	status := domain.IndicatorCritical
	switch p.Status {
	case domain.ActivityCompleted:
		status = domain.IndicatorAchieved
	case domain.ActivityInProgress:
		status = domain.IndicatorAtRisk
	}
	return domain.Indicator{
		ID:              fmt.Sprintf("ind-activity-%d-%d", ts, idx),
		DashboardID:     dashboardID,
		Name:            fmt.Sprintf("Indicador para: %s", p.Name),
		Area:            p.Area,
		Target:          100,
		Actual:          float64(p.Progress),
		MeasurementDate: p.StartDate,
		Responsible:     p.Responsible,
		Status:          status,
		Observations:    fmt.Sprintf("Indicador generado automáticamente para la actividad: %s", p.Name),
	}
}

func defaultActivity(ind domain.Indicator, now time.Time) domain.Activity {
	start := ind.MeasurementDate
	base, err := time.Parse("2006-01-02", start)
	if err != nil {
		base = now
		start = now.Format("2006-01-02")
	}
	return domain.Activity{
		ID:               fmt.Sprintf("act-default-%s", ind.ID),
		IndicatorID:      ind.ID,
		Name:             fmt.Sprintf("Actividad por defecto para %s", ind.Name),
		Area:             ind.Area,
		Status:           domain.ActivityInProgress,
		Progress:         50,
		StartDate:        start,
		EstimatedEndDate: base.AddDate(0, 0, 90).Format("2006-01-02"),
		Responsible:      ind.Responsible,
		Observations:     "Actividad generada automáticamente durante la importación",
	}
}
