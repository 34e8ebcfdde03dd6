package server

import (
	"tablero/internal/domain"
	"tablero/internal/engine"
)

// ImportRequest uploads one report file. Content travels base64-encoded in
// JSON.
type ImportRequest struct {
	FileName string `json:"file_name" example:"reporte-abril.html" doc:"Original file name; the extension selects the parser"`
	Content  []byte `json:"content" doc:"Raw file bytes, base64-encoded"`
}

// ImportResponse reports what an accepted import created.
type ImportResponse struct {
	Entry      domain.ImportHistoryEntry `json:"entry"`
	Indicators []domain.Indicator        `json:"indicators"`
	Risks      []domain.Risk             `json:"risks"`
}

func importResponse(res engine.ImportResult) ImportResponse {
	out := ImportResponse{
		Entry:      res.Entry,
		Indicators: res.Indicators,
		Risks:      res.Risks,
	}
	if out.Indicators == nil {
		out.Indicators = []domain.Indicator{}
	}
	if out.Risks == nil {
		out.Risks = []domain.Risk{}
	}
	return out
}

type DeleteDataResponse struct {
	Deleted engine.DeletedData `json:"deleted"`
}

type PurgeResponse struct {
	Entries int64 `json:"entries"`
}

type IndicatorCreate struct {
	Name            string  `json:"name" minLength:"1"`
	Area            string  `json:"area" enum:"quality,projects,infrastructure,systems,vp_tech"`
	Target          float64 `json:"target"`
	Actual          float64 `json:"actual,omitempty"`
	MeasurementDate string  `json:"measurement_date,omitempty"`
	Responsible     string  `json:"responsible,omitempty"`
	Status          string  `json:"status,omitempty"`
	Observations    string  `json:"observations,omitempty"`
}

func (c IndicatorCreate) toDomain(dashboardID string) domain.Indicator {
	return domain.Indicator{
		DashboardID:     dashboardID,
		Name:            c.Name,
		Area:            c.Area,
		Target:          c.Target,
		Actual:          c.Actual,
		MeasurementDate: c.MeasurementDate,
		Responsible:     c.Responsible,
		Status:          c.Status,
		Observations:    c.Observations,
	}
}

type ActivityCreate struct {
	Name             string  `json:"name" minLength:"1"`
	Area             string  `json:"area,omitempty"`
	Status           string  `json:"status,omitempty"`
	Progress         int     `json:"progress,omitempty" minimum:"0" maximum:"100"`
	StartDate        string  `json:"start_date,omitempty"`
	EstimatedEndDate string  `json:"estimated_end_date,omitempty"`
	ActualEndDate    *string `json:"actual_end_date,omitempty"`
	Responsible      string  `json:"responsible,omitempty"`
	Observations     string  `json:"observations,omitempty"`
}

func (c ActivityCreate) toDomain(indicatorID string) domain.Activity {
	return domain.Activity{
		IndicatorID:      indicatorID,
		Name:             c.Name,
		Area:             c.Area,
		Status:           c.Status,
		Progress:         c.Progress,
		StartDate:        c.StartDate,
		EstimatedEndDate: c.EstimatedEndDate,
		ActualEndDate:    c.ActualEndDate,
		Responsible:      c.Responsible,
		Observations:     c.Observations,
	}
}

type RiskCreate struct {
	Name           string `json:"name" minLength:"1"`
	Area           string `json:"area" enum:"quality,projects,infrastructure,systems,vp_tech"`
	Category       string `json:"category,omitempty"`
	Impact         string `json:"impact" enum:"alto,medio,bajo"`
	Probability    string `json:"probability" enum:"alta,media,baja"`
	MitigationPlan string `json:"mitigation_plan,omitempty"`
	Status         string `json:"status,omitempty"`
	Responsible    string `json:"responsible,omitempty"`
}

func (c RiskCreate) toDomain(dashboardID string) domain.Risk {
	return domain.Risk{
		DashboardID:    dashboardID,
		Name:           c.Name,
		Area:           c.Area,
		Category:       c.Category,
		Impact:         c.Impact,
		Probability:    c.Probability,
		MitigationPlan: c.MitigationPlan,
		Status:         c.Status,
		Responsible:    c.Responsible,
	}
}

type IndicatorPatch struct {
	Name            *string  `json:"name,omitempty"`
	Area            *string  `json:"area,omitempty" enum:"quality,projects,infrastructure,systems,vp_tech"`
	Target          *float64 `json:"target,omitempty"`
	Actual          *float64 `json:"actual,omitempty"`
	MeasurementDate *string  `json:"measurement_date,omitempty"`
	Responsible     *string  `json:"responsible,omitempty"`
	Status          *string  `json:"status,omitempty" enum:"achieved,at_risk,critical,in_progress"`
	Observations    *string  `json:"observations,omitempty"`
}

func (p IndicatorPatch) toUpdate() engine.IndicatorUpdate {
	return engine.IndicatorUpdate{
		Name:            p.Name,
		Area:            p.Area,
		Target:          p.Target,
		Actual:          p.Actual,
		MeasurementDate: p.MeasurementDate,
		Responsible:     p.Responsible,
		Status:          p.Status,
		Observations:    p.Observations,
	}
}

type ActivityPatch struct {
	Name             *string `json:"name,omitempty"`
	Status           *string `json:"status,omitempty" enum:"pending,in_progress,completed,suspended,postponed"`
	Progress         *int    `json:"progress,omitempty" minimum:"0" maximum:"100"`
	StartDate        *string `json:"start_date,omitempty"`
	EstimatedEndDate *string `json:"estimated_end_date,omitempty"`
	ActualEndDate    *string `json:"actual_end_date,omitempty"`
	Responsible      *string `json:"responsible,omitempty"`
	Observations     *string `json:"observations,omitempty"`
}

func (p ActivityPatch) toUpdate() engine.ActivityUpdate {
	return engine.ActivityUpdate{
		Name:             p.Name,
		Status:           p.Status,
		Progress:         p.Progress,
		StartDate:        p.StartDate,
		EstimatedEndDate: p.EstimatedEndDate,
		ActualEndDate:    p.ActualEndDate,
		Responsible:      p.Responsible,
		Observations:     p.Observations,
	}
}

type RiskPatch struct {
	Name             *string `json:"name,omitempty"`
	Area             *string `json:"area,omitempty" enum:"quality,projects,infrastructure,systems,vp_tech"`
	Category         *string `json:"category,omitempty"`
	Impact           *string `json:"impact,omitempty" enum:"alto,medio,bajo"`
	Probability      *string `json:"probability,omitempty" enum:"alta,media,baja"`
	MitigationPlan   *string `json:"mitigation_plan,omitempty"`
	MitigationStatus *string `json:"mitigation_status,omitempty" enum:"pending,in_progress,completed"`
	Status           *string `json:"status,omitempty" enum:"active,monitoring,mitigated"`
	Responsible      *string `json:"responsible,omitempty"`
}

func (p RiskPatch) toUpdate() engine.RiskUpdate {
	return engine.RiskUpdate{
		Name:             p.Name,
		Area:             p.Area,
		Category:         p.Category,
		Impact:           p.Impact,
		Probability:      p.Probability,
		MitigationPlan:   p.MitigationPlan,
		MitigationStatus: p.MitigationStatus,
		Status:           p.Status,
		Responsible:      p.Responsible,
	}
}

type DevLoginRequest struct {
	ActorID string `json:"actor_id"`
}

type DevLoginResponse struct {
	Token string       `json:"token"`
	Actor domain.Actor `json:"actor"`
}
