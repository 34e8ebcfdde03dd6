package parse

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"tablero/internal/domain"
	"tablero/internal/fields"
)

// Default dates for activity rows whose inputs are blank. The report form
// covers one reporting year; these are the form's own placeholder bounds.
const (
	defaultStartDate = "2025-04-01"
	defaultEndDate   = "2025-12-31"
)

// HTML extracts an ImportBatch from the monthly report form. The document
// carries three tables with stable ids (tabla-actividades, tabla-kpis,
// tabla-riesgos) plus a header block with area, responsible and report
// date. Missing tables yield zero records of that kind, not an error.
func HTML(data []byte, opts Options) (domain.ImportBatch, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return domain.ImportBatch{}, err
	}

	area := fields.AreaFromSelect(selectValue(doc.Find("#area")))
	responsible := inputValue(doc.Find("#responsable"))
	if responsible == "" {
		responsible = opts.DefaultResponsible
	}
	period := inputValue(doc.Find("#periodo"))
	measurementDate := inputValue(doc.Find("#fecha-reporte"))
	if measurementDate == "" {
		measurementDate = opts.today()
	}

	var batch domain.ImportBatch

	doc.Find("#tabla-actividades tbody tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 6 {
			return
		}
		name := strings.TrimSpace(inputValue(cells.Eq(1)))
		if name == "" {
			return
		}
		number := strings.TrimSpace(cells.Eq(0).Text())
		if number == "" {
			number = fmt.Sprintf("%d", i+1)
		}
		start := inputValue(cells.Eq(2))
		if start == "" {
			start = defaultStartDate
		}
		end := inputValue(cells.Eq(3))
		if end == "" {
			end = defaultEndDate
		}
		statusToken := selectValue(cells.Eq(4))
		if statusToken == "" {
			statusToken = "completada"
		}
		progress := int(fields.Numeric(inputValue(cells.Eq(5))))
		if inputValue(cells.Eq(5)) == "" {
			progress = 100
		}

		act := domain.ProtoActivity{
			Name:             name,
			IndicatorRef:     number,
			Area:             area,
			Status:           fields.ActivityStatusFromToken(statusToken),
			Progress:         progress,
			StartDate:        start,
			EstimatedEndDate: end,
			Responsible:      responsible,
			Observations:     activityObservations(number, period),
		}
		if statusToken == "completada" || statusToken == "certificado" || statusToken == "produccion" {
			act.ActualEndDate = end
		}
		batch.Activities = append(batch.Activities, act)
	})

	doc.Find("#tabla-kpis tbody tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 5 {
			return
		}
		name := selectText(cells.Eq(0))
		if name == "" {
			name = fmt.Sprintf("KPI %d", i+1)
		}
		target := fields.Numeric(inputValue(cells.Eq(1)))
		actual := fields.Numeric(inputValue(cells.Eq(2)))
		if target <= 0 || actual < 0 {
			return
		}
		batch.Indicators = append(batch.Indicators, domain.ProtoIndicator{
			Name:            name,
			Area:            area,
			Target:          target,
			Actual:          actual,
			MeasurementDate: measurementDate,
			Responsible:     responsible,
			Status:          fields.StatusFromRatio(actual / target * 100),
			Observations:    inputValue(cells.Eq(4)),
		})
	})

	doc.Find("#tabla-riesgos tbody tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 6 {
			return
		}
		name := strings.TrimSpace(inputValue(cells.Eq(1)))
		if name == "" {
			return
		}
		category := selectValue(cells.Eq(2))
		if category == "" {
			category = "operativo"
		}
		impact := fields.Impact(selectValue(cells.Eq(3)))
		probability := fields.Probability(selectValue(cells.Eq(4)))
		batch.Risks = append(batch.Risks, domain.ProtoRisk{
			Name:           name,
			Area:           area,
			Category:       category,
			Impact:         impact,
			Probability:    probability,
			MitigationPlan: inputValue(cells.Eq(5)),
			Status:         fields.RiskStatus(impact, probability),
			Responsible:    responsible,
		})
	})

	return batch, nil
}

func activityObservations(number, period string) string {
	if period == "" {
		return fmt.Sprintf("Actividad %s del reporte mensual", number)
	}
	return fmt.Sprintf("Actividad %s del reporte mensual - %s", number, period)
}

// inputValue reads the value attribute of the first input under sel, or of
// sel itself when it is an input.
func inputValue(sel *goquery.Selection) string {
	if goquery.NodeName(sel) == "input" {
		return sel.AttrOr("value", "")
	}
	return sel.Find("input").First().AttrOr("value", "")
}

// selectValue reads the effective value of a select: the explicitly
// selected option, or the first option when none is marked, matching what
// a live DOM would report.
func selectValue(sel *goquery.Selection) string {
	s := sel
	if goquery.NodeName(sel) != "select" {
		s = sel.Find("select").First()
	}
	if s.Length() == 0 {
		return ""
	}
	if opt := s.Find("option[selected]").First(); opt.Length() > 0 {
		return opt.AttrOr("value", strings.TrimSpace(opt.Text()))
	}
	opt := s.Find("option").First()
	return opt.AttrOr("value", strings.TrimSpace(opt.Text()))
}

// selectText reads the display text of the effective option, used for KPI
// names where the option label is the record name.
func selectText(sel *goquery.Selection) string {
	s := sel
	if goquery.NodeName(sel) != "select" {
		s = sel.Find("select").First()
	}
	if s.Length() == 0 {
		return ""
	}
	if opt := s.Find("option[selected]").First(); opt.Length() > 0 {
		return strings.TrimSpace(opt.Text())
	}
	return strings.TrimSpace(s.Find("option").First().Text())
}
