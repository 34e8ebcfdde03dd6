package parse

import (
	"bytes"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"tablero/internal/domain"
	"tablero/internal/fields"
)

// Sheet names of the spreadsheet template.
const (
	sheetIndicators = "Indicadores"
	sheetActivities = "Actividades"
	sheetRisks      = "Riesgos"
)

// Excel extracts an ImportBatch from the spreadsheet template. Each known
// sheet is read as header-keyed rows; absent sheets yield zero records of
// that kind. Headers accept either the Spanish or English spelling.
func Excel(data []byte, opts Options) (domain.ImportBatch, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return domain.ImportBatch{}, err
	}
	defer f.Close()

	var batch domain.ImportBatch

	for _, row := range sheetRows(f, sheetIndicators) {
		batch.Indicators = append(batch.Indicators, domain.ProtoIndicator{
			Name:            row.get("Indicador", "Nombre"),
			Area:            fields.Area(row.get("Área", "Area")),
			Target:          fields.Numeric(row.get("Meta", "Target")),
			Actual:          fields.Numeric(row.get("Real", "Actual")),
			MeasurementDate: normalizeDate(row.get("Fecha", "Fecha de Medición"), opts),
			Responsible:     row.get("Responsable"),
			Status:          fields.IndicatorStatus(row.get("Estado", "Status")),
			Observations:    row.get("Observaciones", "Comentarios"),
		})
	}

	for _, row := range sheetRows(f, sheetActivities) {
		act := domain.ProtoActivity{
			Name:             row.get("Actividad", "Nombre"),
			IndicatorRef:     row.get("ID Indicador"),
			Area:             fields.Area(row.get("Área", "Area")),
			Status:           fields.ActivityStatusFromText(row.get("Estado")),
			Progress:         int(fields.Numeric(row.get("Progreso", "Progress"))),
			StartDate:        normalizeDate(row.get("Fecha Inicio"), opts),
			EstimatedEndDate: normalizeDate(row.get("Fecha Fin Estimada"), opts),
			Responsible:      row.get("Responsable"),
			Observations:     row.get("Observaciones"),
		}
		if v := row.get("Fecha Fin Real"); v != "" {
			act.ActualEndDate = normalizeDate(v, opts)
		}
		batch.Activities = append(batch.Activities, act)
	}

	for _, row := range sheetRows(f, sheetRisks) {
		category := row.get("Categoría", "Category")
		if category == "" {
			category = "operativo"
		}
		batch.Risks = append(batch.Risks, domain.ProtoRisk{
			Name:           row.get("Riesgo", "Nombre"),
			Area:           fields.Area(row.get("Área", "Area")),
			Category:       category,
			Impact:         fields.Impact(row.get("Impacto", "Impact")),
			Probability:    fields.Probability(row.get("Probabilidad", "Probability")),
			MitigationPlan: row.get("Plan de Mitigación", "Mitigation Plan"),
			Status:         domain.RiskActive,
			Responsible:    row.get("Responsable"),
		})
	}

	return batch, nil
}

// sheetRow maps column headers to cell values for one data row.
type sheetRow map[string]string

func (r sheetRow) get(headers ...string) string {
	for _, h := range headers {
		if v, ok := r[h]; ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// sheetRows reads a sheet into header-keyed rows. The first row is the
// header; rows with every cell blank are skipped. A missing sheet returns
// nil.
func sheetRows(f *excelize.File, sheet string) []sheetRow {
	rows, err := f.GetRows(sheet)
	if err != nil || len(rows) < 2 {
		return nil
	}
	headers := rows[0]
	var out []sheetRow
	for _, raw := range rows[1:] {
		row := sheetRow{}
		empty := true
		for i, h := range headers {
			h = strings.TrimSpace(h)
			if h == "" {
				continue
			}
			var v string
			if i < len(raw) {
				v = raw[i]
			}
			row[h] = v
			if strings.TrimSpace(v) != "" {
				empty = false
			}
		}
		if !empty {
			out = append(out, row)
		}
	}
	return out
}

var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"01-02-06",
	"2/1/06",
	time.RFC3339,
}

// normalizeDate coerces the formats excelize renders into YYYY-MM-DD,
// falling back to the current date when nothing parses.
func normalizeDate(raw string, opts Options) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return opts.today()
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return opts.today()
}
