package parse_test

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"

	"tablero/internal/domain"
	"tablero/internal/parse"
)

func buildWorkbook(t *testing.T, sheets map[string][][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	first := true
	for name, rows := range sheets {
		if first {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				t.Fatalf("rename sheet: %v", err)
			}
			first = false
		} else {
			if _, err := f.NewSheet(name); err != nil {
				t.Fatalf("new sheet: %v", err)
			}
		}
		for i, row := range rows {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			if err != nil {
				t.Fatalf("cell name: %v", err)
			}
			if err := f.SetSheetRow(name, cell, &row); err != nil {
				t.Fatalf("set row: %v", err)
			}
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

func TestExcelAllSheets(t *testing.T) {
	data := buildWorkbook(t, map[string][][]any{
		"Indicadores": {
			{"Indicador", "Área", "Meta", "Real", "Fecha", "Responsable", "Estado", "Observaciones"},
			{"Satisfacción", "Calidad", "95", "92%", "2025-04-30", "Luis", "En riesgo", "ok"},
		},
		"Actividades": {
			{"Actividad", "Area", "Estado", "Progreso", "Fecha Inicio", "Fecha Fin Estimada", "Responsable"},
			{"Auditoría interna", "Procesos", "En curso", "40", "2025-03-01", "2025-08-01", "Marta"},
		},
		"Riesgos": {
			{"Riesgo", "Área", "Impacto", "Probabilidad", "Plan de Mitigación", "Responsable"},
			{"Rotación de personal", "Sistemas", "Medio", "Alta", "Plan de retención", "Jorge"},
		},
	})

	batch, err := parse.Excel(data, fixedOpts())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(batch.Indicators) != 1 || len(batch.Activities) != 1 || len(batch.Risks) != 1 {
		t.Fatalf("counts = %d/%d/%d", len(batch.Indicators), len(batch.Activities), len(batch.Risks))
	}

	ind := batch.Indicators[0]
	if ind.Area != domain.AreaQuality || ind.Target != 95 || ind.Actual != 92 {
		t.Errorf("indicator: %+v", ind)
	}
	if ind.Status != domain.IndicatorAtRisk {
		t.Errorf("indicator status = %q", ind.Status)
	}

	act := batch.Activities[0]
	if act.Area != domain.AreaProjects || act.Status != domain.ActivityInProgress || act.Progress != 40 {
		t.Errorf("activity: %+v", act)
	}

	risk := batch.Risks[0]
	if risk.Impact != domain.ImpactMedio || risk.Probability != domain.ProbabilityAlta {
		t.Errorf("risk levels: %+v", risk)
	}
	if risk.Status != domain.RiskActive {
		t.Errorf("sheet risks default to active, got %q", risk.Status)
	}
	if risk.Category != "operativo" {
		t.Errorf("missing category should default to operativo, got %q", risk.Category)
	}
}

func TestExcelAlternateHeaders(t *testing.T) {
	data := buildWorkbook(t, map[string][][]any{
		"Indicadores": {
			{"Nombre", "Area", "Target", "Actual", "Responsable"},
			{"Incidentes resueltos", "Infraestructura", "100", "85", "Rosa"},
		},
	})
	batch, err := parse.Excel(data, fixedOpts())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(batch.Indicators) != 1 {
		t.Fatalf("indicators = %d", len(batch.Indicators))
	}
	ind := batch.Indicators[0]
	if ind.Name != "Incidentes resueltos" || ind.Area != domain.AreaInfrastructure || ind.Target != 100 {
		t.Errorf("indicator: %+v", ind)
	}
	if ind.MeasurementDate == "" {
		t.Errorf("missing date should be defaulted")
	}
}

func TestExcelAbsentSheets(t *testing.T) {
	data := buildWorkbook(t, map[string][][]any{
		"Actividades": {
			{"Actividad", "Área", "Estado", "Responsable"},
			{"Sólo actividades", "Sistemas", "Pendiente", "Iván"},
		},
	})
	batch, err := parse.Excel(data, fixedOpts())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(batch.Indicators) != 0 || len(batch.Risks) != 0 {
		t.Fatalf("absent sheets must yield zero records, got %d/%d", len(batch.Indicators), len(batch.Risks))
	}
	if len(batch.Activities) != 1 || batch.Activities[0].Status != domain.ActivityPending {
		t.Fatalf("activities: %+v", batch.Activities)
	}
}

func TestFileRouting(t *testing.T) {
	if _, _, err := parse.File("datos.pdf", nil, fixedOpts()); err == nil {
		t.Fatalf("expected unsupported format")
	}
	_, kind, err := parse.File("reporte.html", []byte("<html></html>"), fixedOpts())
	if err != nil || kind != parse.KindHTML {
		t.Fatalf("html routing: kind=%q err=%v", kind, err)
	}
}
