package parse_test

import (
	"strings"
	"testing"
	"time"

	"tablero/internal/domain"
	"tablero/internal/parse"
)

func fixedOpts() parse.Options {
	return parse.Options{
		DefaultResponsible: "Coordinador",
		Now:                func() time.Time { return time.Date(2025, 4, 15, 12, 0, 0, 0, time.UTC) },
	}
}

const reportHTML = `<!doctype html>
<html><body>
<select id="area">
  <option value="calidad-funcional">Calidad y Funcional</option>
  <option value="redes" selected>Redes</option>
</select>
<input id="responsable" value="Ana Ruiz">
<input id="periodo" value="Abril 2025">
<input id="fecha-reporte" value="2025-04-30">

<table id="tabla-actividades"><tbody>
<tr>
  <td>1</td>
  <td><input value="Migrar firewall"></td>
  <td><input value="2025-04-01"></td>
  <td><input value="2025-06-30"></td>
  <td><select><option value="completada" selected>Completada</option></select></td>
  <td><input value="100"></td>
</tr>
<tr>
  <td>2</td>
  <td><input value="Actualizar switches"></td>
  <td><input value=""></td>
  <td><input value=""></td>
  <td><select><option value="en-progreso" selected>En progreso</option></select></td>
  <td><input value="60"></td>
</tr>
<tr>
  <td>3</td>
  <td><input value=""></td>
  <td><input value=""></td>
  <td><input value=""></td>
  <td><select><option value="pendiente">Pendiente</option></select></td>
  <td><input value="0"></td>
</tr>
</tbody></table>

<table id="tabla-kpis"><tbody>
<tr>
  <td><select><option selected>Disponibilidad de red</option></select></td>
  <td><input value="99"></td>
  <td><input value="95%"></td>
  <td></td>
  <td><input value="Mes estable"></td>
</tr>
<tr>
  <td><select><option selected>KPI sin meta</option></select></td>
  <td><input value="0"></td>
  <td><input value="10"></td>
  <td></td>
  <td><input value=""></td>
</tr>
</tbody></table>

<table id="tabla-riesgos"><tbody>
<tr>
  <td>1</td>
  <td><input value="Obsolescencia de equipos"></td>
  <td><select><option value="operativo" selected>Operativo</option></select></td>
  <td><select><option value="alto" selected>Alto</option></select></td>
  <td><select><option value="media" selected>Media</option></select></td>
  <td><input value="Plan de renovación"></td>
</tr>
</tbody></table>
</body></html>`

func TestHTMLReportExtraction(t *testing.T) {
	batch, err := parse.HTML([]byte(reportHTML), fixedOpts())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if len(batch.Activities) != 2 {
		t.Fatalf("activities = %d, want 2 (blank name row skipped)", len(batch.Activities))
	}
	first := batch.Activities[0]
	if first.Name != "Migrar firewall" || first.Area != domain.AreaInfrastructure {
		t.Errorf("unexpected first activity: %+v", first)
	}
	if first.Status != domain.ActivityCompleted || first.ActualEndDate != "2025-06-30" {
		t.Errorf("completed activity should carry actual end date: %+v", first)
	}
	if first.Responsible != "Ana Ruiz" {
		t.Errorf("responsible = %q", first.Responsible)
	}
	if !strings.Contains(first.Observations, "Abril 2025") {
		t.Errorf("observations should mention the period: %q", first.Observations)
	}
	second := batch.Activities[1]
	if second.StartDate == "" || second.EstimatedEndDate == "" {
		t.Errorf("blank dates should be defaulted: %+v", second)
	}
	if second.Status != domain.ActivityInProgress || second.Progress != 60 {
		t.Errorf("unexpected second activity: %+v", second)
	}

	if len(batch.Indicators) != 1 {
		t.Fatalf("indicators = %d, want 1 (zero-target row skipped)", len(batch.Indicators))
	}
	kpi := batch.Indicators[0]
	if kpi.Name != "Disponibilidad de red" {
		t.Errorf("kpi name = %q", kpi.Name)
	}
	if kpi.Target != 99 || kpi.Actual != 95 {
		t.Errorf("kpi numbers = %v/%v", kpi.Actual, kpi.Target)
	}
	// 95/99 = 95.9% -> achieved
	if kpi.Status != domain.IndicatorAchieved {
		t.Errorf("kpi status = %q", kpi.Status)
	}
	if kpi.MeasurementDate != "2025-04-30" {
		t.Errorf("measurement date = %q", kpi.MeasurementDate)
	}

	if len(batch.Risks) != 1 {
		t.Fatalf("risks = %d, want 1", len(batch.Risks))
	}
	risk := batch.Risks[0]
	if risk.Impact != domain.ImpactAlto || risk.Probability != domain.ProbabilityMedia {
		t.Errorf("risk levels: %+v", risk)
	}
	// alto/media -> active
	if risk.Status != domain.RiskActive {
		t.Errorf("risk status = %q", risk.Status)
	}
}

func TestHTMLMissingTables(t *testing.T) {
	batch, err := parse.HTML([]byte(`<html><body><p>sin tablas</p></body></html>`), fixedOpts())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !batch.Empty() {
		t.Fatalf("expected empty batch, got %+v", batch)
	}
}

func TestHTMLDefaultResponsible(t *testing.T) {
	doc := `<html><body>
<table id="tabla-actividades"><tbody>
<tr><td>1</td><td><input value="Tarea"></td><td><input></td><td><input></td>
<td><select><option value="pendiente" selected>P</option></select></td><td><input value="10"></td></tr>
</tbody></table></body></html>`
	batch, err := parse.HTML([]byte(doc), fixedOpts())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(batch.Activities) != 1 || batch.Activities[0].Responsible != "Coordinador" {
		t.Fatalf("expected configured default responsible, got %+v", batch.Activities)
	}
}

func TestDetectKind(t *testing.T) {
	for name, want := range map[string]string{
		"reporte.html":  parse.KindHTML,
		"REPORTE.HTM":   parse.KindHTML,
		"datos.xlsx":    parse.KindExcel,
		"viejo.xls":     parse.KindExcel,
	} {
		kind, err := parse.DetectKind(name)
		if err != nil || kind != want {
			t.Errorf("DetectKind(%q) = %q, %v; want %q", name, kind, err, want)
		}
	}
	if _, err := parse.DetectKind("datos.csv"); err == nil {
		t.Fatalf("expected unsupported format error")
	} else if _, ok := err.(parse.UnsupportedFormatError); !ok {
		t.Fatalf("expected UnsupportedFormatError, got %T", err)
	}
}
