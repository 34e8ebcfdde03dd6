package engine_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"tablero/internal/config"
	"tablero/internal/db"
	"tablero/internal/domain"
	"tablero/internal/engine"
	"tablero/internal/engine/auth"
	"tablero/internal/migrate"
	"tablero/internal/parse"
	"tablero/internal/repo"
)

const monthlyReport = `<!doctype html>
<html><body>
<select id="area">
  <option value="calidad-funcional">Calidad Funcional</option>
  <option value="infraestructura" selected>Infraestructura</option>
</select>
<input id="responsable" value="Laura Soto">
<input id="periodo" value="Abril 2025">
<input id="fecha-reporte" value="2025-04-15">
<table id="tabla-actividades"><tbody>
<tr>
  <td>1.1</td>
  <td><input value="Migrar firewall"></td>
  <td><input value="2025-04-01"></td>
  <td><input value="2025-05-30"></td>
  <td><select><option value="en-progreso" selected>En progreso</option></select></td>
  <td><input value="60"></td>
</tr>
<tr>
  <td>1.2</td>
  <td><input value="Certificar respaldos"></td>
  <td><input value="2025-03-01"></td>
  <td><input value="2025-04-10"></td>
  <td><select><option value="completada" selected>Completada</option></select></td>
  <td><input value="100"></td>
</tr>
</tbody></table>
<table id="tabla-kpis"><tbody>
<tr>
  <td><select><option selected>Disponibilidad plataforma</option></select></td>
  <td><input value="99"></td>
  <td><input value="97"></td>
  <td></td>
  <td><input value="Corte programado en abril"></td>
</tr>
</tbody></table>
<table id="tabla-riesgos"><tbody>
<tr>
  <td>R1</td>
  <td><input value="Obsolescencia de hardware"></td>
  <td><select><option value="tecnologico" selected>Tecnológico</option></select></td>
  <td><select><option value="alto" selected>Alto</option></select></td>
  <td><select><option value="media" selected>Media</option></select></td>
  <td><input value="Plan de renovación"></td>
</tr>
</tbody></table>
</body></html>`

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default("dash-1")
	eng := engine.New(conn, cfg)
	eng.Now = func() time.Time { return time.Date(2025, 4, 15, 12, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	if _, err := eng.InitDashboard(ctx, "dash-1", "Dashboard de KPIs", "", "tester"); err != nil {
		t.Fatalf("init dashboard: %v", err)
	}
	return testEnv{Engine: eng, Ctx: ctx}
}

func admin() domain.Actor {
	return domain.Actor{ID: "u-admin", Name: "Admin", Role: domain.RoleAdmin, Active: true}
}

func analyst() domain.Actor {
	return domain.Actor{ID: "u-analyst", Name: "Analyst", Role: domain.RoleAnalyst, Active: true}
}

func areaManager(area string) domain.Actor {
	return domain.Actor{ID: "u-mgr", Name: "Manager", Role: domain.RoleAreaManager, Area: area, Active: true}
}

func importReport(t *testing.T, env testEnv, fileName string) engine.ImportResult {
	t.Helper()
	res, err := env.Engine.Import(env.Ctx, engine.ImportOptions{
		DashboardID: "dash-1",
		FileName:    fileName,
		Data:        []byte(monthlyReport),
		Actor:       admin(),
	})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	return res
}

func TestImportHTMLReport(t *testing.T) {
	env := newTestEnv(t)
	res := importReport(t, env, "reporte-abril.html")

	if res.Entry.Status != "success" {
		t.Fatalf("entry status = %s", res.Entry.Status)
	}
	if res.Entry.Kind != parse.KindHTML {
		t.Fatalf("entry kind = %s", res.Entry.Kind)
	}
	if res.Entry.IndicatorsCount != 1 || res.Entry.ActivitiesCount != 2 || res.Entry.RisksCount != 1 {
		t.Fatalf("entry counts = %d/%d/%d", res.Entry.IndicatorsCount, res.Entry.ActivitiesCount, res.Entry.RisksCount)
	}
	if len(res.Entry.Areas) != 1 || res.Entry.Areas[0] != domain.AreaInfrastructure {
		t.Fatalf("entry areas = %v", res.Entry.Areas)
	}

	inds, err := env.Engine.Repo.ListIndicatorsWithActivities(env.Ctx, repo.IndicatorFilters{DashboardID: "dash-1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(inds) != 1 {
		t.Fatalf("indicators persisted = %d", len(inds))
	}
	ind := inds[0]
	if ind.Name != "Disponibilidad plataforma" || ind.Target != 99 || ind.Actual != 97 {
		t.Fatalf("indicator = %+v", ind)
	}
	// 97/99 is above the 90%% threshold
	if ind.Status != domain.IndicatorAchieved {
		t.Fatalf("indicator status = %s", ind.Status)
	}
	if ind.ImportBatchID == nil || *ind.ImportBatchID != res.Entry.ID {
		t.Fatalf("indicator batch id not recorded")
	}
	if len(ind.Activities) != 2 {
		t.Fatalf("activities = %d", len(ind.Activities))
	}
	if ind.Activities[0].Status != domain.ActivityInProgress || ind.Activities[0].Progress != 60 {
		t.Fatalf("first activity = %+v", ind.Activities[0])
	}
	if ind.Activities[1].ActualEndDate == nil || *ind.Activities[1].ActualEndDate != "2025-04-10" {
		t.Fatalf("completed activity should carry actual end date")
	}

	risks, err := env.Engine.Repo.ListRisks(env.Ctx, repo.RiskFilters{DashboardID: "dash-1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(risks) != 1 || risks[0].Exposure != 6 || risks[0].Status != domain.RiskActive {
		t.Fatalf("risks = %+v", risks)
	}
}

func TestImportRejectsRenamedDuplicate(t *testing.T) {
	env := newTestEnv(t)
	importReport(t, env, "reporte-abril.html")

	_, err := env.Engine.Import(env.Ctx, engine.ImportOptions{
		DashboardID: "dash-1",
		FileName:    "copia-del-reporte.html",
		Data:        []byte(monthlyReport),
		Actor:       admin(),
	})
	var dup engine.DuplicateImportError
	if !errors.As(err, &dup) {
		t.Fatalf("err = %v, want DuplicateImportError", err)
	}
	if dup.PriorActor != "Admin" {
		t.Fatalf("prior actor = %q, want original importer", dup.PriorActor)
	}
	if !strings.Contains(dup.Error(), "por Admin") {
		t.Fatalf("duplicate message should name the original importer: %s", dup.Error())
	}

	entries, err := env.Engine.History(env.Ctx, "dash-1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("history entries = %d, want success + rejection", len(entries))
	}
	var rejected *domain.ImportHistoryEntry
	for i := range entries {
		if entries[i].Status == "error" {
			rejected = &entries[i]
		}
	}
	if rejected == nil {
		t.Fatalf("rejection not recorded")
	}
	if rejected.FileName != "copia-del-reporte.html" || rejected.FileHash == "unknown" {
		t.Fatalf("rejected entry = %+v", rejected)
	}
}

func TestImportUnsupportedFormatLogged(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.Import(env.Ctx, engine.ImportOptions{
		DashboardID: "dash-1",
		FileName:    "reporte.pdf",
		Data:        []byte("%PDF-1.4"),
		Actor:       admin(),
	})
	var unsupported parse.UnsupportedFormatError
	if !errors.As(err, &unsupported) {
		t.Fatalf("err = %v, want UnsupportedFormatError", err)
	}
	entries, err := env.Engine.History(env.Ctx, "dash-1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Status != "error" {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestImportEmptyReportLogged(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.Import(env.Ctx, engine.ImportOptions{
		DashboardID: "dash-1",
		FileName:    "vacio.html",
		Data:        []byte("<html><body></body></html>"),
		Actor:       admin(),
	})
	if !errors.Is(err, engine.ErrEmptyReport) {
		t.Fatalf("err = %v, want ErrEmptyReport", err)
	}
	entries, _ := env.Engine.History(env.Ctx, "dash-1", 0)
	if len(entries) != 1 || entries[0].Status != "error" {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestImportForbiddenForConsultant(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.Import(env.Ctx, engine.ImportOptions{
		DashboardID: "dash-1",
		FileName:    "reporte.html",
		Data:        []byte(monthlyReport),
		Actor:       domain.Actor{ID: "u-ext", Name: "Externo", Role: domain.RoleConsultant},
	})
	var forbidden auth.ForbiddenError
	if !errors.As(err, &forbidden) {
		t.Fatalf("err = %v, want ForbiddenError", err)
	}
	entries, _ := env.Engine.History(env.Ctx, "dash-1", 0)
	if len(entries) != 0 {
		t.Fatalf("forbidden attempt must not reach the ledger, got %d entries", len(entries))
	}
}

func TestDeleteHistoryEntryPermissions(t *testing.T) {
	env := newTestEnv(t)
	res := importReport(t, env, "reporte-abril.html")

	var forbidden auth.ForbiddenError
	err := env.Engine.DeleteHistoryEntry(env.Ctx, areaManager(domain.AreaQuality), res.Entry.ID)
	if !errors.As(err, &forbidden) {
		t.Fatalf("mismatched area manager should be refused, got %v", err)
	}
	if err := env.Engine.DeleteHistoryEntry(env.Ctx, areaManager(domain.AreaInfrastructure), res.Entry.ID); err != nil {
		t.Fatalf("matching area manager: %v", err)
	}

	entries, _ := env.Engine.History(env.Ctx, "dash-1", 0)
	if len(entries) != 0 {
		t.Fatalf("entry not deleted")
	}
	// ledger deletion leaves imported rows alone
	inds, err := env.Engine.Repo.ListIndicators(env.Ctx, repo.IndicatorFilters{DashboardID: "dash-1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(inds) != 1 {
		t.Fatalf("imported indicators must survive ledger deletion, got %d", len(inds))
	}
}

func TestDeleteImportedDataAdminOnly(t *testing.T) {
	env := newTestEnv(t)
	res := importReport(t, env, "reporte-abril.html")

	var forbidden auth.ForbiddenError
	if _, err := env.Engine.DeleteImportedData(env.Ctx, analyst(), res.Entry.ID); !errors.As(err, &forbidden) {
		t.Fatalf("analyst should be refused, got %v", err)
	}

	deleted, err := env.Engine.DeleteImportedData(env.Ctx, admin(), res.Entry.ID)
	if err != nil {
		t.Fatalf("delete data: %v", err)
	}
	if deleted.Indicators != 1 || deleted.Risks != 1 {
		t.Fatalf("deleted = %+v", deleted)
	}

	inds, _ := env.Engine.Repo.ListIndicators(env.Ctx, repo.IndicatorFilters{DashboardID: "dash-1"})
	if len(inds) != 0 {
		t.Fatalf("indicators not removed")
	}
	acts, _ := env.Engine.Repo.ListActivities(env.Ctx, repo.ActivityFilters{DashboardID: "dash-1"})
	if len(acts) != 0 {
		t.Fatalf("activities must cascade with indicators, got %d", len(acts))
	}
	entry, err := env.Engine.Repo.GetImportHistory(env.Ctx, res.Entry.ID)
	if err != nil {
		t.Fatal(err)
	}
	if entry.Status != "error" || entry.ErrorMessage != "Datos eliminados por el administrador" {
		t.Fatalf("entry after deletion = %+v", entry)
	}
}

func TestPurgeHistoryAdminOnly(t *testing.T) {
	env := newTestEnv(t)
	importReport(t, env, "reporte-abril.html")

	var forbidden auth.ForbiddenError
	if _, err := env.Engine.PurgeHistory(env.Ctx, areaManager(domain.AreaInfrastructure), "dash-1"); !errors.As(err, &forbidden) {
		t.Fatalf("area manager should be refused, got %v", err)
	}
	n, err := env.Engine.PurgeHistory(env.Ctx, admin(), "dash-1")
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 1 {
		t.Fatalf("purged = %d", n)
	}
	inds, _ := env.Engine.Repo.ListIndicators(env.Ctx, repo.IndicatorFilters{DashboardID: "dash-1"})
	if len(inds) != 1 {
		t.Fatalf("purge must not touch imported rows")
	}
}

func TestUpdateIndicatorRecomputesStatus(t *testing.T) {
	env := newTestEnv(t)
	res := importReport(t, env, "reporte-abril.html")
	id := res.Indicators[0].ID

	actual := 70.0
	ind, err := env.Engine.UpdateIndicator(env.Ctx, id, engine.IndicatorUpdate{Actual: &actual}, "u-admin")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if ind.Status != domain.IndicatorCritical {
		t.Fatalf("status after drop = %s, want critical", ind.Status)
	}

	manual := domain.IndicatorInProgress
	if _, err := env.Engine.UpdateIndicator(env.Ctx, id, engine.IndicatorUpdate{Status: &manual}, "u-admin"); err != nil {
		t.Fatal(err)
	}
	actual = 99.0
	ind, err = env.Engine.UpdateIndicator(env.Ctx, id, engine.IndicatorUpdate{Actual: &actual}, "u-admin")
	if err != nil {
		t.Fatal(err)
	}
	if ind.Status != domain.IndicatorInProgress {
		t.Fatalf("manual in_progress must survive measurement edits, got %s", ind.Status)
	}
}

func TestSummaryAggregatesByArea(t *testing.T) {
	env := newTestEnv(t)
	importReport(t, env, "reporte-abril.html")

	sums, err := env.Engine.Summary(env.Ctx, "dash-1")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if len(sums) != 1 {
		t.Fatalf("areas = %d", len(sums))
	}
	s := sums[0]
	if s.Area != domain.AreaInfrastructure || s.Indicators != 1 || s.Activities != 2 || s.Risks != 1 {
		t.Fatalf("summary = %+v", s)
	}
	if s.AvgProgress != 80 {
		t.Fatalf("avg progress = %v, want 80", s.AvgProgress)
	}
	if s.MaxExposure != 6 {
		t.Fatalf("max exposure = %d", s.MaxExposure)
	}
}

func TestCreateIndicatorAndActivity(t *testing.T) {
	env := newTestEnv(t)

	ind, err := env.Engine.CreateIndicator(env.Ctx, domain.Indicator{
		DashboardID: "dash-1",
		Name:        "Cobertura de pruebas",
		Area:        domain.AreaQuality,
		Target:      80,
		Actual:      85,
	}, "u-admin")
	if err != nil {
		t.Fatalf("create indicator: %v", err)
	}
	if ind.ID == "" {
		t.Fatal("indicator id not assigned")
	}
	// 85/80 clears the 90% threshold
	if ind.Status != domain.IndicatorAchieved {
		t.Fatalf("indicator status = %s", ind.Status)
	}
	if ind.MeasurementDate != "2025-04-15" {
		t.Fatalf("measurement date = %s", ind.MeasurementDate)
	}

	act, err := env.Engine.CreateActivity(env.Ctx, domain.Activity{
		IndicatorID: ind.ID,
		Name:        "Automatizar regresión",
	}, "u-admin")
	if err != nil {
		t.Fatalf("create activity: %v", err)
	}
	if act.Area != domain.AreaQuality {
		t.Fatalf("activity area = %s, want indicator's", act.Area)
	}
	if act.Status != domain.ActivityPending {
		t.Fatalf("activity status = %s", act.Status)
	}

	if _, err := env.Engine.CreateIndicator(env.Ctx, domain.Indicator{
		DashboardID: "dash-1",
		Name:        "Sin meta",
		Area:        domain.AreaQuality,
	}, "u-admin"); err == nil {
		t.Fatal("expected error for zero target")
	}

	if err := env.Engine.DeleteActivity(env.Ctx, act.ID, "u-admin"); err != nil {
		t.Fatalf("delete activity: %v", err)
	}
	acts, err := env.Engine.Repo.ListActivities(env.Ctx, repo.ActivityFilters{IndicatorID: ind.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(acts) != 0 {
		t.Fatalf("activities after delete = %d", len(acts))
	}
}

func TestCreateRiskDerivesExposure(t *testing.T) {
	env := newTestEnv(t)

	rk, err := env.Engine.CreateRisk(env.Ctx, domain.Risk{
		DashboardID: "dash-1",
		Name:        "Dependencia de proveedor único",
		Area:        domain.AreaSystems,
		Impact:      "alto",
		Probability: "alta",
	}, "u-admin")
	if err != nil {
		t.Fatalf("create risk: %v", err)
	}
	if rk.Exposure != 9 {
		t.Fatalf("exposure = %d, want 9", rk.Exposure)
	}
	if rk.Status != domain.RiskActive {
		t.Fatalf("risk status = %s", rk.Status)
	}
	if rk.MitigationStatus != "pending" {
		t.Fatalf("mitigation status = %s", rk.MitigationStatus)
	}
}
