package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"tablero/internal/config"
	"tablero/internal/db"
	"tablero/internal/domain"
	"tablero/internal/engine"
	"tablero/internal/migrate"
	"tablero/internal/repo"
)

const aprilReport = `<!doctype html>
<html><body>
<select id="area">
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
</tbody></table>
<table id="tabla-kpis"><tbody>
<tr>
  <td><select><option selected>Disponibilidad plataforma</option></select></td>
  <td><input value="99"></td>
  <td><input value="97"></td>
  <td></td>
  <td><input value=""></td>
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

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	cfg := config.Default("dash-1")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, cfg)
	e.Now = func() time.Time { return time.Date(2025, 4, 15, 12, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	if _, err := e.InitDashboard(ctx, "dash-1", "Dashboard de KPIs", "", "tester"); err != nil {
		t.Fatalf("init dashboard: %v", err)
	}
	seed := []domain.Actor{
		{ID: "u-admin", Name: "Admin", Role: domain.RoleAdmin, Active: true},
		{ID: "u-analyst", Name: "Analyst", Role: domain.RoleAnalyst, Active: true},
		{ID: "u-consultant", Name: "Consultant", Role: domain.RoleConsultant, Active: true},
	}
	for _, a := range seed {
		if err := e.Repo.InsertActor(ctx, a); err != nil {
			t.Fatalf("seed actor %s: %v", a.ID, err)
		}
	}
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v0",
		Auth:     AuthConfig{JWTSecret: "test-secret", AllowDevLogin: true},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func loginAs(t *testing.T, srv *testServer, actorID string) map[string]string {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/auth/dev/login", map[string]any{
		"actor_id": actorID,
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("dev login status %d: %s", res.StatusCode, string(data))
	}
	var out DevLoginResponse
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal login: %v", err)
	}
	return map[string]string{"Authorization": "Bearer " + out.Token}
}

func importReport(t *testing.T, srv *testServer, headers map[string]string, fileName string) (*http.Response, []byte) {
	t.Helper()
	return doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/dashboards/dash-1/imports", map[string]any{
		"file_name": fileName,
		"content":   []byte(aprilReport),
	}, headers)
}

func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error envelope: %v (%s)", err, string(data))
	}
	return envelope.Error.Code
}

func TestHealthWithoutAuth(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d: %s", res.StatusCode, string(data))
	}
}

func TestUnauthenticatedRequestRejected(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/dashboards/dash-1/indicators", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status %d: %s", res.StatusCode, string(data))
	}
	if code := errorCode(t, data); code != "unauthorized" {
		t.Fatalf("code %q", code)
	}
}

func TestTokenLifetimeFollowsEngineClock(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	// Minted against the engine clock, so it must validate against it too.
	headers := loginAs(t, srv, "u-admin")
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/dashboards/dash-1/indicators", nil, headers)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("fresh token status %d: %s", res.StatusCode, string(data))
	}

	stale, err := signJWT(domain.Actor{ID: "u-admin", Role: domain.RoleAdmin}, "test-secret",
		time.Date(2025, 4, 10, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("sign stale token: %v", err)
	}
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/dashboards/dash-1/indicators", nil,
		map[string]string{"Authorization": "Bearer " + stale})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("stale token status %d: %s", res.StatusCode, string(data))
	}
	if code := errorCode(t, data); code != "invalid_credentials" {
		t.Fatalf("code %q", code)
	}
}

func TestImportCreatesDataset(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	headers := loginAs(t, srv, "u-analyst")

	res, data := importReport(t, srv, headers, "reporte-abril.html")
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("import status %d: %s", res.StatusCode, string(data))
	}
	var out ImportResponse
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal import response: %v", err)
	}
	if out.Entry.Status != "success" {
		t.Fatalf("entry status %q", out.Entry.Status)
	}
	if len(out.Indicators) != 1 || len(out.Risks) != 1 {
		t.Fatalf("counts: %d indicators, %d risks", len(out.Indicators), len(out.Risks))
	}
	if out.Entry.ImportedBy != "Analyst" || out.Entry.ImportedByRole != domain.RoleAnalyst {
		t.Fatalf("imported by %q (%q)", out.Entry.ImportedBy, out.Entry.ImportedByRole)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/dashboards/dash-1/indicators?area=infrastructure", nil, headers)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list status %d: %s", res.StatusCode, string(data))
	}
	var indicators []domain.Indicator
	if err := json.Unmarshal(data, &indicators); err != nil {
		t.Fatalf("unmarshal indicators: %v", err)
	}
	if len(indicators) != 1 {
		t.Fatalf("listed %d indicators", len(indicators))
	}
	if len(indicators[0].Activities) != 1 {
		t.Fatalf("indicator has %d activities", len(indicators[0].Activities))
	}
}

func TestImportDuplicateConflict(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	headers := loginAs(t, srv, "u-admin")

	if res, data := importReport(t, srv, headers, "reporte-abril.html"); res.StatusCode != http.StatusCreated {
		t.Fatalf("first import status %d: %s", res.StatusCode, string(data))
	}
	res, data := importReport(t, srv, headers, "reporte-abril-copia.html")
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate status %d: %s", res.StatusCode, string(data))
	}
	if code := errorCode(t, data); code != "duplicate_import" {
		t.Fatalf("code %q", code)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/dashboards/dash-1/imports", nil, headers)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("history status %d: %s", res.StatusCode, string(data))
	}
	var entries []domain.ImportHistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		t.Fatalf("unmarshal history: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("history has %d entries", len(entries))
	}
}

func TestImportForbiddenForConsultant(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	headers := loginAs(t, srv, "u-consultant")

	res, data := importReport(t, srv, headers, "reporte-abril.html")
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("status %d: %s", res.StatusCode, string(data))
	}
	if code := errorCode(t, data); code != "forbidden" {
		t.Fatalf("code %q", code)
	}
}

func TestUnsupportedFormatBadRequest(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	headers := loginAs(t, srv, "u-admin")

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/dashboards/dash-1/imports", map[string]any{
		"file_name": "reporte.pdf",
		"content":   []byte("%PDF-1.4"),
	}, headers)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d: %s", res.StatusCode, string(data))
	}
	if code := errorCode(t, data); code != "unsupported_format" {
		t.Fatalf("code %q", code)
	}
}

func TestIndicatorPatchRecomputesStatus(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	headers := loginAs(t, srv, "u-admin")

	res, data := importReport(t, srv, headers, "reporte-abril.html")
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("import status %d: %s", res.StatusCode, string(data))
	}
	var out ImportResponse
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal import response: %v", err)
	}
	id := out.Indicators[0].ID

	actual := 50.0
	res, data = doJSON(t, srv.Client(), http.MethodPatch, srv.URL+"/v0/indicators/"+id, map[string]any{
		"actual": actual,
	}, headers)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("patch status %d: %s", res.StatusCode, string(data))
	}
	var updated domain.Indicator
	if err := json.Unmarshal(data, &updated); err != nil {
		t.Fatalf("unmarshal indicator: %v", err)
	}
	if updated.Actual != actual {
		t.Fatalf("actual %v", updated.Actual)
	}
	if updated.Status != domain.IndicatorCritical {
		t.Fatalf("status %q after dropping to 50/99", updated.Status)
	}
}

func TestDeleteImportDataAdminOnly(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	adminHeaders := loginAs(t, srv, "u-admin")
	analystHeaders := loginAs(t, srv, "u-analyst")

	res, data := importReport(t, srv, adminHeaders, "reporte-abril.html")
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("import status %d: %s", res.StatusCode, string(data))
	}
	var out ImportResponse
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal import response: %v", err)
	}
	entryID := out.Entry.ID

	res, data = doJSON(t, srv.Client(), http.MethodDelete, srv.URL+"/v0/imports/"+entryID+"/data", nil, analystHeaders)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("analyst delete status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, srv.Client(), http.MethodDelete, srv.URL+"/v0/imports/"+entryID+"/data", nil, adminHeaders)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("admin delete status %d: %s", res.StatusCode, string(data))
	}
	var deleted DeleteDataResponse
	if err := json.Unmarshal(data, &deleted); err != nil {
		t.Fatalf("unmarshal delete response: %v", err)
	}
	if deleted.Deleted.Indicators != 1 || deleted.Deleted.Risks != 1 {
		t.Fatalf("deleted %+v", deleted.Deleted)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/dashboards/dash-1/imports", nil, adminHeaders)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("history status %d: %s", res.StatusCode, string(data))
	}
	var entries []domain.ImportHistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		t.Fatalf("unmarshal history: %v", err)
	}
	if len(entries) != 1 || entries[0].Status != "error" {
		t.Fatalf("history after delete: %+v", entries)
	}
}

func TestPurgeHistoryAdminOnly(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	adminHeaders := loginAs(t, srv, "u-admin")
	analystHeaders := loginAs(t, srv, "u-analyst")

	if res, data := importReport(t, srv, adminHeaders, "reporte-abril.html"); res.StatusCode != http.StatusCreated {
		t.Fatalf("import status %d: %s", res.StatusCode, string(data))
	}

	res, data := doJSON(t, srv.Client(), http.MethodDelete, srv.URL+"/v0/dashboards/dash-1/imports", nil, analystHeaders)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("analyst purge status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, srv.Client(), http.MethodDelete, srv.URL+"/v0/dashboards/dash-1/imports", nil, adminHeaders)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("admin purge status %d: %s", res.StatusCode, string(data))
	}
	var purge PurgeResponse
	if err := json.Unmarshal(data, &purge); err != nil {
		t.Fatalf("unmarshal purge response: %v", err)
	}
	if purge.Entries != 1 {
		t.Fatalf("purged %d entries", purge.Entries)
	}
}

func TestSummaryAggregates(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	headers := loginAs(t, srv, "u-admin")

	if res, data := importReport(t, srv, headers, "reporte-abril.html"); res.StatusCode != http.StatusCreated {
		t.Fatalf("import status %d: %s", res.StatusCode, string(data))
	}
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/dashboards/dash-1/summary", nil, headers)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("summary status %d: %s", res.StatusCode, string(data))
	}
	var sums []engine.AreaSummary
	if err := json.Unmarshal(data, &sums); err != nil {
		t.Fatalf("unmarshal summary: %v", err)
	}
	var infra *engine.AreaSummary
	for i := range sums {
		if sums[i].Area == domain.AreaInfrastructure {
			infra = &sums[i]
		}
	}
	if infra == nil {
		t.Fatalf("no infrastructure summary in %+v", sums)
	}
	if infra.Indicators != 1 || infra.Risks != 1 {
		t.Fatalf("summary %+v", *infra)
	}
}

func TestAPIKeyAuthentication(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	rawKey := "tb_live_0123456789abcdef"
	err := srv.Engine.Repo.InsertAPIKey(context.Background(), nil, domain.APIKey{
		ID:      "key-1",
		ActorID: "u-admin",
		Name:    "ci",
		KeyHash: repo.HashAPIKey(rawKey),
	})
	if err != nil {
		t.Fatalf("insert api key: %v", err)
	}

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/dashboards/dash-1", nil, map[string]string{
		"X-Api-Key": rawKey,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("dashboard status %d: %s", res.StatusCode, string(data))
	}
	var d domain.Dashboard
	if err := json.Unmarshal(data, &d); err != nil {
		t.Fatalf("unmarshal dashboard: %v", err)
	}
	if d.ID != "dash-1" {
		t.Fatalf("dashboard id %q", d.ID)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/dashboards/dash-1", nil, map[string]string{
		"X-Api-Key": "never-issued",
	})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad key status %d: %s", res.StatusCode, string(data))
	}
	if code := errorCode(t, data); code != "invalid_credentials" {
		t.Fatalf("code %q", code)
	}
}
