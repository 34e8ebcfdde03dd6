package fields_test

import (
	"testing"

	"tablero/internal/domain"
	"tablero/internal/fields"
)

func TestAreaMapping(t *testing.T) {
	cases := map[string]string{
		"Calidad y Funcional":  domain.AreaQuality,
		"PROYECTOS":            domain.AreaProjects,
		"Mejora de Procesos":   domain.AreaProjects,
		"Infraestructura TI":   domain.AreaInfrastructure,
		"equipo infra":         domain.AreaInfrastructure,
		"Sistemas":             domain.AreaSystems,
		"Desarrollo de SW":     domain.AreaSystems,
		"VP Tecnología":        domain.AreaVPTech,
		"":                     domain.AreaQuality,
		"algo desconocido":     domain.AreaQuality,
		"área funcional":       domain.AreaQuality,
	}
	for raw, want := range cases {
		if got := fields.Area(raw); got != want {
			t.Errorf("Area(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestAreaFromSelect(t *testing.T) {
	if got := fields.AreaFromSelect("redes"); got != domain.AreaInfrastructure {
		t.Errorf("redes = %q", got)
	}
	if got := fields.AreaFromSelect("nope"); got != domain.AreaQuality {
		t.Errorf("fallback = %q", got)
	}
}

func TestIndicatorStatusTotal(t *testing.T) {
	valid := map[string]bool{
		domain.IndicatorAchieved: true,
		domain.IndicatorAtRisk:   true,
		domain.IndicatorCritical: true,
	}
	for _, raw := range []string{"", "Cumplido", "en riesgo", "CRÍTICO", "rojo", "???", "verde"} {
		got := fields.IndicatorStatus(raw)
		if !valid[got] {
			t.Errorf("IndicatorStatus(%q) = %q, not a valid status", raw, got)
		}
	}
	if fields.IndicatorStatus("") != domain.IndicatorAtRisk {
		t.Errorf("empty input should default to at_risk")
	}
}

func TestStatusFromRatio(t *testing.T) {
	cases := []struct {
		pct  float64
		want string
	}{
		{100, domain.IndicatorAchieved},
		{90, domain.IndicatorAchieved},
		{89.9, domain.IndicatorAtRisk},
		{80, domain.IndicatorAtRisk},
		{79.9, domain.IndicatorCritical},
		{0, domain.IndicatorCritical},
	}
	for _, c := range cases {
		if got := fields.StatusFromRatio(c.pct); got != c.want {
			t.Errorf("StatusFromRatio(%v) = %q, want %q", c.pct, got, c.want)
		}
	}
}

func TestActivityStatusDefaultsDivergePerSource(t *testing.T) {
	// The HTML form source defaults to completed, the spreadsheet source to
	// pending. Both defaults are load-bearing for fixture behavior.
	if got := fields.ActivityStatusFromToken("???"); got != domain.ActivityCompleted {
		t.Errorf("token default = %q, want completed", got)
	}
	if got := fields.ActivityStatusFromText("???"); got != domain.ActivityPending {
		t.Errorf("text default = %q, want pending", got)
	}
	if got := fields.ActivityStatusFromToken("certificado"); got != domain.ActivityCompleted {
		t.Errorf("certificado = %q", got)
	}
	if got := fields.ActivityStatusFromToken("retrasada"); got != domain.ActivityInProgress {
		t.Errorf("retrasada = %q", got)
	}
	if got := fields.ActivityStatusFromText("En curso"); got != domain.ActivityInProgress {
		t.Errorf("en curso = %q", got)
	}
	if got := fields.ActivityStatusFromText("Terminada"); got != domain.ActivityCompleted {
		t.Errorf("terminada = %q", got)
	}
}

func TestRiskStatusRules(t *testing.T) {
	cases := []struct {
		impact, prob, want string
	}{
		{domain.ImpactAlto, domain.ProbabilityAlta, domain.RiskActive},
		{domain.ImpactAlto, domain.ProbabilityMedia, domain.RiskActive},
		{domain.ImpactAlto, domain.ProbabilityBaja, domain.RiskMitigated},
		{domain.ImpactMedio, domain.ProbabilityBaja, domain.RiskMonitoring},
		{domain.ImpactBajo, domain.ProbabilityMedia, domain.RiskMonitoring},
		{domain.ImpactBajo, domain.ProbabilityBaja, domain.RiskMitigated},
	}
	for _, c := range cases {
		if got := fields.RiskStatus(c.impact, c.prob); got != c.want {
			t.Errorf("RiskStatus(%s,%s) = %q, want %q", c.impact, c.prob, got, c.want)
		}
	}
}

func TestExposureRange(t *testing.T) {
	impacts := []string{domain.ImpactAlto, domain.ImpactMedio, domain.ImpactBajo}
	probs := []string{domain.ProbabilityAlta, domain.ProbabilityMedia, domain.ProbabilityBaja}
	for _, i := range impacts {
		for _, p := range probs {
			e := fields.Exposure(i, p)
			if e < 1 || e > 9 {
				t.Errorf("Exposure(%s,%s) = %d out of range", i, p, e)
			}
		}
	}
	if fields.Exposure(domain.ImpactAlto, domain.ProbabilityAlta) != 9 {
		t.Errorf("alto/alta should be 9")
	}
	if fields.Exposure(domain.ImpactBajo, domain.ProbabilityBaja) != 1 {
		t.Errorf("bajo/baja should be 1")
	}
}

func TestNumeric(t *testing.T) {
	cases := map[string]float64{
		"95%":      95,
		"$1,250":   1250,
		" 42.5 ":   42.5,
		"":         0,
		"n/a":      0,
		"1,000.25": 1000.25,
	}
	for raw, want := range cases {
		if got := fields.Numeric(raw); got != want {
			t.Errorf("Numeric(%q) = %v, want %v", raw, got, want)
		}
	}
}
