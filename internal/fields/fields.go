// Package fields maps loosely formatted report text onto the canonical enum
// values of the domain. Every mapper is total: any input, including the
// empty string, yields a valid enum member.
package fields

import (
	"strconv"
	"strings"

	"tablero/internal/domain"
)

type areaRule struct {
	substr string
	code   string
}

// Ordered: first match wins. "funcional" must be checked under quality
// before "sistema" can claim development-flavored labels.
var areaRules = []areaRule{
	{"calidad", domain.AreaQuality},
	{"funcional", domain.AreaQuality},
	{"proyecto", domain.AreaProjects},
	{"proceso", domain.AreaProjects},
	{"infraestructura", domain.AreaInfrastructure},
	{"infra", domain.AreaInfrastructure},
	{"sistema", domain.AreaSystems},
	{"desarrollo", domain.AreaSystems},
	{"vp", domain.AreaVPTech},
	{"tecnología", domain.AreaVPTech},
	{"tecnologia", domain.AreaVPTech},
}

// Area maps free text ("Calidad y Funcional", "Infraestructura TI") to an
// area code, defaulting to quality.
func Area(raw string) string {
	lower := strings.ToLower(raw)
	for _, r := range areaRules {
		if strings.Contains(lower, r.substr) {
			return r.code
		}
	}
	return domain.AreaQuality
}

// areaSelectValues are the option values of the HTML report's area selector.
var areaSelectValues = map[string]string{
	"calidad-funcional": domain.AreaQuality,
	"infraestructura":   domain.AreaInfrastructure,
	"desarrollo":        domain.AreaSystems,
	"seguridad":         domain.AreaInfrastructure,
	"soporte":           domain.AreaSystems,
	"bi":                domain.AreaSystems,
	"db":                domain.AreaInfrastructure,
	"redes":             domain.AreaInfrastructure,
	"proyectos":         domain.AreaProjects,
	"procesos":          domain.AreaProjects,
}

// AreaFromSelect maps an HTML select option value to an area code,
// defaulting to quality.
func AreaFromSelect(value string) string {
	if code, ok := areaSelectValues[value]; ok {
		return code
	}
	return domain.AreaQuality
}

// IndicatorStatus maps free text to an indicator status, defaulting to
// at_risk. Recognizes Spanish, English and traffic-light tokens.
func IndicatorStatus(raw string) string {
	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "cumplido"), strings.Contains(lower, "achieved"), strings.Contains(lower, "verde"):
		return domain.IndicatorAchieved
	case strings.Contains(lower, "riesgo"), strings.Contains(lower, "risk"), strings.Contains(lower, "amarillo"):
		return domain.IndicatorAtRisk
	case strings.Contains(lower, "crítico"), strings.Contains(lower, "critical"), strings.Contains(lower, "rojo"):
		return domain.IndicatorCritical
	}
	return domain.IndicatorAtRisk
}

// StatusFromRatio derives an indicator status from the achievement
// percentage: >=90 achieved, >=80 at_risk, else critical.
func StatusFromRatio(percentage float64) string {
	switch {
	case percentage >= 90:
		return domain.IndicatorAchieved
	case percentage >= 80:
		return domain.IndicatorAtRisk
	default:
		return domain.IndicatorCritical
	}
}

// activityTokens are the exact select option values of the HTML report.
// "certificado" and "produccion" are deployment milestones the source
// treats as completed work.
var activityTokens = map[string]string{
	"pendiente":   domain.ActivityPending,
	"en-progreso": domain.ActivityInProgress,
	"completada":  domain.ActivityCompleted,
	"retrasada":   domain.ActivityInProgress,
	"cancelada":   domain.ActivitySuspended,
	"certificado": domain.ActivityCompleted,
	"produccion":  domain.ActivityCompleted,
	"suspendida":  domain.ActivitySuspended,
	"aplazada":    domain.ActivityPostponed,
}

// ActivityStatusFromToken maps an HTML select token to an activity status.
// Unknown tokens default to completed: the monthly report form pre-selects
// completed and unmapped rows are overwhelmingly finished work. This
// deliberately differs from ActivityStatusFromText's pending default; the
// two source formats carry different priors.
func ActivityStatusFromToken(token string) string {
	if s, ok := activityTokens[token]; ok {
		return s
	}
	return domain.ActivityCompleted
}

// ActivityStatusFromText maps free spreadsheet text to an activity status,
// defaulting to pending.
func ActivityStatusFromText(raw string) string {
	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "pendiente"), strings.Contains(lower, "pending"):
		return domain.ActivityPending
	case strings.Contains(lower, "curso"), strings.Contains(lower, "progress"), strings.Contains(lower, "proceso"):
		return domain.ActivityInProgress
	case strings.Contains(lower, "finalizada"), strings.Contains(lower, "completed"), strings.Contains(lower, "terminada"):
		return domain.ActivityCompleted
	case strings.Contains(lower, "suspendida"), strings.Contains(lower, "suspended"):
		return domain.ActivitySuspended
	case strings.Contains(lower, "aplazada"), strings.Contains(lower, "postponed"), strings.Contains(lower, "diferida"):
		return domain.ActivityPostponed
	}
	return domain.ActivityPending
}

// RiskStatus derives the overall risk status from impact and probability:
// alto/alta and alto/media are active, any medio or media is monitoring,
// everything else is considered mitigated.
func RiskStatus(impact, probability string) string {
	if impact == domain.ImpactAlto && (probability == domain.ProbabilityAlta || probability == domain.ProbabilityMedia) {
		return domain.RiskActive
	}
	if impact == domain.ImpactMedio || probability == domain.ProbabilityMedia {
		return domain.RiskMonitoring
	}
	return domain.RiskMitigated
}

func impactWeight(impact string) int {
	switch impact {
	case domain.ImpactAlto:
		return 3
	case domain.ImpactMedio:
		return 2
	default:
		return 1
	}
}

func probabilityWeight(probability string) int {
	switch probability {
	case domain.ProbabilityAlta:
		return 3
	case domain.ProbabilityMedia:
		return 2
	default:
		return 1
	}
}

// Exposure computes the derived risk score, weight(impact) x
// weight(probability), always in [1,9].
func Exposure(impact, probability string) int {
	return impactWeight(impact) * probabilityWeight(probability)
}

// Impact normalizes a raw impact token, defaulting to medio.
func Impact(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case domain.ImpactAlto:
		return domain.ImpactAlto
	case domain.ImpactBajo:
		return domain.ImpactBajo
	default:
		return domain.ImpactMedio
	}
}

// Probability normalizes a raw probability token, defaulting to media.
func Probability(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case domain.ProbabilityAlta:
		return domain.ProbabilityAlta
	case domain.ProbabilityBaja:
		return domain.ProbabilityBaja
	default:
		return domain.ProbabilityMedia
	}
}

// Numeric strips currency/percent symbols and thousands separators and
// parses the remainder as a float. Returns 0 on any failure.
func Numeric(raw string) float64 {
	clean := strings.NewReplacer("%", "", "$", "", ",", "").Replace(raw)
	clean = strings.TrimSpace(clean)
	if clean == "" {
		return 0
	}
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0
	}
	return v
}
