package domain

// Area codes scope indicators, activities and risks to an organizational unit.
const (
	AreaQuality        = "quality"
	AreaProjects       = "projects"
	AreaInfrastructure = "infrastructure"
	AreaSystems        = "systems"
	AreaVPTech         = "vp_tech"
)

// Indicator statuses. in_progress is a manual override and is never derived
// from the target/actual ratio.
const (
	IndicatorAchieved   = "achieved"
	IndicatorAtRisk     = "at_risk"
	IndicatorCritical   = "critical"
	IndicatorInProgress = "in_progress"
)

const (
	ActivityPending    = "pending"
	ActivityInProgress = "in_progress"
	ActivityCompleted  = "completed"
	ActivitySuspended  = "suspended"
	ActivityPostponed  = "postponed"
)

// Risk impact/probability levels keep the Spanish tokens of the source
// reports; they are wire values, not display strings.
const (
	ImpactAlto  = "alto"
	ImpactMedio = "medio"
	ImpactBajo  = "bajo"

	ProbabilityAlta  = "alta"
	ProbabilityMedia = "media"
	ProbabilityBaja  = "baja"
)

const (
	RiskActive     = "active"
	RiskMonitoring = "monitoring"
	RiskMitigated  = "mitigated"
)

const (
	RoleAdmin       = "admin"
	RoleAreaManager = "area_manager"
	RoleAnalyst     = "analyst"
	RoleConsultant  = "consultant"
)

type Dashboard struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Status      string `json:"status"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type Indicator struct {
	ID              string     `json:"id"`
	DashboardID     string     `json:"dashboard_id"`
	Name            string     `json:"name"`
	Area            string     `json:"area" enum:"quality,projects,infrastructure,systems,vp_tech"`
	Target          float64    `json:"target"`
	Actual          float64    `json:"actual"`
	MeasurementDate string     `json:"measurement_date"`
	Responsible     string     `json:"responsible"`
	Status          string     `json:"status" enum:"achieved,at_risk,critical,in_progress"`
	Observations    string     `json:"observations,omitempty"`
	Activities      []Activity `json:"activities"`
	ImportBatchID   *string    `json:"import_batch_id,omitempty"`
	CreatedAt       string     `json:"created_at" format:"date-time"`
	UpdatedAt       string     `json:"updated_at" format:"date-time"`
}

type Activity struct {
	ID               string  `json:"id"`
	IndicatorID      string  `json:"indicator_id"`
	Name             string  `json:"name"`
	Area             string  `json:"area"`
	Status           string  `json:"status" enum:"pending,in_progress,completed,suspended,postponed"`
	Progress         int     `json:"progress" minimum:"0" maximum:"100"`
	StartDate        string  `json:"start_date"`
	EstimatedEndDate string  `json:"estimated_end_date"`
	ActualEndDate    *string `json:"actual_end_date,omitempty"`
	Responsible      string  `json:"responsible"`
	Observations     string  `json:"observations,omitempty"`
	CreatedAt        string  `json:"created_at" format:"date-time"`
	UpdatedAt        string  `json:"updated_at" format:"date-time"`
}

type Risk struct {
	ID               string  `json:"id"`
	DashboardID      string  `json:"dashboard_id"`
	Name             string  `json:"name"`
	Area             string  `json:"area"`
	Category         string  `json:"category"`
	Impact           string  `json:"impact" enum:"alto,medio,bajo"`
	Probability      string  `json:"probability" enum:"alta,media,baja"`
	Exposure         int     `json:"exposure" minimum:"1" maximum:"9"`
	MitigationPlan   string  `json:"mitigation_plan,omitempty"`
	MitigationStatus string  `json:"mitigation_status" enum:"pending,in_progress,completed"`
	Status           string  `json:"status" enum:"active,monitoring,mitigated"`
	Responsible      string  `json:"responsible"`
	ImportBatchID    *string `json:"import_batch_id,omitempty"`
	CreatedAt        string  `json:"created_at" format:"date-time"`
	UpdatedAt        string  `json:"updated_at" format:"date-time"`
}

// Proto records are parser output: no durable ids, no timestamps.

type ProtoIndicator struct {
	Name            string
	Area            string
	Target          float64
	Actual          float64
	MeasurementDate string
	Responsible     string
	Status          string
	Observations    string
}

type ProtoActivity struct {
	Name             string
	IndicatorRef     string // source document hint only; never a durable id
	Area             string
	Status           string
	Progress         int
	StartDate        string
	EstimatedEndDate string
	ActualEndDate    string
	Responsible      string
	Observations     string
}

type ProtoRisk struct {
	Name           string
	Area           string
	Category       string
	Impact         string
	Probability    string
	MitigationPlan string
	Status         string
	Responsible    string
}

// ImportBatch is the common output of both format parsers, prior to
// validation and reconciliation. It is never persisted as such.
type ImportBatch struct {
	Indicators []ProtoIndicator
	Activities []ProtoActivity
	Risks      []ProtoRisk
}

func (b ImportBatch) Empty() bool {
	return len(b.Indicators) == 0 && len(b.Activities) == 0 && len(b.Risks) == 0
}

// ImportHistoryEntry is one row in the append-only import ledger. It is
// independent of the data it describes: deleting indicators never cascades
// to history and vice versa.
type ImportHistoryEntry struct {
	ID              string   `json:"id"`
	DashboardID     string   `json:"dashboard_id"`
	FileName        string   `json:"file_name"`
	FileSize        int64    `json:"file_size"`
	FileHash        string   `json:"file_hash"`
	Date            string   `json:"date" format:"date-time"`
	Kind            string   `json:"kind" enum:"HTML,Excel"`
	IndicatorsCount int      `json:"indicators_count"`
	ActivitiesCount int      `json:"activities_count"`
	RisksCount      int      `json:"risks_count"`
	Status          string   `json:"status" enum:"success,error"`
	ErrorMessage    string   `json:"error_message,omitempty"`
	ImportedBy      string   `json:"imported_by"`
	ImportedByRole  string   `json:"imported_by_role"`
	Areas           []string `json:"areas"`
}

// Actor is the identity performing an operation. Area is only meaningful
// for area-scoped roles (area_manager, consultant).
type Actor struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role" enum:"admin,area_manager,analyst,consultant"`
	Area      string `json:"area,omitempty"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Event struct {
	ID          int64  `json:"id"`
	TS          string `json:"ts" format:"date-time"`
	Type        string `json:"type"`
	DashboardID string `json:"dashboard_id,omitempty"`
	EntityKind  string `json:"entity_kind"`
	EntityID    string `json:"entity_id,omitempty"`
	ActorID     string `json:"actor_id"`
	Payload     string `json:"payload_json"`
}

// AreaCodes lists the valid area enum values in catalog order.
func AreaCodes() []string {
	return []string{AreaQuality, AreaProjects, AreaInfrastructure, AreaSystems, AreaVPTech}
}

func ValidArea(code string) bool {
	for _, a := range AreaCodes() {
		if a == code {
			return true
		}
	}
	return false
}
