package engine

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tablero/internal/config"
	"tablero/internal/domain"
	"tablero/internal/engine/auth"
	"tablero/internal/events"
	"tablero/internal/parse"
	"tablero/internal/repo"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time

	importMu *sync.Mutex
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:       db,
		Repo:     repo.Repo{DB: db},
		Events:   events.Writer{DB: db},
		Config:   cfg,
		Now:      time.Now,
		importMu: &sync.Mutex{},
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// DuplicateImportError rejects a file whose content, or successful file name,
// was imported before.
type DuplicateImportError struct {
	FileName   string
	PriorID    string
	PriorDate  string
	PriorActor string
}

func (e DuplicateImportError) Error() string {
	return fmt.Sprintf("archivo duplicado: %s ya fue importado el %s por %s", e.FileName, e.PriorDate, e.PriorActor)
}

// InvalidReportError carries every validation message for a rejected batch.
type InvalidReportError struct {
	Errors []string
}

func (e InvalidReportError) Error() string {
	return "archivo inválido: " + strings.Join(e.Errors, "; ")
}

// ErrEmptyReport rejects files that parse cleanly but hold no rows.
var ErrEmptyReport = errors.New("no se encontraron datos válidos en el archivo")

// InitDashboard initializes a new dashboard with migrations already run.
func (e Engine) InitDashboard(ctx context.Context, dashboardID, name, description, actorID string) (domain.Dashboard, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Dashboard{}, err
	}
	defer tx.Rollback()

	if name == "" {
		name = dashboardID
	}
	d := domain.Dashboard{
		ID:          dashboardID,
		Name:        name,
		Status:      "active",
		Description: description,
		CreatedAt:   e.now().UTC().Format(time.RFC3339),
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO dashboards(id,name,status,description,created_at) VALUES (?,?,?,?,?)`,
		d.ID, d.Name, d.Status, nullable(d.Description), d.CreatedAt); err != nil {
		return domain.Dashboard{}, fmt.Errorf("insert dashboard: %w", err)
	}
	if err := e.Repo.UpsertDashboardConfigTx(ctx, tx, d.ID, config.Default(d.ID)); err != nil {
		return domain.Dashboard{}, fmt.Errorf("insert dashboard config: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "dashboard.init", d.ID, "dashboard", d.ID, actorID, events.EventPayload{"name": d.Name}); err != nil {
		return domain.Dashboard{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Dashboard{}, err
	}
	return d, nil
}

// ImportOptions are parameters for importing a report file.
type ImportOptions struct {
	DashboardID string
	FileName    string
	Data        []byte
	Actor       domain.Actor
}

// ImportResult is the outcome of a successful import.
type ImportResult struct {
	Entry      domain.ImportHistoryEntry
	Indicators []domain.Indicator
	Risks      []domain.Risk
}

// Import runs the full pipeline: hash, duplicate check, parse, validate,
// reconcile, persist. Rejections are recorded in the ledger before the error
// is returned. Imports for the same database are serialized.
func (e Engine) Import(ctx context.Context, opts ImportOptions) (ImportResult, error) {
	if e.importMu != nil {
		e.importMu.Lock()
		defer e.importMu.Unlock()
	}
	if opts.DashboardID == "" {
		return ImportResult{}, errors.New("dashboard is required")
	}
	if opts.FileName == "" {
		return ImportResult{}, errors.New("file name is required")
	}
	if err := auth.CanImport(opts.Actor, e.importRoles()); err != nil {
		return ImportResult{}, err
	}

	sum := sha256.Sum256(opts.Data)
	hash := hex.EncodeToString(sum[:])

	if dup, err := e.Repo.FindDuplicateImport(ctx, opts.DashboardID, hash, opts.FileName); err == nil {
		dupErr := DuplicateImportError{FileName: opts.FileName, PriorID: dup.ID, PriorDate: dup.Date, PriorActor: dup.ImportedBy}
		if logErr := e.logRejected(ctx, opts, hash, dupErr.Error()); logErr != nil {
			return ImportResult{}, logErr
		}
		return ImportResult{}, dupErr
	} else if err != repo.ErrNotFound {
		return ImportResult{}, err
	}

	popts := parse.Options{Now: e.Now}
	if e.Config != nil {
		popts.DefaultResponsible = e.Config.Imports.DefaultResponsible
	}
	batch, kind, err := parse.File(opts.FileName, opts.Data, popts)
	if err != nil {
		if logErr := e.logRejected(ctx, opts, hash, err.Error()); logErr != nil {
			return ImportResult{}, logErr
		}
		return ImportResult{}, err
	}

	if result := parse.Validate(batch); !result.IsValid {
		invErr := InvalidReportError{Errors: result.Errors}
		if logErr := e.logRejected(ctx, opts, hash, invErr.Error()); logErr != nil {
			return ImportResult{}, logErr
		}
		return ImportResult{}, invErr
	}
	if batch.Empty() {
		if logErr := e.logRejected(ctx, opts, hash, ErrEmptyReport.Error()); logErr != nil {
			return ImportResult{}, logErr
		}
		return ImportResult{}, ErrEmptyReport
	}

	now := e.now()
	indicators, risks := Reconcile(ReconcileInput{
		DashboardID: opts.DashboardID,
		Batch:       batch,
		Now:         now,
	})

	entry := domain.ImportHistoryEntry{
		ID:              uuid.NewString(),
		DashboardID:     opts.DashboardID,
		FileName:        opts.FileName,
		FileSize:        int64(len(opts.Data)),
		FileHash:        hash,
		Date:            now.UTC().Format(time.RFC3339),
		Kind:            kind,
		IndicatorsCount: len(indicators),
		ActivitiesCount: countActivities(indicators),
		RisksCount:      len(risks),
		Status:          "success",
		ImportedBy:      opts.Actor.Name,
		ImportedByRole:  opts.Actor.Role,
		Areas:           collectAreas(indicators, risks),
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return ImportResult{}, err
	}
	defer tx.Rollback()

	ts := now.UTC().Format(time.RFC3339)
	for i := range indicators {
		indicators[i].ImportBatchID = &entry.ID
		indicators[i].CreatedAt = ts
		indicators[i].UpdatedAt = ts
		if err := e.Repo.InsertIndicatorTx(ctx, tx, indicators[i]); err != nil {
			return ImportResult{}, fmt.Errorf("insert indicator %s: %w", indicators[i].ID, err)
		}
		for j := range indicators[i].Activities {
			indicators[i].Activities[j].CreatedAt = ts
			indicators[i].Activities[j].UpdatedAt = ts
			if err := e.Repo.InsertActivityTx(ctx, tx, indicators[i].Activities[j]); err != nil {
				return ImportResult{}, fmt.Errorf("insert activity %s: %w", indicators[i].Activities[j].ID, err)
			}
		}
	}
	for i := range risks {
		risks[i].ImportBatchID = &entry.ID
		risks[i].CreatedAt = ts
		risks[i].UpdatedAt = ts
		if err := e.Repo.InsertRiskTx(ctx, tx, risks[i]); err != nil {
			return ImportResult{}, fmt.Errorf("insert risk %s: %w", risks[i].ID, err)
		}
	}
	if err := e.Repo.InsertImportHistoryTx(ctx, tx, entry); err != nil {
		return ImportResult{}, fmt.Errorf("insert import history: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "import.completed", opts.DashboardID, "import", entry.ID, opts.Actor.ID, events.EventPayload{
		"file_name":  entry.FileName,
		"file_hash":  entry.FileHash,
		"kind":       entry.Kind,
		"indicators": entry.IndicatorsCount,
		"activities": entry.ActivitiesCount,
		"risks":      entry.RisksCount,
	}); err != nil {
		return ImportResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return ImportResult{}, err
	}
	return ImportResult{Entry: entry, Indicators: indicators, Risks: risks}, nil
}

func (e Engine) importRoles() []string {
	if e.Config != nil {
		return e.Config.ImportRoles()
	}
	return nil
}

// logRejected records a failed import attempt in the ledger. The entry keeps
// the content hash so a renamed duplicate is still recognizable later.
func (e Engine) logRejected(ctx context.Context, opts ImportOptions, hash, message string) error {
	if hash == "" {
		hash = "unknown"
	}
	entry := domain.ImportHistoryEntry{
		ID:             uuid.NewString(),
		DashboardID:    opts.DashboardID,
		FileName:       opts.FileName,
		FileSize:       int64(len(opts.Data)),
		FileHash:       hash,
		Date:           e.now().UTC().Format(time.RFC3339),
		Kind:           ledgerKind(opts.FileName),
		Status:         "error",
		ErrorMessage:   message,
		ImportedBy:     opts.Actor.Name,
		ImportedByRole: opts.Actor.Role,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertImportHistoryTx(ctx, tx, entry); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "import.rejected", opts.DashboardID, "import", entry.ID, opts.Actor.ID, events.EventPayload{
		"file_name": entry.FileName,
		"reason":    message,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

func ledgerKind(fileName string) string {
	if kind, err := parse.DetectKind(fileName); err == nil {
		return kind
	}
	lower := strings.ToLower(fileName)
	if strings.HasSuffix(lower, ".html") || strings.HasSuffix(lower, ".htm") {
		return parse.KindHTML
	}
	return parse.KindExcel
}

func countActivities(indicators []domain.Indicator) int {
	n := 0
	for _, ind := range indicators {
		n += len(ind.Activities)
	}
	return n
}

func collectAreas(indicators []domain.Indicator, risks []domain.Risk) []string {
	seen := map[string]bool{}
	for _, ind := range indicators {
		seen[ind.Area] = true
	}
	for _, rk := range risks {
		seen[rk.Area] = true
	}
	areas := make([]string, 0, len(seen))
	for a := range seen {
		areas = append(areas, a)
	}
	sort.Strings(areas)
	return areas
}

// History lists ledger entries newest first.
func (e Engine) History(ctx context.Context, dashboardID string, limit int) ([]domain.ImportHistoryEntry, error) {
	return e.Repo.ListImportHistory(ctx, dashboardID, limit)
}

// DeleteHistoryEntry removes one ledger entry. Imported rows are untouched.
func (e Engine) DeleteHistoryEntry(ctx context.Context, actor domain.Actor, id string) error {
	entry, err := e.Repo.GetImportHistory(ctx, id)
	if err != nil {
		return err
	}
	if err := auth.CanDeleteHistory(actor, entry); err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM import_history WHERE id=?`, id); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "import.history.deleted", entry.DashboardID, "import", entry.ID, actor.ID, events.EventPayload{
		"file_name": entry.FileName,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

// DeletedData reports how many rows an admin removal affected.
type DeletedData struct {
	Indicators int64 `json:"indicators"`
	Risks      int64 `json:"risks"`
}

// DeleteImportedData removes the indicators and risks an import created and
// marks the ledger entry as error. Admin only. Entries older than the batch
// id column fall back to a same-day match on creation time.
func (e Engine) DeleteImportedData(ctx context.Context, actor domain.Actor, historyID string) (DeletedData, error) {
	if err := auth.CanDeleteData(actor); err != nil {
		return DeletedData{}, err
	}
	entry, err := e.Repo.GetImportHistory(ctx, historyID)
	if err != nil {
		return DeletedData{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return DeletedData{}, err
	}
	defer tx.Rollback()

	var deleted DeletedData
	deleted.Indicators, err = e.Repo.DeleteIndicatorsByBatchTx(ctx, tx, entry.DashboardID, entry.ID)
	if err != nil {
		return DeletedData{}, err
	}
	deleted.Risks, err = e.Repo.DeleteRisksByBatchTx(ctx, tx, entry.DashboardID, entry.ID)
	if err != nil {
		return DeletedData{}, err
	}
	if deleted.Indicators == 0 && deleted.Risks == 0 && len(entry.Date) >= 10 {
		day := entry.Date[:10]
		deleted.Indicators, err = e.Repo.DeleteIndicatorsByDayTx(ctx, tx, entry.DashboardID, day)
		if err != nil {
			return DeletedData{}, err
		}
		deleted.Risks, err = e.Repo.DeleteRisksByDayTx(ctx, tx, entry.DashboardID, day)
		if err != nil {
			return DeletedData{}, err
		}
	}
	if err := e.Repo.MarkImportHistoryErrorTx(ctx, tx, entry.ID, "Datos eliminados por el administrador"); err != nil {
		return DeletedData{}, err
	}
	if err := e.Events.Append(ctx, tx, "import.data.deleted", entry.DashboardID, "import", entry.ID, actor.ID, events.EventPayload{
		"indicators": deleted.Indicators,
		"risks":      deleted.Risks,
	}); err != nil {
		return DeletedData{}, err
	}
	if err := tx.Commit(); err != nil {
		return DeletedData{}, err
	}
	return deleted, nil
}

// PurgeHistory clears the whole ledger for a dashboard. Admin only. Imported
// rows stay.
func (e Engine) PurgeHistory(ctx context.Context, actor domain.Actor, dashboardID string) (int64, error) {
	if err := auth.CanPurge(actor); err != nil {
		return 0, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	res, err := tx.ExecContext(ctx, `DELETE FROM import_history WHERE dashboard_id=?`, dashboardID)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	if err := e.Events.Append(ctx, tx, "import.history.purged", dashboardID, "import", "", actor.ID, events.EventPayload{
		"entries": n,
	}); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
