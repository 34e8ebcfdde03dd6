package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"tablero/internal/domain"
	"tablero/internal/engine"
	"tablero/internal/engine/auth"
	"tablero/internal/parse"
	"tablero/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"duplicate_import"`
	Message string         `json:"message" example:"archivo duplicado"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Tablero API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	// Token signing and validation must share the engine's clock, or an
	// injected clock mints tokens the parser sees as expired.
	now := cfg.Engine.Now
	if now == nil {
		now = time.Now
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo, now))
	hcfg := huma.DefaultConfig("Tablero API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerDevAuth(group, cfg.Engine, cfg.Auth)
	registerDashboards(group, cfg.Engine)
	registerImports(group, cfg.Engine)
	registerIndicators(group, cfg.Engine)
	registerActivities(group, cfg.Engine)
	registerRisks(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)
	startWebhookDispatcher(cfg.Engine)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var fe auth.ForbiddenError
	if errors.As(err, &fe) {
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), map[string]any{"role": fe.Role, "action": fe.Action})
	}
	var dup engine.DuplicateImportError
	if errors.As(err, &dup) {
		return newAPIError(http.StatusConflict, "duplicate_import", err.Error(), map[string]any{
			"prior_import_id": dup.PriorID,
			"prior_date":      dup.PriorDate,
			"prior_actor":     dup.PriorActor,
		})
	}
	var inv engine.InvalidReportError
	if errors.As(err, &inv) {
		return newAPIError(http.StatusUnprocessableEntity, "validation_failed", err.Error(), map[string]any{"errors": inv.Errors})
	}
	var unsupported parse.UnsupportedFormatError
	if errors.As(err, &unsupported) {
		return newAPIError(http.StatusBadRequest, "unsupported_format", err.Error(), nil)
	}
	var pe parse.ParseError
	if errors.As(err, &pe) {
		return newAPIError(http.StatusUnprocessableEntity, "parse_failed", err.Error(), map[string]any{"kind": pe.Kind})
	}
	if errors.Is(err, engine.ErrEmptyReport) {
		return newAPIError(http.StatusUnprocessableEntity, "empty_report", err.Error(), nil)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "missing") || strings.Contains(lowered, "required") || strings.Contains(lowered, "unknown"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func dashboardID(input string, e engine.Engine) string {
	if input != "" {
		return input
	}
	if e.Config != nil {
		return e.Config.Dashboard.ID
	}
	return ""
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	oas.Components.SecuritySchemes["apiKeyAuth"] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: "X-Api-Key",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
		{"apiKeyAuth": {}},
	}
	oas.Security = security
	healthPath := path.Join(basePath, "health")
	devLoginPath := path.Join(basePath, "auth/dev/login")
	if !strings.HasPrefix(healthPath, "/") {
		healthPath = "/" + healthPath
	}
	if !strings.HasPrefix(devLoginPath, "/") {
		devLoginPath = "/" + devLoginPath
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if route == healthPath || route == devLoginPath {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Tablero API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerDevAuth(api huma.API, e engine.Engine, cfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "Issue a JWT for a stored actor (development only)",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body DevLoginRequest `json:"body"`
	}) (*struct {
		Body DevLoginResponse `json:"body"`
	}, error) {
		if !cfg.AllowDevLogin {
			return nil, newAPIError(http.StatusNotFound, "not_found", "dev login disabled", nil)
		}
		if input.Body.ActorID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id is required", nil)
		}
		actor, err := e.Repo.GetActor(ctx, input.Body.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		token, err := signJWT(actor, cfg.JWTSecret, e.Now())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DevLoginResponse `json:"body"`
		}{Body: DevLoginResponse{Token: token, Actor: actor}}, nil
	})
}

func registerDashboards(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-dashboard",
		Method:      http.MethodGet,
		Path:        "/dashboards/{dashboard_id}",
		Summary:     "Get dashboard",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		DashboardID string `path:"dashboard_id"`
	}) (*struct {
		Body domain.Dashboard `json:"body"`
	}, error) {
		if _, authErr := requireActor(ctx, e); authErr != nil {
			return nil, authErr
		}
		d, err := e.Repo.GetDashboard(ctx, dashboardID(input.DashboardID, e))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Dashboard `json:"body"`
		}{Body: d}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-dashboard-summary",
		Method:      http.MethodGet,
		Path:        "/dashboards/{dashboard_id}/summary",
		Summary:     "Aggregate indicators, activities and risks per area",
	}, func(ctx context.Context, input *struct {
		DashboardID string `path:"dashboard_id"`
	}) (*struct {
		Body []engine.AreaSummary `json:"body"`
	}, error) {
		if _, authErr := requireActor(ctx, e); authErr != nil {
			return nil, authErr
		}
		sums, err := e.Summary(ctx, dashboardID(input.DashboardID, e))
		if err != nil {
			return nil, handleError(err)
		}
		if sums == nil {
			sums = []engine.AreaSummary{}
		}
		return &struct {
			Body []engine.AreaSummary `json:"body"`
		}{Body: sums}, nil
	})
}

func registerImports(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "import-report",
		Method:        http.MethodPost,
		Path:          "/dashboards/{dashboard_id}/imports",
		Summary:       "Import a report file",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		DashboardID string        `path:"dashboard_id"`
		Body        ImportRequest `json:"body"`
	}) (*struct {
		Body ImportResponse `json:"body"`
	}, error) {
		actor, authErr := requireActor(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		if input.Body.FileName == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "file_name is required", nil)
		}
		res, err := e.Import(ctx, engine.ImportOptions{
			DashboardID: dashboardID(input.DashboardID, e),
			FileName:    input.Body.FileName,
			Data:        input.Body.Content,
			Actor:       actor,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ImportResponse `json:"body"`
		}{Body: importResponse(res)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-imports",
		Method:      http.MethodGet,
		Path:        "/dashboards/{dashboard_id}/imports",
		Summary:     "List import history",
	}, func(ctx context.Context, input *struct {
		DashboardID string `path:"dashboard_id"`
		Limit       int    `query:"limit"`
	}) (*struct {
		Body []domain.ImportHistoryEntry `json:"body"`
	}, error) {
		if _, authErr := requireActor(ctx, e); authErr != nil {
			return nil, authErr
		}
		entries, err := e.History(ctx, dashboardID(input.DashboardID, e), input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		if entries == nil {
			entries = []domain.ImportHistoryEntry{}
		}
		return &struct {
			Body []domain.ImportHistoryEntry `json:"body"`
		}{Body: entries}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-import",
		Method:      http.MethodDelete,
		Path:        "/imports/{import_id}",
		Summary:     "Delete one import history entry",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ImportID string `path:"import_id"`
	}) (*struct{}, error) {
		actor, authErr := requireActor(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteHistoryEntry(ctx, actor, input.ImportID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-import-data",
		Method:      http.MethodDelete,
		Path:        "/imports/{import_id}/data",
		Summary:     "Delete the rows an import created",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ImportID string `path:"import_id"`
	}) (*struct {
		Body DeleteDataResponse `json:"body"`
	}, error) {
		actor, authErr := requireActor(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		deleted, err := e.DeleteImportedData(ctx, actor, input.ImportID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DeleteDataResponse `json:"body"`
		}{Body: DeleteDataResponse{Deleted: deleted}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "purge-imports",
		Method:      http.MethodDelete,
		Path:        "/dashboards/{dashboard_id}/imports",
		Summary:     "Clear the whole import ledger",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		DashboardID string `path:"dashboard_id"`
	}) (*struct {
		Body PurgeResponse `json:"body"`
	}, error) {
		actor, authErr := requireActor(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		n, err := e.PurgeHistory(ctx, actor, dashboardID(input.DashboardID, e))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PurgeResponse `json:"body"`
		}{Body: PurgeResponse{Entries: n}}, nil
	})
}

func registerIndicators(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-indicators",
		Method:      http.MethodGet,
		Path:        "/dashboards/{dashboard_id}/indicators",
		Summary:     "List indicators",
	}, func(ctx context.Context, input *struct {
		DashboardID string `path:"dashboard_id"`
		Area        string `query:"area" enum:"quality,projects,infrastructure,systems,vp_tech"`
		Status      string `query:"status" enum:"achieved,at_risk,critical,in_progress"`
		Limit       int    `query:"limit"`
	}) (*struct {
		Body []domain.Indicator `json:"body"`
	}, error) {
		if _, authErr := requireActor(ctx, e); authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.ListIndicatorsWithActivities(ctx, repo.IndicatorFilters{
			DashboardID: dashboardID(input.DashboardID, e),
			Area:        input.Area,
			Status:      input.Status,
			Limit:       input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Indicator{}
		}
		return &struct {
			Body []domain.Indicator `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-indicator",
		Method:        http.MethodPost,
		Path:          "/dashboards/{dashboard_id}/indicators",
		Summary:       "Create indicator",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		DashboardID string          `path:"dashboard_id"`
		Body        IndicatorCreate `json:"body"`
	}) (*struct {
		Body domain.Indicator `json:"body"`
	}, error) {
		actor, authErr := requireActor(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		ind, err := e.CreateIndicator(ctx, input.Body.toDomain(dashboardID(input.DashboardID, e)), actor.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Indicator `json:"body"`
		}{Body: ind}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-indicator",
		Method:      http.MethodGet,
		Path:        "/indicators/{indicator_id}",
		Summary:     "Get indicator with its activities",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		IndicatorID string `path:"indicator_id"`
	}) (*struct {
		Body domain.Indicator `json:"body"`
	}, error) {
		if _, authErr := requireActor(ctx, e); authErr != nil {
			return nil, authErr
		}
		ind, err := e.Repo.GetIndicator(ctx, input.IndicatorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Indicator `json:"body"`
		}{Body: ind}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-indicator",
		Method:      http.MethodPatch,
		Path:        "/indicators/{indicator_id}",
		Summary:     "Update indicator",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		IndicatorID string         `path:"indicator_id"`
		Body        IndicatorPatch `json:"body"`
	}) (*struct {
		Body domain.Indicator `json:"body"`
	}, error) {
		actor, authErr := requireActor(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		ind, err := e.UpdateIndicator(ctx, input.IndicatorID, input.Body.toUpdate(), actor.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Indicator `json:"body"`
		}{Body: ind}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-indicator",
		Method:      http.MethodDelete,
		Path:        "/indicators/{indicator_id}",
		Summary:     "Delete indicator and its activities",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		IndicatorID string `path:"indicator_id"`
	}) (*struct{}, error) {
		actor, authErr := requireActor(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteIndicator(ctx, input.IndicatorID, actor.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerActivities(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-activities",
		Method:      http.MethodGet,
		Path:        "/dashboards/{dashboard_id}/activities",
		Summary:     "List activities",
	}, func(ctx context.Context, input *struct {
		DashboardID string `path:"dashboard_id"`
		IndicatorID string `query:"indicator_id"`
		Area        string `query:"area" enum:"quality,projects,infrastructure,systems,vp_tech"`
		Status      string `query:"status" enum:"pending,in_progress,completed,suspended,postponed"`
		Limit       int    `query:"limit"`
	}) (*struct {
		Body []domain.Activity `json:"body"`
	}, error) {
		if _, authErr := requireActor(ctx, e); authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.ListActivities(ctx, repo.ActivityFilters{
			DashboardID: dashboardID(input.DashboardID, e),
			IndicatorID: input.IndicatorID,
			Area:        input.Area,
			Status:      input.Status,
			Limit:       input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Activity{}
		}
		return &struct {
			Body []domain.Activity `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-activity",
		Method:        http.MethodPost,
		Path:          "/indicators/{indicator_id}/activities",
		Summary:       "Create activity under an indicator",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		IndicatorID string         `path:"indicator_id"`
		Body        ActivityCreate `json:"body"`
	}) (*struct {
		Body domain.Activity `json:"body"`
	}, error) {
		actor, authErr := requireActor(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		act, err := e.CreateActivity(ctx, input.Body.toDomain(input.IndicatorID), actor.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Activity `json:"body"`
		}{Body: act}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-activity",
		Method:      http.MethodPatch,
		Path:        "/activities/{activity_id}",
		Summary:     "Update activity",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ActivityID string        `path:"activity_id"`
		Body       ActivityPatch `json:"body"`
	}) (*struct {
		Body domain.Activity `json:"body"`
	}, error) {
		actor, authErr := requireActor(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		act, err := e.UpdateActivity(ctx, input.ActivityID, input.Body.toUpdate(), actor.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Activity `json:"body"`
		}{Body: act}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-activity",
		Method:      http.MethodDelete,
		Path:        "/activities/{activity_id}",
		Summary:     "Delete activity",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ActivityID string `path:"activity_id"`
	}) (*struct{}, error) {
		actor, authErr := requireActor(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteActivity(ctx, input.ActivityID, actor.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerRisks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-risks",
		Method:      http.MethodGet,
		Path:        "/dashboards/{dashboard_id}/risks",
		Summary:     "List risks ordered by exposure",
	}, func(ctx context.Context, input *struct {
		DashboardID string `path:"dashboard_id"`
		Area        string `query:"area" enum:"quality,projects,infrastructure,systems,vp_tech"`
		Status      string `query:"status" enum:"active,monitoring,mitigated"`
		Limit       int    `query:"limit"`
	}) (*struct {
		Body []domain.Risk `json:"body"`
	}, error) {
		if _, authErr := requireActor(ctx, e); authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.ListRisks(ctx, repo.RiskFilters{
			DashboardID: dashboardID(input.DashboardID, e),
			Area:        input.Area,
			Status:      input.Status,
			Limit:       input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Risk{}
		}
		return &struct {
			Body []domain.Risk `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-risk",
		Method:        http.MethodPost,
		Path:          "/dashboards/{dashboard_id}/risks",
		Summary:       "Create risk",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		DashboardID string     `path:"dashboard_id"`
		Body        RiskCreate `json:"body"`
	}) (*struct {
		Body domain.Risk `json:"body"`
	}, error) {
		actor, authErr := requireActor(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		rk, err := e.CreateRisk(ctx, input.Body.toDomain(dashboardID(input.DashboardID, e)), actor.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Risk `json:"body"`
		}{Body: rk}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-risk",
		Method:      http.MethodPatch,
		Path:        "/risks/{risk_id}",
		Summary:     "Update risk",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		RiskID string    `path:"risk_id"`
		Body   RiskPatch `json:"body"`
	}) (*struct {
		Body domain.Risk `json:"body"`
	}, error) {
		actor, authErr := requireActor(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		rk, err := e.UpdateRisk(ctx, input.RiskID, input.Body.toUpdate(), actor.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Risk `json:"body"`
		}{Body: rk}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-risk",
		Method:      http.MethodDelete,
		Path:        "/risks/{risk_id}",
		Summary:     "Delete risk",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		RiskID string `path:"risk_id"`
	}) (*struct{}, error) {
		actor, authErr := requireActor(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteRisk(ctx, input.RiskID, actor.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/dashboards/{dashboard_id}/events",
		Summary:     "List recent events",
	}, func(ctx context.Context, input *struct {
		DashboardID string `path:"dashboard_id"`
		Type        string `query:"type"`
		EntityKind  string `query:"entity_kind"`
		EntityID    string `query:"entity_id"`
		Limit       int    `query:"limit"`
		Cursor      int64  `query:"cursor"`
	}) (*struct {
		Body []domain.Event `json:"body"`
	}, error) {
		if _, authErr := requireActor(ctx, e); authErr != nil {
			return nil, authErr
		}
		limit := input.Limit
		if limit <= 0 {
			limit = 100
		}
		items, err := e.Repo.LatestEventsFrom(ctx, limit, input.Cursor, dashboardID(input.DashboardID, e), input.Type, input.EntityKind, input.EntityID)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Event{}
		}
		return &struct {
			Body []domain.Event `json:"body"`
		}{Body: items}, nil
	})
}
