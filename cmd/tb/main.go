package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tablero/internal/app"
	"tablero/internal/config"
	"tablero/internal/db"
	"tablero/internal/domain"
	"tablero/internal/engine"
	"tablero/internal/migrate"
	"tablero/internal/repo"
	"tablero/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "tb",
	Short: "Tablero CLI",
	Long: `Tablero keeps a per-area management dashboard fed from monthly report files.
- Workspace: your .tablero directory with only the database; configs live in the DB and are imported explicitly.
- Dashboard: the container that owns indicators, activities, risks and the import ledger.
- Imports: HTML or Excel reports are hashed, validated and reconciled; duplicates are rejected and every attempt lands in the ledger.
- Indicators: KPIs per area with target/actual and a status derived from the achievement ratio.
- Activities: the work behind each indicator, with progress and dates.
- Risks: scored impact x probability, ordered by exposure.
- Event log: diary of changes, view with 'tb log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("TABLERO")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().String("actor-role", domain.RoleAdmin, "actor role when not stored in the actors table")
	rootCmd.PersistentFlags().String("actor-area", "", "actor area when not stored in the actors table")
	rootCmd.PersistentFlags().String("dashboard", "", "dashboard id (overrides config default)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("actor-role", rootCmd.PersistentFlags().Lookup("actor-role"))
	_ = viper.BindPFlag("actor-area", rootCmd.PersistentFlags().Lookup("actor-area"))
	_ = viper.BindPFlag("dashboard", rootCmd.PersistentFlags().Lookup("dashboard"))
}

func registerCommands() {
	rootCmd.AddCommand(dashboardCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(indicatorCmd())
	rootCmd.AddCommand(activityCmd())
	rootCmd.AddCommand(riskCmd())
	rootCmd.AddCommand(summaryCmd())
	rootCmd.AddCommand(actorCmd())
	rootCmd.AddCommand(apiKeyCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func dashboardCmd() *cobra.Command {
	dash := &cobra.Command{Use: "dashboard", Short: "Manage dashboards"}
	dash.AddCommand(dashboardListCmd())
	dash.AddCommand(dashboardCreateCmd())
	dash.AddCommand(dashboardShowCmd())
	dash.AddCommand(dashboardUseCmd())
	return dash
}

func dashboardListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List dashboards",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListDashboards(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	return cmd
}

func dashboardCreateCmd() *cobra.Command {
	var id, name, desc string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("--id required")
			}
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg := config.Default(id)
			if name != "" {
				cfg.Dashboard.Name = name
			}
			e := engine.New(conn, cfg)
			d, err := e.InitDashboard(cmd.Context(), id, name, desc, viper.GetString("actor-id"))
			if err != nil {
				return err
			}
			return printJSONOrTable(d)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "dashboard id")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func dashboardShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			target := viper.GetString("dashboard")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if target == "" {
					target = e.Config.Dashboard.ID
				}
				d, err := e.Repo.GetDashboard(ctx, target)
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	return cmd
}

func dashboardUseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "use <id>",
		Short: "Set current dashboard for this workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dashboardID := strings.TrimSpace(args[0])
			if dashboardID == "" {
				return fmt.Errorf("dashboard id is required")
			}
			workspace := viper.GetString("workspace")
			if err := setEnvValue(filepath.Join(workspace, ".env"), "TABLERO_DASHBOARD", dashboardID); err != nil {
				return err
			}
			fmt.Printf("Set TABLERO_DASHBOARD=%s in %s/.env\n", dashboardID, workspace)
			return nil
		},
	}
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage dashboard config"}
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configImportCmd())
	return cfg
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show dashboard config stored in DB",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return printJSONOrTable(e.Config)
			})
		},
	}
	return cmd
}

func configInitCmd() *cobra.Command {
	var dashboardID string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default tablero.yml into the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dashboardID == "" {
				dashboardID = "default"
			}
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(dashboardID)), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&dashboardID, "id", "", "dashboard id for the template")
	return cmd
}

func configImportCmd() *cobra.Command {
	var filePath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import dashboard config from YAML into the DB",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(filePath)
			if err != nil {
				return err
			}
			cfg, err := config.FromYAML(data)
			if err != nil {
				return err
			}
			dashboardID := cfg.Dashboard.ID
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if dashboardID == "" {
					dashboardID = e.Config.Dashboard.ID
				}
				if err := e.Repo.UpsertDashboardConfig(ctx, dashboardID, cfg); err != nil {
					return err
				}
				return printJSONOrTable(cfg)
			})
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "path to YAML config")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func importCmd() *cobra.Command {
	imp := &cobra.Command{
		Use:   "import",
		Short: "Import report files and manage the ledger",
		Long:  "Imports run the whole pipeline: the file is hashed, checked against the ledger for duplicates, parsed, validated and reconciled so every activity hangs from exactly one indicator. Rejections are logged too.",
	}
	imp.AddCommand(importFileCmd())
	imp.AddCommand(importHistoryCmd())
	imp.AddCommand(importDeleteCmd())
	imp.AddCommand(importDeleteDataCmd())
	imp.AddCommand(importPurgeCmd())
	return imp
}

func importFileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "file <path>",
		Short: "Import an HTML or Excel report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			fileName := filepath.Base(args[0])
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actor, err := resolveActor(ctx, e)
				if err != nil {
					return err
				}
				res, err := e.Import(ctx, engine.ImportOptions{
					DashboardID: e.Config.Dashboard.ID,
					FileName:    fileName,
					Data:        data,
					Actor:       actor,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				fmt.Printf("Imported %s: %d indicators, %d activities, %d risks\n",
					fileName, res.Entry.IndicatorsCount, res.Entry.ActivitiesCount, res.Entry.RisksCount)
				fmt.Printf("Ledger entry: %s\n", res.Entry.ID)
				return nil
			})
		},
	}
	return cmd
}

func importHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the import ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				entries, err := e.History(ctx, e.Config.Dashboard.ID, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(entries)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "File", "Date", "Kind", "Status", "Ind", "Act", "Rsk", "By"})
				for _, en := range entries {
					tw.AppendRow(table.Row{en.ID, en.FileName, en.Date, en.Kind, en.Status,
						en.IndicatorsCount, en.ActivitiesCount, en.RisksCount, en.ImportedBy})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "max entries (0 = all)")
	return cmd
}

func importDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one ledger entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actor, err := resolveActor(ctx, e)
				if err != nil {
					return err
				}
				return e.DeleteHistoryEntry(ctx, actor, args[0])
			})
		},
	}
	return cmd
}

func importDeleteDataCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete-data <id>",
		Short: "Delete the rows an import created (admin only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actor, err := resolveActor(ctx, e)
				if err != nil {
					return err
				}
				deleted, err := e.DeleteImportedData(ctx, actor, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(deleted)
				}
				fmt.Printf("Deleted %d indicators and %d risks\n", deleted.Indicators, deleted.Risks)
				return nil
			})
		},
	}
	return cmd
}

func importPurgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Clear the whole ledger (admin only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actor, err := resolveActor(ctx, e)
				if err != nil {
					return err
				}
				n, err := e.PurgeHistory(ctx, actor, e.Config.Dashboard.ID)
				if err != nil {
					return err
				}
				fmt.Printf("Removed %d entries\n", n)
				return nil
			})
		},
	}
	return cmd
}

func indicatorCmd() *cobra.Command {
	ind := &cobra.Command{
		Use:   "indicator",
		Short: "Manage indicators",
		Long:  "Indicators are the KPIs per area. Status follows the actual/target ratio (>=90% achieved, >=70% at risk, below critical) unless set to in_progress by hand.",
	}
	ind.AddCommand(indicatorListCmd())
	ind.AddCommand(indicatorCreateCmd())
	ind.AddCommand(indicatorGetCmd())
	ind.AddCommand(indicatorUpdateCmd())
	ind.AddCommand(indicatorDeleteCmd())
	return ind
}

func indicatorListCmd() *cobra.Command {
	var f repo.IndicatorFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List indicators",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if f.DashboardID == "" {
					f.DashboardID = e.Config.Dashboard.ID
				}
				items, err := e.Repo.ListIndicators(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Area", "Target", "Actual", "Status"})
				for _, it := range items {
					tw.AppendRow(table.Row{it.ID, it.Name, it.Area, it.Target, it.Actual, it.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Area, "area", "", "area filter")
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.ImportBatchID, "batch", "", "import batch filter")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "max rows (0 = all)")
	return cmd
}

func indicatorCreateCmd() *cobra.Command {
	var ind domain.Indicator
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create indicator",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ind.DashboardID = e.Config.Dashboard.ID
				created, err := e.CreateIndicator(ctx, ind, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(created)
			})
		},
	}
	cmd.Flags().StringVar(&ind.Name, "name", "", "name (required)")
	cmd.Flags().StringVar(&ind.Area, "area", "", "area code (required)")
	cmd.Flags().Float64Var(&ind.Target, "target", 0, "target value (required)")
	cmd.Flags().Float64Var(&ind.Actual, "actual", 0, "actual value")
	cmd.Flags().StringVar(&ind.MeasurementDate, "measurement-date", "", "measurement date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&ind.Responsible, "responsible", "", "responsible")
	cmd.Flags().StringVar(&ind.Status, "status", "", "status (defaults from actual/target)")
	cmd.Flags().StringVar(&ind.Observations, "observations", "", "observations")
	return cmd
}

func indicatorGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Get indicator with its activities",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ind, err := e.Repo.GetIndicator(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(ind)
			})
		},
	}
	return cmd
}

func indicatorUpdateCmd() *cobra.Command {
	var name, area, measurementDate, responsible, status, observations string
	var target, actual float64
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update indicator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var upd engine.IndicatorUpdate
			if cmd.Flags().Changed("name") {
				upd.Name = &name
			}
			if cmd.Flags().Changed("area") {
				upd.Area = &area
			}
			if cmd.Flags().Changed("target") {
				upd.Target = &target
			}
			if cmd.Flags().Changed("actual") {
				upd.Actual = &actual
			}
			if cmd.Flags().Changed("measurement-date") {
				upd.MeasurementDate = &measurementDate
			}
			if cmd.Flags().Changed("responsible") {
				upd.Responsible = &responsible
			}
			if cmd.Flags().Changed("status") {
				upd.Status = &status
			}
			if cmd.Flags().Changed("observations") {
				upd.Observations = &observations
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ind, err := e.UpdateIndicator(ctx, args[0], upd, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(ind)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "name")
	cmd.Flags().StringVar(&area, "area", "", "area code")
	cmd.Flags().Float64Var(&target, "target", 0, "target value")
	cmd.Flags().Float64Var(&actual, "actual", 0, "actual value")
	cmd.Flags().StringVar(&measurementDate, "measurement-date", "", "measurement date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&responsible, "responsible", "", "responsible")
	cmd.Flags().StringVar(&status, "status", "", "status (achieved, at_risk, critical, in_progress)")
	cmd.Flags().StringVar(&observations, "observations", "", "observations")
	return cmd
}

func indicatorDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete indicator and its activities",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteIndicator(ctx, args[0], viper.GetString("actor-id"))
			})
		},
	}
	return cmd
}

func activityCmd() *cobra.Command {
	act := &cobra.Command{Use: "activity", Short: "Manage activities"}
	act.AddCommand(activityListCmd())
	act.AddCommand(activityCreateCmd())
	act.AddCommand(activityUpdateCmd())
	act.AddCommand(activityDeleteCmd())
	return act
}

func activityCreateCmd() *cobra.Command {
	var act domain.Activity
	var indicatorID string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create activity under an indicator",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				act.IndicatorID = indicatorID
				created, err := e.CreateActivity(ctx, act, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(created)
			})
		},
	}
	cmd.Flags().StringVar(&indicatorID, "indicator", "", "indicator id (required)")
	cmd.Flags().StringVar(&act.Name, "name", "", "name (required)")
	cmd.Flags().StringVar(&act.Area, "area", "", "area code (defaults to the indicator's)")
	cmd.Flags().StringVar(&act.Status, "status", "", "status (default pending)")
	cmd.Flags().IntVar(&act.Progress, "progress", 0, "progress (0-100)")
	cmd.Flags().StringVar(&act.StartDate, "start-date", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&act.EstimatedEndDate, "estimated-end", "", "estimated end date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&act.Responsible, "responsible", "", "responsible")
	cmd.Flags().StringVar(&act.Observations, "observations", "", "observations")
	return cmd
}

func activityDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteActivity(ctx, args[0], viper.GetString("actor-id"))
			})
		},
	}
	return cmd
}

func activityListCmd() *cobra.Command {
	var f repo.ActivityFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List activities",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if f.DashboardID == "" && f.IndicatorID == "" {
					f.DashboardID = e.Config.Dashboard.ID
				}
				items, err := e.Repo.ListActivities(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Area", "Status", "Progress", "End"})
				for _, a := range items {
					tw.AppendRow(table.Row{a.ID, a.Name, a.Area, a.Status, a.Progress, a.EstimatedEndDate})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.IndicatorID, "indicator", "", "indicator filter")
	cmd.Flags().StringVar(&f.Area, "area", "", "area filter")
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "max rows (0 = all)")
	return cmd
}

func activityUpdateCmd() *cobra.Command {
	var name, status, startDate, estimatedEnd, actualEnd, responsible, observations string
	var progress int
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var upd engine.ActivityUpdate
			if cmd.Flags().Changed("name") {
				upd.Name = &name
			}
			if cmd.Flags().Changed("status") {
				upd.Status = &status
			}
			if cmd.Flags().Changed("progress") {
				upd.Progress = &progress
			}
			if cmd.Flags().Changed("start-date") {
				upd.StartDate = &startDate
			}
			if cmd.Flags().Changed("estimated-end") {
				upd.EstimatedEndDate = &estimatedEnd
			}
			if cmd.Flags().Changed("actual-end") {
				upd.ActualEndDate = &actualEnd
			}
			if cmd.Flags().Changed("responsible") {
				upd.Responsible = &responsible
			}
			if cmd.Flags().Changed("observations") {
				upd.Observations = &observations
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.UpdateActivity(ctx, args[0], upd, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "name")
	cmd.Flags().StringVar(&status, "status", "", "status (pending, in_progress, completed, suspended, postponed)")
	cmd.Flags().IntVar(&progress, "progress", 0, "progress 0-100")
	cmd.Flags().StringVar(&startDate, "start-date", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&estimatedEnd, "estimated-end", "", "estimated end date")
	cmd.Flags().StringVar(&actualEnd, "actual-end", "", "actual end date (empty clears)")
	cmd.Flags().StringVar(&responsible, "responsible", "", "responsible")
	cmd.Flags().StringVar(&observations, "observations", "", "observations")
	return cmd
}

func riskCmd() *cobra.Command {
	rk := &cobra.Command{
		Use:   "risk",
		Short: "Manage risks",
		Long:  "Risks carry impact and probability levels; exposure is their product and drives ordering.",
	}
	rk.AddCommand(riskListCmd())
	rk.AddCommand(riskCreateCmd())
	rk.AddCommand(riskUpdateCmd())
	rk.AddCommand(riskDeleteCmd())
	return rk
}

func riskListCmd() *cobra.Command {
	var f repo.RiskFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List risks ordered by exposure",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if f.DashboardID == "" {
					f.DashboardID = e.Config.Dashboard.ID
				}
				items, err := e.Repo.ListRisks(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Area", "Impact", "Probability", "Exposure", "Status"})
				for _, r := range items {
					tw.AppendRow(table.Row{r.ID, r.Name, r.Area, r.Impact, r.Probability, r.Exposure, r.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Area, "area", "", "area filter")
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "max rows (0 = all)")
	return cmd
}

func riskCreateCmd() *cobra.Command {
	var rk domain.Risk
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create risk",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rk.DashboardID = e.Config.Dashboard.ID
				created, err := e.CreateRisk(ctx, rk, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(created)
			})
		},
	}
	cmd.Flags().StringVar(&rk.Name, "name", "", "name (required)")
	cmd.Flags().StringVar(&rk.Area, "area", "", "area code (required)")
	cmd.Flags().StringVar(&rk.Category, "category", "", "category")
	cmd.Flags().StringVar(&rk.Impact, "impact", "", "impact (alto, medio, bajo)")
	cmd.Flags().StringVar(&rk.Probability, "probability", "", "probability (alta, media, baja)")
	cmd.Flags().StringVar(&rk.MitigationPlan, "mitigation-plan", "", "mitigation plan")
	cmd.Flags().StringVar(&rk.Status, "status", "", "status (default active)")
	cmd.Flags().StringVar(&rk.Responsible, "responsible", "", "responsible")
	return cmd
}

func riskUpdateCmd() *cobra.Command {
	var name, area, category, impact, probability, mitigationPlan, mitigationStatus, status, responsible string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update risk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var upd engine.RiskUpdate
			if cmd.Flags().Changed("name") {
				upd.Name = &name
			}
			if cmd.Flags().Changed("area") {
				upd.Area = &area
			}
			if cmd.Flags().Changed("category") {
				upd.Category = &category
			}
			if cmd.Flags().Changed("impact") {
				upd.Impact = &impact
			}
			if cmd.Flags().Changed("probability") {
				upd.Probability = &probability
			}
			if cmd.Flags().Changed("mitigation-plan") {
				upd.MitigationPlan = &mitigationPlan
			}
			if cmd.Flags().Changed("mitigation-status") {
				upd.MitigationStatus = &mitigationStatus
			}
			if cmd.Flags().Changed("status") {
				upd.Status = &status
			}
			if cmd.Flags().Changed("responsible") {
				upd.Responsible = &responsible
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				r, err := e.UpdateRisk(ctx, args[0], upd, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(r)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "name")
	cmd.Flags().StringVar(&area, "area", "", "area code")
	cmd.Flags().StringVar(&category, "category", "", "category")
	cmd.Flags().StringVar(&impact, "impact", "", "impact (low, medium, high)")
	cmd.Flags().StringVar(&probability, "probability", "", "probability (low, medium, high)")
	cmd.Flags().StringVar(&mitigationPlan, "mitigation-plan", "", "mitigation plan")
	cmd.Flags().StringVar(&mitigationStatus, "mitigation-status", "", "mitigation status (pending, in_progress, completed)")
	cmd.Flags().StringVar(&status, "status", "", "status (active, monitoring, mitigated)")
	cmd.Flags().StringVar(&responsible, "responsible", "", "responsible")
	return cmd
}

func riskDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete risk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteRisk(ctx, args[0], viper.GetString("actor-id"))
			})
		},
	}
	return cmd
}

func summaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show per-area dashboard summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				sums, err := e.Summary(ctx, e.Config.Dashboard.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(sums)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Area", "Indicators", "Achieved", "At risk", "Critical", "Activities", "Avg progress", "Risks", "Max exposure"})
				for _, s := range sums {
					title := s.Area
					if a, ok := e.Config.Areas[s.Area]; ok && a.Title != "" {
						title = a.Title
					}
					tw.AppendRow(table.Row{title, s.Indicators, s.Achieved, s.AtRisk, s.Critical,
						s.Activities, fmt.Sprintf("%.1f%%", s.AvgProgress), s.Risks, s.MaxExposure})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func actorCmd() *cobra.Command {
	act := &cobra.Command{Use: "actor", Short: "Manage actors"}
	act.AddCommand(actorAddCmd())
	act.AddCommand(actorListCmd())
	act.AddCommand(actorUpdateCmd())
	act.AddCommand(actorRemoveCmd())
	return act
}

func actorAddCmd() *cobra.Command {
	var a domain.Actor
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.ID == "" || a.Role == "" {
				return fmt.Errorf("--id and --role required")
			}
			a.Active = true
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if err := r.InsertActor(ctx, a); err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&a.ID, "id", "", "actor id")
	cmd.Flags().StringVar(&a.Name, "name", "", "display name")
	cmd.Flags().StringVar(&a.Email, "email", "", "email")
	cmd.Flags().StringVar(&a.Role, "role", "", "role (admin, area_manager, analyst, consultant)")
	cmd.Flags().StringVar(&a.Area, "area", "", "area code (area managers)")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func actorListCmd() *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List actors",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListActors(ctx, role)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Role", "Area", "Active"})
				for _, a := range items {
					tw.AppendRow(table.Row{a.ID, a.Name, a.Role, a.Area, a.Active})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "role filter")
	return cmd
}

func actorUpdateCmd() *cobra.Command {
	var role, area string
	var active bool
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update an actor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var rolePtr, areaPtr *string
			var activePtr *bool
			if cmd.Flags().Changed("role") {
				rolePtr = &role
			}
			if cmd.Flags().Changed("area") {
				areaPtr = &area
			}
			if cmd.Flags().Changed("active") {
				activePtr = &active
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if err := r.UpdateActor(ctx, args[0], rolePtr, areaPtr, activePtr); err != nil {
					return err
				}
				a, err := r.GetActor(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "role")
	cmd.Flags().StringVar(&area, "area", "", "area code")
	cmd.Flags().BoolVar(&active, "active", true, "active flag")
	return cmd
}

func actorRemoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove an actor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.DeleteActor(ctx, args[0])
			})
		},
	}
	return cmd
}

func apiKeyCmd() *cobra.Command {
	key := &cobra.Command{Use: "api-key", Short: "Manage API keys"}
	key.AddCommand(apiKeyIssueCmd())
	key.AddCommand(apiKeyListCmd())
	key.AddCommand(apiKeyRevokeCmd())
	return key
}

func apiKeyIssueCmd() *cobra.Command {
	var actorID, name string
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue an API key for an actor (printed once)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if actorID == "" {
				return fmt.Errorf("--actor required")
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if _, err := r.GetActor(ctx, actorID); err != nil {
					return err
				}
				rawKey := "tb_" + strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
				k := domain.APIKey{
					ID:      uuid.NewString(),
					ActorID: actorID,
					Name:    name,
					KeyHash: repo.HashAPIKey(rawKey),
				}
				if err := r.InsertAPIKey(ctx, nil, k); err != nil {
					return err
				}
				fmt.Printf("API key %s for %s (store it now, only the hash is kept):\n%s\n", k.ID, actorID, rawKey)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actorID, "actor", "", "actor id")
	cmd.Flags().StringVar(&name, "name", "", "key label")
	return cmd
}

func apiKeyListCmd() *cobra.Command {
	var actorID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListAPIKeys(ctx, actorID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Actor", "Name", "Created"})
				for _, k := range items {
					tw.AppendRow(table.Row{k.ID, k.ActorID, k.Name, k.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actorID, "actor", "", "actor filter")
	return cmd
}

func apiKeyRevokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.DeleteAPIKey(ctx, args[0])
			})
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	lg := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "The diary of everything that happened: imports, rejections, edits and deletions.",
	}
	lg.AddCommand(logTailCmd())
	return lg
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.Repo.LatestEvents(ctx, n, e.Config.Dashboard.ID, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var devLogin bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			r := repo.Repo{DB: conn}
			_, cfg, err := app.ResolveDashboardAndConfig(cmd.Context(), viper.GetString("dashboard"), r)
			if err != nil {
				return err
			}
			e := engine.New(conn, cfg)
			authCfg := server.AuthConfig{
				JWTSecret:     os.Getenv("TABLERO_JWT_SECRET"),
				AllowDevLogin: devLogin,
			}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("TABLERO_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Tablero API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().BoolVar(&devLogin, "dev-login", false, "enable POST /auth/dev/login")
	return cmd
}

// --- helpers ---

// resolveActor prefers the stored actor row; the role/area flags stand in for
// workspaces that never provisioned actors.
func resolveActor(ctx context.Context, e engine.Engine) (domain.Actor, error) {
	id := viper.GetString("actor-id")
	actor, err := e.Repo.GetActor(ctx, id)
	if err == nil {
		if !actor.Active {
			return domain.Actor{}, fmt.Errorf("actor %s is disabled", id)
		}
		return actor, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return domain.Actor{}, err
	}
	return domain.Actor{
		ID:     id,
		Name:   id,
		Role:   viper.GetString("actor-role"),
		Area:   viper.GetString("actor-area"),
		Active: true,
	}, nil
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	r := repo.Repo{DB: conn}
	_, cfg, err := app.ResolveDashboardAndConfig(ctx, viper.GetString("dashboard"), r)
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg)
	return fn(ctx, e)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	r := repo.Repo{DB: conn}
	return fn(ctx, r)
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func setEnvValue(path, key, value string) error {
	var lines []string
	seen := false
	f, err := os.Open(path)
	if err == nil {
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, key+"=") {
				lines = append(lines, fmt.Sprintf("%s=%s", key, value))
				seen = true
			} else {
				lines = append(lines, line)
			}
		}
		if err := scanner.Err(); err != nil {
			f.Close()
			return err
		}
		f.Close()
	} else if !os.IsNotExist(err) {
		return err
	}
	if !seen {
		lines = append(lines, fmt.Sprintf("%s=%s", key, value))
	}
	content := strings.Join(lines, "\n")
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
