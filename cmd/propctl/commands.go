package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/JamesQQQ1/propvisions-web-sub001/internal/app"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/data/db"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/platform/dbctx"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/services"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Print feedback approval metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		property, _ := cmd.Flags().GetString("property")
		days, _ := cmd.Flags().GetInt("days")
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			svc := services.NewFeedbackService(a.Log, a.Repos.FeedbackEvent, a.Cfg.FeedbackWindowDays)
			var pid *string
			if p := strings.TrimSpace(property); p != "" {
				pid = &p
			}
			snap, err := svc.Aggregate(dbctx.Context{Ctx: ctx}, pid, days)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), snap)
		})
	},
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect ingest jobs",
}

var listJobsCmd = &cobra.Command{
	Use:   "list",
	Short: "List ingest jobs with handoff latency",
	RunE: func(cmd *cobra.Command, args []string) error {
		query := map[string]string{}
		for _, name := range []string{"status", "run-id", "property-id", "from", "to", "q", "offset", "limit"} {
			if v, _ := cmd.Flags().GetString(name); v != "" {
				query[strings.ReplaceAll(name, "-", "_")] = v
			}
		}
		f, err := services.ParseFilter(query)
		if err != nil {
			return err
		}
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			latency := services.NewLatencyJoiner(a.Log, a.Repos.StageRun)
			svc := services.NewPipelineQueryService(a.Log, a.Repos.IngestJob, a.Repos.Run, a.Repos.Property, latency)
			page, err := svc.ListJobs(dbctx.Context{Ctx: ctx}, f)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), map[string]interface{}{"jobs": page.Items, "total": page.Total})
		})
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage missing-room upload tokens",
}

var issueTokenCmd = &cobra.Command{
	Use:   "issue [request-id]",
	Short: "Issue or rotate the upload token for a missing-room request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(strings.TrimSpace(args[0]))
		if err != nil {
			return fmt.Errorf("invalid request id %q: %w", args[0], err)
		}
		ttl, _ := cmd.Flags().GetDuration("ttl")
		reopen, _ := cmd.Flags().GetBool("reopen")
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			svc := services.NewUploadTokenService(a.Log, a.Repos.MissingRoomRequest, nil, nil, services.UploadTokenConfig{
				TokenTTL: a.Cfg.UploadTokenTTL,
			})
			issued, err := svc.Issue(dbctx.Context{Ctx: ctx}, id, ttl, reopen)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), issued)
		})
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			if err := db.AutoMigrateAll(a.DB.DB()); err != nil {
				return err
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return err
		})
	},
}

func init() {
	metricsCmd.Flags().String("property", "", "Restrict target metrics to one property id")
	metricsCmd.Flags().Int("days", services.DefaultWindowDays, "Rolling window in days (1-365)")

	listJobsCmd.Flags().String("status", "", "Normalized status filter")
	listJobsCmd.Flags().String("run-id", "", "Run id filter")
	listJobsCmd.Flags().String("property-id", "", "Property id filter")
	listJobsCmd.Flags().String("from", "", "First day, YYYY-MM-DD")
	listJobsCmd.Flags().String("to", "", "Last day inclusive, YYYY-MM-DD")
	listJobsCmd.Flags().String("q", "", "Free-text search")
	listJobsCmd.Flags().String("offset", "", "Rows to skip")
	listJobsCmd.Flags().String("limit", "", "Page size (max 100)")
	jobsCmd.AddCommand(listJobsCmd)

	issueTokenCmd.Flags().Duration("ttl", 0, "Token lifetime; defaults to UPLOAD_TOKEN_TTL_HOURS")
	issueTokenCmd.Flags().Bool("reopen", false, "Move a closed request back to pending")
	tokenCmd.AddCommand(issueTokenCmd)
}

func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	a, err := app.Open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func render(w io.Writer, v interface{}) error {
	switch strings.ToLower(strings.TrimSpace(outputFormat)) {
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		return fmt.Errorf("unknown output format %q", outputFormat)
	}
}
