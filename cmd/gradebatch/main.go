package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/gradebatch/internal/extract"
	"github.com/pavelanni/gradebatch/internal/grader"
	"github.com/pavelanni/gradebatch/internal/handler"
	"github.com/pavelanni/gradebatch/internal/llm"
	"github.com/pavelanni/gradebatch/internal/model"
	"github.com/pavelanni/gradebatch/internal/roster"
	"github.com/pavelanni/gradebatch/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gradebatch",
		Short: "Batch grading of student submissions against stored answer keys",
	}

	serve := serveCmd()
	root.AddCommand(serve, gradeCmd(), worksheetCmd(), hashTokenCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `gradebatch --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the grading HTTP server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("token-hash", "", "bcrypt hash of the API bearer token (empty disables auth)")
	addGradingFlags(cmd)
	addLoggingFlags(cmd)
	return cmd
}

func gradeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grade",
		Short: "Grade a roster of submissions for one assignment",
		RunE:  runGrade,
	}
	f := cmd.Flags()
	f.String("assignment", "", "Assignment identifier (required)")
	f.StringP("roster", "r", "", "Path to roster JSON file (required)")
	f.StringP("output", "o", "", "Write the full report as JSON to this path (- for stdout)")
	addGradingFlags(cmd)
	addLoggingFlags(cmd)

	_ = cmd.MarkFlagRequired("assignment")
	_ = cmd.MarkFlagRequired("roster")

	return cmd
}

func worksheetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worksheet",
		Short: "Manage stored worksheets and their assignment links",
	}

	imp := &cobra.Command{
		Use:   "import <file.json>",
		Short: "Import a worksheet record from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE:  runWorksheetImport,
	}

	link := &cobra.Command{
		Use:   "link <worksheet-id> <assignment-id>",
		Short: "Link a worksheet to a classroom assignment",
		Args:  cobra.ExactArgs(2),
		RunE:  runWorksheetLink,
	}
	link.Flags().String("course-id", "", "Course identifier")
	link.Flags().String("course-name", "", "Course display name")

	del := &cobra.Command{
		Use:   "delete <worksheet-id>",
		Short: "Delete a worksheet and its assignment links",
		Args:  cobra.ExactArgs(1),
		RunE:  runWorksheetDelete,
	}

	show := &cobra.Command{
		Use:   "show [worksheet-id]",
		Short: "Show one worksheet, or list all when no ID is given",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runWorksheetShow,
	}

	for _, sub := range []*cobra.Command{imp, link, del, show} {
		sub.Flags().String("db", "gradebatch.db", "SQLite database path")
		addLoggingFlags(sub)
		cmd.AddCommand(sub)
	}
	return cmd
}

func hashTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-token <token>",
		Short: "Print the bcrypt hash of an API token for --token-hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := handler.HashToken(args[0])
			if err != nil {
				return fmt.Errorf("hash token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func addGradingFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("db", "gradebatch.db", "SQLite database path")
	f.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "llama3.2", "LLM model name")
	f.Int("workers", grader.DefaultWorkers, "Maximum submissions graded concurrently")
	f.Duration("unit-timeout", grader.DefaultUnitTimeout, "Timeout for grading a single submission")
	f.Duration("fetch-timeout", 30*time.Second, "Timeout for fetching a submitted document by URL")
}

func addLoggingFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("GRADEBATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("gradebatch")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/gradebatch")
	v.AddConfigPath("/etc/gradebatch")
	v.AddConfigPath("/data")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// newCoordinator wires the store, extractor, LLM client, and grading
// pipeline from resolved config. The LLM endpoint is pinged so a dead
// endpoint fails up front instead of failing every submission.
func newCoordinator(v *viper.Viper, db *store.Store) (*grader.Coordinator, error) {
	llmClient := llm.New(
		v.GetString("llm-url"),
		v.GetString("llm-key"),
		v.GetString("llm-model"),
	)
	if err := llmClient.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("LLM health check: %w", err)
	}
	slog.Info("LLM endpoint OK", "url", v.GetString("llm-url"), "model", v.GetString("llm-model"))

	extractor := extract.NewDocumentExtractor(v.GetDuration("fetch-timeout"))
	orch := grader.NewOrchestrator(extractor, llmClient, v.GetDuration("unit-timeout"))
	return grader.NewCoordinator(db, orch, v.GetInt("workers")), nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	count, err := db.WorksheetCount()
	if err != nil {
		return fmt.Errorf("count worksheets: %w", err)
	}

	coord, err := newCoordinator(v, db)
	if err != nil {
		return err
	}

	h := handler.New(db, coord, v.GetString("token-hash"))

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	h.Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"db", v.GetString("db"),
		"worksheets", count,
		"model", v.GetString("llm-model"),
		"llm_url", v.GetString("llm-url"),
		"workers", v.GetInt("workers"),
		"unit_timeout", v.GetDuration("unit-timeout"),
		"auth", v.GetString("token-hash") != "",
	)
	return http.ListenAndServe(addr, r)
}

func runGrade(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	assignmentID := v.GetString("assignment")
	tasks, err := roster.Load(v.GetString("roster"), assignmentID)
	if err != nil {
		return err
	}
	slog.Info("loaded roster", "assignment", assignmentID, "submissions", len(tasks))

	coord, err := newCoordinator(v, db)
	if err != nil {
		return err
	}

	report, err := coord.GradeBatch(cmd.Context(), assignmentID, tasks)
	if err != nil {
		return fmt.Errorf("grade batch: %w", err)
	}

	fmt.Fprint(cmd.OutOrStdout(), grader.FormatBatchReport(report))

	if outPath := v.GetString("output"); outPath != "" {
		if err := writeReportJSON(report, outPath); err != nil {
			return err
		}
	}
	return nil
}

func writeReportJSON(report *model.BatchReport, outPath string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	var w io.Writer
	if outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	_, _ = fmt.Fprintln(w)
	return nil
}

func runWorksheetImport(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}
	var rec model.WorksheetRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return fmt.Errorf("parse %s: %w", args[0], err)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.Put(rec); err != nil {
		return fmt.Errorf("store worksheet: %w", err)
	}
	slog.Info("imported worksheet", "worksheet", rec.WorksheetID, "title", rec.Title, "scoreable", rec.Scoreable())
	return nil
}

func runWorksheetLink(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	worksheetID, assignmentID := args[0], args[1]
	ok, err := db.LinkToAssignment(worksheetID, assignmentID, v.GetString("course-id"), v.GetString("course-name"))
	if err != nil {
		return fmt.Errorf("link worksheet: %w", err)
	}
	if !ok {
		return fmt.Errorf("worksheet %s not found", worksheetID)
	}
	slog.Info("linked worksheet", "worksheet", worksheetID, "assignment", assignmentID)
	return nil
}

func runWorksheetDelete(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	ok, err := db.Delete(args[0])
	if err != nil {
		return fmt.Errorf("delete worksheet: %w", err)
	}
	if !ok {
		return fmt.Errorf("worksheet %s not found", args[0])
	}
	slog.Info("deleted worksheet", "worksheet", args[0])
	return nil
}

func runWorksheetShow(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	var out any
	if len(args) == 1 {
		rec, err := db.Get(args[0])
		if err != nil {
			return fmt.Errorf("get worksheet: %w", err)
		}
		if rec == nil {
			return fmt.Errorf("worksheet %s not found", args[0])
		}
		out = rec
	} else {
		records, err := db.List()
		if err != nil {
			return fmt.Errorf("list worksheets: %w", err)
		}
		out = records
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
