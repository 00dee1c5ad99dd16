package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pavelanni/literable/internal/evaluation"
	"github.com/pavelanni/literable/internal/handler"
	appI18n "github.com/pavelanni/literable/internal/i18n"
	"github.com/pavelanni/literable/internal/llm"
	"github.com/pavelanni/literable/internal/llm/prompts"
	"github.com/pavelanni/literable/internal/report"
	"github.com/pavelanni/literable/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "literable",
		Short:         "Reading-comprehension answer evaluation with LLMs",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	serve := serveCmd()
	root.AddCommand(serve, importCmd(), evaluateCmd(), reportCmd(), exportCmd(), statsCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `literable --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addCommonFlags(f *pflag.FlagSet) {
	f.String("db", "literable.db", "SQLite database path")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func addEvaluationFlags(f *pflag.FlagSet) {
	f.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL, or the Azure resource endpoint")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "llama3.2", "LLM model name (deployment name for Azure)")
	f.String("llm-api-type", llm.APITypeOpenAI, "API flavour (openai, azure)")
	f.String("llm-api-version", "2024-02-15-preview", "Azure OpenAI API version")
	f.Int("max-tokens", llm.DefaultMaxTokens, "Maximum tokens in a model reply")
	f.Duration("llm-timeout", llm.DefaultTimeout, "Timeout for a single model call")
	f.Int("llm-attempts", 1, fmt.Sprintf("Attempts per model call for retryable failures (1-%d)", llm.MaxAttempts))
	f.Duration("llm-retry-delay", 2*time.Second, "Delay between attempts")
	f.String("rubric-dir", "", "Directory with <category>.txt rubric files (default: built-in rubrics)")
	f.Int("max-field-chars", prompts.DefaultMaxFieldChars,
		"Cap in characters for each of question, model answer and student answer in the prompt; longer texts are truncated")
	f.Bool("feedback-stop-markers", false, "End feedback at an improvements section (개선사항:/Improvements:) instead of the end of the reply")
	f.Int("concurrency", 1, fmt.Sprintf("Answers evaluated at once (1-%d)", evaluation.MaxConcurrency))
	f.Bool("dry-run", false, "Score answers without saving the results")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.StringSliceP("passages", "p", nil, "Passages JSON files imported on start-up (repeatable)")
	f.StringP("lang", "l", "ko", "Default report language (en, ko)")
	f.Bool("skip-llm-check", false, "Do not check the LLM endpoint on start-up")
	f.String("chart-font", "", "TrueType font for chart labels (needed for Korean titles)")
	addEvaluationFlags(f)
	addCommonFlags(f)
	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import passages with their questions from JSON files",
		RunE:  runImport,
	}
	f := cmd.Flags()
	f.StringSliceP("file", "f", nil, "Passages JSON file (repeatable)")
	addCommonFlags(f)
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func evaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate a student's pending answers for a passage",
		RunE:  runEvaluate,
	}
	f := cmd.Flags()
	f.Int64("student", 0, "Student ID (required)")
	f.Int64("passage", 0, "Passage ID (required)")
	f.Bool("rescore", false, "Evaluate answers that already have a score as well")
	addEvaluationFlags(f)
	addCommonFlags(f)
	_ = cmd.MarkFlagRequired("student")
	_ = cmd.MarkFlagRequired("passage")
	return cmd
}

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render a student's HTML report for a passage",
		RunE:  runReport,
	}
	f := cmd.Flags()
	f.Int64("student", 0, "Student ID (required)")
	f.Int64("passage", 0, "Passage ID (required)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.StringP("lang", "l", "ko", "Report language (en, ko)")
	addCommonFlags(f)
	_ = cmd.MarkFlagRequired("student")
	_ = cmd.MarkFlagRequired("passage")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all results as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addCommonFlags(f)
	return cmd
}

func statsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print score statistics",
		RunE:  runStats,
	}
	f := cmd.Flags()
	f.Int64("student", 0, "Compare one student with the overall average")
	f.Int64("passage", 0, "Per-question statistics for one passage")
	f.String("chart", "", "Write the grade distribution chart to this PNG file")
	f.String("chart-font", "", "TrueType font for chart labels (needed for Korean titles)")
	f.StringP("lang", "l", "ko", "Chart language (en, ko)")
	addCommonFlags(f)
	return cmd
}

func setupLogging(v *viper.Viper) {
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

	v.SetEnvPrefix("LITERABLE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("literable")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/literable")
	v.AddConfigPath("/etc/literable")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// setup configures logging and returns the command's configuration.
func setup(cmd *cobra.Command) *viper.Viper {
	v := viperForCmd(cmd)
	setupLogging(v)
	return v
}

func openStore(v *viper.Viper) (*store.Store, error) {
	db, err := store.New(v.GetString("db"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

// newPipeline wires the prompt builder, model client and parser.
func newPipeline(v *viper.Viper, db *store.Store) (*evaluation.Pipeline, *llm.Client, error) {
	var rubrics fs.FS = prompts.Embedded()
	if dir := v.GetString("rubric-dir"); dir != "" {
		info, err := os.Stat(dir)
		if err != nil {
			return nil, nil, fmt.Errorf("rubric dir: %w", err)
		}
		if !info.IsDir() {
			return nil, nil, fmt.Errorf("rubric dir %s is not a directory", dir)
		}
		rubrics = os.DirFS(dir)
	}
	builder := prompts.NewBuilder(prompts.NewCatalog(rubrics), v.GetInt("max-field-chars"))

	client, err := llm.New(llm.Config{
		BaseURL:    v.GetString("llm-url"),
		APIKey:     v.GetString("llm-key"),
		Model:      v.GetString("llm-model"),
		APIType:    v.GetString("llm-api-type"),
		APIVersion: v.GetString("llm-api-version"),
		MaxTokens:  v.GetInt("max-tokens"),
		Timeout:    v.GetDuration("llm-timeout"),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create LLM client: %w", err)
	}
	completer := llm.WithRetry(client, v.GetInt("llm-attempts"), v.GetDuration("llm-retry-delay"))

	markers := evaluation.DefaultMarkers()
	if v.GetBool("feedback-stop-markers") {
		markers.Stop = evaluation.DefaultStopMarkers
	}

	return evaluation.New(db, builder, completer, evaluation.NewParser(markers)), client, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	v := setup(cmd)

	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	for _, path := range v.GetStringSlice("passages") {
		if err := importFile(db, path); err != nil {
			return fmt.Errorf("load passages: %w", err)
		}
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	pipeline, client, err := newPipeline(v, db)
	if err != nil {
		return err
	}
	if !v.GetBool("skip-llm-check") {
		if err := client.Ping(context.Background()); err != nil {
			return fmt.Errorf("LLM health check: %w", err)
		}
		slog.Info("LLM endpoint OK", "url", v.GetString("llm-url"), "model", v.GetString("llm-model"))
	}

	h := handler.New(db, pipeline, handler.Config{
		Concurrency: v.GetInt("concurrency"),
		DryRun:      v.GetBool("dry-run"),
		ChartFont:   v.GetString("chart-font"),
	})

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(handler.Metrics)
	r.Use(appI18n.Middleware())
	r.Handle("/metrics", promhttp.Handler())
	h.Routes(r)

	addr := v.GetString("addr")
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown", "error", err)
		}
	}()

	slog.Info("starting server",
		"addr", addr,
		"model", v.GetString("llm-model"),
		"llm_url", v.GetString("llm-url"),
		"llm_api_type", v.GetString("llm-api-type"),
		"lang", lang,
		"concurrency", v.GetInt("concurrency"),
		"dry_run", v.GetBool("dry-run"),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func runImport(cmd *cobra.Command, _ []string) error {
	v := setup(cmd)

	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	for _, path := range v.GetStringSlice("file") {
		if err := importFile(db, path); err != nil {
			return err
		}
	}
	return nil
}

func importFile(db *store.Store, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	res, err := db.ImportPassages(path, data)
	if err != nil {
		return err
	}
	if !res.Skipped {
		fmt.Printf("%s: imported %d passages, %d questions\n", path, res.Passages, res.Questions)
	}
	return nil
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	v := setup(cmd)

	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	studentID, passageID := v.GetInt64("student"), v.GetInt64("passage")
	st, err := db.GetStudent(studentID)
	if err != nil {
		return fmt.Errorf("student %d: %w", studentID, err)
	}
	p, err := db.GetPassage(passageID)
	if err != nil {
		return fmt.Errorf("passage %d: %w", passageID, err)
	}

	pipeline, _, err := newPipeline(v, db)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Evaluating %s for %q\n", st.Name, p.Title)
	sum, err := pipeline.Run(ctx, studentID, passageID, evaluation.Options{
		DryRun:      v.GetBool("dry-run"),
		Rescore:     v.GetBool("rescore"),
		Concurrency: v.GetInt("concurrency"),
		Progress: func(done, total int, it evaluation.Item) {
			printItem(out, done, total, it)
		},
	})
	if err != nil {
		return err
	}
	printSummary(out, sum)
	return nil
}

func printItem(w io.Writer, done, total int, it evaluation.Item) {
	switch {
	case it.Score != nil:
		fmt.Fprintf(w, "[%d/%d] question %d: %s, score %d\n", done, total, it.QuestionID, it.Status, *it.Score)
	case it.Error != "":
		fmt.Fprintf(w, "[%d/%d] question %d: %s: %s\n", done, total, it.QuestionID, it.Status, it.Error)
	default:
		fmt.Fprintf(w, "[%d/%d] question %d: %s\n", done, total, it.QuestionID, it.Status)
	}
}

func printSummary(w io.Writer, sum *evaluation.Summary) {
	if sum.Total() == 0 {
		fmt.Fprintln(w, "Nothing to evaluate.")
		return
	}
	outcome := "complete"
	switch {
	case sum.Partial():
		outcome = "partial"
	case !sum.Complete():
		outcome = "failed"
	}
	fmt.Fprintf(w, "Run %s %s: %d/%d resolved", sum.RunID, outcome, sum.Resolved(), sum.Total())
	for _, st := range []evaluation.Status{
		evaluation.StatusPersisted, evaluation.StatusScored,
		evaluation.StatusCallFailed, evaluation.StatusParseFailed,
		evaluation.StatusConfigFailed, evaluation.StatusPersistFailed,
	} {
		if n := sum.Count(st); n > 0 {
			fmt.Fprintf(w, ", %s %d", st, n)
		}
	}
	fmt.Fprintf(w, " (%s)\n", sum.Duration.Round(time.Millisecond))
	if sum.DryRun {
		fmt.Fprintln(w, "Dry run: nothing was saved.")
	}
}

func runReport(cmd *cobra.Command, _ []string) error {
	v := setup(cmd)

	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := appI18n.Init(v.GetString("lang")); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}
	rep, err := db.GetReport(v.GetInt64("student"), v.GetInt64("passage"))
	if err != nil {
		return err
	}

	return withOutput(v.GetString("output"), func(w io.Writer) error {
		ctx := appI18n.WithLanguage(context.Background(), v.GetString("lang"))
		return report.Write(ctx, w, rep, time.Now())
	})
}

func runExport(cmd *cobra.Command, _ []string) error {
	v := setup(cmd)

	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	exp, err := db.ExportResults()
	if err != nil {
		return fmt.Errorf("export results: %w", err)
	}
	return withOutput(v.GetString("output"), func(w io.Writer) error {
		return report.WriteJSON(w, exp)
	})
}

func runStats(cmd *cobra.Command, _ []string) error {
	v := setup(cmd)

	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	overall, err := db.OverallStats()
	if err != nil {
		return fmt.Errorf("overall stats: %w", err)
	}
	out := map[string]any{"overall": overall}
	if id := v.GetInt64("student"); id != 0 {
		st, err := db.StudentStats(id)
		if err != nil {
			return fmt.Errorf("student stats: %w", err)
		}
		out["student"] = st
	}
	if id := v.GetInt64("passage"); id != 0 {
		ps, err := db.PassageStats(id)
		if err != nil {
			return fmt.Errorf("passage stats: %w", err)
		}
		out["passage"] = ps
	}

	if path := v.GetString("chart"); path != "" {
		if err := appI18n.Init(v.GetString("lang")); err != nil {
			return fmt.Errorf("init i18n: %w", err)
		}
		ctx := appI18n.WithLanguage(context.Background(), v.GetString("lang"))
		opts := report.ChartOptions{
			Title:    appI18n.T(ctx, "GradeDistribution"),
			FontPath: v.GetString("chart-font"),
		}
		if err := withOutput(path, func(w io.Writer) error {
			return report.GradeChart(w, overall.GradeDistribution, opts)
		}); err != nil {
			return err
		}
		slog.Info("wrote chart", "path", path)
	}
	return report.WriteJSON(cmd.OutOrStdout(), out)
}

// withOutput calls write with stdout for "-" or "", otherwise with the created file.
func withOutput(path string, write func(io.Writer) error) error {
	if path == "" || path == "-" {
		return write(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
