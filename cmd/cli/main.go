package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"gocausal/adapters/excel"
	"gocausal/domain/causal"
	"gocausal/internal"
	"gocausal/internal/config"
	"gocausal/internal/container"
	"gocausal/internal/errors"
	"gocausal/internal/plan"
	"gocausal/internal/render"
	"gocausal/ports"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	logLevel string
	data     string
	dbURL    string
	driver   string
}

func main() {
	// A missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	var gf globalFlags
	rootCmd := &cobra.Command{
		Use:   "gocausal",
		Short: "Causal effect estimation for sales-call behaviours",
		Long: `gocausal estimates how much a call-handling behaviour changes deal outcomes.

Agents are labelled treated or control per behaviour, matched on a propensity
score built from call volume and average call duration, and compared with a naive,
a matched and a stratified estimator.

Data is read from a workbook or CSV directory (--data, GOCAUSAL_DATA_FILE) or from
a postgres/sqlite database (--db, DATABASE_URL).`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&gf.logLevel, "log-level", "", "Log level: ERROR|WARN|INFO|DEBUG|TRACE (default LOG_LEVEL or INFO)")
	rootCmd.PersistentFlags().StringVar(&gf.data, "data", "", "Workbook (.xlsx) or directory of CSV files")
	rootCmd.PersistentFlags().StringVar(&gf.dbURL, "db", "", "Database DSN (postgres URL or sqlite file)")
	rootCmd.PersistentFlags().StringVar(&gf.driver, "driver", "", "Database driver: postgres|sqlite3 (inferred from the DSN)")

	rootCmd.AddCommand(
		newRunCmd(&gf),
		newTagsCmd(&gf),
		newDemoCmd(&gf),
		newImportCmd(&gf),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitCode separates bad input from unavailable data.
func exitCode(err error) int {
	switch errors.GetCode(err) {
	case errors.CodeConfigInvalid, errors.CodeValidationError:
		return 2
	case errors.CodeDataUnavailable:
		return 3
	}
	return 1
}

// loadConfig reads the environment and applies the global flags on top.
func loadConfig(gf *globalFlags) (*config.Config, *internal.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if gf.logLevel != "" {
		cfg.LogLevel = strings.ToUpper(gf.logLevel)
	}
	if gf.data != "" {
		cfg.Engine.DataFile = gf.data
	}
	if gf.dbURL != "" {
		cfg.Database.URL = gf.dbURL
		cfg.Database.Driver = config.InferDriver(gf.dbURL)
	}
	if gf.driver != "" {
		cfg.Database.Driver = gf.driver
	}
	return cfg, internal.NewLogger(internal.ParseLevel(cfg.LogLevel)), nil
}

type runFlags struct {
	planFile    string
	format      string
	out         string
	xlsx        string
	parallelism int
	metricsFile string
	sort        string

	tags      []string
	keywords  []string
	allTags   bool
	caliper   float64
	minUnits  int
	threshold float64
	cutoff    float64
	model     string
	matcher   string
	segment   string
	callsOnly bool
}

func newRunCmd(gf *globalFlags) *cobra.Command {
	var rf runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Estimate treatment effects for every definition in a plan",
		Long: `Run an analysis plan and print the report.

Definitions come from the plan file (--plan, GOCAUSAL_PLAN) and from --tag and
--keyword flags; flags override the plan's engine thresholds.

Examples:
  gocausal run --data calls.xlsx --tag empathy_shown --keyword onsite_invite=上门
  gocausal run --db postgres://localhost/sales --plan bathroom.yaml --format markdown --out report.md
  gocausal run --data ./csv --all-tags --sort att --xlsx effects.xlsx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd, gf, &rf)
		},
	}

	f := cmd.Flags()
	f.StringVar(&rf.planFile, "plan", "", "YAML analysis plan")
	f.StringVar(&rf.format, "format", string(render.FormatTable), "Output format: table|markdown|html|json")
	f.StringVarP(&rf.out, "out", "o", "", "Write the rendered report to this file instead of stdout")
	f.StringVar(&rf.xlsx, "xlsx", "", "Also write the report as a workbook")
	f.IntVar(&rf.parallelism, "parallelism", 0, "Definitions analysed concurrently (default GOCAUSAL_PARALLELISM)")
	f.StringVar(&rf.metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile (default GOCAUSAL_METRICS_FILE)")
	f.StringVar(&rf.sort, "sort", "", "Row order: plan|att")
	f.StringArrayVar(&rf.tags, "tag", nil, "Tag code to analyse (repeatable)")
	f.StringArrayVar(&rf.keywords, "keyword", nil, "Keyword definition as name=kw1,kw2 (repeatable)")
	f.BoolVar(&rf.allTags, "all-tags", false, "Analyse every active tag in the catalogue")
	f.Float64Var(&rf.caliper, "caliper", 0, "Maximum propensity distance of a matched pair")
	f.IntVar(&rf.minUnits, "min-units", 0, "Minimum units per agent")
	f.Float64Var(&rf.threshold, "intensity-threshold", -1, "Intensity above which an agent is treated")
	f.Float64Var(&rf.cutoff, "score-cutoff", -1, "Tag score counted as exhibiting the behaviour")
	f.StringVar(&rf.model, "model", "", "Propensity model: linear|logistic")
	f.StringVar(&rf.matcher, "matcher", "", "Matcher: greedy|optimal")
	f.StringVar(&rf.segment, "segment", "", "Only deals whose segment contains this value")
	f.BoolVar(&rf.callsOnly, "require-calls", false, "Only deals of agents with call records")

	return cmd
}

func runPlan(cmd *cobra.Command, gf *globalFlags, rf *runFlags) error {
	ctx := cmd.Context()
	cfg, logger, err := loadConfig(gf)
	if err != nil {
		return err
	}

	p, err := buildPlan(cmd, cfg, rf)
	if err != nil {
		return err
	}

	if rf.parallelism > 0 {
		cfg.Engine.Parallelism = rf.parallelism
	}
	if rf.metricsFile != "" {
		cfg.Metrics.File = rf.metricsFile
	}

	c, err := container.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	report, runErr := c.EffectService().Run(ctx, p)
	if err := c.FlushMetrics(); err != nil {
		logger.Warn("writing metrics to %s: %v", cfg.Metrics.File, err)
	}
	if runErr != nil {
		return runErr
	}

	sinks, closeSinks, err := reportSinks(rf)
	if err != nil {
		return err
	}
	defer closeSinks()
	for _, sink := range sinks {
		if err := sink.WriteReport(ctx, report); err != nil {
			return errors.Wrap(err, "failed to write report")
		}
	}
	return nil
}

// buildPlan loads the plan file, if any, and applies the command-line overrides.
func buildPlan(cmd *cobra.Command, cfg *config.Config, rf *runFlags) (plan.Plan, error) {
	p := plan.Default()
	planFile := cfg.Engine.PlanFile
	if rf.planFile != "" {
		planFile = rf.planFile
	}
	if planFile != "" {
		loaded, err := plan.Load(planFile)
		if err != nil {
			return plan.Plan{}, err
		}
		p = loaded
	}

	for _, code := range rf.tags {
		p.Definitions = append(p.Definitions, causal.TagDefinition(strings.TrimSpace(code)))
	}
	for _, raw := range rf.keywords {
		def, err := parseKeywordFlag(raw)
		if err != nil {
			return plan.Plan{}, err
		}
		p.Definitions = append(p.Definitions, def)
	}
	if rf.allTags {
		p.AllActiveTags = true
	}

	flags := cmd.Flags()
	if flags.Changed("caliper") {
		p.Engine.Caliper = rf.caliper
	}
	if flags.Changed("min-units") {
		p.Engine.MinUnits = rf.minUnits
	}
	if flags.Changed("intensity-threshold") {
		p.Engine.IntensityThreshold = rf.threshold
	}
	if flags.Changed("score-cutoff") {
		p.Engine.ScoreCutoff = rf.cutoff
	}
	if rf.model != "" {
		p.Engine.PropensityModel = rf.model
	}
	if rf.matcher != "" {
		p.Engine.Matcher = rf.matcher
	}
	if rf.segment != "" {
		p.Engine.Scope.Segment = rf.segment
	}
	if rf.callsOnly {
		p.Engine.Scope.RequireCallEvidence = true
	}
	if rf.sort != "" {
		p.Sort = rf.sort
	}
	if p.Engine.MinUnits == 0 {
		p.Engine.MinUnits = defaultMinUnits
	}
	return p, p.Validate()
}

// defaultMinUnits applies when neither the plan nor the flags set min_units.
const defaultMinUnits = 5

// parseKeywordFlag parses name=kw1,kw2. A bare keyword names itself.
func parseKeywordFlag(raw string) (causal.TreatmentDefinition, error) {
	name, list, found := strings.Cut(raw, "=")
	if !found {
		list = name
	}
	var keywords []string
	for _, k := range strings.Split(list, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keywords = append(keywords, k)
		}
	}
	if len(keywords) == 0 {
		return causal.TreatmentDefinition{}, errors.ConfigInvalid(fmt.Sprintf("keyword definition %q has no keywords", raw))
	}
	return causal.KeywordDefinition(strings.TrimSpace(name), keywords...), nil
}

// reportSinks returns the rendered output plus the optional workbook.
func reportSinks(rf *runFlags) ([]ports.ReportSink, func(), error) {
	format, err := render.ParseFormat(rf.format)
	if err != nil {
		return nil, nil, errors.ConfigInvalidf(err, "--format")
	}

	closer := func() {}
	out := os.Stdout
	if rf.out != "" {
		f, err := os.Create(rf.out)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "failed to create %s", rf.out)
		}
		out = f
		closer = func() { f.Close() }
	}

	sinks := []ports.ReportSink{render.Sink{W: out, Format: format}}
	if rf.xlsx != "" {
		sinks = append(sinks, excel.ReportFile{Path: rf.xlsx})
	}
	return sinks, closer, nil
}
