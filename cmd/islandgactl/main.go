package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"islandga/internal/evo"
	"islandga/internal/metrics"
	"islandga/internal/stats"
	"islandga/internal/storage"
	"islandga/pkg/islandga"
)

var stdout io.Writer = os.Stdout

func main() {
	loadEnv(".env.local", ".env")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "run":
		return runRun(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "show":
		return runShow(ctx, args[1:])
	case "generations":
		return runGenerations(ctx, args[1:])
	case "population":
		return runPopulation(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	case "delete":
		return runDelete(ctx, args[1:])
	case "problems":
		return runProblems(ctx, args[1:])
	case "strategies":
		return runStrategies(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

type commonFlags struct {
	storeKind  *string
	dbPath     *string
	exportsDir *string
	logLevel   *string
}

func addCommonFlags(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		storeKind:  fs.String("store", envString("store", storage.DefaultStoreKind()), "store backend: memory|leveldb|sqlite"),
		dbPath:     fs.String("db-path", envString("db-path", ""), "sqlite file or leveldb directory (defaults per backend)"),
		exportsDir: fs.String("exports-dir", envString("exports-dir", "exports"), "artifact export directory"),
		logLevel:   fs.String("log-level", envString("log-level", "info"), "log level: debug|info|warn|error"),
	}
}

func (f commonFlags) client(m *metrics.Collector) (*islandga.Client, *slog.Logger, error) {
	logger, err := newLogger(os.Stderr, *f.logLevel)
	if err != nil {
		return nil, nil, err
	}
	client, err := islandga.New(islandga.Options{
		StoreKind:  *f.storeKind,
		DBPath:     *f.dbPath,
		ExportsDir: *f.exportsDir,
		Logger:     logger,
		Metrics:    m,
	})
	if err != nil {
		return nil, nil, err
	}
	return client, logger, nil
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	common := addCommonFlags(fs)
	configPath := fs.String("config", "", "optional run config JSON path")
	problemName := fs.String("problem", envString("problem", "sphere"), "problem name (see problems)")
	dims := fs.Int("dims", envInt("dims", 2), "number of variables")
	subpops := fs.Int("subpops", envInt("subpops", 1), "number of sub-populations")
	population := fs.Int("pop", envInt("pop", 20), "individuals per sub-population")
	generations := fs.Int("gens", envInt("gens", 0), "max generation count (0 derives 200 per variable)")
	seed := fs.Uint64("seed", envUint64("seed", 0), "rng seed (0 picks one from the clock)")
	elite := fs.Float64("elite", 0.05, "elite fraction")
	crossoverFraction := fs.Float64("crossover-fraction", 0.8, "crossover fraction")
	mutationProb := fs.Float64("mutation-prob", 0.1, "per-gene mutation probability")
	selection := fs.String("selection", "stochastic_uniform", "selection: "+strings.Join(evo.SelectionNames(), "|"))
	tournamentSize := fs.Int("tournament-size", 2, "tournament size for selection=tournament")
	scaling := fs.String("scaling", "rank", "fitness scaling: "+strings.Join(evo.ScalingNames(), "|"))
	scalingBase := fs.String("scaling-base", "", "base scaling for age and scattered_fitness_fuzzy")
	topFraction := fs.Float64("top-fraction", 0.4, "selected fraction for scaling=top")
	crossover := fs.String("crossover", "scattered_discrete", "crossover: "+strings.Join(evo.CrossoverNames(), "|"))
	parents := fs.Int("parents", 2, "parents per crossover")
	allowClones := fs.Bool("allow-clones", false, "skip the clone check in crossover")
	mutationScaling := fs.String("mutation-scaling", "richard", "mutation scaling: "+strings.Join(evo.MutationScalingNames(), "|"))
	sinRevolutions := fs.Float64("sin-revolutions", 1, "revolutions for mutation-scaling=sin")
	migrationInterval := fs.Int("migration-interval", 0, "generations between migrations (0 disables)")
	migrationStrategy := fs.String("migration-strategy", "elitism", "migration strategy: "+strings.Join(evo.MigrationStrategyNames(), "|"))
	migrationProcess := fs.String("migration-process", "network", "migration process: "+strings.Join(evo.MigrationProcessNames(), "|"))
	migrationCount := fs.Int("migration-count", 2, "migrants per sub-population")
	target := fs.Float64("target", envFloat64("target-fitness", 1e-3), "target fitness")
	stale := fs.Int("stale", 0, "stop after this many generations without change (0 disables)")
	maxTime := fs.Duration("max-time", 0, "max execution time (0 disables)")
	noForceClone := fs.Bool("no-force-clone", false, "keep clones instead of mutating them")
	mutationCutoff := fs.Int("mutation-cutoff", 10, "mutation attempts before giving up on a clone")
	recordEvery := fs.Int("record-every", 10, "record a snapshot every n generations (0 records only the final one)")
	maxSteps := fs.Int("max-steps", 0, "max generations in this call (0 unbounded)")
	verbose := fs.Bool("verbose", false, "log recorded generations")
	artifacts := fs.Bool("artifacts", false, "write run artifacts to the exports directory")
	metricsAddr := fs.String("metrics-addr", envString("metrics-addr", ""), "serve prometheus metrics on this address during the run")
	jsonOut := fs.Bool("json", false, "emit the run summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	req := islandga.RunRequest{
		Problem:               *problemName,
		Dimensions:            *dims,
		SubPopulations:        *subpops,
		Population:            *population,
		MaxGenerations:        *generations,
		Seed:                  *seed,
		Selection:             *selection,
		TournamentSize:        *tournamentSize,
		Scaling:               *scaling,
		ScalingBase:           *scalingBase,
		TopFraction:           *topFraction,
		Crossover:             *crossover,
		CrossoverParents:      *parents,
		AllowClones:           *allowClones,
		MutationScaling:       *mutationScaling,
		SinRevolutions:        *sinRevolutions,
		MigrationInterval:     *migrationInterval,
		MigrationStrategy:     *migrationStrategy,
		MigrationProcess:      *migrationProcess,
		MigrationCount:        *migrationCount,
		TargetFitness:         target,
		MaxStaleGenerations:   *stale,
		MaxExecutionTime:      *maxTime,
		DisableForceClone:     *noForceClone,
		MutationAttemptCutoff: *mutationCutoff,
		RecordEvery:           *recordEvery,
		MaxSteps:              *maxSteps,
		Verbose:               *verbose,
		WriteArtifacts:        *artifacts,
	}
	if setFlags["elite"] {
		req.EliteFraction = elite
	}
	if setFlags["crossover-fraction"] {
		req.CrossoverFraction = crossoverFraction
	}
	if setFlags["mutation-prob"] {
		req.MutationProbability = mutationProb
	}
	if *configPath != "" {
		raw, err := loadRunConfig(*configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := applyRunConfig(&req, raw); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		overrideFromFlags(&req, setFlags, map[string]any{
			"problem":            *problemName,
			"dims":               *dims,
			"subpops":            *subpops,
			"pop":                *population,
			"gens":               *generations,
			"seed":               *seed,
			"elite":              *elite,
			"crossover-fraction": *crossoverFraction,
			"mutation-prob":      *mutationProb,
			"selection":          *selection,
			"tournament-size":    *tournamentSize,
			"scaling":            *scaling,
			"scaling-base":       *scalingBase,
			"top-fraction":       *topFraction,
			"crossover":          *crossover,
			"parents":            *parents,
			"allow-clones":       *allowClones,
			"mutation-scaling":   *mutationScaling,
			"sin-revolutions":    *sinRevolutions,
			"migration-interval": *migrationInterval,
			"migration-strategy": *migrationStrategy,
			"migration-process":  *migrationProcess,
			"migration-count":    *migrationCount,
			"target":             *target,
			"stale":              *stale,
			"max-time":           *maxTime,
			"no-force-clone":     *noForceClone,
			"mutation-cutoff":    *mutationCutoff,
			"record-every":       *recordEvery,
			"max-steps":          *maxSteps,
		})
	}

	var collector *metrics.Collector
	if *metricsAddr != "" {
		collector = metrics.NewCollector()
	}
	client, logger, err := common.client(collector)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if collector != nil {
		shutdown, err := serveMetrics(*metricsAddr, collector, logger)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	summary, runErr := client.Run(ctx, req)
	if summary.RunID == "" {
		return runErr
	}
	if *jsonOut {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(runSummaryJSON(summary)); err != nil {
			return err
		}
		return runErr
	}
	fmt.Fprintf(stdout, "run_id=%s reason=%s generations=%s best_fitness=%g elapsed=%s\n",
		summary.RunID,
		summary.Reason,
		humanize.Comma(int64(summary.Generations)),
		summary.BestFitness,
		summary.Elapsed.Round(time.Millisecond),
	)
	fmt.Fprintf(stdout, "best=%s\n", strings.Join(summary.BestTokens, " "))
	if summary.ArtifactsDir != "" {
		fmt.Fprintf(stdout, "artifacts=%s\n", summary.ArtifactsDir)
	}
	return runErr
}

type runSummaryItem struct {
	RunID            string    `json:"run_id"`
	Reason           string    `json:"reason"`
	Error            string    `json:"error,omitempty"`
	Generations      int       `json:"generations"`
	BestFitness      float64   `json:"best_fitness"`
	BestTokens       []string  `json:"best_tokens"`
	ElapsedMillis    int64     `json:"elapsed_ms"`
	BestByGeneration []float64 `json:"best_by_generation"`
	ArtifactsDir     string    `json:"artifacts_dir,omitempty"`
}

func runSummaryJSON(s islandga.RunSummary) runSummaryItem {
	return runSummaryItem{
		RunID:            s.RunID,
		Reason:           s.Reason,
		Error:            s.Error,
		Generations:      s.Generations,
		BestFitness:      finiteFitness(s.BestFitness),
		BestTokens:       s.BestTokens,
		ElapsedMillis:    s.Elapsed.Milliseconds(),
		BestByGeneration: s.BestByGeneration,
		ArtifactsDir:     s.ArtifactsDir,
	}
}

func finiteFitness(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case math.IsInf(v, 1):
		return math.MaxFloat64
	case math.IsInf(v, -1):
		return -math.MaxFloat64
	}
	return v
}

// serveMetrics exposes collector on addr until the returned func is called.
func serveMetrics(addr string, collector *metrics.Collector, logger *slog.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen metrics: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", ln.Addr().String())
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	common := addCommonFlags(fs)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}
	client, _, err := common.client(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	runs, err := client.Runs(ctx, islandga.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(stdout, "no runs found")
		return nil
	}
	stats.RenderRuns(stdout, runs)
	return nil
}

func addLookupFlags(fs *flag.FlagSet) (runID *string, latest *bool) {
	runID = fs.String("run-id", "", "run id")
	latest = fs.Bool("latest", false, "use the most recent run")
	return runID, latest
}

func runShow(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	common := addCommonFlags(fs)
	runID, latest := addLookupFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	client, _, err := common.client(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	rec, err := client.RunRecord(ctx, islandga.LookupRequest{RunID: *runID, Latest: *latest})
	if err != nil {
		return err
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(rec)
}

func runGenerations(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("generations", flag.ContinueOnError)
	common := addCommonFlags(fs)
	runID, latest := addLookupFlags(fs)
	limit := fs.Int("limit", 0, "show only the last n recorded generations (0 shows all)")
	jsonOut := fs.Bool("json", false, "emit history as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	client, _, err := common.client(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	history, err := client.Generations(ctx, islandga.LookupRequest{RunID: *runID, Latest: *latest, Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(history)
	}
	stats.RenderGenerations(stdout, history, 0)
	return nil
}

func runPopulation(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("population", flag.ContinueOnError)
	common := addCommonFlags(fs)
	runID, latest := addLookupFlags(fs)
	limit := fs.Int("limit", 10, "show the n fittest individuals (0 shows all)")
	jsonOut := fs.Bool("json", false, "emit population as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	client, _, err := common.client(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	snapshot, err := client.Population(ctx, islandga.LookupRequest{RunID: *runID, Latest: *latest, Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snapshot)
	}
	stats.RenderPopulation(stdout, snapshot, 0)
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	common := addCommonFlags(fs)
	runID, latest := addLookupFlags(fs)
	outDir := fs.String("out", "", "output directory (defaults to the exports directory)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	client, _, err := common.client(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	exported, err := client.Export(ctx, islandga.ExportRequest{RunID: *runID, Latest: *latest, OutDir: *outDir})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "exported run_id=%s to=%s\n", exported.RunID, exported.Directory)
	return nil
}

func runDelete(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	common := addCommonFlags(fs)
	runID := fs.String("run-id", "", "run id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	client, _, err := common.client(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Delete(ctx, *runID); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "deleted run_id=%s\n", *runID)
	return nil
}

func runProblems(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("problems", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	for _, p := range islandga.Problems() {
		fmt.Fprintf(stdout, "%s genes=%s min_dims=%d %s\n", p.Name, p.Genes, p.MinDimensions, p.Description)
	}
	return nil
}

func runStrategies(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("strategies", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	families := islandga.Strategies()
	names := make([]string, 0, len(families))
	for family := range families {
		names = append(names, family)
	}
	sort.Strings(names)
	for _, family := range names {
		fmt.Fprintf(stdout, "%s: %s\n", family, strings.Join(families[family], ", "))
	}
	return nil
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: islandgactl <run|runs|show|generations|population|export|delete|problems|strategies> [flags]", msg)
}
