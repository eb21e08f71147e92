package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"islandga/pkg/islandga"
)

const envPrefix = "ISLANDGA_"

// loadEnv reads the given dotenv files when present. Variables already set
// in the process environment win.
func loadEnv(filenames ...string) {
	for _, filename := range filenames {
		if s, err := os.Stat(filename); err == nil && !s.IsDir() {
			_ = godotenv.Load(filename)
		}
	}
}

func envKey(name string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

func envString(name, def string) string {
	if v, ok := os.LookupEnv(envKey(name)); ok && v != "" {
		return v
	}
	return def
}

func envInt(name string, def int) int {
	if v, ok := os.LookupEnv(envKey(name)); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envUint64(name string, def uint64) uint64 {
	if v, ok := os.LookupEnv(envKey(name)); ok {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func envFloat64(name string, def float64) float64 {
	if v, ok := os.LookupEnv(envKey(name)); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

func loadRunConfig(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// applyRunConfig copies the fields present in a JSON run config onto req.
func applyRunConfig(req *islandga.RunRequest, raw map[string]any) error {
	if v, ok := asString(raw["problem"]); ok {
		req.Problem = v
	}
	if v, ok := asInt(raw["dimensions"]); ok {
		req.Dimensions = v
	}
	if v, ok := asInt(raw["sub_populations"]); ok {
		req.SubPopulations = v
	}
	if v, ok := asInt(raw["population"]); ok {
		req.Population = v
	}
	if v, ok := asInt(raw["max_generations"]); ok {
		req.MaxGenerations = v
	}
	if v, ok := asUint64(raw["seed"]); ok {
		req.Seed = v
	}
	if v, ok := asFloat64(raw["elite_fraction"]); ok {
		req.EliteFraction = &v
	}
	if v, ok := asFloat64(raw["crossover_fraction"]); ok {
		req.CrossoverFraction = &v
	}
	if v, ok := asFloat64(raw["mutation_probability"]); ok {
		req.MutationProbability = &v
	}
	if v, ok := asString(raw["selection"]); ok {
		req.Selection = v
	}
	if v, ok := asInt(raw["tournament_size"]); ok {
		req.TournamentSize = v
	}
	if v, ok := asString(raw["scaling"]); ok {
		req.Scaling = v
	}
	if v, ok := asString(raw["scaling_base"]); ok {
		req.ScalingBase = v
	}
	if v, ok := asFloat64(raw["top_fraction"]); ok {
		req.TopFraction = v
	}
	if v, ok := asString(raw["crossover"]); ok {
		req.Crossover = v
	}
	if v, ok := asInt(raw["crossover_parents"]); ok {
		req.CrossoverParents = v
	}
	if v, ok := asBool(raw["allow_clones"]); ok {
		req.AllowClones = v
	}
	if v, ok := asString(raw["mutation_scaling"]); ok {
		req.MutationScaling = v
	}
	if v, ok := asFloat64(raw["sin_revolutions"]); ok {
		req.SinRevolutions = v
	}
	if migration, ok := raw["migration"].(map[string]any); ok {
		if v, ok := asInt(migration["interval"]); ok {
			req.MigrationInterval = v
		}
		if v, ok := asString(migration["strategy"]); ok {
			req.MigrationStrategy = v
		}
		if v, ok := asString(migration["process"]); ok {
			req.MigrationProcess = v
		}
		if v, ok := asInt(migration["count"]); ok {
			req.MigrationCount = v
		}
	}
	if v, ok := asFloat64(raw["target_fitness"]); ok {
		req.TargetFitness = &v
	}
	if v, ok := asInt(raw["max_stale_generations"]); ok {
		req.MaxStaleGenerations = v
	}
	if v, ok := asString(raw["max_execution_time"]); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("max_execution_time: %w", err)
		}
		req.MaxExecutionTime = d
	}
	if v, ok := asBool(raw["force_clone_mutation"]); ok {
		req.DisableForceClone = !v
	}
	if v, ok := asInt(raw["mutation_attempt_cutoff"]); ok {
		req.MutationAttemptCutoff = v
	}
	if v, ok := asInt(raw["record_every"]); ok {
		req.RecordEvery = v
	}
	if v, ok := asInt(raw["max_steps"]); ok {
		req.MaxSteps = v
	}
	return nil
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}

func asUint64(v any) (uint64, bool) {
	switch x := v.(type) {
	case uint64:
		return x, true
	case int:
		if x < 0 {
			return 0, false
		}
		return uint64(x), true
	case float64:
		if x < 0 {
			return 0, false
		}
		return uint64(x), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}

// overrideFromFlags applies only the flags the user set explicitly.
func overrideFromFlags(req *islandga.RunRequest, set map[string]bool, flagValue map[string]any) {
	for name := range set {
		v, ok := flagValue[name]
		if !ok {
			continue
		}
		switch name {
		case "problem":
			req.Problem = v.(string)
		case "dims":
			req.Dimensions = v.(int)
		case "subpops":
			req.SubPopulations = v.(int)
		case "pop":
			req.Population = v.(int)
		case "gens":
			req.MaxGenerations = v.(int)
		case "seed":
			req.Seed = v.(uint64)
		case "elite":
			f := v.(float64)
			req.EliteFraction = &f
		case "crossover-fraction":
			f := v.(float64)
			req.CrossoverFraction = &f
		case "mutation-prob":
			f := v.(float64)
			req.MutationProbability = &f
		case "selection":
			req.Selection = v.(string)
		case "tournament-size":
			req.TournamentSize = v.(int)
		case "scaling":
			req.Scaling = v.(string)
		case "scaling-base":
			req.ScalingBase = v.(string)
		case "top-fraction":
			req.TopFraction = v.(float64)
		case "crossover":
			req.Crossover = v.(string)
		case "parents":
			req.CrossoverParents = v.(int)
		case "allow-clones":
			req.AllowClones = v.(bool)
		case "mutation-scaling":
			req.MutationScaling = v.(string)
		case "sin-revolutions":
			req.SinRevolutions = v.(float64)
		case "migration-interval":
			req.MigrationInterval = v.(int)
		case "migration-strategy":
			req.MigrationStrategy = v.(string)
		case "migration-process":
			req.MigrationProcess = v.(string)
		case "migration-count":
			req.MigrationCount = v.(int)
		case "target":
			f := v.(float64)
			req.TargetFitness = &f
		case "stale":
			req.MaxStaleGenerations = v.(int)
		case "max-time":
			req.MaxExecutionTime = v.(time.Duration)
		case "no-force-clone":
			req.DisableForceClone = v.(bool)
		case "mutation-cutoff":
			req.MutationAttemptCutoff = v.(int)
		case "record-every":
			req.RecordEvery = v.(int)
		case "max-steps":
			req.MaxSteps = v.(int)
		}
	}
}
