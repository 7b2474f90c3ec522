package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"biaseval/internal/analysis"
	"biaseval/internal/api"
	"biaseval/internal/config"
	"biaseval/internal/dataset"
	"biaseval/internal/logging"
	"biaseval/internal/metrics"
	"biaseval/internal/pipeline"
	"biaseval/internal/prompt"
	"biaseval/pkg/models"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var (
	configPath  string
	envFile     string
	datasetName string
	promptStyle string
	outputPath  string
	verbose     bool
)

// Answer length differs a lot per dataset: BBQ answers with a choice, law
// with a quoted word, Winogender with a pronoun.
var defaultMaxTokens = map[string]int{
	dataset.NameBBQ:        10,
	dataset.NameLaw:        5,
	dataset.NameWinogender: 20,
}

const fallbackMaxTokens = 32

// The law dataset is evaluated twice, once per counterfactual race. The
// offset keeps the second pass's ids disjoint from the first.
const lawSecondPassIDOffset = 1_000_000

func main() {
	rootCmd := &cobra.Command{
		Use:   "biaseval",
		Short: "biaseval - LLM bias benchmark evaluation",
		Long: `biaseval submits bias benchmark questions (BBQ, law school admissions,
Winogender) to an OpenAI-compatible completion endpoint under a request-rate
ceiling, persists every reply to an append-only JSONL log, and grades the
log afterwards.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the evaluation pipeline",
		Long: `Run the evaluation pipeline for one dataset and prompt style:
1. Scan the results log and skip already-completed items
2. Render prompts and submit them under the configured rate ceiling
3. Append every reply durably to the results log

Interrupting a run is safe; rerunning the same command resumes it.`,
		RunE: runEval,
	}
	addRunFlags(runCmd)

	progressCmd := &cobra.Command{
		Use:   "progress",
		Short: "Show how much of a run is complete",
		Long:  "Count the completed items in a results log against the dataset size",
		RunE:  runProgress,
	}
	addRunFlags(progressCmd)

	reportCmd := &cobra.Command{
		Use:   "report <results-log> [<results-log>...]",
		Short: "Grade results logs and print metrics",
		Long: `Grade every record of one or more results logs and print accuracy with
95% confidence intervals. BBQ logs additionally get the disambiguated-context
bias score, law logs get admission rates split by race.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runReport,
	}
	reportCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(progressCmd)
	rootCmd.AddCommand(reportCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configPath, "config", "config.toml", "Path to configuration file")
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "Path to environment file")
	cmd.Flags().StringVar(&datasetName, "dataset", dataset.NameBBQ, "Dataset to evaluate (bbq, law, winogender)")
	cmd.Flags().StringVar(&promptStyle, "prompt", string(prompt.StyleQuestion), "Prompt style (question, instruction, cot)")
	cmd.Flags().StringVar(&outputPath, "output", "", "Results log path (default: <output_dir>/<dataset>_<style>.jsonl)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
}

// loadRunSetup resolves everything run and progress share: configuration,
// the results log path, and the dataset source.
func loadRunSetup() (*config.Config, *config.Secrets, pipeline.Source, string, error) {
	if envFile != "" {
		if err := loadEnvFile(envFile); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load env file: %v\n", err)
		}
	}

	cfg, secrets, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, "", fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := config.ValidateRun(datasetName, prompt.Style(promptStyle)); err != nil {
		return nil, nil, nil, "", err
	}

	source, err := buildSource(cfg, datasetName)
	if err != nil {
		return nil, nil, nil, "", err
	}

	logPath := outputPath
	if logPath == "" {
		logPath = filepath.Join(cfg.Eval.OutputDir, fmt.Sprintf("%s_%s.jsonl", datasetName, promptStyle))
	}
	return cfg, secrets, source, logPath, nil
}

func runEval(cmd *cobra.Command, args []string) error {
	cfg, secrets, source, logPath, err := loadRunSetup()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.Eval.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger, logFile, err := logging.Setup(filepath.Join(cfg.Eval.OutputDir, "run.log"), logLevel)
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer func() {
		_ = logFile.Sync()
		_ = logFile.Close()
	}()

	logger.Info("biaseval starting",
		"version", Version,
		"config", configPath,
		"dataset", datasetName,
		"prompt_style", promptStyle,
		"output", logPath)

	renderer, err := prompt.ForDataset(datasetName, prompt.Style(promptStyle))
	if err != nil {
		return err
	}

	apiKey := secrets.GetAPIKey(cfg.Model.BaseURL)
	if apiKey == "" {
		return fmt.Errorf("no API key found; set API_KEY or a provider-specific variable")
	}
	client := api.NewClient(cfg.Model.BaseURL, apiKey, logger)

	maxTokens := cfg.Model.MaxOutputTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens[datasetName]
		if maxTokens == 0 {
			maxTokens = fallbackMaxTokens
		}
	}

	// The bar tracks newly persisted results; already-completed items are
	// subtracted from the total up front.
	total, err := countItems(source)
	if err != nil {
		return fmt.Errorf("failed to count dataset items: %w", err)
	}
	completed, err := pipeline.ScanCompleted(logPath, logger)
	if err != nil {
		return fmt.Errorf("failed to scan results log: %w", err)
	}
	remaining := total - len(completed)
	if remaining < 0 {
		remaining = 0
	}
	bar := progressbar.Default(int64(remaining), "Evaluating")

	pipe, err := pipeline.New(pipeline.Config{
		Source:    source,
		Renderer:  renderer,
		Submitter: client,
		Parameters: models.RequestParameters{
			Model:           cfg.Model.Name,
			MaxTokens:       maxTokens,
			Temperature:     cfg.Model.Temperature,
			Timeout:         time.Duration(cfg.Model.RequestTimeoutSeconds) * time.Second,
			CompletionCount: cfg.Model.CompletionCount,
		},
		OutputPath:           logPath,
		MaxRequestsPerMinute: cfg.Eval.MaxRequestsPerMinute,
		Workers:              cfg.Eval.Workers,
		QueueSize:            cfg.Eval.QueueSize,
		RateLimitBackoff:     time.Duration(cfg.Eval.RateLimitBackoffSeconds) * time.Second,
		MaxTransientRetries:  cfg.Eval.MaxTransientRetries,
		ShutdownGrace:        time.Duration(cfg.Eval.ShutdownGraceSeconds) * time.Second,
		OnResult: func(models.Result) {
			_ = bar.Add(1)
		},
		Metrics: metrics.NewCollector(),
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := pipe.Run(ctx); err != nil {
		if ctx.Err() != nil {
			logger.Warn("Evaluation interrupted - rerun the same command to resume",
				"output", logPath)
		}
		return fmt.Errorf("evaluation failed: %w", err)
	}

	stats := pipe.Stats()
	logger.Info("Evaluation complete",
		"persisted", stats.Persisted,
		"skipped", stats.Skipped,
		"duration", stats.TotalDuration,
		"output", logPath)
	return nil
}

func runProgress(cmd *cobra.Command, args []string) error {
	_, _, source, logPath, err := loadRunSetup()
	if err != nil {
		return err
	}

	total, err := countItems(source)
	if err != nil {
		return fmt.Errorf("failed to count dataset items: %w", err)
	}
	completed, err := pipeline.ScanCompleted(logPath, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to scan results log: %w", err)
	}

	percent := 0.0
	if total > 0 {
		percent = float64(len(completed)) / float64(total) * 100.0
	}
	fmt.Printf("%s: %d of %d items complete (%.1f%%)\n", logPath, len(completed), total, percent)
	return nil
}

func runReport(cmd *cobra.Command, args []string) error {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	for _, path := range args {
		results, err := analysis.ReadResults(path, logger)
		if err != nil {
			return err
		}

		byDataset := make(map[string][]models.Result)
		for _, res := range results {
			byDataset[res.Item.Dataset] = append(byDataset[res.Item.Dataset], res)
		}
		names := make([]string, 0, len(byDataset))
		for name := range byDataset {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Printf("Results for file %s\n", filepath.Base(path))
		if len(names) == 0 {
			fmt.Println("no decodable results")
			continue
		}
		for _, name := range names {
			if err := analysis.Report(os.Stdout, name, byDataset[name]); err != nil {
				return fmt.Errorf("report for %s: %w", path, err)
			}
		}
	}
	return nil
}

func buildSource(cfg *config.Config, datasetName string) (pipeline.Source, error) {
	switch datasetName {
	case dataset.NameBBQ:
		paths, err := filepath.Glob(cfg.Datasets.BBQ.DataGlob)
		if err != nil {
			return nil, fmt.Errorf("bad datasets.bbq.data_glob: %w", err)
		}
		if len(paths) == 0 {
			return nil, fmt.Errorf("datasets.bbq.data_glob %q matched no files", cfg.Datasets.BBQ.DataGlob)
		}
		sort.Strings(paths)
		loader := dataset.NewBBQLoader(paths...)
		if cfg.Datasets.BBQ.MetadataPath != "" {
			if err := loader.LoadBiasTargets(cfg.Datasets.BBQ.MetadataPath); err != nil {
				return nil, fmt.Errorf("failed to load BBQ metadata: %w", err)
			}
		}
		return loader, nil

	case dataset.NameLaw:
		if cfg.Datasets.Law.Path == "" {
			return nil, fmt.Errorf("datasets.law.path must be set")
		}
		black := dataset.NewLawLoader(cfg.Datasets.Law.Path)
		black.Overrides = map[string]string{"race": "Black"}
		white := dataset.NewLawLoader(cfg.Datasets.Law.Path)
		white.Overrides = map[string]string{"race": "White"}
		white.IDOffset = lawSecondPassIDOffset
		return dataset.Multi{black, white}, nil

	case dataset.NameWinogender:
		if cfg.Datasets.Winogender.SentencesPath == "" {
			return nil, fmt.Errorf("datasets.winogender.sentences_path must be set")
		}
		loader := dataset.NewWinogenderLoader(cfg.Datasets.Winogender.SentencesPath)
		if cfg.Datasets.Winogender.BLSPath != "" {
			if err := loader.LoadOccupationStats(cfg.Datasets.Winogender.BLSPath); err != nil {
				return nil, fmt.Errorf("failed to load occupation stats: %w", err)
			}
		}
		return loader, nil
	}
	return nil, fmt.Errorf("unknown dataset %q", datasetName)
}

func countItems(source pipeline.Source) (int, error) {
	count := 0
	err := source.Each(func(models.Item) error {
		count++
		return nil
	})
	return count, err
}

// loadEnvFile loads KEY=VALUE pairs from a file into the environment
func loadEnvFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(strings.TrimSuffix(line, "\r"))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		value = strings.Trim(value, `"'`)
		if err := os.Setenv(key, value); err != nil {
			return err
		}
	}
	return nil
}
