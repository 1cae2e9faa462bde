package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/raaihank/pii-sentinel/internal/audit"
	"github.com/raaihank/pii-sentinel/internal/cache"
	"github.com/raaihank/pii-sentinel/internal/config"
	"github.com/raaihank/pii-sentinel/internal/engine"
	"github.com/raaihank/pii-sentinel/internal/logger"
	"github.com/raaihank/pii-sentinel/internal/pipeline"
)

func main() {
	var (
		configPath = flag.String("config", "configs/default.yaml", "Configuration file path")
		inputFile  = flag.String("input", "", "Input dataset file (CSV, Parquet, or JSON Lines)")
		outputFile = flag.String("output", "", "Output file (format follows extension; defaults to <input>.redacted.<ext>)")
		batchSize  = flag.Int("batch-size", 1000, "Batch size for processing")
		workers    = flag.Int("workers", 4, "Number of worker goroutines")
		skipCache  = flag.Bool("skip-cache", false, "Skip updating the Redis result cache")
		dryRun     = flag.Bool("dry-run", false, "Classify everything but write nothing")
		showStats  = flag.Bool("stats", false, "Show audit store statistics and exit")
	)
	flag.Parse()

	if *inputFile == "" && !*showStats {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --input dataset.csv --output redacted.csv\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --input dataset.parquet --workers 8\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --stats\n", os.Args[0])
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting PII-Sentinel batch redaction",
		zap.String("version", "0.1.0"),
		zap.String("config", *configPath))

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, cancelling operations...")
		cancel()
	}()

	// Initialize services
	services, err := initializeServices(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.cleanup()

	if *showStats {
		if err := showStoreStats(ctx, services); err != nil {
			log.Fatal("Failed to show stats", zap.Error(err))
		}
		return
	}

	pipelineConfig := &pipeline.Config{
		BatchSize:      *batchSize,
		WorkerCount:    *workers,
		ValidateData:   cfg.Pipeline.ValidateData,
		ProgressReport: cfg.Pipeline.ProgressReport,
		UpdateCache:    !*skipCache && cfg.Pipeline.UpdateCache,
		DryRun:         *dryRun,
	}

	output := *outputFile
	if output == "" {
		output = defaultOutputPath(*inputFile)
	}

	if err := processDataset(ctx, services, pipelineConfig, *inputFile, output, log); err != nil {
		log.Fatal("Batch redaction failed", zap.Error(err))
	}

	log.Info("Batch redaction completed successfully")
}

// services holds all initialized services
type services struct {
	engine      *engine.Engine
	store       *audit.Store
	resultCache *cache.ResultCache
}

func (s *services) cleanup() {
	if s.store != nil {
		s.store.Close()
	}
	if s.resultCache != nil {
		s.resultCache.Close()
	}
}

// initializeServices initializes the engine and its optional backends
func initializeServices(cfg *config.Config, log *logger.Logger) (*services, error) {
	services := &services{}

	eng, err := engine.New(cfg.Privacy, log.WithComponent("engine"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize classification engine: %w", err)
	}
	services.engine = eng

	if cfg.Audit.Enabled {
		log.Info("Initializing audit store...")
		store, err := audit.NewStore(&audit.Config{
			DatabaseURL:     cfg.Audit.DatabaseURL,
			MaxOpenConns:    cfg.Audit.MaxOpenConns,
			MaxIdleConns:    cfg.Audit.MaxIdleConns,
			ConnMaxLifetime: cfg.Audit.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Audit.ConnMaxIdleTime,
		}, log.WithComponent("audit").Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize audit store: %w", err)
		}
		services.store = store
	}

	if cfg.Cache.Enabled {
		log.Info("Initializing result cache...")
		resultCache, err := cache.NewResultCache(&cache.Config{
			RedisURL:       cfg.Cache.RedisURL,
			MaxConnections: cfg.Cache.MaxConnections,
			MinIdleConns:   cfg.Cache.MinIdleConns,
			DefaultTTL:     cfg.Cache.DefaultTTL,
			KeyPrefix:      cfg.Cache.KeyPrefix,
		}, log.WithComponent("cache").Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize result cache: %w", err)
		}
		services.resultCache = resultCache
	}

	return services, nil
}

// processDataset runs the classification pipeline over the input file
func processDataset(ctx context.Context, services *services, pipelineConfig *pipeline.Config, inputFile, outputFile string, log *logger.Logger) error {
	log.Info("Processing dataset",
		zap.String("input", inputFile),
		zap.String("output", outputFile),
		zap.Bool("dry_run", pipelineConfig.DryRun))

	// Check if file exists
	if _, err := os.Stat(inputFile); os.IsNotExist(err) {
		return fmt.Errorf("input file does not exist: %s", inputFile)
	}

	p := pipeline.NewPipeline(
		services.engine,
		services.store,
		services.resultCache,
		pipelineConfig,
		log.Logger,
	)

	result, err := p.ProcessFile(ctx, inputFile, outputFile)
	if err != nil {
		return fmt.Errorf("pipeline processing failed: %w", err)
	}

	// Report results
	log.Info("Dataset processing completed",
		zap.String("input", inputFile),
		zap.Int64("total_records", result.TotalRecords),
		zap.Int64("pii_records", result.PIIRecords),
		zap.Int64("parse_failures", result.ParseFailures),
		zap.Int64("skipped_rows", result.SkippedRows),
		zap.Duration("total_duration", result.Duration),
		zap.Duration("classify_time", result.ClassifyTime),
		zap.Duration("write_time", result.WriteTime),
		zap.Duration("database_time", result.DatabaseTime),
		zap.Float64("records_per_second", float64(result.TotalRecords)/result.Duration.Seconds()))

	if len(result.Errors) > 0 {
		log.Warn("Processing completed with errors", zap.Strings("errors", result.Errors))
	}

	return nil
}

// showStoreStats displays audit store and cache statistics
func showStoreStats(ctx context.Context, services *services) error {
	if services.store == nil {
		return fmt.Errorf("audit store is not enabled")
	}

	stats, err := services.store.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to get audit stats: %w", err)
	}

	fmt.Printf("\n=== PII-Sentinel Audit Statistics ===\n")
	fmt.Printf("Total Records:   %d\n", stats.TotalRecords)
	if stats.TotalRecords > 0 {
		fmt.Printf("PII Records:     %d (%.1f%%)\n", stats.PIICount,
			float64(stats.PIICount)/float64(stats.TotalRecords)*100)
		fmt.Printf("Clean Records:   %d (%.1f%%)\n", stats.CleanCount,
			float64(stats.CleanCount)/float64(stats.TotalRecords)*100)
	}

	if services.resultCache != nil {
		cacheStats, err := services.resultCache.GetStats(ctx)
		if err == nil {
			fmt.Printf("\n=== Cache Statistics ===\n")
			fmt.Printf("Cache Hits:      %d\n", cacheStats.Hits)
			fmt.Printf("Cache Misses:    %d\n", cacheStats.Misses)
			fmt.Printf("Hit Rate:        %.1f%%\n", cacheStats.HitRate)
			fmt.Printf("Total Keys:      %d\n", cacheStats.TotalKeys)
		}
	}

	return nil
}

// defaultOutputPath derives an output path next to the input file
func defaultOutputPath(inputFile string) string {
	base := inputFile
	for _, suffix := range []string{".csv", ".parquet", ".jsonl", ".json"} {
		if strings.HasSuffix(base, suffix) {
			return strings.TrimSuffix(base, suffix) + ".redacted" + suffix
		}
	}
	return base + ".redacted.csv"
}
