// Command p5-eval evaluates a directory of model-predicted phenopackets
// against a directory of ground-truth phenopackets and writes an accuracy
// report. Documents are paired by identical base filename.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/VarenyaJ/P5/internal/dataset"
	"github.com/VarenyaJ/P5/internal/logging"
	"github.com/VarenyaJ/P5/internal/phenopacket"
	"github.com/VarenyaJ/P5/internal/pipeline"
	"github.com/VarenyaJ/P5/internal/report"
	"github.com/VarenyaJ/P5/internal/storage"
)

func main() {
	var (
		predictedDir = flag.String("predicted", "", "directory of model-predicted phenopacket JSON files (required)")
		truthDir     = flag.String("truth", "", "directory of ground-truth phenopacket JSON files (required)")
		creator      = flag.String("creator", "", "who is running the evaluation (required)")
		experiment   = flag.String("experiment", "", "experiment name or ID (required)")
		model        = flag.String("model", "", "model name or version (required)")
		notes        = flag.String("notes", "", "free-text notes for the report")
		out          = flag.String("out", "", "path to write the report JSON (optional)")
		dbPath       = flag.String("db", "", "SQLite database to store the report in (optional)")
		workers      = flag.Int("workers", 4, "number of concurrent evaluation workers")
		cacheSize    = flag.Int("cache", 256, "phenopacket record cache size")
		logLevel     = flag.String("log-level", "info", "log level")
		logFormat    = flag.String("log-format", "text", "log format: json or text")
	)
	flag.Parse()

	for name, value := range map[string]string{
		"predicted":  *predictedDir,
		"truth":      *truthDir,
		"creator":    *creator,
		"experiment": *experiment,
		"model":      *model,
	} {
		if value == "" {
			fmt.Fprintf(os.Stderr, "missing required flag -%s\n\n", name)
			flag.Usage()
			os.Exit(2)
		}
	}

	logger, err := logging.New(*logLevel, *logFormat, "stderr")
	if err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pairs, err := dataset.BuildIndex(*predictedDir, *truthDir)
	if err != nil {
		log.Fatalf("Failed to index dataset: %v", err)
	}
	if len(pairs) == 0 {
		log.Fatalf("No evaluable sample pairs under %s and %s", *predictedDir, *truthDir)
	}

	cache, err := phenopacket.NewCache(*cacheSize)
	if err != nil {
		log.Fatalf("Failed to create record cache: %v", err)
	}

	runner := pipeline.NewRunner(logger, pipeline.Options{
		Workers: *workers,
		Cache:   cache,
	})

	result, err := runner.Run(ctx, pairs, report.Metadata{
		Creator:    *creator,
		Experiment: *experiment,
		Model:      *model,
		Notes:      *notes,
	})
	if err != nil {
		log.Fatalf("Evaluation failed: %v", err)
	}

	fmt.Println(result.Report.Summary())
	if result.Skipped > 0 {
		fmt.Printf("evaluated %d samples, skipped %d\n", result.Evaluated, result.Skipped)
	}

	if *out != "" {
		if err := result.Report.Save(*out); err != nil {
			log.Fatalf("Failed to write report: %v", err)
		}
		fmt.Printf("report written to %s\n", *out)
	}

	if *dbPath != "" {
		store, err := storage.NewSQLiteStore(*dbPath)
		if err != nil {
			log.Fatalf("Failed to open report store: %v", err)
		}
		defer store.Close()
		if err := store.Save(ctx, result.Report); err != nil {
			log.Fatalf("Failed to store report: %v", err)
		}
		fmt.Printf("report %s stored in %s\n", result.Report.ID(), *dbPath)
	}
}
