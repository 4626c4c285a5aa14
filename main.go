package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"nhs-data-pipeline/config"
	"nhs-data-pipeline/models"
	"nhs-data-pipeline/pipeline"
	"nhs-data-pipeline/services"
	"nhs-data-pipeline/source"
	"nhs-data-pipeline/storage"
)

var (
	flagSource      string
	flagMapping     string
	flagSaveMapping string
	flagClear       bool
	flagBatchSize   int
	flagWorkers     int

	flagExpectedEntities int
	flagExpectedPeriods  int
	flagMustHave         string
)

var rootCmd = &cobra.Command{
	Use:   "nhs-data-pipeline",
	Short: "Transform, validate and load NHS performance spreadsheets",
}

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Stream a source file into the performance record store",
	RunE:  runLoad,
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit the store population against expected cardinalities",
	RunE:  runAudit,
}

func init() {
	loadCmd.Flags().StringVar(&flagSource, "source", "", "path to the source CSV (overrides SOURCE_PATH)")
	loadCmd.Flags().StringVar(&flagMapping, "mapping", "", "path to a persisted column mapping (overrides MAPPING_PATH)")
	loadCmd.Flags().StringVar(&flagSaveMapping, "save-mapping", "", "persist the derived column mapping to this path")
	loadCmd.Flags().BoolVar(&flagClear, "clear", false, "delete all existing records before loading")
	loadCmd.Flags().IntVar(&flagBatchSize, "batch-size", 0, "records per store write (overrides BATCH_SIZE)")
	loadCmd.Flags().IntVar(&flagWorkers, "workers", 0, "parallel row workers (overrides ROW_WORKERS)")

	auditCmd.Flags().IntVar(&flagExpectedEntities, "expected-entities", 0, "expected distinct entity count (overrides EXPECTED_ENTITIES)")
	auditCmd.Flags().IntVar(&flagExpectedPeriods, "expected-periods", 0, "expected distinct period count (overrides EXPECTED_PERIODS)")
	auditCmd.Flags().StringVar(&flagMustHave, "must-have", "", "comma-separated entity codes that must be present")

	rootCmd.AddCommand(loadCmd, auditCmd)
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.InfoLevel)

	if err := rootCmd.Execute(); err != nil {
		log.WithField("error", err).Error("Command failed")
		os.Exit(1)
	}
}

func runLoad(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if flagSource != "" {
		cfg.SourcePath = flagSource
	}
	if flagMapping != "" {
		cfg.MappingPath = flagMapping
	}
	if flagBatchSize > 0 {
		cfg.BatchSize = flagBatchSize
	}
	if flagWorkers > 0 {
		cfg.RowWorkers = flagWorkers
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reader, err := source.Open(cfg.SourcePath)
	if err != nil {
		return err
	}
	defer reader.Close()

	mapping, err := resolveMapping(cfg, reader.Header())
	if err != nil {
		return err
	}
	if flagSaveMapping != "" {
		if err := services.SaveMapping(mapping, flagSaveMapping); err != nil {
			return err
		}
		log.WithField("path", flagSaveMapping).Info("Column mapping persisted")
	}

	store, err := storage.NewPostgresStore(cfg.DSN())
	if err != nil {
		return err
	}
	defer store.Close()

	p, err := pipeline.New(cfg, mapping, store)
	if err != nil {
		return err
	}

	summary, err := p.Run(ctx, reader, flagClear)
	if err != nil {
		return err
	}

	reports, err := storage.NewReportWriter(cfg.ReportDir)
	if err != nil {
		return err
	}
	path, err := reports.WriteRunSummary(summary)
	if err != nil {
		return err
	}
	log.WithField("path", path).Info("Run summary written")

	printSummary(summary)
	if summary.State == models.StateAborted {
		return fmt.Errorf("run aborted")
	}
	return nil
}

func runAudit(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if flagExpectedEntities > 0 {
		cfg.ExpectedEntities = flagExpectedEntities
	}
	if flagExpectedPeriods > 0 {
		cfg.ExpectedPeriods = flagExpectedPeriods
	}
	if flagMustHave != "" {
		cfg.MustHaveEntities = strings.Split(flagMustHave, ",")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewPostgresStore(cfg.DSN())
	if err != nil {
		return err
	}
	defer store.Close()

	auditor := services.NewAuditor(services.AuditConfig{
		ExpectedEntities:        cfg.ExpectedEntities,
		ExpectedPeriods:         cfg.ExpectedPeriods,
		MustHaveEntities:        cfg.MustHaveEntities,
		CriticalMissingFraction: cfg.CriticalMissingFraction,
	})

	report, err := auditor.Audit(ctx, store)
	if err != nil {
		return err
	}

	reports, err := storage.NewReportWriter(cfg.ReportDir)
	if err != nil {
		return err
	}
	path, err := reports.WriteAuditReport(report)
	if err != nil {
		return err
	}
	log.WithField("path", path).Info("Audit report written")

	auditor.Print(report)
	return nil
}

// resolveMapping loads the persisted mapping when configured (failing fast
// if the source header set has drifted), otherwise derives one from the
// header row.
func resolveMapping(cfg *config.Config, headers []string) (*models.ColumnMapping, error) {
	if cfg.MappingPath != "" {
		mapping, err := services.LoadMapping(cfg.MappingPath)
		if err != nil {
			return nil, err
		}
		if err := mapping.CheckHeaders(headers); err != nil {
			return nil, err
		}
		log.WithFields(log.Fields{
			"path":    cfg.MappingPath,
			"version": mapping.SchemaVersion,
			"columns": len(mapping.Columns),
		}).Info("Loaded persisted column mapping")
		return mapping, nil
	}

	mapping := services.BuildMapping(headers, 1)
	log.WithField("columns", len(mapping.Columns)).Info("Derived column mapping from source header")
	return mapping, nil
}

func printSummary(s *models.RunSummary) {
	thin := strings.Repeat("─", 54)

	fmt.Printf("\n  Run %s — %s\n", s.RunID, s.State)
	fmt.Printf("  %s\n", thin)
	fmt.Printf("  Rows read        : %d\n", s.RowsRead)
	fmt.Printf("  Records written  : %d\n", s.RecordsWritten)
	fmt.Printf("  Records rejected : %d\n", s.RecordsRejected)
	fmt.Printf("  Records warned   : %d\n", s.RecordsWarned)
	fmt.Printf("  Failed batches   : %d\n", s.FailedBatches)
	fmt.Printf("  Distinct entities: %d | periods: %d\n", s.DistinctEntities, s.DistinctPeriods)
	if len(s.RejectionReasons) > 0 {
		fmt.Printf("  Rejection reasons:\n")
		for reason, count := range s.RejectionReasons {
			fmt.Printf("    %-24s %d\n", reason, count)
		}
	}
	fmt.Printf("  Duration         : %s\n\n", s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond))
}
