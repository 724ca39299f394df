package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"farm-advisor/internal/advisor"
	"farm-advisor/internal/app"
	"farm-advisor/internal/config"
	"farm-advisor/internal/models"
	"farm-advisor/internal/repository"
	"farm-advisor/internal/services"
	"farm-advisor/pkg/database"
	"farm-advisor/pkg/logging"
	"farm-advisor/pkg/metrics"
)

var (
	soilSample      models.SoilSample
	fertilizerQuery models.FertilizerQuery
	batchDataDir    string
	batchSize       int
)

var cropCmd = &cobra.Command{
	Use:   "crop",
	Short: "Recommend a crop from soil and climate readings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := soilSample.Validate(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), advisor.RecommendCrop(soilSample))
		return nil
	},
}

var fertilizerCmd = &cobra.Command{
	Use:   "fertilizer",
	Short: "Recommend a fertilizer with the trained model",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := fertilizerQuery.Validate(); err != nil {
			return err
		}

		advisors, err := loadAdvisors(cmd)
		if err != nil {
			return err
		}

		fertilizer, err := advisors.Fertilizer.PredictFertilizer(fertilizerQuery)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), fertilizer)
		return nil
	},
}

var vocabularyCmd = &cobra.Command{
	Use:   "vocabulary",
	Short: "List the crop and soil labels the fertilizer model accepts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		advisors, err := loadAdvisors(cmd)
		if err != nil {
			return err
		}

		crops, soils := advisors.Fertilizer.ListCropAndSoilVocabulary()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Crops: %s\n", strings.Join(crops, ", "))
		fmt.Fprintf(out, "Soils: %s\n", strings.Join(soils, ", "))
		return nil
	},
}

var diseaseCmd = &cobra.Command{
	Use:   "disease <image>",
	Short: "Classify a plant image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read image: %w", err)
		}
		if mtype := mimetype.Detect(data); !strings.HasPrefix(mtype.String(), "image/") {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s does not look like an image (detected %s)\n", args[0], mtype.String())
		}

		advisors, err := loadAdvisors(cmd)
		if err != nil {
			return err
		}

		record := advisors.Disease.ClassifyDisease(data)
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Disease: %s\n", record.Name)
		fmt.Fprintf(out, "Cause:   %s\n", record.Cause)
		fmt.Fprintf(out, "Cure:    %s\n", record.Treatment)
		return nil
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Recommend crops for every sample file in a directory and store the results",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		logger := app.NewLogger(cfg, "farm-advisor-batch")
		metricsCollector := metrics.NewCollector("farm_advisor_batch", prometheus.NewRegistry())

		db, err := database.Open(app.DatabaseConfig(cfg), logger, metricsCollector)
		if err != nil {
			return err
		}
		defer db.Close()

		batch := services.NewBatchService(repository.NewFarmRepository(db, logger, metricsCollector), logger, metricsCollector)
		result, err := batch.ProcessDirectory(ctx, batchDataDir, batchSize)
		if err != nil {
			logger.Error(ctx, "[BATCH_ERROR] Batch run failed", logging.Fields{"data_dir": batchDataDir}, err)
			if result != nil {
				printBatchResult(cmd, result)
			}
			return err
		}

		printBatchResult(cmd, result)
		return nil
	},
}

func init() {
	cropFlags := cropCmd.Flags()
	cropFlags.Float64Var(&soilSample.Nitrogen, "nitrogen", 0, "Nitrogen (N)")
	cropFlags.Float64Var(&soilSample.Phosphorus, "phosphorus", 0, "Phosphorus (P)")
	cropFlags.Float64Var(&soilSample.Potassium, "potassium", 0, "Potassium (K)")
	cropFlags.Float64Var(&soilSample.Temperature, "temperature", 0, "Temperature in degrees Celsius")
	cropFlags.Float64Var(&soilSample.Humidity, "humidity", 0, "Relative humidity in percent")
	cropFlags.Float64Var(&soilSample.PH, "ph", 0, "Soil pH")
	cropFlags.Float64Var(&soilSample.Rainfall, "rainfall", 0, "Rainfall in mm")
	for _, name := range []string{"nitrogen", "phosphorus", "potassium", "temperature", "humidity", "ph", "rainfall"} {
		cropCmd.MarkFlagRequired(name)
	}

	fertFlags := fertilizerCmd.Flags()
	fertFlags.Float64Var(&fertilizerQuery.Temperature, "temperature", 0, "Temperature in degrees Celsius")
	fertFlags.Float64Var(&fertilizerQuery.Moisture, "moisture", 0, "Soil moisture")
	fertFlags.Float64Var(&fertilizerQuery.Rainfall, "rainfall", 0, "Rainfall in mm")
	fertFlags.Float64Var(&fertilizerQuery.PH, "ph", 0, "Soil pH")
	fertFlags.Float64Var(&fertilizerQuery.Nitrogen, "nitrogen", 0, "Nitrogen (N)")
	fertFlags.Float64Var(&fertilizerQuery.Phosphorus, "phosphorus", 0, "Phosphorus (P)")
	fertFlags.Float64Var(&fertilizerQuery.Potassium, "potassium", 0, "Potassium (K)")
	fertFlags.Float64Var(&fertilizerQuery.Carbon, "carbon", 0, "Organic carbon")
	fertFlags.StringVar(&fertilizerQuery.Soil, "soil", "", "Soil type, as listed by 'advisor vocabulary'")
	fertFlags.StringVar(&fertilizerQuery.Crop, "crop", "", "Crop, as listed by 'advisor vocabulary'")
	for _, name := range []string{"temperature", "moisture", "rainfall", "ph", "nitrogen", "phosphorus", "potassium", "carbon", "soil", "crop"} {
		fertilizerCmd.MarkFlagRequired(name)
	}

	batchCmd.Flags().StringVar(&batchDataDir, "data-dir", "./samples", "Directory containing .csv or .tsv sample files")
	batchCmd.Flags().IntVar(&batchSize, "batch-size", 500, "Number of recommendations stored per transaction")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadAdvisors loads the model artifacts with logging kept to warnings so
// command output stays readable
func loadAdvisors(cmd *cobra.Command) (*app.Advisors, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Logging.Level != "debug" {
		cfg.Logging.Level = "warn"
	}

	return app.LoadAdvisors(cmd.Context(), cfg, app.NewLogger(cfg, "farm-advisor-cli"), nil)
}

func printBatchResult(cmd *cobra.Command, result *services.BatchResult) {
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, strings.Repeat("=", 80))
	fmt.Fprintln(out, "BATCH COMPLETE")
	fmt.Fprintln(out, strings.Repeat("=", 80))
	fmt.Fprintf(out, "Total Files:        %d\n", result.TotalFiles)
	fmt.Fprintf(out, "Total Records:      %d\n", result.TotalRecords)
	fmt.Fprintf(out, "Successful Records: %d\n", result.SuccessfulRecords)
	fmt.Fprintf(out, "Failed Records:     %d\n", result.FailedRecords)
	fmt.Fprintf(out, "Duration:           %v\n", result.Duration)

	if len(result.CropCounts) > 0 {
		crops := make([]string, 0, len(result.CropCounts))
		for crop := range result.CropCounts {
			crops = append(crops, crop)
		}
		sort.Strings(crops)

		fmt.Fprintln(out, "\nRecommended crops:")
		for _, crop := range crops {
			fmt.Fprintf(out, "  %-12s %d\n", crop, result.CropCounts[crop])
		}
	}

	if len(result.Errors) > 0 {
		fmt.Fprintf(out, "\nErrors (%d):\n", len(result.Errors))
		for i, errMsg := range result.Errors {
			if i < 10 {
				fmt.Fprintf(out, "  - %s\n", errMsg)
			}
		}
		if len(result.Errors) > 10 {
			fmt.Fprintf(out, "  ... and %d more errors\n", len(result.Errors)-10)
		}
	}
}
