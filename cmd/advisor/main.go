package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "advisor",
	Short: "Farm advisor command line",
	Long: `Run the farm advisor engines from the command line.

Available subcommands:
  crop        - Recommend a crop from soil and climate readings
  fertilizer  - Recommend a fertilizer with the trained model
  vocabulary  - List the crop and soil labels the model accepts
  disease     - Classify a plant image
  batch       - Recommend crops for files of soil samples and store them`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(cropCmd, fertilizerCmd, vocabularyCmd, diseaseCmd, batchCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
