package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ceue-certificates/certgen/internal/config"
)

var (
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "certgen",
	Short: "Generate CEUE complementary-credit certificates",
	Long: `certgen fills a .docx certificate template once per member of a roster
and renders each result to PDF.

Each roster row yields one document named after the member. Rows that fail
are reported and the batch continues.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		logger, err = cfg.Logging.NewLogger(verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (.yaml, .yml or .json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	addBatchFlags(generateCmd)
	addBatchFlags(previewCmd)
	addBatchFlags(scheduleCmd)
	scheduleCmd.Flags().IntVar(&nextRuns, "next", 0, "Print the next N run times and exit")
	generateCmd.Flags().StringVar(&summaryPath, "summary", "", "Write a run summary (.xlsx or .csv)")
	templateInitCmd.Flags().BoolVar(&overwriteTemplate, "force", false, "Overwrite an existing file")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "Token lifetime (default security.token_ttl)")

	templateCmd.AddCommand(templateInitCmd)

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(templateCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
