package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "idextract",
	Short: "idextract - identity document field extraction",
	Long: `idextract extracts structured identity fields from scanned documents.

A document runs through four stages: ingestion (format and size checks),
text extraction (native PDF text or OCR), deterministic cleaning, and
model-backed field extraction. The same pipeline backs the idextractd
HTTP service; this CLI runs it synchronously against local files.

Example:
  idextract process --file ./passport.jpg
  idextract process --file ./dni.pdf --out ./dni.xlsx`,
	Version: "0.1.0",
}

// Execute runs the root command. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./idextract.yaml, ~/.config/idextract/idextract.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.SetVersionTemplate("idextract version {{.Version}}\n")
}
