package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"thinkr-chatbot/internal/conversation"
)

var (
	flagExportFormat string
	flagExportOutput string
	flagImportInput  string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the conversation history",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Replace the conversation history with a JSON export",
	Args:  cobra.NoArgs,
	RunE:  runImport,
}

func init() {
	exportCmd.Flags().StringVar(&flagExportFormat, "format", conversation.FormatJSON, "Export format: json or text")
	exportCmd.Flags().StringVarP(&flagExportOutput, "output", "o", "", "Write to a file instead of stdout")
	importCmd.Flags().StringVarP(&flagImportInput, "input", "i", "", "JSON export to load")
	_ = importCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(exportCmd, importCmd)
}

func runExport(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	data, err := a.History.Export(flagExportFormat)
	if err != nil {
		return err
	}

	if flagExportOutput == "" {
		_, err := cmd.OutOrStdout().Write(append(data, '\n'))
		return err
	}
	if err := os.WriteFile(flagExportOutput, data, 0o644); err != nil {
		return fmt.Errorf("cannot write export: %w", err)
	}
	printOK(cmd.OutOrStdout(), fmt.Sprintf("%d exchanges exported to %s", a.History.Len(), flagExportOutput))
	return nil
}

func runImport(cmd *cobra.Command, _ []string) error {
	data, err := os.ReadFile(flagImportInput)
	if err != nil {
		return fmt.Errorf("cannot read import file: %w", err)
	}

	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.History.Import(cmd.Context(), data); err != nil {
		return err
	}
	printOK(cmd.OutOrStdout(), fmt.Sprintf("%d exchanges imported from %s", a.History.Len(), flagImportInput))
	return nil
}
