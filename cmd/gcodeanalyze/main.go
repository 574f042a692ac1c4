// Command gcodeanalyze is the CLI surface over the analysis core: parse
// and summarize a G-code file, run the deterministic rule engine alone,
// or drive the full LLM-backed workflow end to end.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/briksprint/gcode-core/analyzer"
	"github.com/briksprint/gcode-core/gcodeparse"
	"github.com/briksprint/gcode-core/llm"
	"github.com/briksprint/gcode-core/segment"
	"github.com/briksprint/gcode-core/summary"
	"github.com/briksprint/gcode-core/workflow"
	"github.com/spf13/cobra"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "gcodeanalyze",
		Short: "G-code analysis core CLI",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", DefaultConfigPath, "path to configuration file")

	rootCmd.AddCommand(summarizeCmd())
	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(workflowCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func summarizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summarize <file>",
		Short: "Parse a G-code file and print its comprehensive summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading gcode file %s: %w", args[0], err)
			}

			res := gcodeparse.Parse(data)
			layerMap, numLayers := segment.BuildLayerMap(res.Lines)
			s := summary.Compute(res.Lines, layerMap, numLayers)

			return printJSON(s)
		},
	}
}

func analyzeCmd() *cobra.Command {
	var filament string
	var snippetWindow int

	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Run the deterministic rule engine only (no LLM calls)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			issues, err := analyzer.RunErrorAnalysisOnly(args[0], filament, snippetWindow)
			if err != nil {
				return err
			}
			return printJSON(issues)
		},
	}
	cmd.Flags().StringVar(&filament, "filament", "PLA", "filament type (PLA, ABS, PETG, TPU, NYLON, ASA, PC)")
	cmd.Flags().IntVar(&snippetWindow, "snippet-window", 50, "line window around ambiguous issues")
	return cmd
}

func workflowCmd() *cobra.Command {
	var (
		filament    string
		locale      string
		autoApply   bool
		noPatch     bool
		userApprove bool
	)

	cmd := &cobra.Command{
		Use:   "workflow <file>",
		Short: "Run the full parse -> summarize -> detect -> validate -> assess -> patch pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(configPath)
			if err != nil {
				return err
			}

			a, err := analyzer.New(cfg)
			if err != nil {
				return fmt.Errorf("constructing analyzer: %w", err)
			}

			mode := workflow.ModeFull
			if noPatch {
				mode = workflow.ModeSummaryOnly
			}

			autoApplyOutput := ""
			if autoApply {
				autoApplyOutput = args[0]
			}

			state, err := a.RunAnalysis(context.Background(), args[0], analyzer.RunOptions{
				Filament:        filament,
				Locale:          llm.Locale(locale),
				Mode:            mode,
				UserApproved:    userApprove || autoApply,
				AutoApplyOutput: autoApplyOutput,
			})
			if err != nil {
				printJSON(state)
				return err
			}

			return printJSON(state)
		},
	}
	cmd.Flags().StringVar(&filament, "filament", "PLA", "filament type (PLA, ABS, PETG, TPU, NYLON, ASA, PC)")
	cmd.Flags().StringVar(&locale, "locale", "en", "LLM prompt locale (ko, en, ja, zh)")
	cmd.Flags().BoolVar(&autoApply, "auto-apply", false, "write a _patched sibling file with the planned patches applied")
	cmd.Flags().BoolVar(&noPatch, "no-patch", false, "stop after the comprehensive summary; skip rule detection, LLM analysis, and patch planning")
	cmd.Flags().BoolVar(&userApprove, "approve", false, "mark the run as user-approved without writing a patched file")
	return cmd
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
